package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// Manager merges a sequence of Providers into a validated Config.
type Manager struct {
	svc *Service
}

// NewManager constructs a Manager backed by svc. A nil svc uses NewService().
func NewManager(svc *Service) *Manager {
	if svc == nil {
		svc = NewService()
	}
	return &Manager{svc: svc}
}

// Load applies providers in order — each overlays the previous — unmarshals
// the result into a Config, normalizes it, and validates it.
func (m *Manager) Load(_ context.Context, providers ...Provider) (*Config, error) {
	k := koanf.New(".")
	for _, p := range providers {
		if p == nil {
			continue
		}
		if err := p.Load(k); err != nil {
			return nil, fmt.Errorf("load config layer: %w", err)
		}
	}
	cfg := Default()
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				durationDecodeHook(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Mode = cfg.Mode.normalize()
	if err := m.svc.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
