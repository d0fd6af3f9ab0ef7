// Package provider implements the Provider Adapter component (spec.md
// §4.4, C4): the polymorphic reconcile/match surface that lets the
// Lifecycle Manager and Event Ingress stay provider-agnostic.
package provider

import (
	"encoding/json"
	"time"

	"github.com/hookflow/hookflow/engine/core"
)

// Kind enumerates the supported provider types (spec.md §3).
type Kind string

const (
	KindGitLab         Kind = "gitlab"
	KindSlack          Kind = "slack"
	KindDiscord        Kind = "discord"
	KindGitHub         Kind = "github"
	KindJira           Kind = "jira"
	KindGoogleCalendar Kind = "google_calendar"
	KindBuiltin        Kind = "builtin"
	KindKVStore        Kind = "kvstore"
)

// NoSetupKinds lists provider types with no declared setup steps, eligible
// for auto-creation with empty config (spec.md §3).
var NoSetupKinds = map[Kind]bool{
	KindBuiltin: true,
	KindKVStore: true,
}

// Provider is a namespace-scoped credential/config record identified by
// (namespace, type, alias). Config is ciphertext at this layer; the
// dispatcher decrypts it (engine/secretbox) before handing it to an
// adapter.
type Provider struct {
	ID          core.ID   `json:"id"`
	NamespaceID core.ID   `json:"namespace_id"`
	Type        Kind      `json:"type"`
	Alias       string    `json:"alias"`
	Config      []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key returns the "type:alias" composite key used to index decrypted
// provider configs in the V2 dispatch payload (spec.md §4.8).
func (p *Provider) Key() string {
	return string(p.Type) + ":" + p.Alias
}

// Config is the decrypted, provider-specific credential map handed to
// adapters and embedded into the V2 payload.
type Config map[string]any

// DecodeConfig unmarshals decrypted plaintext bytes into a Config.
func DecodeConfig(plaintext []byte) (Config, error) {
	if len(plaintext) == 0 {
		return Config{}, nil
	}
	var cfg Config
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
