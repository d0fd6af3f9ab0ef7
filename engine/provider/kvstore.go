package provider

import (
	"context"
	"encoding/json"
)

// kvStoreAdapter backs the "kvstore" provider type (spec.md §3): a
// no-setup provider used by workflow code as a key/value store, not as an
// event source. It declares no trigger types, so reconcile is a no-op.
type kvStoreAdapter struct {
	DefaultMatcher
}

func newKVStoreAdapter() Adapter { return &kvStoreAdapter{} }

func (a *kvStoreAdapter) Kind() Kind { return KindKVStore }

func (a *kvStoreAdapter) Create(context.Context, Config, string, json.RawMessage, Utils) ([]byte, error) {
	return nil, nil
}

func (a *kvStoreAdapter) Refresh(
	_ context.Context,
	_ Config,
	_ string,
	_ json.RawMessage,
	state []byte,
) ([]byte, error) {
	return state, nil
}

func (a *kvStoreAdapter) Destroy(context.Context, Config, string, json.RawMessage, []byte, Utils) error {
	return nil
}
