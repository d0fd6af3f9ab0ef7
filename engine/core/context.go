package core

import (
	"context"
	"fmt"
)

// Context key for the namespace a request is scoped to. The matcher and
// dispatcher never cross namespaces (spec §3), so every ingress and
// lifecycle operation threads this through context rather than passing it
// as an explicit parameter down every call.
type NamespaceIDKey struct{}

// WithNamespaceID adds the namespace ID to context.
func WithNamespaceID(ctx context.Context, namespaceID ID) context.Context {
	return context.WithValue(ctx, NamespaceIDKey{}, namespaceID)
}

// GetNamespaceID extracts the namespace ID from context.
func GetNamespaceID(ctx context.Context) (ID, error) {
	namespaceID, ok := ctx.Value(NamespaceIDKey{}).(ID)
	if !ok || namespaceID.IsZero() {
		return "", fmt.Errorf("namespace id not found in context")
	}
	return namespaceID, nil
}
