// Package appstate carries the singletons every HTTP handler needs —
// registries, the scheduler, the dispatcher — through the request
// context, following the teacher's appstate.State/StateMiddleware
// pattern rather than package-level globals.
package appstate

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/infra/monitoring"
	"github.com/hookflow/hookflow/engine/lifecycle"
	"github.com/hookflow/hookflow/engine/provider"
	"github.com/hookflow/hookflow/engine/runtime"
	"github.com/hookflow/hookflow/engine/scheduler"
	"github.com/hookflow/hookflow/engine/secretbox"
	"github.com/hookflow/hookflow/engine/trigger"
	"github.com/hookflow/hookflow/engine/workflow"
)

type contextKey string

const stateKey contextKey = "app_state"

// State wires every component the server's routes depend on: the durable
// registries (C2-C4), the scheduler (C6), the lifecycle manager (C5), and
// the dispatcher (C8). Constructed once at startup in cmd/hookflow.
type State struct {
	Triggers   trigger.Registry
	Providers  provider.Registry
	Workflows  workflow.Registry
	Runtimes   runtime.Registry
	History    execution.HistoryStore
	Scheduler  *scheduler.Scheduler
	Lifecycle  *lifecycle.Manager
	Dispatcher *execution.Dispatcher
	Signer     *execution.JWTSigner
	Secrets    *secretbox.Box
	Metrics    *monitoring.Service
	PublicURL  string
}

// WithState returns a new context carrying state.
func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

// GetState returns the State stored in ctx.
func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok || state == nil {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

// StateMiddleware stashes state onto every request's context.
func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
