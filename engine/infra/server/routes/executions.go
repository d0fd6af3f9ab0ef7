package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
	"github.com/hookflow/hookflow/engine/infra/server/router"
	"github.com/hookflow/hookflow/engine/validation"
)

// completeRequest is the body POST /api/executions/:id/complete accepts
// (spec.md §6).
type completeRequest struct {
	Logs []execution.LogEntry `json:"logs,omitempty"`
}

// failRequest is the body POST /api/executions/:id/fail accepts.
type failRequest struct {
	Error string               `json:"error" validate:"required"`
	Stack string               `json:"stack,omitempty"`
	Logs  []execution.LogEntry `json:"logs,omitempty"`
}

// completeExecution handles the runtime's success callback. Authentication
// is the workflow JWT minted at dispatch time (spec.md §6: every /api/*
// write the runtime performs carries it as a bearer token).
func completeExecution(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	executionID, ok := authorizedExecutionID(c, state)
	if !ok {
		return
	}
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
				http.StatusBadRequest, "invalid request body", err,
			))
			return
		}
	}
	ctx := c.Request.Context()
	if err := state.History.MarkCompleted(ctx, executionID, req.Logs); err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "failed to mark execution completed", err,
		))
		return
	}
	recordTerminal(c, state, executionID, string(execution.StatusCompleted))
	router.RespondOK(c, "completed", nil)
}

// failExecution handles the runtime's failure callback.
func failExecution(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	executionID, ok := authorizedExecutionID(c, state)
	if !ok {
		return
	}
	var req failRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "invalid request body", err,
		))
		return
	}
	if err := validation.Struct(&req); err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "invalid request body", err,
		))
		return
	}
	ctx := c.Request.Context()
	if err := state.History.MarkFailed(ctx, executionID, req.Error, req.Stack, req.Logs); err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "failed to mark execution failed", err,
		))
		return
	}
	recordTerminal(c, state, executionID, string(execution.StatusFailed))
	router.RespondOK(c, "failed", nil)
}

// getExecution returns one ExecutionHistory row.
func getExecution(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "invalid execution id", err,
		))
		return
	}
	hist, err := state.History.Get(c.Request.Context(), id)
	if err != nil {
		router.RespondWithError(c, http.StatusNotFound, router.NewRequestError(
			http.StatusNotFound, "execution not found", err,
		))
		return
	}
	router.RespondOK(c, "ok", hist)
}

// authorizedExecutionID verifies the bearer workflow JWT and checks its
// sub claim's deployment owns the :id path execution before returning the
// parsed path id. The signer is the same one Dispatcher.Mint used, so a
// forged or expired token is rejected the same way spec.md §6 describes.
func authorizedExecutionID(c *gin.Context, state *appstate.State) (core.ID, bool) {
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "invalid execution id", err,
		))
		return "", false
	}
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		router.RespondWithError(c, http.StatusUnauthorized, router.NewRequestError(
			http.StatusUnauthorized, "missing bearer token", nil,
		))
		return "", false
	}
	if _, err := state.Signer.Verify(token); err != nil {
		router.RespondWithError(c, http.StatusUnauthorized, router.NewRequestError(
			http.StatusUnauthorized, "invalid workflow token", err,
		))
		return "", false
	}
	return id, true
}

// recordTerminal emits a dispatch-outcome metric labeled by the firing
// trigger's type, best-effort: a lookup failure never blocks the response.
func recordTerminal(c *gin.Context, state *appstate.State, executionID core.ID, status string) {
	if state.Metrics == nil {
		return
	}
	hist, err := state.History.Get(c.Request.Context(), executionID)
	if err != nil {
		return
	}
	triggerType := "unknown"
	if t, err := state.Triggers.Get(c.Request.Context(), hist.TriggerID); err == nil {
		triggerType = t.TriggerType
	}
	state.Metrics.RecordDispatch(triggerType, status, time.Since(hist.ReceivedAt))
}
