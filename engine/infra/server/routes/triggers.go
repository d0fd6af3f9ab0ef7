package routes

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/engine/execution"
	"github.com/hookflow/hookflow/engine/infra/server/router"
	"github.com/hookflow/hookflow/engine/validation"
)

// invokeRequest is the body POST /api/triggers/:id/invoke accepts
// (spec.md §6, §8 S6): an arbitrary input_data payload plus who's invoking.
type invokeRequest struct {
	InputData   json.RawMessage `json:"input_data,omitempty"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
}

// invokeTrigger runs a manual firing of a single trigger, bypassing any
// provider match logic: load the trigger, validate input_data against its
// declared input_schema if present, create the RECEIVED row, and dispatch.
func invokeTrigger(c *gin.Context) {
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	id, err := core.ParseID(c.Param("id"))
	if err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "invalid trigger id", err,
		))
		return
	}
	var req invokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
				http.StatusBadRequest, "invalid request body", err,
			))
			return
		}
	}

	ctx := c.Request.Context()
	t, err := state.Triggers.Get(ctx, id)
	if err != nil {
		router.RespondWithError(c, http.StatusNotFound, router.NewRequestError(
			http.StatusNotFound, "trigger not found", err,
		))
		return
	}

	if err := validation.ValidateAgainstSchema(t.InputSchema, req.InputData); err != nil {
		router.RespondWithError(c, http.StatusBadRequest, router.NewRequestError(
			http.StatusBadRequest, "input_data does not match trigger's input_schema", err,
		))
		return
	}

	hist, err := state.History.Create(ctx, t.WorkflowID, t.ID)
	if err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "failed to create execution history row", err,
		))
		return
	}

	var inputData any
	if len(req.InputData) > 0 {
		if err := json.Unmarshal(req.InputData, &inputData); err != nil {
			inputData = string(req.InputData)
		}
	}
	data := execution.ManualEventData(req.TriggeredBy, inputData)

	dctx := c.Request.Context()
	if err := state.Dispatcher.Dispatch(dctx, t, data, hist.ID); err != nil {
		router.RespondWithError(c, http.StatusInternalServerError, router.NewRequestError(
			http.StatusInternalServerError, "dispatch failed", err,
		))
		return
	}

	router.RespondOK(c, "invoked", gin.H{
		"execution_id": hist.ID.String(),
		"status":       "invoked",
	})
}
