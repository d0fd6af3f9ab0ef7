// Package routes wires every HTTP endpoint spec.md §6 names onto a *gin.Engine:
// the webhook ingress catch-all, the runtime execution callbacks, the
// manual trigger invocation endpoint, and the operational /healthz and
// /metrics endpoints.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
	"github.com/hookflow/hookflow/engine/ingress"
)

// Register attaches every route to engine, scoped behind state via
// appstate.StateMiddleware.
func Register(engine *gin.Engine, state *appstate.State) {
	engine.Use(appstate.StateMiddleware(state))

	engine.GET("/healthz", healthz)
	if state.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(state.Metrics.Handler()))
	}

	engine.Any("/webhook/*path", ingress.Handler)

	api := engine.Group("/api")
	{
		api.POST("/executions/:id/complete", completeExecution)
		api.POST("/executions/:id/fail", failExecution)
		api.GET("/executions/:id", getExecution)
		api.POST("/triggers/:id/invoke", invokeTrigger)
	}
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
