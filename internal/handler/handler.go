package handler

import (
	"trade-coach/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer          trace.Tracer
	workflowService *service.WorkflowService
	tradeSource     service.TradeSource
	tradeLimit      int
}

func New(
	tracer trace.Tracer,
	workflowService *service.WorkflowService,
	tradeSource service.TradeSource,
	tradeLimit int,
) *Handler {
	if tradeLimit <= 0 {
		tradeLimit = 10
	}
	return &Handler{
		tracer:          tracer,
		workflowService: workflowService,
		tradeSource:     tradeSource,
		tradeLimit:      tradeLimit,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/trades", h.GetTrades)
	r.POST("/api/coaching/trigger", h.TriggerCoaching)
	r.GET("/api/coaching/status/:id", h.GetCoachingStatus)
	r.GET("/api/coaching/latest", h.GetLatestCoaching)
}
