package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerCoaching godoc
// @Summary      Trigger a coaching workflow run
// @Description  Starts the coaching pipeline asynchronously and returns the workflow id to poll
// @Tags         coaching
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/coaching/trigger [post]
func (h *Handler) TriggerCoaching(c *gin.Context) {
	if h.workflowService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "workflow service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-coaching")
	defer span.End()

	id, err := h.workflowService.Start(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("workflow_id", id))

	c.JSON(http.StatusOK, gin.H{"workflowId": id})
}

// GetCoachingStatus godoc
// @Summary      Get workflow status
// @Description  Returns the status and, once completed, the coaching result for a workflow id
// @Tags         coaching
// @Produce      json
// @Param        id  path  string  true  "Workflow ID"
// @Success      200  {object}  domain.WorkflowRun
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/coaching/status/{id} [get]
func (h *Handler) GetCoachingStatus(c *gin.Context) {
	if h.workflowService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "workflow service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coaching-status")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing workflow id"})
		return
	}
	span.SetAttributes(attribute.String("workflow_id", id))

	run := h.workflowService.Status(ctx, id)
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "workflow not found",
			"message": "No workflow found with ID: " + id,
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetLatestCoaching godoc
// @Summary      Get the latest coaching result
// @Description  Returns the most recent completed coaching result, if any
// @Tags         coaching
// @Produce      json
// @Success      200  {object}  domain.CoachingResult
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/coaching/latest [get]
func (h *Handler) GetLatestCoaching(c *gin.Context) {
	if h.workflowService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "workflow service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-coaching")
	defer span.End()

	result, err := h.workflowService.LatestResult(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no coaching result available yet"})
		return
	}

	c.JSON(http.StatusOK, result)
}
