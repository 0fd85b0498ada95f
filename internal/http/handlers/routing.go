package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glasswallet/router/internal/models"
	"github.com/glasswallet/router/internal/service"
)

const routeFailedMessage = "Failed to route lead intelligently"

// @Summary Route a lead to an agent
// @Tags routing
// @Accept json
// @Produce json
// @Success 200 {object} models.RoutingDecision
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/route [post]
func (h *Handler) RouteLead(c *gin.Context) {
	rc, ok := h.bindContext(c)
	if !ok {
		return
	}
	decision, err := h.Router.RouteLead(c.Request.Context(), rc)
	if err != nil {
		code, _ := service.RoutingFailure(err)
		switch {
		case errors.Is(err, service.ErrNoAgentsAvailable):
			writeError(c, http.StatusConflict, code, routeFailedMessage, err.Error())
		case errors.Is(err, service.ErrNoSuitableAgent):
			writeError(c, http.StatusUnprocessableEntity, code, routeFailedMessage, err.Error())
		default:
			writeError(c, http.StatusInternalServerError, code, routeFailedMessage, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, decision)
}

// @Summary Trace rule stages and scores for a lead
// @Tags debug
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/debug/pipeline [post]
func (h *Handler) DebugPipeline(c *gin.Context) {
	rc, ok := h.bindContext(c)
	if !ok {
		return
	}
	exp, err := h.Router.Explain(rc)
	final := gin.H{}
	if err != nil {
		code, text := service.RoutingFailure(err)
		final["reason_code"] = code
		final["reason_text"] = text
	} else {
		final["recommended"] = exp.Ranked[0].Agent.ID
		final["score"] = exp.Ranked[0].Score
	}
	c.JSON(http.StatusOK, gin.H{
		"lead_id":   exp.LeadID,
		"urgency":   exp.Urgency,
		"available": exp.Available,
		"stages":    exp.Stages,
		"ranked":    exp.Ranked,
		"final":     final,
	})
}

type ruleView struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
}

func (h *Handler) RulesList(c *gin.Context) {
	rules := h.Router.Rules()
	items := make([]ruleView, 0, len(rules))
	for _, r := range rules {
		items = append(items, ruleView{Name: r.Name, Priority: r.Priority, Description: r.Description})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) RoutingStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.Stats().Snapshot())
}

func (h *Handler) bindContext(c *gin.Context) (models.RoutingContext, bool) {
	var rc models.RoutingContext
	if err := c.ShouldBindJSON(&rc); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return rc, false
	}
	if err := h.Validator.Struct(rc); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return rc, false
	}
	return rc, true
}
