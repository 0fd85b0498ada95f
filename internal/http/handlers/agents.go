package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/glasswallet/router/internal/models"
)

// @Summary List agents
// @Tags agents
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/agents [get]
func (h *Handler) AgentsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Router.Registry().GetAllAgents()})
}

// @Summary List agents eligible for routing right now
// @Tags agents
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/agents/available [get]
func (h *Handler) AgentsAvailable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Router.Registry().GetAvailableAgents()})
}

func (h *Handler) AgentDetails(c *gin.Context) {
	a, ok := h.Router.Registry().GetAgent(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Agent not found", nil)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary Add or replace an agent
// @Tags agents
// @Accept json
// @Produce json
// @Success 200 {object} models.Agent
// @Failure 400 {object} map[string]any
// @Router /api/agents [post]
func (h *Handler) AgentUpsert(c *gin.Context) {
	var a models.Agent
	if err := c.ShouldBindJSON(&a); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	a.ID = strings.TrimSpace(a.ID)
	if a.Availability.Status == "" {
		a.Availability.Status = models.StatusAvailable
	}
	if !a.Availability.Status.Valid() {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown availability status", a.Availability.Status)
		return
	}
	if err := h.Validator.Struct(a); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	h.Router.Registry().AddAgent(a)
	h.Logger.Info().Str("agent_id", a.ID).Msg("agent upserted")
	c.JSON(http.StatusOK, a)
}

func (h *Handler) AgentDelete(c *gin.Context) {
	id := c.Param("id")
	if !h.Router.Registry().RemoveAgent(id) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Agent not found", nil)
		return
	}
	h.Logger.Info().Str("agent_id", id).Msg("agent removed")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type AvailabilityRequest struct {
	Status models.AgentStatus `json:"status" validate:"required,oneof=available busy offline break"`
}

// @Summary Update agent availability
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} models.Agent
// @Router /api/agents/{id}/availability [patch]
func (h *Handler) AgentAvailability(c *gin.Context) {
	id := c.Param("id")
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !h.Router.Registry().UpdateAgentAvailability(id, req.Status) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Agent not found", nil)
		return
	}
	a, _ := h.Router.Registry().GetAgent(id)
	h.Logger.Info().Str("agent_id", id).Str("status", string(req.Status)).Msg("agent availability updated")
	c.JSON(http.StatusOK, a)
}
