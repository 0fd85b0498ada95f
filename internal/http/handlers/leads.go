package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/glasswallet/router/internal/service"
)

func (h *Handler) LeadsList(c *gin.Context) {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	items, err := h.Source.ListLeads(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list leads", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) LeadDetails(c *gin.Context) {
	id := c.Param("id")
	lead, err := h.Source.GetLead(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get lead", err.Error())
		return
	}

	resp := gin.H{"lead": lead}
	assignment, err := h.Source.GetAssignment(c.Request.Context(), id)
	switch {
	case err == nil:
		resp["assignment"] = assignment
	case !isNotFound(err):
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get assignment", err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Route all pending leads
// @Tags process
// @Produce json
// @Param debug query bool false "Include sample decisions"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/process [post]
func (h *Handler) Process(c *gin.Context) {
	debug := c.Query("debug")
	summary, err := h.Processor.Run(c.Request.Context(), debug == "1" || strings.EqualFold(debug, "true"))
	if errors.Is(err, service.ErrRunInProgress) {
		writeError(c, http.StatusConflict, "RUN_IN_PROGRESS", "Lead processing is already running", nil)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("processing failed")
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	run, err := h.Source.LatestRun(c.Request.Context())
	if err != nil {
		if isNotFound(err) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}
