package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/glasswallet/router/internal/models"
)

type ImportSummary struct {
	Leads struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
		Errors   int `json:"errors"`
	} `json:"leads"`
	Agents struct {
		Parsed   int `json:"parsed"`
		Upserted int `json:"upserted"`
		Errors   int `json:"errors"`
	} `json:"agents"`
	Errors []string `json:"errors"`
}

// @Summary Import CSV data
// @Description Upload leads and, optionally, agents CSV files
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param leads formData file true "leads.csv"
// @Param agents formData file false "agents.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	leadsFile, err := c.FormFile("leads")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "leads file required", nil)
		return
	}
	agentsFile, err := c.FormFile("agents")
	if err != nil && err != http.ErrMissingFile {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid agents file", err.Error())
		return
	}

	if !validateExt(leadsFile.Filename) || (agentsFile != nil && !validateExt(agentsFile.Filename)) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}

	leads, errs := parseLeadsCSV(leadsFile)
	summary.Leads.Parsed = len(leads)
	summary.Leads.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	var agents []models.Agent
	if agentsFile != nil {
		agents, errs = parseAgentsCSV(agentsFile)
		summary.Agents.Parsed = len(agents)
		summary.Agents.Errors = len(errs)
		summary.Errors = append(summary.Errors, errs...)
	}

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	for _, a := range agents {
		if err := h.Validator.Struct(a); err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("agent %s failed validation", a.ID), err.Error())
			return
		}
	}

	inserted, err := h.Source.InsertLeads(c.Request.Context(), leads)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert leads", err.Error())
		return
	}
	summary.Leads.Inserted = int(inserted)
	summary.Leads.Skipped = len(leads) - int(inserted)

	for _, a := range agents {
		h.Router.Registry().AddAgent(a)
	}
	summary.Agents.Upserted = len(agents)

	h.Logger.Info().Int("leads", summary.Leads.Inserted).Int("skipped", summary.Leads.Skipped).Int("agents", summary.Agents.Upserted).Msg("import finished")
	c.JSON(http.StatusOK, summary)
}

func parseLeadsCSV(file *multipart.FileHeader) ([]models.Lead, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()
	return readLeadsCSV(f)
}

func readLeadsCSV(r io.Reader) ([]models.Lead, []string) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	var errors []string
	var out []models.Lead

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}

		id := getFieldAny(rec, index, "id", "lead_id", "lead id")
		if id == "" {
			id = "LEAD-" + uuid.NewString()
		}
		createdAt, err := time.Parse(time.RFC3339, getFieldAny(rec, index, "created_at", "created", "date"))
		if err != nil {
			createdAt = time.Now().UTC()
		}

		l := models.Lead{
			ID:               id,
			CreatedAt:        createdAt,
			Name:             getFieldAny(rec, index, "name", "full_name"),
			Email:            getFieldAny(rec, index, "email"),
			Phone:            getFieldAny(rec, index, "phone", "phone_number"),
			Source:           strings.ToLower(getFieldAny(rec, index, "source", "utm_source")),
			DeviceType:       strings.ToLower(getFieldAny(rec, index, "device_type", "device")),
			Tags:             splitList(getFieldAny(rec, index, "tags")),
			PreferredChannel: strings.ToLower(getFieldAny(rec, index, "preferred_channel", "channel")),
			Priority:         models.Urgency(strings.ToLower(getFieldAny(rec, index, "priority"))),
			Status:           models.LeadStatusNew,
		}
		if l.Priority != "" && !l.Priority.Valid() {
			errors = append(errors, fmt.Sprintf("line %d: unknown priority %q", line, l.Priority))
			continue
		}

		var parseErr error
		if l.CreditScore, parseErr = optionalFloat(getFieldAny(rec, index, "credit_score", "fico")); parseErr != nil {
			errors = append(errors, fmt.Sprintf("line %d: credit_score: %v", line, parseErr))
			continue
		}
		if l.Income, parseErr = optionalFloat(getFieldAny(rec, index, "income", "annual_income")); parseErr != nil {
			errors = append(errors, fmt.Sprintf("line %d: income: %v", line, parseErr))
			continue
		}
		if l.PreviousApplications, parseErr = optionalInt(getFieldAny(rec, index, "previous_applications")); parseErr != nil {
			errors = append(errors, fmt.Sprintf("line %d: previous_applications: %v", line, parseErr))
			continue
		}
		out = append(out, l)
	}
	return out, errors
}

func parseAgentsCSV(file *multipart.FileHeader) ([]models.Agent, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()
	return readAgentsCSV(f)
}

func readAgentsCSV(r io.Reader) ([]models.Agent, []string) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	var errors []string
	var out []models.Agent

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}

		id := getFieldAny(rec, index, "id", "agent_id", "agent id")
		name := getFieldAny(rec, index, "name")
		if id == "" || name == "" {
			errors = append(errors, fmt.Sprintf("line %d: agent id/name required", line))
			continue
		}

		status := models.AgentStatus(strings.ToLower(getFieldAny(rec, index, "status")))
		if status == "" {
			status = models.StatusAvailable
		}
		if !status.Valid() {
			errors = append(errors, fmt.Sprintf("line %d: unknown status %q", line, status))
			continue
		}

		var perf models.AgentPerformance
		numbers := []struct {
			key string
			dst *float64
		}{
			{"conversion_rate", &perf.ConversionRate},
			{"avg_response_time", &perf.AvgResponseTime},
			{"avg_deal_value", &perf.AvgDealValue},
			{"satisfaction_score", &perf.SatisfactionScore},
		}
		bad := false
		for _, n := range numbers {
			v, err := optionalFloat(getField(rec, index, n.key))
			if err != nil {
				errors = append(errors, fmt.Sprintf("line %d: %s: %v", line, n.key, err))
				bad = true
				break
			}
			if v != nil {
				*n.dst = *v
			}
		}
		if bad {
			continue
		}
		active, err1 := optionalInt(getField(rec, index, "active_leads"))
		maxLeads, err2 := optionalInt(getField(rec, index, "max_leads"))
		if err1 != nil || err2 != nil {
			errors = append(errors, fmt.Sprintf("line %d: active_leads/max_leads must be integers", line))
			continue
		}
		if active != nil {
			perf.ActiveLeads = *active
		}
		if maxLeads != nil {
			perf.MaxLeads = *maxLeads
		}

		out = append(out, models.Agent{
			ID:          id,
			Name:        name,
			Email:       getFieldAny(rec, index, "email"),
			Performance: perf,
			Availability: models.AgentAvailability{
				Status:   status,
				Timezone: getFieldAny(rec, index, "timezone", "tz"),
			},
			Preferences: models.AgentPreferences{
				LeadTypes:             splitList(getFieldAny(rec, index, "lead_types")),
				CommunicationChannels: splitList(getFieldAny(rec, index, "channels", "communication_channels")),
				WorkloadLevel:         getFieldAny(rec, index, "workload_level"),
			},
			Skills: parseSkills(getFieldAny(rec, index, "skills")),
		})
	}
	return out, errors
}

func parseSkills(raw string) models.AgentSkills {
	var s models.AgentSkills
	for _, skill := range splitList(raw) {
		switch strings.ToLower(strings.ReplaceAll(skill, "-", "_")) {
		case "credit_specialist", "credit":
			s.CreditSpecialist = true
		case "high_value_deals", "high_value":
			s.HighValueDeals = true
		case "difficult_cases", "difficult":
			s.DifficultCases = true
		case "new_lead_expert", "new_leads":
			s.NewLeadExpert = true
		case "closing_expert", "closing":
			s.ClosingExpert = true
		}
	}
	return s
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

// splitList splits on ';' or '|' so list cells survive inside a CSV field.
func splitList(raw string) []string {
	raw = strings.ReplaceAll(raw, "|", ";")
	parts := strings.Split(raw, ";")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optionalInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func validateExt(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".csv"
}
