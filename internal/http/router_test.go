package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasswallet/router/internal/ai"
	"github.com/glasswallet/router/internal/config"
	"github.com/glasswallet/router/internal/db"
	"github.com/glasswallet/router/internal/http/middleware"
	"github.com/glasswallet/router/internal/models"
	"github.com/glasswallet/router/internal/service"
)

const testAdminKey = "secret"

type testServer struct {
	engine *gin.Engine
	store  *db.MemoryStore
	router *service.Router
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		AdminKey:        testAdminKey,
		CORSAllowed:     "*",
		MaxUploadSizeMB: 1,
		RateLimitPerMin: 6000,
		RateLimitBurst:  100,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	now := func() time.Time { return time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC) }
	registry := service.NewRegistry(service.WithClock(now))
	_, err := service.SeedRegistry(registry, "")
	require.NoError(t, err)
	router := service.NewRouter(registry, zerolog.Nop(), service.WithRouterClock(now))
	store := db.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine := Router(ctx, cfg, Deps{
		Source: store,
		Router: router,
		Processor: &service.ProcessingService{
			Source: store,
			AI:     ai.MockAdapter{ModelVersion: "test"},
			Router: router,
			Logger: zerolog.Nop(),
		},
	}, zerolog.Nop())
	return &testServer{engine: engine, store: store, router: router}
}

func (s *testServer) do(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

const sarahLead = `{"lead_id":"lead-1","features":{"credit_score":780,"income":120000},"priority":"urgent"}`

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", nil, false)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["agents"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRouteLead(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/route", sarahLead, false)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d models.RoutingDecision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "agent-1", d.RecommendedAgent.ID)
	assert.Equal(t, models.UrgencyUrgent, d.UrgencyLevel)
	assert.Equal(t, 18, d.EstimatedResponseTime)

	stats := decode(t, s.do(http.MethodGet, "/api/routing/stats", nil, false))
	assert.EqualValues(t, 1, stats["routed"])
}

func TestRouteLeadValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/route", `{"features":{}}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = s.do(http.MethodPost, "/api/route", `{"lead_id":"x","priority":"whenever"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/route", `{not json`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestRouteLeadNoAgents(t *testing.T) {
	s := newTestServer(t)
	for _, a := range s.router.Registry().GetAllAgents() {
		s.router.Registry().UpdateAgentAvailability(a.ID, models.StatusOffline)
	}

	w := s.do(http.MethodPost, "/api/route", sarahLead, false)

	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	e := body["error"].(map[string]any)
	assert.Equal(t, service.ReasonNoAgentsAvailable, e["code"])
	assert.Equal(t, "Failed to route lead intelligently", e["message"])
}

func TestRouteLeadRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimitPerMin = 1
		c.RateLimitBurst = 1
	})

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/route", sarahLead, false).Code)
	w := s.do(http.MethodPost, "/api/route", sarahLead, false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))

	// Other endpoints are not limited.
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/rules", nil, false).Code)
}

func TestAgentsEndpoints(t *testing.T) {
	s := newTestServer(t)

	list := decode(t, s.do(http.MethodGet, "/api/agents", nil, false))
	assert.Len(t, list["items"], 3)

	w := s.do(http.MethodGet, "/api/agents/agent-2", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Michael Chen", decode(t, w)["name"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/agents/nobody", nil, false).Code)
}

func TestAgentAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	agent := map[string]any{
		"id":          "agent-7",
		"name":        "Riley Park",
		"performance": map[string]any{"conversion_rate": 0.9, "avg_response_time": 10, "max_leads": 5},
	}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/agents", agent, false).Code)

	w := s.do(http.MethodPost, "/api/agents", agent, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, s.router.Registry().Len())

	bad := map[string]any{"id": "agent-8", "name": "X", "performance": map[string]any{"conversion_rate": 3}}
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/agents", bad, true).Code)

	w = s.do(http.MethodPatch, "/api/agents/agent-7/availability", `{"status":"offline"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	avail := decode(t, s.do(http.MethodGet, "/api/agents/available", nil, false))
	for _, item := range avail["items"].([]any) {
		assert.NotEqual(t, "agent-7", item.(map[string]any)["id"])
	}

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, "/api/agents/agent-7/availability", `{"status":"napping"}`, true).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, "/api/agents/nobody/availability", `{"status":"busy"}`, true).Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/agents/agent-7", nil, true).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/agents/agent-7", nil, true).Code)
}

func TestRulesList(t *testing.T) {
	s := newTestServer(t)
	body := decode(t, s.do(http.MethodGet, "/api/rules", nil, false))

	items := body["items"].([]any)
	require.Len(t, items, 5)
	assert.Equal(t, service.RuleHighPriorityTopPerformers, items[0].(map[string]any)["name"])
}

func TestDebugPipeline(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/debug/pipeline", sarahLead, true)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["stages"], 5)
	assert.Equal(t, "agent-1", body["final"].(map[string]any)["recommended"])
	assert.EqualValues(t, 0, decode(t, s.do(http.MethodGet, "/api/routing/stats", nil, false))["routed"])
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImportProcessAndInspect(t *testing.T) {
	s := newTestServer(t)
	leads := strings.Join([]string{
		"lead_id,created_at,email,credit_score,income,previous_applications,tags,priority",
		"L-1,2026-10-01T09:00:00Z,a@example.com,780,120000,0,premium,urgent",
		"L-2,2026-10-01T09:05:00Z,b@example.com,,,2,refinance;subprime,",
	}, "\n")
	agents := strings.Join([]string{
		"agent_id,name,status,conversion_rate,avg_response_time,avg_deal_value,satisfaction_score,active_leads,max_leads,skills,lead_types",
		"agent-9,Casey Ortiz,available,0.7,20,4000,4.2,0,10,new_lead_expert|difficult,refinance",
	}, "\n")

	body, contentType := multipartBody(t, map[string]string{"leads": leads, "agents": agents})
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode(t, w)
	assert.EqualValues(t, 2, summary["leads"].(map[string]any)["inserted"])
	assert.EqualValues(t, 1, summary["agents"].(map[string]any)["upserted"])
	assert.Equal(t, 4, s.router.Registry().Len())

	list := decode(t, s.do(http.MethodGet, "/api/leads?status=new", nil, false))
	assert.Len(t, list["items"], 2)

	w = s.do(http.MethodPost, "/api/process?debug=true", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	counts := decode(t, w)["counts"].(map[string]any)
	assert.EqualValues(t, 2, counts["assigned"])

	detail := decode(t, s.do(http.MethodGet, "/api/leads/L-1", nil, false))
	assert.Equal(t, models.LeadStatusAssigned, detail["lead"].(map[string]any)["status"])
	assignment := detail["assignment"].(map[string]any)
	assert.Equal(t, "agent-1", assignment["agent_id"])

	w = s.do(http.MethodGet, "/api/runs/latest", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.RunSuccess, decode(t, w)["status"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/leads/L-404", nil, false).Code)
}

func (s *testServer) importLeads(t *testing.T, leads string) map[string]any {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{"leads": leads})
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["leads"].(map[string]any)
}

func TestImportWithoutIDsKeepsEarlierBatches(t *testing.T) {
	s := newTestServer(t)

	s.importLeads(t, "email\nfirst@example.com\n")
	w := s.do(http.MethodPost, "/api/process", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	second := s.importLeads(t, "email\nsecond@example.com\n")
	assert.EqualValues(t, 1, second["inserted"])

	items := decode(t, s.do(http.MethodGet, "/api/leads", nil, false))["items"].([]any)
	require.Len(t, items, 2)
	emails := map[string]string{}
	for _, item := range items {
		lead := item.(map[string]any)
		emails[lead["email"].(string)] = lead["status"].(string)
	}
	assert.Equal(t, models.LeadStatusAssigned, emails["first@example.com"], "earlier lead is not reset")
	assert.Equal(t, models.LeadStatusNew, emails["second@example.com"])
}

func TestImportSkipsKnownLeadIDs(t *testing.T) {
	s := newTestServer(t)

	s.importLeads(t, "lead_id,email\nL-1,a@example.com\n")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/process", nil, true).Code)

	again := s.importLeads(t, "lead_id,email\nL-1,changed@example.com\nL-2,b@example.com\n")
	assert.EqualValues(t, 1, again["inserted"])
	assert.EqualValues(t, 1, again["skipped"])

	lead := decode(t, s.do(http.MethodGet, "/api/leads/L-1", nil, false))["lead"].(map[string]any)
	assert.Equal(t, "a@example.com", lead["email"])
	assert.Equal(t, models.LeadStatusAssigned, lead["status"])

	load := 0
	for _, a := range s.router.Registry().GetAllAgents() {
		load += a.Performance.ActiveLeads
	}
	w := s.do(http.MethodPost, "/api/process", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["counts"].(map[string]any)["assigned"], "only the new lead is routed")
	after := 0
	for _, a := range s.router.Registry().GetAllAgents() {
		after += a.Performance.ActiveLeads
	}
	assert.Equal(t, load+1, after)
}

func TestImportRejectsBadCSV(t *testing.T) {
	s := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{
		"leads": "lead_id,credit_score\nL-1,excellent\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CSV_PARSE_ERROR", errorCode(t, w))

	list := decode(t, s.do(http.MethodGet, "/api/leads", nil, false))
	assert.Empty(t, list["items"])
}

func TestRunsLatestEmpty(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/runs/latest", nil, false).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodPost, "/api/route", sarahLead, false)

	w := s.do(http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "glasswallet_routing_decisions_total")
}
