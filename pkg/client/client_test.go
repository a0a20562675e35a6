package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, AdminToken: "test-token"})
	return srv, c
}

func TestAnalyze(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.UserID)
		require.NotNil(t, req.Text)
		assert.Equal(t, "happy", req.Text.Label)

		json.NewEncoder(w).Encode(map[string]any{
			"id":             "asm_123",
			"userId":         "alice",
			"riskLevel":      "Low",
			"riskScore":      12,
			"stressCategory": "No Apparent Stress",
			"saved":          true,
		})
	})

	a, err := c.Analyze(context.Background(), AnalyzeRequest{
		UserID: "alice",
		Text: &TextSignal{
			Content:     "feeling wonderful today",
			Label:       "happy",
			Confidence:  0.95,
			StressScore: 0.1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "asm_123", a.ID)
	assert.Equal(t, "Low", a.RiskLevel)
	assert.Equal(t, 12, a.RiskScore)
	assert.True(t, a.Saved)
}

func TestAnalyze_InputError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "invalid_input",
			"message": "at least one of text or image is required",
		})
	})

	_, err := c.Analyze(context.Background(), AnalyzeRequest{UserID: "alice"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "invalid_input", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "at least one of text or image")
}

func TestGetProfile(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/profiles/bob", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"profile": map[string]any{
				"userId":        "bob",
				"analysisCount": 4,
				"highRiskFlag":  true,
			},
			"historyEntries": 4,
		})
	})

	p, err := c.GetProfile(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Profile.UserID)
	assert.Equal(t, 4, p.Profile.AnalysisCount)
	assert.True(t, p.Profile.HighRiskFlag)
	assert.Equal(t, 4, p.HistoryEntries)
}

func TestGetProfile_NotFound(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "profile_not_found",
			"message": "No profile exists for this user",
		})
	})

	_, err := c.GetProfile(context.Background(), "ghost")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "profile_not_found", apiErr.Code)
}

func TestGetHistory_QueryParams(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/profiles/bob/history", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc123", r.URL.Query().Get("cursor"))
		json.NewEncoder(w).Encode(map[string]any{
			"entries":    []map[string]any{{"id": "h_1", "label": "sad"}},
			"nextCursor": "def456",
			"hasMore":    true,
		})
	})

	page, err := c.GetHistory(context.Background(), "bob", 25, "abc123")
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "sad", page.Entries[0].Label)
	assert.Equal(t, "def456", page.NextCursor)
	assert.True(t, page.HasMore)
}

func TestDeleteProfile(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/profiles/bob", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteProfile(context.Background(), "bob"))
}

func TestGetGuidance(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/guidance/anxious", r.URL.Path)
		assert.Equal(t, "high", r.URL.Query().Get("category"))
		json.NewEncoder(w).Encode(map[string]any{
			"emotion":        "anxious",
			"stressCategory": "High Stress",
			"guidance": map[string]any{
				"description": "Signs of anxiety detected",
				"wellnessTip": "Try slow breathing",
				"suggestions": []string{"step away for five minutes"},
			},
		})
	})

	g, err := c.GetGuidance(context.Background(), "anxious", "high")
	require.NoError(t, err)
	assert.Equal(t, "anxious", g.Emotion)
	assert.Equal(t, "High Stress", g.StressCategory)
	assert.NotEmpty(t, g.Guidance.WellnessTip)
}

func TestGetStats(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"profiles": map[string]any{"totalProfiles": 7, "flaggedProfiles": 1, "totalAnalyses": 30},
			"alerts":   map[string]any{"live": 2},
			"realtime": map[string]any{"clients": 0},
		})
	})

	st, err := c.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, st.Profiles.TotalProfiles)
	assert.Equal(t, 1, st.Profiles.FlaggedProfiles)
	assert.Equal(t, 2, st.Alerts.Live)
}

func TestAdminToken_SentOnAdminCalls(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Admin-Token"))
		json.NewEncoder(w).Encode(map[string]any{
			"profiles": []map[string]any{{"userId": "jack", "reason": "3 of last 5 entries high stress"}},
			"count":    1,
		})
	})

	flagged, err := c.ListHighRisk(context.Background())
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "jack", flagged[0].UserID)
}

func TestClearHighRiskFlag(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/admin/high-risk/jack/clear", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"userId": "jack", "flagged": false})
	})

	require.NoError(t, c.ClearHighRiskFlag(context.Background(), "jack"))
}

func TestListAlerts_Filters(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/admin/alerts", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "jack", r.URL.Query().Get("userId"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"alerts": []map[string]any{{"id": "alr_1", "userId": "jack", "severity": "critical", "status": "open"}},
			"count":  1,
		})
	})

	list, err := c.ListAlerts(context.Background(), "open", "jack", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alr_1", list[0].ID)
	assert.Equal(t, "critical", list[0].Severity)
}

func TestAlertLifecycleCalls(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/admin/alerts/alr_1/acknowledge":
			json.NewEncoder(w).Encode(map[string]any{"id": "alr_1", "status": "acknowledged"})
		case "/v1/admin/alerts/alr_1/resolve":
			json.NewEncoder(w).Encode(map[string]any{"id": "alr_1", "status": "resolved"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	a, err := c.AcknowledgeAlert(context.Background(), "alr_1")
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", a.Status)

	a, err = c.ResolveAlert(context.Background(), "alr_1")
	require.NoError(t, err)
	assert.Equal(t, "resolved", a.Status)
}

func TestListAudit(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/admin/audit", r.URL.Path)
		assert.Equal(t, "admin", r.URL.Query().Get("actor"))
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{{"id": "aud_1", "actor": "admin", "action": "CLEAR_HIGH_RISK_FLAG", "userId": "jack"}},
			"count":   1,
		})
	})

	records, err := c.ListAudit(context.Background(), "admin", "", "", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CLEAR_HIGH_RISK_FLAG", records[0].Action)
}

func TestErrorBody_NonJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := c.GetStats(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream exploded")
}
