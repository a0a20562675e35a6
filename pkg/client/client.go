// Package client is a typed HTTP client for the Mindfuse platform API.
// It covers the public evaluation and profile surface plus the admin
// endpoints (which need the admin token).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to a Mindfuse server.
type Config struct {
	BaseURL    string // Base URL, e.g. "http://localhost:8080"
	AdminToken string // X-Admin-Token value; only needed for admin calls
}

// Client is a pure HTTP client for the Mindfuse platform API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a new client for the Mindfuse platform.
func New(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client (for testing or
// custom transports).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// APIError is an error response from the platform.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Code)
}

// doRequest makes an HTTP request to the platform and decodes the
// response into out when out is non-nil.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if c.cfg.AdminToken != "" {
		req.Header.Set("X-Admin-Token", c.cfg.AdminToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" && apiErr.Code == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Evaluation
// -----------------------------------------------------------------------------

// LabelScore pairs an emotion label with a classifier score.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// TextSignal is the text-classifier result submitted for analysis.
type TextSignal struct {
	Content     string       `json:"content"`
	Label       string       `json:"label"`
	Confidence  float64      `json:"confidence"`
	StressScore float64      `json:"stressScore"`
	Secondary   []LabelScore `json:"secondary,omitempty"`
}

// ImageSignal is the facial-expression result submitted for analysis.
type ImageSignal struct {
	Label       string       `json:"label"`
	Confidence  float64      `json:"confidence"`
	StressScore float64      `json:"stressScore"`
	Expressions []LabelScore `json:"expressions,omitempty"`
}

// AnalyzeRequest is the POST /v1/analyze body.
type AnalyzeRequest struct {
	UserID string       `json:"userId"`
	Text   *TextSignal  `json:"text,omitempty"`
	Image  *ImageSignal `json:"image,omitempty"`
}

// Explanation describes one modality's contribution to an assessment.
type Explanation struct {
	HasSignal bool     `json:"hasSignal"`
	Summary   string   `json:"summary"`
	Evidence  []string `json:"evidence,omitempty"`
}

// Guidance is the wellness text attached to an assessment.
type Guidance struct {
	Description string   `json:"description"`
	WellnessTip string   `json:"wellnessTip"`
	Suggestions []string `json:"suggestions"`
}

// KeyIndicators summarizes an assessment in three plain-language axes.
type KeyIndicators struct {
	MoodTone       string `json:"moodTone"`
	CognitiveClues string `json:"cognitiveClues"`
	SocialCues     string `json:"socialCues"`
}

// Assessment is the result of one evaluation.
type Assessment struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	PrimaryEmotion struct {
		Label       string  `json:"label"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"primaryEmotion"`
	StressCategory string                 `json:"stressCategory"`
	CombinedStress float64                `json:"combinedStress"`
	RiskScore      int                    `json:"riskScore"`
	RiskLevel      string                 `json:"riskLevel"`
	CrisisFlag     bool                   `json:"crisisFlag"`
	CrisisReason   string                 `json:"crisisReason,omitempty"`
	Explanations   map[string]Explanation `json:"explanations"`

	Guidance      Guidance      `json:"guidance"`
	KeyIndicators KeyIndicators `json:"keyIndicators"`
	CreatedAt     time.Time     `json:"createdAt"`
	Saved         bool          `json:"saved"`
	Warning       string        `json:"warning,omitempty"`
}

// Analyze submits classifier results for evaluation.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Assessment, error) {
	var out Assessment
	if err := c.doRequest(ctx, http.MethodPost, "/v1/analyze", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// HistoryEntry is one committed assessment in a profile's history.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	StressScore    float64   `json:"stressScore"`
	StressCategory string    `json:"stressCategory"`
	RiskScore      int       `json:"riskScore"`
	CrisisFlag     bool      `json:"crisisFlag"`
}

// Profile is a user's behavioral record.
type Profile struct {
	UserID            string         `json:"userId"`
	History           []HistoryEntry `json:"history"`
	EmojiFingerprint  map[string]int `json:"emojiFingerprint"`
	AverageConfidence float64        `json:"averageConfidence"`
	AnalysisCount     int            `json:"analysisCount"`
	HighRiskFlag      bool           `json:"highRiskFlag"`
	HighRiskReason    string         `json:"highRiskReason,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// ProfileResponse is the GET /v1/profiles/:userId response.
type ProfileResponse struct {
	Profile        Profile `json:"profile"`
	HistoryEntries int     `json:"historyEntries"`
}

// GetProfile returns a user's profile with a recent-history preview.
func (c *Client) GetProfile(ctx context.Context, userID string) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := c.doRequest(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HistoryPage is one page of a user's history, newest first.
type HistoryPage struct {
	Entries    []HistoryEntry `json:"entries"`
	NextCursor string         `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// GetHistory returns a page of the user's assessment history.
func (c *Client) GetHistory(ctx context.Context, userID string, limit int, cursor string) (*HistoryPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var out HistoryPage
	if err := c.doRequest(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(userID)+"/history", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProfile erases a user's profile and history.
func (c *Client) DeleteProfile(ctx context.Context, userID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/v1/profiles/"+url.PathEscape(userID), nil, nil, nil)
}

// -----------------------------------------------------------------------------
// Guidance and stats
// -----------------------------------------------------------------------------

// GuidanceResponse is the GET /v1/guidance/:emotion response.
type GuidanceResponse struct {
	Emotion        string   `json:"emotion"`
	StressCategory string   `json:"stressCategory"`
	Guidance       Guidance `json:"guidance"`
}

// GetGuidance returns guidance for an emotion. category is one of
// none, low, moderate, high, severe; empty means moderate.
func (c *Client) GetGuidance(ctx context.Context, emotion, category string) (*GuidanceResponse, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	var out GuidanceResponse
	if err := c.doRequest(ctx, http.MethodGet, "/v1/guidance/"+url.PathEscape(emotion), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats is the GET /v1/stats response.
type Stats struct {
	Profiles struct {
		TotalProfiles   int `json:"totalProfiles"`
		FlaggedProfiles int `json:"flaggedProfiles"`
		TotalAnalyses   int `json:"totalAnalyses"`
	} `json:"profiles"`
	Alerts struct {
		Live int `json:"live"`
	} `json:"alerts"`
	Realtime map[string]any `json:"realtime"`
}

// GetStats returns platform-wide statistics.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.doRequest(ctx, http.MethodGet, "/v1/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -----------------------------------------------------------------------------
// Admin
// -----------------------------------------------------------------------------

// FlaggedProfile is one row of the admin high-risk listing.
type FlaggedProfile struct {
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flaggedAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

// ListHighRisk returns the currently flagged profiles.
func (c *Client) ListHighRisk(ctx context.Context) ([]FlaggedProfile, error) {
	var out struct {
		Profiles []FlaggedProfile `json:"profiles"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/admin/high-risk", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

// ClearHighRiskFlag clears a user's high-risk flag.
func (c *Client) ClearHighRiskFlag(ctx context.Context, userID string) error {
	path := "/v1/admin/high-risk/" + url.PathEscape(userID) + "/clear"
	return c.doRequest(ctx, http.MethodPost, path, nil, nil, nil)
}

// Alert is one admin alert.
type Alert struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Cause       string     `json:"cause"`
	StressCount int        `json:"stressCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// ListAlerts returns admin alerts. status and userID filter when
// non-empty.
func (c *Client) ListAlerts(ctx context.Context, status, userID string, limit int) ([]Alert, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if userID != "" {
		q.Set("userId", userID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Alerts []Alert `json:"alerts"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/admin/alerts", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Alerts, nil
}

// AcknowledgeAlert marks an alert as seen.
func (c *Client) AcknowledgeAlert(ctx context.Context, id string) (*Alert, error) {
	var out Alert
	path := "/v1/admin/alerts/" + url.PathEscape(id) + "/acknowledge"
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveAlert closes an alert.
func (c *Client) ResolveAlert(ctx context.Context, id string) (*Alert, error) {
	var out Alert
	path := "/v1/admin/alerts/" + url.PathEscape(id) + "/resolve"
	if err := c.doRequest(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditRecord is one audited admin action.
type AuditRecord struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	UserID    string    `json:"userId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListAudit returns audit records, newest first.
func (c *Client) ListAudit(ctx context.Context, actor, action, userID string, limit int) ([]AuditRecord, error) {
	q := url.Values{}
	if actor != "" {
		q.Set("actor", actor)
	}
	if action != "" {
		q.Set("action", action)
	}
	if userID != "" {
		q.Set("userId", userID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Records []AuditRecord `json:"records"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/admin/audit", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Health returns the server's aggregated health status.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
