package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/mindfuse/pkg/client"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	api *client.Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(api *client.Client) *Handlers {
	return &Handlers{api: api}
}

// HandleAnalyzeWellbeing submits classifier results for evaluation.
func (h *Handlers) HandleAnalyzeWellbeing(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	analyzeReq := client.AnalyzeRequest{UserID: userID}

	if content := req.GetString("text_content", ""); content != "" {
		analyzeReq.Text = &client.TextSignal{
			Content:     content,
			Label:       req.GetString("text_label", ""),
			Confidence:  req.GetFloat("text_confidence", 0),
			StressScore: req.GetFloat("text_stress", 0),
		}
	}
	if label := req.GetString("image_label", ""); label != "" {
		analyzeReq.Image = &client.ImageSignal{
			Label:       label,
			Confidence:  req.GetFloat("image_confidence", 0),
			StressScore: req.GetFloat("image_stress", 0),
		}
	}

	if analyzeReq.Text == nil && analyzeReq.Image == nil {
		return mcp.NewToolResultError("at least one of text_content or image_label is required"), nil
	}

	a, err := h.api.Analyze(ctx, analyzeReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAssessment(a)), nil
}

// HandleGetProfile returns a user's behavioral profile.
func (h *Handlers) HandleGetProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	p, err := h.api.GetProfile(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get profile: %v", err)), nil
	}

	return mcp.NewToolResultText(formatProfile(p)), nil
}

// HandleGetHistory pages through a user's assessment history.
func (h *Handlers) HandleGetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	limit := req.GetInt("limit", 50)
	cursor := req.GetString("cursor", "")

	page, err := h.api.GetHistory(ctx, userID, limit, cursor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get history: %v", err)), nil
	}

	return mcp.NewToolResultText(formatHistory(userID, page)), nil
}

// HandleListHighRisk lists flagged users.
func (h *Handlers) HandleListHighRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flagged, err := h.api.ListHighRisk(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list high-risk users: %v", err)), nil
	}

	if len(flagged) == 0 {
		return mcp.NewToolResultText("No users are currently flagged as high risk."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d user(s) flagged as high risk:\n\n", len(flagged))
	for i, f := range flagged {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f.UserID)
		fmt.Fprintf(&sb, "   Reason: %s\n", f.Reason)
		if !f.FlaggedAt.IsZero() {
			fmt.Fprintf(&sb, "   Flagged: %s\n", f.FlaggedAt.Format("2006-01-02 15:04 MST"))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleClearHighRiskFlag clears a user's flag after review.
func (h *Handlers) HandleClearHighRiskFlag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	if err := h.api.ClearHighRiskFlag(ctx, userID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to clear flag: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"High-risk flag cleared for %s. The action was recorded in the audit log.", userID)), nil
}

// HandleGetGuidance returns guidance for an emotion.
func (h *Handlers) HandleGetGuidance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label := req.GetString("emotion", "")
	if label == "" {
		return mcp.NewToolResultError("emotion is required"), nil
	}
	category := req.GetString("category", "")

	g, err := h.api.GetGuidance(ctx, label, category)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get guidance: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Guidance for %s (%s):\n\n", g.Emotion, g.StressCategory)
	fmt.Fprintf(&sb, "%s\n\n", g.Guidance.Description)
	fmt.Fprintf(&sb, "Wellness tip: %s\n", g.Guidance.WellnessTip)
	if len(g.Guidance.Suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range g.Guidance.Suggestions {
			fmt.Fprintf(&sb, "  - %s\n", s)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetPlatformStats returns platform statistics.
func (h *Handlers) HandleGetPlatformStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.api.GetStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Platform statistics:\n")
	fmt.Fprintf(&sb, "  Profiles:         %d\n", st.Profiles.TotalProfiles)
	fmt.Fprintf(&sb, "  High-risk flags:  %d\n", st.Profiles.FlaggedProfiles)
	fmt.Fprintf(&sb, "  Total analyses:   %d\n", st.Profiles.TotalAnalyses)
	fmt.Fprintf(&sb, "  Live alerts:      %d\n", st.Alerts.Live)
	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

func formatAssessment(a *client.Assessment) string {
	var sb strings.Builder

	if a.CrisisFlag {
		sb.WriteString("CRISIS INDICATORS DETECTED\n\n")
	}

	fmt.Fprintf(&sb, "Assessment for %s (%s):\n", a.UserID, a.ID)
	fmt.Fprintf(&sb, "  Primary emotion: %s (%.0f%% confidence)\n",
		a.PrimaryEmotion.Label, a.PrimaryEmotion.Confidence*100)
	fmt.Fprintf(&sb, "  Stress category: %s (combined score %.2f)\n", a.StressCategory, a.CombinedStress)
	fmt.Fprintf(&sb, "  Risk: %s (%d/100)\n", a.RiskLevel, a.RiskScore)

	if a.CrisisReason != "" {
		fmt.Fprintf(&sb, "  Crisis reason: %s\n", a.CrisisReason)
	}
	if !a.Saved {
		sb.WriteString("  Note: this assessment could not be saved to the profile history.\n")
	}

	if a.Guidance.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", a.Guidance.Description)
	}
	if a.Guidance.WellnessTip != "" {
		fmt.Fprintf(&sb, "Wellness tip: %s\n", a.Guidance.WellnessTip)
	}
	if len(a.Guidance.Suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range a.Guidance.Suggestions {
			fmt.Fprintf(&sb, "  - %s\n", s)
		}
	}
	return sb.String()
}

func formatProfile(p *client.ProfileResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Profile for %s:\n", p.Profile.UserID)
	fmt.Fprintf(&sb, "  Analyses: %d\n", p.Profile.AnalysisCount)
	fmt.Fprintf(&sb, "  Average confidence: %.2f\n", p.Profile.AverageConfidence)
	if p.Profile.HighRiskFlag {
		fmt.Fprintf(&sb, "  HIGH RISK: %s\n", p.Profile.HighRiskReason)
	}

	if len(p.Profile.History) > 0 {
		fmt.Fprintf(&sb, "\nRecent history (%d of %d entries):\n", len(p.Profile.History), p.HistoryEntries)
		for _, e := range p.Profile.History {
			fmt.Fprintf(&sb, "  %s  %-10s stress %.2f  risk %d",
				e.Timestamp.Format("2006-01-02 15:04"), e.Label, e.StressScore, e.RiskScore)
			if e.CrisisFlag {
				sb.WriteString("  [crisis]")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatHistory(userID string, page *client.HistoryPage) string {
	if len(page.Entries) == 0 {
		return fmt.Sprintf("No history entries for %s.", userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "History for %s (%d entries, newest first):\n", userID, len(page.Entries))
	for _, e := range page.Entries {
		fmt.Fprintf(&sb, "  %s  %-10s %s  stress %.2f  risk %d",
			e.Timestamp.Format("2006-01-02 15:04"), e.Label, e.StressCategory, e.StressScore, e.RiskScore)
		if e.CrisisFlag {
			sb.WriteString("  [crisis]")
		}
		sb.WriteString("\n")
	}
	if page.HasMore {
		fmt.Fprintf(&sb, "\nMore entries available. Pass cursor %q to get_history for the next page.\n", page.NextCursor)
	}
	return sb.String()
}
