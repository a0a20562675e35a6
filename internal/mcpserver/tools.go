package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Mindfuse MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeWellbeing = mcp.NewTool("analyze_wellbeing",
	mcp.WithDescription(
		"Submit classifier results (text sentiment and/or facial expression) for a user "+
			"and get a fused mental-wellness assessment: primary emotion, stress category, "+
			"risk score, crisis flag, and personalized guidance. "+
			"At least one of the text or image signal groups must be provided."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user identifier (e.g. 'alice')")),
	mcp.WithString("text_content",
		mcp.Description("The raw message text that was classified. Required when text scores are given.")),
	mcp.WithString("text_label",
		mcp.Description("Text classifier emotion label (e.g. 'happy', 'sad', 'anxious')")),
	mcp.WithNumber("text_confidence",
		mcp.Description("Text classifier confidence, 0 to 1")),
	mcp.WithNumber("text_stress",
		mcp.Description("Text stress score, 0 to 1")),
	mcp.WithString("image_label",
		mcp.Description("Facial expression label (e.g. 'neutral', 'fear')")),
	mcp.WithNumber("image_confidence",
		mcp.Description("Expression classifier confidence, 0 to 1")),
	mcp.WithNumber("image_stress",
		mcp.Description("Image stress score, 0 to 1")),
)

var ToolGetProfile = mcp.NewTool("get_profile",
	mcp.WithDescription(
		"Get a user's behavioral profile: analysis count, average confidence, "+
			"high-risk flag, and the most recent assessment history."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user identifier")),
)

var ToolGetHistory = mcp.NewTool("get_history",
	mcp.WithDescription(
		"Page through a user's assessment history, newest first. "+
			"Returns entries plus a cursor for fetching older pages."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user identifier")),
	mcp.WithNumber("limit",
		mcp.Description("Entries per page, 1 to 200 (default 50)")),
	mcp.WithString("cursor",
		mcp.Description("Opaque cursor from a previous get_history result")),
)

var ToolListHighRisk = mcp.NewTool("list_high_risk",
	mcp.WithDescription(
		"List all users currently flagged as high risk, with the flag reason "+
			"and timestamps. Requires the admin token."),
)

var ToolClearHighRiskFlag = mcp.NewTool("clear_high_risk_flag",
	mcp.WithDescription(
		"Clear a user's high-risk flag after review. The action is audited. "+
			"Requires the admin token."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The user whose flag should be cleared")),
)

var ToolGetGuidance = mcp.NewTool("get_guidance",
	mcp.WithDescription(
		"Get wellness guidance for an emotion at a stress level: a description, "+
			"a wellness tip, and concrete suggestions."),
	mcp.WithString("emotion",
		mcp.Required(),
		mcp.Description("Emotion label (e.g. 'anxious', 'sad', 'happy')")),
	mcp.WithString("category",
		mcp.Description("Stress category: 'none', 'low', 'moderate', 'high', or 'severe' (default moderate)"),
		mcp.Enum("none", "low", "moderate", "high", "severe")),
)

var ToolGetPlatformStats = mcp.NewTool("get_platform_stats",
	mcp.WithDescription(
		"Get platform-wide statistics: total profiles, flagged profiles, "+
			"total analyses, live alerts, and realtime connection counts."),
)
