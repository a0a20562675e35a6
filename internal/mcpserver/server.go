package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/mindfuse/pkg/client"
)

// Config holds the connection settings for the backing Mindfuse API.
type Config struct {
	APIURL     string
	AdminToken string
}

// NewMCPServer creates a configured MCP server with all Mindfuse tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("mindfuse", "1.0.0")
	api := client.New(client.Config{BaseURL: cfg.APIURL, AdminToken: cfg.AdminToken})
	h := NewHandlers(api)

	s.AddTool(ToolAnalyzeWellbeing, h.HandleAnalyzeWellbeing)
	s.AddTool(ToolGetProfile, h.HandleGetProfile)
	s.AddTool(ToolGetHistory, h.HandleGetHistory)
	s.AddTool(ToolListHighRisk, h.HandleListHighRisk)
	s.AddTool(ToolClearHighRiskFlag, h.HandleClearHighRiskFlag)
	s.AddTool(ToolGetGuidance, h.HandleGetGuidance)
	s.AddTool(ToolGetPlatformStats, h.HandleGetPlatformStats)

	return s
}
