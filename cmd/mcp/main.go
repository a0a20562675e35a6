// Mindfuse MCP Server - Exposes the wellness platform as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/mindfuse/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:     envOrDefault("MINDFUSE_API_URL", "http://localhost:8080"),
		AdminToken: os.Getenv("MINDFUSE_ADMIN_TOKEN"),
	}

	// Without an admin token only the public tools work; the admin
	// tools will return 401 from the API.
	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
