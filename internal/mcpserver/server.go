// Package mcpserver exposes diabetes risk screening as MCP tools for LLMs.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/glycoscreen/internal/assessor"
)

// NewMCPServer creates a configured MCP server with the screening tools
// registered against an in-process assessor.
func NewMCPServer(a *assessor.Assessor, version string) *server.MCPServer {
	s := server.NewMCPServer("glycoscreen", version,
		server.WithToolCapabilities(false),
	)
	h := NewHandlers(a)

	s.AddTool(ToolListRiskFeatures, h.HandleListRiskFeatures)
	s.AddTool(NewAssessTool(a.FeatureSpec()), h.HandleAssessDiabetesRisk)

	return s
}
