// glycoscreen MCP server - exposes diabetes risk screening as MCP tools over stdio
package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/glycoscreen/internal/assessor"
	"github.com/mbd888/glycoscreen/internal/config"
	"github.com/mbd888/glycoscreen/internal/logging"
	"github.com/mbd888/glycoscreen/internal/mcpserver"
)

// Version is set by ldflags
var Version = "dev"

func main() {
	// stdout carries the MCP protocol; logs go to stderr
	cfg, err := config.Load()
	if err != nil {
		logging.NewWithWriter(os.Stderr, "info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	a := assessor.Open(cfg.ModelPath, cfg.FeaturesPath, assessor.WithLogger(logger))

	s := mcpserver.NewMCPServer(a, Version)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}
