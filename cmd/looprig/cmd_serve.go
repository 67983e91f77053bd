package main

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"looprig/internal/logging"
	mcpserver "looprig/internal/mcp"
	"looprig/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the corpus, the run ledger
and the solver service as tools. The server exits when its parent process goes
away.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.New("mcp")
	var ledger store.Store
	if st, err := openLedger(); err != nil {
		logger.Warn("run ledger unavailable, ledger tools disabled", "error", err)
	} else {
		defer st.Close()
		ledger = st
	}
	srv := mcpserver.NewServer(cfg, ledger, version)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	mcpserver.WatchParent(ctx, cancel)

	logger.Info("starting looprig MCP server over stdio")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
