package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/swissutil/engine"
	"github.com/hazyhaar/swissutil/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the preferences and reading API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx := cmd.Context()
			return a.withEngine(ctx, true, true, func(eng *engine.Engine) error {
				return server.New(eng, a.log).ListenAndServe(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the swissutil MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withEngine(ctx, true, true, func(eng *engine.Engine) error {
				srv := server.New(eng, a.log).NewMCPServer(version)
				a.log.Info("mcp: serving on stdio")
				return srv.Run(ctx, &mcp.StdioTransport{})
			})
		},
	}
}
