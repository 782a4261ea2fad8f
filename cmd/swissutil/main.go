// Command swissutil applies the selection, reading and custom CSS/JS
// utilities to web pages and manages their stored preferences.
//
// Usage:
//
//	swissutil read https://example.com/post          # reading view as Markdown
//	swissutil watch https://example.com/feed         # live page, rebuilds as JSON lines
//	swissutil serve --addr :8791                     # HTTP API
//	swissutil mcp                                    # MCP tools over stdio
//	swissutil prefs site example.com reading on      # per-site override
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
