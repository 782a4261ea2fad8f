package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/swissutil/kit"
	"github.com/hazyhaar/swissutil/reader"
)

// RegisterMCP registers the swissutil tools on srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerReadTool(srv)
	s.registerSiteSettingsTool(srv)
	s.registerSetSiteTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Server) registerReadTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "swissutil_read",
		Description: "Open a web page and return its main content as a clean reading view (markdown by default).",
		InputSchema: inputSchema(map[string]any{
			"url":     map[string]any{"type": "string", "description": "Page URL"},
			"format":  map[string]any{"type": "string", "enum": []any{"markdown", "html", "text", "json"}, "description": "Output format (default markdown)"},
			"acquire": map[string]any{"type": "string", "enum": []any{"auto", "http", "browser"}, "description": "How to load the page (default auto)"},
		}, []string{"url"}),
	}
	read := s.endpoint("read", s.read)
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*readRequest)
		resp, err := read(ctx, r)
		if err != nil {
			return nil, err
		}
		body, _, err := Render(resp.(*reader.Article), r.Format)
		return body, err
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[readRequest])
}

func (s *Server) registerSiteSettingsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "swissutil_site_settings",
		Description: "Show which utilities (selection unlock, reading mode, custom CSS/JS) apply to a hostname, after defaults and site overrides.",
		InputSchema: inputSchema(map[string]any{
			"host": map[string]any{"type": "string", "description": "Hostname (e.g. example.com)"},
		}, []string{"host"}),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("site", s.siteSettings), kit.DecodeArgs[siteRequest])
}

func (s *Server) registerSetSiteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "swissutil_set_site",
		Description: "Turn a utility on or off for a hostname. Omit enabled to remove the override and fall back to the default.",
		InputSchema: inputSchema(map[string]any{
			"host":    map[string]any{"type": "string", "description": "Hostname (e.g. example.com)"},
			"utility": map[string]any{"type": "string", "enum": []any{"selection", "reading"}},
			"enabled": map[string]any{"type": "boolean"},
		}, []string{"host", "utility"}),
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("set_site", s.setSite), kit.DecodeArgs[setSiteRequest])
}
