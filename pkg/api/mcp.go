package api

import (
	"fmt"
	"time"

	"github.com/hazyhaar/playerdex/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer returns an MCP server carrying the directory tools.
func NewMCPServer(svc *Service, version string) *server.MCPServer {
	srv := server.NewMCPServer("playerdex", version, server.WithToolCapabilities(false))
	RegisterMCPTools(srv, svc)
	return srv
}

// RegisterMCPTools registers the directory MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc *Service) {
	kit.RegisterMCPTool(srv, searchTool(), svc.search, decodeSearch)
	kit.RegisterMCPTool(srv, statusTool(), svc.status, decodeStatus)
	kit.RegisterMCPTool(srv, warmTool(), svc.warm, decodeWarm)
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_players",
		mcp.WithDescription("Search the player directory by name. Accepts surnames (\"bellingham\"), name fragments and initial style queries (\"j. bell\"). Starts loading the dataset version if needed; results cover what is loaded so far."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Name or fragment, at least 3 characters unless an initial like \"j.\"")),
		mcp.WithString("version", mcp.Description("Dataset version (e.g. FC26); defaults to the server's version")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, 1 to 25 (default 8)")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("directory_status",
		mcp.WithDescription("Report the load status of a dataset version: loaded, loading, loaded count, last error, source tier."),
		mcp.WithString("version", mcp.Description("Dataset version; defaults to the server's version")),
	)
}

func warmTool() mcp.Tool {
	return mcp.NewTool("warm_directory",
		mcp.WithDescription("Start loading a dataset version into memory, optionally waiting for it to finish."),
		mcp.WithString("version", mcp.Description("Dataset version; defaults to the server's version")),
		mcp.WithString("wait", mcp.Description("How long to wait for the load, as a Go duration (e.g. 10s, max 1m)")),
	)
}

func decodeSearch(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	version, _ := args["version"].(string)
	limit := 0
	switch v := args["limit"].(type) {
	case float64:
		limit = int(v)
	case int:
		limit = v
	case nil:
	default:
		return nil, fmt.Errorf("limit must be a number")
	}
	return &kit.MCPDecodeResult{Request: &searchReq{Query: query, Version: version, Limit: limit}}, nil
}

func decodeStatus(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	version, _ := req.GetArguments()["version"].(string)
	return &kit.MCPDecodeResult{Request: &statusReq{Version: version}}, nil
}

func decodeWarm(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	args := req.GetArguments()
	version, _ := args["version"].(string)
	r := &warmReq{Version: version}
	if v, _ := args["wait"].(string); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid wait %q", v)
		}
		r.Wait = d
	}
	return &kit.MCPDecodeResult{Request: r}, nil
}
