package plugins

import (
	"context"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
)

// processSession scopes dedup state when the transport has no session of its
// own (stdio, CLI).
var processSession = uuid.NewString()

// SessionID returns the client session id from ctx, falling back to a
// per-process id.
func SessionID(ctx context.Context) string {
	if cs := mcpsrv.ClientSessionFromContext(ctx); cs != nil {
		if id := cs.SessionID(); id != "" {
			return id
		}
	}
	return processSession
}

// ResultText wraps text in a successful CallToolResult.
func ResultText(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}

// ResultError wraps an already formatted envelope in a CallToolResult with IsError=true.
func ResultError(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(text)},
		IsError: true,
	}
}

// StringArg extracts a named string argument, trimmed. Returns ("", false)
// if the argument is absent or not a string.
func StringArg(req mcplib.CallToolRequest, name string) (string, bool) {
	args := req.GetArguments()
	if args == nil {
		return "", false
	}
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return strings.TrimSpace(s), ok
}

// IntArg extracts a named int argument. The MCP protocol serialises
// numbers as float64, so we convert accordingly.
func IntArg(req mcplib.CallToolRequest, name string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	v, ok := args[name]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return defaultVal
}

// OptionalIntArg is IntArg that also reports presence.
func OptionalIntArg(req mcplib.CallToolRequest, name string) (int, bool) {
	args := req.GetArguments()
	if args == nil {
		return 0, false
	}
	switch n := args[name].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// BoolArg extracts a named bool argument.
func BoolArg(req mcplib.CallToolRequest, name string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	b, ok := args[name].(bool)
	if !ok {
		return defaultVal
	}
	return b
}
