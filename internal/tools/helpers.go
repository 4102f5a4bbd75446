// Package tools provides shared helpers for MCP tool handlers.
package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/mark3labs/mcp-go/mcp"
)

// ConfirmationTokenParam is the argument name destructive tools accept.
const ConfirmationTokenParam = "confirmation_token"

// JSONResult marshals v to indented JSON and wraps it in a tool result.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult(fmt.Sprintf("marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// ErrorResult returns a tool result flagged as an error.
func ErrorResult(msg string) *mcp.CallToolResult {
	res := mcp.NewToolResultText("error: " + msg)
	res.IsError = true
	return res
}

// LogAudit records a tool invocation, ignoring a nil logger.
func LogAudit(audit *safety.AuditLogger, toolName, resource string, params map[string]any, result string, start time.Time) {
	if audit == nil {
		return
	}
	_ = audit.Log(safety.AuditEntry{
		Timestamp: start,
		Tool:      toolName,
		Resource:  resource,
		Params:    params,
		Result:    result,
		Duration:  time.Since(start),
	})
}

// WithConfirmation adds the confirmation_token argument to a tool
// definition.
func WithConfirmation() mcp.ToolOption {
	return mcp.WithString(ConfirmationTokenParam,
		mcp.Description("Confirmation token returned by a prior call to this tool."),
	)
}

// RequireConfirmation checks the request's confirmation token against
// toolName and resource. When the token is missing or invalid it returns a
// prompt result carrying a fresh token and false.
func RequireConfirmation(confirm *safety.ConfirmationTracker, req mcp.CallToolRequest, toolName, resource, description string) (*mcp.CallToolResult, bool) {
	if confirm == nil || !confirm.NeedsConfirmation(toolName) {
		return nil, true
	}
	if confirm.Confirm(req.GetString(ConfirmationTokenParam, ""), toolName, resource) {
		return nil, true
	}
	token := confirm.RequestConfirmation(toolName, resource)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Confirmation required for %s on %q.\n\n%s\n\nTo proceed, call %s again with the same arguments and %s=%q.",
		toolName, resource, description, toolName, ConfirmationTokenParam, token,
	)), false
}
