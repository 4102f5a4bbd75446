package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DestructiveTools lists the job tool names that require explicit
// confirmation before execution.
var DestructiveTools = []string{
	"job_abort",
}

// abortWait bounds how long job_abort waits for the child to exit before
// reporting the abort as pending.
const abortWait = 10 * time.Second

// JobTools returns the MCP tool registrations for the job registry.
func JobTools(reg *Registry, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		jobsList(reg, audit),
		jobAbort(reg, confirm, audit),
	}
}

func jobsList(reg *Registry, audit *safety.AuditLogger) tools.Registration {
	const toolName = "jobs_list"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("List running SMB commands (scans, mounts, unmounts, prints)."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		list := reg.List()
		tools.LogAudit(audit, toolName, "", map[string]any{}, "ok", start)
		return tools.JSONResult(list), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func jobAbort(reg *Registry, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "job_abort"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Abort a running SMB command by sending it SIGTERM. Requires confirmation."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Job ID as returned by jobs_list"),
		),
		tools.WithConfirmation(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		id := req.GetString("id", "")
		params := map[string]any{"id": id}

		info, ok := reg.Get(id)
		if !ok {
			tools.LogAudit(audit, toolName, id, params, "error: not found", start)
			return tools.ErrorResult(fmt.Sprintf("job %q not found", id)), nil
		}

		if prompt, ok := tools.RequireConfirmation(confirm, req, toolName, id,
			fmt.Sprintf("Abort %s job: %s", info.Kind, info.Description)); !ok {
			return prompt, nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, abortWait)
		defer cancel()

		err := reg.AbortContext(waitCtx, id)
		switch {
		case errors.Is(err, ErrAbortPending):
			tools.LogAudit(audit, toolName, id, params, "pending", start)
			return mcp.NewToolResultText(fmt.Sprintf("Job %s was signalled and is still exiting.", id)), nil
		case err != nil:
			tools.LogAudit(audit, toolName, id, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, id, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("Job %s aborted.", id)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
