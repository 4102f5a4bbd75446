package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DestructiveTools lists the print tool names that require explicit
// confirmation before execution.
var DestructiveTools = []string{
	"print_cancel",
}

// cancelWait bounds how long print_cancel waits for a job to settle.
const cancelWait = 10 * time.Second

// PrintTools returns the MCP tool registrations for the print queue.
// Printers rejected by filter cannot be printed to.
func PrintTools(mgr *Manager, filter *safety.Filter, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		printSubmit(mgr, filter, audit),
		printQueueList(mgr, audit),
		printCancel(mgr, confirm, audit),
	}
}

func printSubmit(mgr *Manager, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	const toolName = "print_submit"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Queue a local file for printing on a printer share."),
		mcp.WithString("printer",
			mcp.Required(),
			mcp.Description("Printer share: //host/printer or smb://[user@]host/printer"),
		),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Absolute path of the local file to print"),
		),
		mcp.WithNumber("copies",
			mcp.Description("Number of copies (default: 1)"),
		),
		mcp.WithString("user", mcp.Description("User name (guest access when empty)")),
		mcp.WithString("workgroup", mcp.Description("Workgroup or domain")),
		mcp.WithString("password", mcp.Description("Password; never stored or logged")),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		file := req.GetString("file", "")
		copies := req.GetInt("copies", 1)
		auth := shares.AuthInfo{
			User:      req.GetString("user", ""),
			Workgroup: req.GetString("workgroup", ""),
			Password:  req.GetString("password", ""),
		}
		params := map[string]any{
			"printer":  req.GetString("printer", ""),
			"file":     file,
			"copies":   copies,
			"user":     auth.User,
			"password": auth.Password,
		}

		printer, err := shares.ParseUNC(req.GetString("printer", ""))
		if err != nil {
			tools.LogAudit(audit, toolName, "", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}
		resource := printer.MinimalUNC()
		if !filter.IsAllowed(resource) {
			tools.LogAudit(audit, toolName, resource, params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to printer %q is not allowed", resource)), nil
		}

		if auth.User == "" {
			auth.User = printer.AuthInfo().User
		}
		printer.Type = shares.ShareTypePrinter
		printer.Workgroup = auth.Workgroup
		printer.SetAuthInfo(auth)

		job := NewJob(printer)
		job.SetFilePath(file)
		job.SetCopies(copies)

		entry, err := mgr.Submit(job)
		if err != nil {
			tools.LogAudit(audit, toolName, resource, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, resource, params, "ok", start)
		return tools.JSONResult(entry), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func printQueueList(mgr *Manager, audit *safety.AuditLogger) tools.Registration {
	const toolName = "print_queue_list"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("List print queue entries with their status."),
		mcp.WithBoolean("active_only",
			mcp.Description("Only list pending and printing jobs (default: false)"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		activeOnly := req.GetBool("active_only", false)
		params := map[string]any{"active_only": activeOnly}

		entries, err := mgr.List()
		if err != nil {
			tools.LogAudit(audit, toolName, "", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}
		if activeOnly {
			active := make([]Entry, 0, len(entries))
			for _, e := range entries {
				if !e.Status.Finished() {
					active = append(active, e)
				}
			}
			entries = active
		}

		tools.LogAudit(audit, toolName, "", params, "ok", start)
		return tools.JSONResult(entries), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func printCancel(mgr *Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "print_cancel"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Cancel a pending or printing job. Requires confirmation."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Queue entry ID"),
		),
		tools.WithConfirmation(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		id := req.GetString("id", "")
		params := map[string]any{"id": id}

		entry, err := mgr.Get(id)
		if err != nil {
			tools.LogAudit(audit, toolName, id, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}
		if entry.Status.Finished() {
			tools.LogAudit(audit, toolName, id, params, "error: finished", start)
			return tools.ErrorResult(fmt.Sprintf("job %s is already %s", id, entry.Status)), nil
		}

		if prompt, ok := tools.RequireConfirmation(confirm, req, toolName, id,
			fmt.Sprintf("Cancel printing %s on %s", entry.Job.FilePath(), entry.Job.Printer().UNC())); !ok {
			return prompt, nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, cancelWait)
		defer cancel()

		entry, err = mgr.Cancel(waitCtx, id)
		if err != nil && !errors.Is(err, ErrFinished) {
			tools.LogAudit(audit, toolName, id, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, id, params, string(entry.Status), start)
		return tools.JSONResult(entry), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
