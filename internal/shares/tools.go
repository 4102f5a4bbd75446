package shares

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DestructiveTools lists the share tool names that require explicit
// confirmation before execution.
var DestructiveTools = []string{
	"share_unmount",
}

// shareRow is the JSON form of a Share returned by the tools. Passwords are
// never included.
type shareRow struct {
	UNC string `json:"unc"`
	Share
	User string `json:"user,omitempty"`
}

func rows(shares []Share) []shareRow {
	out := make([]shareRow, 0, len(shares))
	for _, s := range shares {
		out = append(out, shareRow{UNC: s.UNC(), Share: s, User: s.AuthInfo().User})
	}
	return out
}

// ShareTools returns the MCP tool registrations for share discovery and
// mounting. Shares rejected by filter are hidden from listings and cannot
// be mounted or unmounted.
func ShareTools(mgr ShareManager, filter *safety.Filter, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		sharesListTool(mgr, filter, audit),
		sharesMountedTool(mgr, filter, audit),
		shareMountTool(mgr, filter, audit),
		shareUnmountTool(mgr, filter, confirm, audit),
	}
}

func withAuthParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("user", mcp.Description("User name (guest access when empty)")),
		mcp.WithString("workgroup", mcp.Description("Workgroup or domain")),
		mcp.WithString("password", mcp.Description("Password; never logged or passed on a command line")),
	}
}

func authFromRequest(req mcp.CallToolRequest) AuthInfo {
	return AuthInfo{
		User:      req.GetString("user", ""),
		Workgroup: req.GetString("workgroup", ""),
		Password:  req.GetString("password", ""),
	}
}

// sharesListTool registers the shares_list MCP tool.
func sharesListTool(mgr ShareManager, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	const toolName = "shares_list"

	opts := []mcp.ToolOption{
		mcp.WithDescription("List the shares a host advertises (disk, printer and IPC shares)."),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("Host name or address, or a //host UNC"),
		),
	}
	tool := mcp.NewTool(toolName, append(opts, withAuthParams()...)...)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		auth := authFromRequest(req)
		params := map[string]any{"host": req.GetString("host", ""), "user": auth.User, "password": auth.Password}

		target, err := ParseUNC(hostUNC(req.GetString("host", "")))
		if err != nil {
			tools.LogAudit(audit, toolName, "", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}
		if auth.User == "" {
			auth.User = target.AuthInfo().User
		}

		shares, err := mgr.List(ctx, target.Host, auth)
		if err != nil {
			tools.LogAudit(audit, toolName, target.MinimalUNC(), params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		allowed := make([]Share, 0, len(shares))
		for _, s := range shares {
			if filter.IsAllowed(s.MinimalUNC()) {
				allowed = append(allowed, s)
			}
		}

		tools.LogAudit(audit, toolName, target.MinimalUNC(), params, "ok", start)
		return tools.JSONResult(rows(allowed)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// sharesMountedTool registers the shares_mounted MCP tool.
func sharesMountedTool(mgr ShareManager, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	const toolName = "shares_mounted"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("List SMB shares currently mounted on this machine."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		shares, err := mgr.Mounted(ctx)
		if err != nil {
			tools.LogAudit(audit, toolName, "", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		allowed := make([]Share, 0, len(shares))
		for _, s := range shares {
			if filter.IsAllowed(s.MinimalUNC()) {
				allowed = append(allowed, s)
			}
		}

		tools.LogAudit(audit, toolName, "", params, "ok", start)
		return tools.JSONResult(rows(allowed)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// shareMountTool registers the share_mount MCP tool.
func shareMountTool(mgr ShareManager, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	const toolName = "share_mount"

	opts := []mcp.ToolOption{
		mcp.WithDescription("Mount a disk share with mount.cifs."),
		mcp.WithString("unc",
			mcp.Required(),
			mcp.Description("Share to mount: //host/share, \\\\host\\share or smb://[user@]host/share"),
		),
		mcp.WithString("mount_point",
			mcp.Description("Absolute mount point (default: {mount_root}/{host}/{share})"),
		),
	}
	tool := mcp.NewTool(toolName, append(opts, withAuthParams()...)...)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		auth := authFromRequest(req)
		mountPoint := req.GetString("mount_point", "")
		params := map[string]any{
			"unc":         req.GetString("unc", ""),
			"mount_point": mountPoint,
			"user":        auth.User,
			"password":    auth.Password,
		}

		share, err := ParseUNC(req.GetString("unc", ""))
		if err != nil {
			tools.LogAudit(audit, toolName, "", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}
		resource := share.MinimalUNC()

		if !filter.IsAllowed(resource) {
			tools.LogAudit(audit, toolName, resource, params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to share %q is not allowed", resource)), nil
		}
		if mountPoint != "" && !filepath.IsAbs(mountPoint) {
			tools.LogAudit(audit, toolName, resource, params, "error: relative mount point", start)
			return tools.ErrorResult(fmt.Sprintf("mount_point %q must be absolute", mountPoint)), nil
		}

		if auth.User == "" {
			auth.User = share.AuthInfo().User
		}
		share.Workgroup = auth.Workgroup
		share.SetAuthInfo(auth)

		mounted, err := mgr.Mount(ctx, share, mountPoint)
		if err != nil {
			tools.LogAudit(audit, toolName, resource, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, resource, params, "ok", start)
		return tools.JSONResult(rows([]Share{mounted})[0]), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// shareUnmountTool registers the share_unmount MCP tool.
func shareUnmountTool(mgr ShareManager, filter *safety.Filter, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "share_unmount"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Unmount a mounted SMB share. Requires confirmation."),
		mcp.WithString("mount_point",
			mcp.Required(),
			mcp.Description("Mount point as listed by shares_mounted"),
		),
		mcp.WithBoolean("lazy",
			mcp.Description("Detach even if the filesystem is busy (umount -l)"),
		),
		tools.WithConfirmation(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		mountPoint := filepath.Clean(req.GetString("mount_point", ""))
		lazy := req.GetBool("lazy", false)
		params := map[string]any{"mount_point": mountPoint, "lazy": lazy}

		mounted, err := mgr.Mounted(ctx)
		if err != nil {
			tools.LogAudit(audit, toolName, mountPoint, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}
		var target *Share
		for i := range mounted {
			if filepath.Clean(mounted[i].MountPath) == mountPoint {
				target = &mounted[i]
				break
			}
		}
		if target == nil {
			tools.LogAudit(audit, toolName, mountPoint, params, "error: not mounted", start)
			return tools.ErrorResult(fmt.Sprintf("no SMB share is mounted at %q", mountPoint)), nil
		}
		if !filter.IsAllowed(target.MinimalUNC()) {
			tools.LogAudit(audit, toolName, mountPoint, params, "denied", start)
			return tools.ErrorResult(fmt.Sprintf("access to share %q is not allowed", target.MinimalUNC())), nil
		}

		if prompt, ok := tools.RequireConfirmation(confirm, req, toolName, mountPoint,
			fmt.Sprintf("Unmount %s from %s", target.UNC(), mountPoint)); !ok {
			return prompt, nil
		}

		if err := mgr.Unmount(ctx, mountPoint, lazy); err != nil {
			tools.LogAudit(audit, toolName, mountPoint, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, mountPoint, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("Unmounted %s from %s.", target.UNC(), mountPoint)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// hostUNC accepts a bare host as well as any UNC form.
func hostUNC(host string) string {
	if host == "" || strings.HasPrefix(host, "/") || strings.HasPrefix(host, `\`) || strings.Contains(host, "://") {
		return host
	}
	return "//" + host
}
