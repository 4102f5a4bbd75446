package view

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultIconSize = 32
	maxIconSize     = 256
)

// Row is one rendered share row.
type Row struct {
	UNC         string           `json:"unc"`
	DisplayName string           `json:"display_name"`
	Type        shares.ShareType `json:"type"`
	Comment     string           `json:"comment,omitempty"`
	MountPath   string           `json:"mount_path,omitempty"`
	Mode        string           `json:"mode"`
	State       string           `json:"state"`
	// IconPNG is the base64-encoded PNG pixmap.
	IconPNG string `json:"icon_png"`
}

// Rows builds ItemData for each share and renders it. Shares that are
// mounted are drawn On, others Off; IPC shares are drawn Disabled.
func Rows(list []shares.Share, icons IconSet, showMountPoint bool, size int) ([]Row, error) {
	rows := make([]Row, 0, len(list))
	for _, s := range list {
		item := NewItemData(s)
		item.SetShowMountPoint(showMountPoint)

		mode, state := ModeNormal, StateOff
		if s.IsMounted() {
			state = StateOn
		}
		if s.Type == shares.ShareTypeIPC {
			mode = ModeDisabled
		}
		item.SetIcon(icons.For(s.Type), mode, state)

		row := Row{
			UNC:         s.UNC(),
			DisplayName: item.DisplayName(),
			Type:        s.Type,
			Comment:     s.Comment,
			MountPath:   s.MountPath,
			Mode:        mode.String(),
			State:       state.String(),
		}
		if img := item.Pixmap(size); img != nil {
			data, err := EncodePNG(img)
			if err != nil {
				return nil, err
			}
			row.IconPNG = base64.StdEncoding.EncodeToString(data)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ViewTools returns the shares_view tool registration.
func ViewTools(mgr shares.ShareManager, icons IconSet, filter *safety.Filter, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		sharesView(mgr, icons, filter, audit),
	}
}

func sharesView(mgr shares.ShareManager, icons IconSet, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	const toolName = "shares_view"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Render share rows with icons. Lists a host's shares, or the mounted shares when no host is given."),
		mcp.WithString("host",
			mcp.Description("Host to list; omit for mounted shares"),
		),
		mcp.WithBoolean("show_mount_point",
			mcp.Description("Label mounted shares by mount path instead of UNC"),
		),
		mcp.WithNumber("size",
			mcp.Description(fmt.Sprintf("Icon size in pixels (default %d, max %d)", defaultIconSize, maxIconSize)),
		),
		mcp.WithString("user", mcp.Description("User name for host listing")),
		mcp.WithString("workgroup", mcp.Description("Workgroup or domain")),
		mcp.WithString("password", mcp.Description("Password; never logged")),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		host := req.GetString("host", "")
		showMP := req.GetBool("show_mount_point", false)
		size := req.GetInt("size", defaultIconSize)
		auth := shares.AuthInfo{
			User:      req.GetString("user", ""),
			Workgroup: req.GetString("workgroup", ""),
			Password:  req.GetString("password", ""),
		}
		params := map[string]any{"host": host, "show_mount_point": showMP, "size": size, "password": auth.Password}

		if size < 1 || size > maxIconSize {
			tools.LogAudit(audit, toolName, host, params, "error: bad size", start)
			return tools.ErrorResult(fmt.Sprintf("size must be between 1 and %d", maxIconSize)), nil
		}

		mounted, err := mgr.Mounted(ctx)
		if err != nil {
			tools.LogAudit(audit, toolName, host, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		list := mounted
		if host != "" {
			list, err = mgr.List(ctx, host, auth)
			if err != nil {
				tools.LogAudit(audit, toolName, host, params, "error: "+err.Error(), start)
				return tools.ErrorResult(err.Error()), nil
			}
			for i := range list {
				for _, m := range mounted {
					if list[i].SameShare(m) {
						list[i].MountPath = m.MountPath
						break
					}
				}
			}
		}

		allowed := make([]shares.Share, 0, len(list))
		for _, s := range list {
			if filter.IsAllowed(s.MinimalUNC()) {
				allowed = append(allowed, s)
			}
		}

		rows, err := Rows(allowed, icons, showMP, size)
		if err != nil {
			tools.LogAudit(audit, toolName, host, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, host, params, "ok", start)
		return tools.JSONResult(rows), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
