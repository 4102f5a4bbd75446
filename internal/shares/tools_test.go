package shares

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
)

// ---------------------------------------------------------------------------
// Mocks and helpers
// ---------------------------------------------------------------------------

// mockShareManager implements ShareManager for tool handler tests.
type mockShareManager struct {
	listFunc    func(ctx context.Context, host string, auth AuthInfo) ([]Share, error)
	mountedFunc func(ctx context.Context) ([]Share, error)
	mountFunc   func(ctx context.Context, share Share, mountPoint string) (Share, error)
	unmountFunc func(ctx context.Context, mountPoint string, lazy bool) error
}

func (m *mockShareManager) List(ctx context.Context, host string, auth AuthInfo) ([]Share, error) {
	return m.listFunc(ctx, host, auth)
}

func (m *mockShareManager) Mounted(ctx context.Context) ([]Share, error) {
	return m.mountedFunc(ctx)
}

func (m *mockShareManager) Mount(ctx context.Context, share Share, mountPoint string) (Share, error) {
	return m.mountFunc(ctx, share, mountPoint)
}

func (m *mockShareManager) Unmount(ctx context.Context, mountPoint string, lazy bool) error {
	return m.unmountFunc(ctx, mountPoint, lazy)
}

var _ ShareManager = (*mockShareManager)(nil)

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func extractResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

func findRegistration(t *testing.T, regs []tools.Registration, name string) tools.Registration {
	t.Helper()
	for _, r := range regs {
		if r.Tool.Name == name {
			return r
		}
	}
	t.Fatalf("registration for %q not found", name)
	return tools.Registration{}
}

var tokenRe = regexp.MustCompile(`confirmation_token="([0-9a-f]+)"`)

func sampleShares() []Share {
	return []Share{
		{Host: "nas", Name: "media", Type: ShareTypeDisk, Comment: "Media files"},
		{Host: "nas", Name: "private", Type: ShareTypeDisk},
		{Host: "nas", Name: "laser", Type: ShareTypePrinter},
	}
}

// ===========================================================================
// Registration
// ===========================================================================

func Test_ShareTools_ToolNames(t *testing.T) {
	regs := ShareTools(&mockShareManager{}, nil, nil, nil)
	want := []string{"shares_list", "shares_mounted", "share_mount", "share_unmount"}
	if len(regs) != len(want) {
		t.Fatalf("ShareTools() returned %d registrations, want %d", len(regs), len(want))
	}
	for i, name := range want {
		if regs[i].Tool.Name != name {
			t.Errorf("regs[%d] = %q, want %q", i, regs[i].Tool.Name, name)
		}
	}
}

func Test_DestructiveTools_ExactContents(t *testing.T) {
	if len(DestructiveTools) != 1 || DestructiveTools[0] != "share_unmount" {
		t.Errorf("DestructiveTools = %v", DestructiveTools)
	}
}

// ===========================================================================
// shares_list
// ===========================================================================

func Test_Tool_SharesList_Cases(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		filter    *safety.Filter
		listErr   error
		wantHost  string
		wantUser  string
		wantNames []string
		wantError bool
	}{
		{
			name:      "bare host",
			args:      map[string]any{"host": "nas"},
			wantHost:  "nas",
			wantNames: []string{"media", "private", "laser"},
		},
		{
			name:      "url host carries user",
			args:      map[string]any{"host": "smb://alice@nas"},
			wantHost:  "nas",
			wantUser:  "alice",
			wantNames: []string{"media", "private", "laser"},
		},
		{
			name:      "denylist hides shares",
			args:      map[string]any{"host": "//NAS"},
			filter:    safety.NewFilter(nil, []string{"//nas/priv*"}),
			wantHost:  "NAS",
			wantNames: []string{"media", "laser"},
		},
		{
			name:      "manager error",
			args:      map[string]any{"host": "nas"},
			listErr:   errors.New("NT_STATUS_HOST_UNREACHABLE"),
			wantError: true,
		},
		{
			name:      "missing host",
			args:      map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotHost string
			var gotAuth AuthInfo
			mgr := &mockShareManager{
				listFunc: func(ctx context.Context, host string, auth AuthInfo) ([]Share, error) {
					gotHost, gotAuth = host, auth
					return sampleShares(), tt.listErr
				},
			}
			reg := findRegistration(t, ShareTools(mgr, tt.filter, nil, nil), "shares_list")

			result, err := reg.Handler(context.Background(), newCallToolRequest("shares_list", tt.args))
			if err != nil {
				t.Fatalf("handler returned unexpected error: %v", err)
			}
			text := extractResultText(t, result)
			if result.IsError != tt.wantError {
				t.Fatalf("IsError = %v, want %v: %q", result.IsError, tt.wantError, text)
			}
			if tt.wantError {
				return
			}

			if gotHost != tt.wantHost || gotAuth.User != tt.wantUser {
				t.Errorf("List called with host=%q user=%q", gotHost, gotAuth.User)
			}

			var got []map[string]any
			if err := json.Unmarshal([]byte(text), &got); err != nil {
				t.Fatalf("not JSON: %v", err)
			}
			var names []string
			for _, row := range got {
				names = append(names, row["name"].(string))
			}
			if strings.Join(names, ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("names = %v, want %v", names, tt.wantNames)
			}
			if len(got) > 0 && !strings.HasPrefix(got[0]["unc"].(string), "//") {
				t.Errorf("unc = %v", got[0]["unc"])
			}
		})
	}
}

func Test_Tool_SharesList_PasswordNotLoggedOrReturned(t *testing.T) {
	mgr := &mockShareManager{
		listFunc: func(ctx context.Context, host string, auth AuthInfo) ([]Share, error) {
			s := Share{Host: host, Name: "media"}
			s.SetAuthInfo(auth)
			return []Share{s}, nil
		},
	}
	var buf bytes.Buffer
	reg := findRegistration(t, ShareTools(mgr, nil, nil, safety.NewAuditLogger(&buf)), "shares_list")

	result, _ := reg.Handler(context.Background(), newCallToolRequest("shares_list", map[string]any{
		"host": "nas", "user": "alice", "password": "hunter2",
	}))
	text := extractResultText(t, result)

	if strings.Contains(text, "hunter2") {
		t.Errorf("password in result: %q", text)
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("password in audit log: %q", buf.String())
	}
	if !strings.Contains(text, `"user": "alice"`) {
		t.Errorf("user missing from result: %q", text)
	}
}

// ===========================================================================
// shares_mounted
// ===========================================================================

func Test_Tool_SharesMounted(t *testing.T) {
	mgr := &mockShareManager{
		mountedFunc: func(ctx context.Context) ([]Share, error) {
			return []Share{
				{Host: "nas", Name: "media", MountPath: "/mnt/media"},
				{Host: "nas", Name: "private", MountPath: "/mnt/private"},
			}, nil
		},
	}
	filter := safety.NewFilter([]string{"//nas/media"}, nil)
	reg := findRegistration(t, ShareTools(mgr, filter, nil, nil), "shares_mounted")

	result, _ := reg.Handler(context.Background(), newCallToolRequest("shares_mounted", nil))
	text := extractResultText(t, result)
	if !strings.Contains(text, "/mnt/media") || strings.Contains(text, "/mnt/private") {
		t.Errorf("filtered result = %q", text)
	}
}

// ===========================================================================
// share_mount
// ===========================================================================

func Test_Tool_ShareMount_Cases(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		filter      *safety.Filter
		mountErr    error
		wantCalled  bool
		wantError   bool
		wantContain string
	}{
		{
			name:        "mounts with credentials",
			args:        map[string]any{"unc": `\\nas\media`, "user": "alice", "workgroup": "HOME", "password": "pw"},
			wantCalled:  true,
			wantContain: `"mount_path": "/mnt/smb/nas/media"`,
		},
		{
			name:        "denied by filter",
			args:        map[string]any{"unc": "//nas/private"},
			filter:      safety.NewFilter(nil, []string{"//nas/private"}),
			wantError:   true,
			wantContain: "not allowed",
		},
		{
			name:        "invalid unc",
			args:        map[string]any{"unc": "nas/media"},
			wantError:   true,
			wantContain: "invalid UNC",
		},
		{
			name:        "relative mount point",
			args:        map[string]any{"unc": "//nas/media", "mount_point": "mnt/x"},
			wantError:   true,
			wantContain: "must be absolute",
		},
		{
			name:        "manager error",
			args:        map[string]any{"unc": "//nas/media"},
			mountErr:    errors.New("mount error(13): Permission denied"),
			wantCalled:  true,
			wantError:   true,
			wantContain: "Permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			var gotShare Share
			mgr := &mockShareManager{
				mountFunc: func(ctx context.Context, share Share, mountPoint string) (Share, error) {
					called = true
					gotShare = share
					share.MountPath = "/mnt/smb/" + share.Host + "/" + share.Name
					return share, tt.mountErr
				},
			}
			reg := findRegistration(t, ShareTools(mgr, tt.filter, nil, nil), "share_mount")

			result, err := reg.Handler(context.Background(), newCallToolRequest("share_mount", tt.args))
			if err != nil {
				t.Fatalf("handler returned unexpected error: %v", err)
			}
			text := extractResultText(t, result)
			if result.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v: %q", result.IsError, tt.wantError, text)
			}
			if called != tt.wantCalled {
				t.Errorf("Mount called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantContain != "" && !strings.Contains(text, tt.wantContain) {
				t.Errorf("text = %q, want it to contain %q", text, tt.wantContain)
			}
			if tt.name == "mounts with credentials" {
				auth := gotShare.AuthInfo()
				if auth.User != "alice" || auth.Password != "pw" || gotShare.Workgroup != "HOME" {
					t.Errorf("share passed to Mount = %+v auth=%+v", gotShare, auth)
				}
			}
		})
	}
}

// ===========================================================================
// share_unmount
// ===========================================================================

func Test_Tool_ShareUnmount_Cases(t *testing.T) {
	mounted := []Share{
		{Host: "nas", Name: "media", MountPath: "/mnt/media"},
		{Host: "nas", Name: "private", MountPath: "/mnt/private"},
	}

	tests := []struct {
		name        string
		args        map[string]any
		token       bool
		wantPrompt  bool
		wantCalled  bool
		wantError   bool
		wantContain string
	}{
		{
			name:       "prompts for confirmation",
			args:       map[string]any{"mount_point": "/mnt/media"},
			wantPrompt: true,
		},
		{
			name:        "confirmed unmount",
			args:        map[string]any{"mount_point": "/mnt/media/", "lazy": true},
			token:       true,
			wantCalled:  true,
			wantContain: "Unmounted //nas/media",
		},
		{
			name:        "not mounted",
			args:        map[string]any{"mount_point": "/mnt/other"},
			wantError:   true,
			wantContain: "no SMB share is mounted",
		},
		{
			name:        "filtered share",
			args:        map[string]any{"mount_point": "/mnt/private"},
			wantError:   true,
			wantContain: "not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called, gotLazy bool
			mgr := &mockShareManager{
				mountedFunc: func(ctx context.Context) ([]Share, error) { return mounted, nil },
				unmountFunc: func(ctx context.Context, mountPoint string, lazy bool) error {
					called, gotLazy = true, lazy
					return nil
				},
			}
			filter := safety.NewFilter(nil, []string{"//nas/private"})
			confirm := safety.NewConfirmationTracker(DestructiveTools)
			reg := findRegistration(t, ShareTools(mgr, filter, confirm, nil), "share_unmount")

			args := tt.args
			if tt.token {
				args["confirmation_token"] = confirm.RequestConfirmation("share_unmount", "/mnt/media")
			}

			result, err := reg.Handler(context.Background(), newCallToolRequest("share_unmount", args))
			if err != nil {
				t.Fatalf("handler returned unexpected error: %v", err)
			}
			text := extractResultText(t, result)

			if result.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v: %q", result.IsError, tt.wantError, text)
			}
			if tt.wantPrompt && !tokenRe.MatchString(text) {
				t.Errorf("expected confirmation prompt, got %q", text)
			}
			if called != tt.wantCalled {
				t.Errorf("Unmount called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled && !gotLazy {
				t.Error("lazy flag not forwarded")
			}
			if tt.wantContain != "" && !strings.Contains(text, tt.wantContain) {
				t.Errorf("text = %q, want it to contain %q", text, tt.wantContain)
			}
		})
	}
}

func Test_Tool_ShareUnmount_TokenBoundToMountPoint(t *testing.T) {
	var unmounted []string
	mgr := &mockShareManager{
		mountedFunc: func(ctx context.Context) ([]Share, error) {
			return []Share{
				{Host: "nas", Name: "a", MountPath: "/mnt/a"},
				{Host: "nas", Name: "b", MountPath: "/mnt/b"},
			}, nil
		},
		unmountFunc: func(ctx context.Context, mountPoint string, lazy bool) error {
			unmounted = append(unmounted, mountPoint)
			return nil
		},
	}
	confirm := safety.NewConfirmationTracker(DestructiveTools)
	reg := findRegistration(t, ShareTools(mgr, nil, confirm, nil), "share_unmount")

	first, _ := reg.Handler(context.Background(), newCallToolRequest("share_unmount", map[string]any{"mount_point": "/mnt/a"}))
	m := tokenRe.FindStringSubmatch(extractResultText(t, first))
	if m == nil {
		t.Fatal("no token in prompt")
	}

	second, _ := reg.Handler(context.Background(), newCallToolRequest("share_unmount", map[string]any{
		"mount_point":        "/mnt/b",
		"confirmation_token": m[1],
	}))
	if !tokenRe.MatchString(extractResultText(t, second)) {
		t.Error("token for /mnt/a must not unmount /mnt/b")
	}
	if len(unmounted) != 0 {
		t.Errorf("unmounted = %v, want none", unmounted)
	}
}
