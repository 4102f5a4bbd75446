package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/jamesprial/smbshare-mcp/internal/process"
	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

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

// ===========================================================================
// Registration
// ===========================================================================

func Test_JobTools_ToolNames(t *testing.T) {
	regs := JobTools(NewRegistry(&stubSpawner{}, nil), nil, nil)
	want := []string{"jobs_list", "job_abort"}
	if len(regs) != len(want) {
		t.Fatalf("JobTools() returned %d registrations, want %d", len(regs), len(want))
	}
	for i, name := range want {
		if regs[i].Tool.Name != name {
			t.Errorf("regs[%d].Tool.Name = %q, want %q", i, regs[i].Tool.Name, name)
		}
	}
}

func Test_DestructiveTools_ExactContents(t *testing.T) {
	if len(DestructiveTools) != 1 || DestructiveTools[0] != "job_abort" {
		t.Errorf("DestructiveTools = %v, want [job_abort]", DestructiveTools)
	}
}

// ===========================================================================
// jobs_list
// ===========================================================================

func Test_Tool_JobsList(t *testing.T) {
	sp := &stubSpawner{}
	reg := NewRegistry(sp, nil)
	defer sp.releaseAll()

	id, _, err := reg.Launch(KindScan, "list shares on nas", process.Command{Name: "smbclient", Args: []string{"-g", "-L", "//nas"}}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	var buf bytes.Buffer
	regs := JobTools(reg, nil, safety.NewAuditLogger(&buf))
	result, err := findRegistration(t, regs, "jobs_list").Handler(context.Background(), newCallToolRequest("jobs_list", nil))
	if err != nil {
		t.Fatalf("handler returned unexpected error: %v", err)
	}

	var got []Info
	if err := json.Unmarshal([]byte(extractResultText(t, result)), &got); err != nil {
		t.Fatalf("result is not a JSON job list: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].Kind != KindScan {
		t.Errorf("jobs_list = %+v, want one scan job %s", got, id)
	}
	if !strings.Contains(buf.String(), `"tool":"jobs_list"`) {
		t.Errorf("audit log missing entry: %q", buf.String())
	}
}

// ===========================================================================
// job_abort
// ===========================================================================

func Test_Tool_JobAbort_Cases(t *testing.T) {
	tests := []struct {
		name        string
		id          func(real string) string
		withToken   bool
		wantError   bool
		wantConfirm bool
		wantContain string
		wantAborted bool
	}{
		{
			name:        "unknown id",
			id:          func(string) string { return "missing" },
			wantError:   true,
			wantContain: "not found",
		},
		{
			name:        "no token returns prompt",
			id:          func(real string) string { return real },
			wantConfirm: true,
		},
		{
			name:        "valid token aborts",
			id:          func(real string) string { return real },
			withToken:   true,
			wantContain: "aborted",
			wantAborted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := &stubSpawner{}
			reg := NewRegistry(sp, nil)
			defer sp.releaseAll()

			realID, p, err := reg.Launch(KindMount, "mount //nas/media", process.Command{Name: "mount.cifs"}, nil)
			if err != nil {
				t.Fatalf("Launch: %v", err)
			}

			confirm := safety.NewConfirmationTracker(DestructiveTools)
			handler := findRegistration(t, JobTools(reg, confirm, nil), "job_abort").Handler

			id := tt.id(realID)
			args := map[string]any{"id": id}
			if tt.withToken {
				args["confirmation_token"] = confirm.RequestConfirmation("job_abort", id)
			}

			result, err := handler(context.Background(), newCallToolRequest("job_abort", args))
			if err != nil {
				t.Fatalf("handler returned unexpected error: %v", err)
			}
			text := extractResultText(t, result)

			if result.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v (text %q)", result.IsError, tt.wantError, text)
			}
			if tt.wantConfirm && !tokenRe.MatchString(text) {
				t.Errorf("expected confirmation prompt, got %q", text)
			}
			if tt.wantContain != "" && !strings.Contains(text, tt.wantContain) {
				t.Errorf("text = %q, want it to contain %q", text, tt.wantContain)
			}
			if p.IsAborted() != tt.wantAborted {
				t.Errorf("IsAborted() = %v, want %v", p.IsAborted(), tt.wantAborted)
			}
		})
	}
}

func Test_Tool_JobAbort_ConfirmationFlow(t *testing.T) {
	sp := &stubSpawner{}
	reg := NewRegistry(sp, nil)
	defer sp.releaseAll()

	id, p, err := reg.Launch(KindPrint, "print a.pdf", process.Command{Name: "smbclient"}, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	handler := findRegistration(t, JobTools(reg, safety.NewConfirmationTracker(DestructiveTools), nil), "job_abort").Handler

	first, _ := handler(context.Background(), newCallToolRequest("job_abort", map[string]any{"id": id}))
	m := tokenRe.FindStringSubmatch(extractResultText(t, first))
	if m == nil {
		t.Fatal("no token in confirmation prompt")
	}

	second, _ := handler(context.Background(), newCallToolRequest("job_abort", map[string]any{
		"id":                 id,
		"confirmation_token": m[1],
	}))
	if text := extractResultText(t, second); !strings.Contains(text, "aborted") {
		t.Errorf("second call = %q, want abort confirmation", text)
	}
	if !p.IsAborted() {
		t.Error("process not aborted after confirmed call")
	}
}
