package tools_test

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/safety"
	"github.com/jamesprial/smbshare-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("CallToolResult is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("CallToolResult.Content is empty")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] is %T, want mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

var tokenRe = regexp.MustCompile(`confirmation_token="([0-9a-f]{32})"`)

// ---------------------------------------------------------------------------
// JSONResult / ErrorResult
// ---------------------------------------------------------------------------

func Test_JSONResult_Cases(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantError bool
		validate  func(t *testing.T, text string)
	}{
		{
			name:  "struct produces indented JSON",
			input: struct {
				UNC string `json:"unc"`
			}{UNC: "//nas/media"},
			validate: func(t *testing.T, text string) {
				t.Helper()
				var parsed map[string]any
				if err := json.Unmarshal([]byte(text), &parsed); err != nil {
					t.Fatalf("not JSON: %v", err)
				}
				if parsed["unc"] != "//nas/media" {
					t.Errorf("unc = %v", parsed["unc"])
				}
				if !strings.Contains(text, "\n") {
					t.Error("expected indented output")
				}
			},
		},
		{
			name:      "unmarshalable value returns error result",
			input:     make(chan int),
			wantError: true,
			validate: func(t *testing.T, text string) {
				t.Helper()
				if !strings.HasPrefix(text, "error: marshal result:") {
					t.Errorf("text = %q", text)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tools.JSONResult(tt.input)
			if res.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantError)
			}
			tt.validate(t, resultText(t, res))
		})
	}
}

func Test_ErrorResult(t *testing.T) {
	res := tools.ErrorResult("share not found")
	if !res.IsError {
		t.Error("IsError = false, want true")
	}
	if got := resultText(t, res); got != "error: share not found" {
		t.Errorf("text = %q", got)
	}
}

// ---------------------------------------------------------------------------
// LogAudit
// ---------------------------------------------------------------------------

func Test_LogAudit_NilLogger_NoPanic(t *testing.T) {
	tools.LogAudit(nil, "shares_list", "", nil, "ok", time.Now())
}

func Test_LogAudit_WritesEntry(t *testing.T) {
	var buf bytes.Buffer
	audit := safety.NewAuditLogger(&buf)
	tools.LogAudit(audit, "share_mount", "//nas/media", map[string]any{"password": "x"}, "ok", time.Now())

	var parsed map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed); err != nil {
		t.Fatalf("audit output is not JSON: %v", err)
	}
	if parsed["tool"] != "share_mount" || parsed["resource"] != "//nas/media" || parsed["result"] != "ok" {
		t.Errorf("unexpected entry: %v", parsed)
	}
	if strings.Contains(buf.String(), `"x"`) {
		t.Error("password leaked into audit log")
	}
}

// ---------------------------------------------------------------------------
// RequireConfirmation
// ---------------------------------------------------------------------------

func Test_RequireConfirmation_Flow(t *testing.T) {
	confirm := safety.NewConfirmationTracker([]string{"share_unmount"})

	prompt, ok := tools.RequireConfirmation(confirm, newRequest(nil), "share_unmount", "/mnt/a", "Unmount /mnt/a")
	if ok {
		t.Fatal("expected confirmation to be required")
	}
	m := tokenRe.FindStringSubmatch(resultText(t, prompt))
	if m == nil {
		t.Fatalf("prompt carries no token: %q", resultText(t, prompt))
	}

	// Token for a different resource is rejected and a new prompt issued.
	if _, ok := tools.RequireConfirmation(confirm, newRequest(map[string]any{"confirmation_token": m[1]}), "share_unmount", "/mnt/b", "Unmount /mnt/b"); ok {
		t.Error("token confirmed for the wrong resource")
	}

	prompt, _ = tools.RequireConfirmation(confirm, newRequest(nil), "share_unmount", "/mnt/a", "Unmount /mnt/a")
	m = tokenRe.FindStringSubmatch(resultText(t, prompt))
	if res, ok := tools.RequireConfirmation(confirm, newRequest(map[string]any{"confirmation_token": m[1]}), "share_unmount", "/mnt/a", "Unmount /mnt/a"); !ok || res != nil {
		t.Errorf("valid token rejected: ok=%v res=%v", ok, res)
	}
}

func Test_RequireConfirmation_NonDestructiveTool(t *testing.T) {
	confirm := safety.NewConfirmationTracker([]string{"share_unmount"})
	if _, ok := tools.RequireConfirmation(confirm, newRequest(nil), "shares_list", "//nas", ""); !ok {
		t.Error("non-destructive tool should not require confirmation")
	}
	if _, ok := tools.RequireConfirmation(nil, newRequest(nil), "share_unmount", "/mnt/a", ""); !ok {
		t.Error("nil tracker should not require confirmation")
	}
}

// ---------------------------------------------------------------------------
// RegisterAll
// ---------------------------------------------------------------------------

func Test_RegisterAll_ReturnsNames(t *testing.T) {
	s := server.NewMCPServer("test", "0.0.0")
	handler := func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}
	regs := []tools.Registration{
		{Tool: mcp.NewTool("a"), Handler: handler},
		{Tool: mcp.NewTool("b"), Handler: handler},
	}
	names := tools.RegisterAll(s, regs)
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("names = %v, want [a b]", names)
	}
}
