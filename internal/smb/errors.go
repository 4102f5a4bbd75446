package smb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jamesprial/smbshare-mcp/internal/process"
)

var (
	// ErrAborted is returned when the command was aborted on request. It is
	// not a failure of the command itself.
	ErrAborted = errors.New("smb: aborted")

	ErrAccessDenied    = errors.New("smb: access denied")
	ErrBadNetworkName  = errors.New("smb: bad network name")
	ErrHostUnreachable = errors.New("smb: host unreachable")
	ErrNotMounted      = errors.New("smb: not mounted")
	ErrInvalidArgument = errors.New("smb: invalid argument")
)

// CommandError describes an external command that exited unsuccessfully.
type CommandError struct {
	Op       string
	ExitCode int
	// Status is the NT_STATUS code or mount error number found in the
	// output, if any.
	Status string
	Output string

	kind error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "smb: %s: exit status %d", e.Op, e.ExitCode)
	if e.Status != "" {
		b.WriteString(": " + e.Status)
	} else if line := firstLine(e.Output); line != "" {
		b.WriteString(": " + line)
	}
	return b.String()
}

// Unwrap returns the sentinel matching Status, if any.
func (e *CommandError) Unwrap() error {
	return e.kind
}

var (
	ntStatusRe   = regexp.MustCompile(`NT_STATUS_[A-Z0-9_]+`)
	mountErrorRe = regexp.MustCompile(`mount error\((\d+)\)`)
)

var ntStatusKinds = map[string]error{
	"NT_STATUS_ACCESS_DENIED":         ErrAccessDenied,
	"NT_STATUS_LOGON_FAILURE":         ErrAccessDenied,
	"NT_STATUS_WRONG_PASSWORD":        ErrAccessDenied,
	"NT_STATUS_ACCOUNT_DISABLED":      ErrAccessDenied,
	"NT_STATUS_ACCOUNT_LOCKED_OUT":    ErrAccessDenied,
	"NT_STATUS_NETWORK_ACCESS_DENIED": ErrAccessDenied,
	"NT_STATUS_BAD_NETWORK_NAME":      ErrBadNetworkName,
	"NT_STATUS_BAD_NETWORK_PATH":      ErrBadNetworkName,
	"NT_STATUS_OBJECT_NAME_NOT_FOUND": ErrBadNetworkName,
	"NT_STATUS_OBJECT_PATH_NOT_FOUND": ErrBadNetworkName,
	"NT_STATUS_HOST_UNREACHABLE":      ErrHostUnreachable,
	"NT_STATUS_NETWORK_UNREACHABLE":   ErrHostUnreachable,
	"NT_STATUS_IO_TIMEOUT":            ErrHostUnreachable,
	"NT_STATUS_CONNECTION_REFUSED":    ErrHostUnreachable,
	"NT_STATUS_CONNECTION_RESET":      ErrHostUnreachable,
	"NT_STATUS_UNSUCCESSFUL":          ErrHostUnreachable,
}

// mount.cifs reports errno values.
var mountErrnoKinds = map[string]error{
	"1":   ErrAccessDenied,
	"2":   ErrBadNetworkName,
	"6":   ErrBadNetworkName,
	"13":  ErrAccessDenied,
	"22":  ErrInvalidArgument,
	"110": ErrHostUnreachable,
	"111": ErrHostUnreachable,
	"112": ErrHostUnreachable,
	"113": ErrHostUnreachable,
}

// interpret turns a finished command into nil, ErrAborted or an error
// describing the failure.
func interpret(op string, res process.Result) error {
	if res.Aborted {
		return fmt.Errorf("%s: %w", op, ErrAborted)
	}
	if res.Err != nil {
		return fmt.Errorf("smb: %s: %w", op, res.Err)
	}

	output := string(res.Stderr) + "\n" + string(res.Stdout)
	status := ntStatusRe.FindString(output)
	// smbclient sometimes exits 0 after printing a fatal status.
	if res.ExitCode == 0 && ntStatusKinds[status] == nil {
		return nil
	}

	e := &CommandError{
		Op:       op,
		ExitCode: res.ExitCode,
		Status:   status,
		Output:   strings.TrimSpace(output),
		kind:     ntStatusKinds[status],
	}
	if status == "" {
		if m := mountErrorRe.FindStringSubmatch(output); m != nil {
			e.Status = "mount error(" + m[1] + ")"
			e.kind = mountErrnoKinds[m[1]]
		} else if strings.Contains(output, "not mounted") {
			e.kind = ErrNotMounted
		}
	}
	return e
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
