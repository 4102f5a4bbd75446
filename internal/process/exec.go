package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"
)

// ExecSpawner launches commands as child processes of the current program.
// The child inherits the parent environment with Command.Env layered on top.
type ExecSpawner struct{}

// Compile-time interface check.
var _ Spawner = ExecSpawner{}

// Spawn starts cmd and returns a handle to the running child.
func (ExecSpawner) Spawn(cmd Command) (Handle, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("process: empty command name")
	}

	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)

	h := &execHandle{cmd: c}
	c.Stdout = &h.stdout
	c.Stderr = &h.stderr

	h.started = time.Now()
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", cmd.Name, err)
	}
	return h, nil
}

type execHandle struct {
	cmd     *exec.Cmd
	started time.Time

	stdout bytes.Buffer
	stderr bytes.Buffer

	mu     sync.Mutex
	exited bool
}

func (h *execHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	if err := h.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("process: signal %s: %w", h.cmd.Path, err)
	}
	return nil
}

func (h *execHandle) Wait() Result {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.exited = true
	h.mu.Unlock()

	res := Result{
		Stdout:   h.stdout.Bytes(),
		Stderr:   h.stderr.Bytes(),
		Duration: time.Since(h.started),
	}
	if h.cmd.ProcessState != nil {
		res.ExitCode = h.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		res.Err = fmt.Errorf("process: wait %s: %w", h.cmd.Path, err)
	}
	return res
}

// mergeEnv overlays overrides onto a KEY=VALUE environment slice. Existing
// keys are replaced; new keys are appended in sorted order.
func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
			continue
		}
		out = append(out, kv)
	}

	var keys []string
	for k := range overrides {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
