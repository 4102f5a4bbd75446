// Package process supervises a single external command invocation with
// cooperative, blocking cancellation.
package process

import (
	"errors"
	"os"
	"time"
)

// ErrAlreadyStarted is returned by Process.Start when the instance has
// already been started. A Process runs exactly one command.
var ErrAlreadyStarted = errors.New("process: already started")

// LocaleEnv and LocaleValue are forced into every spawned command's
// environment so that command output is always in the C locale.
const (
	LocaleEnv   = "LC_ALL"
	LocaleValue = "C"
)

// State is the lifecycle state of a Process.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateAborting
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateAborting:
		return "aborting"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Command describes one external command invocation.
type Command struct {
	Name string
	Args []string
	// Env holds environment overrides layered over the parent environment.
	Env map[string]string
	Dir string
}

// Result is delivered to the completion callback once the command exits.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// Err is set when the command could not be spawned or waited on.
	// A non-zero exit code alone does not set Err.
	Err      error
	Aborted  bool
	Duration time.Duration
}

// Success reports whether the command ran to completion with exit code 0
// and was not aborted.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0 && !r.Aborted
}

// Handle is a running child process as seen by a Process.
type Handle interface {
	// Signal delivers sig to the child.
	Signal(sig os.Signal) error
	// Wait blocks until the child has exited and returns its outcome.
	// Wait is called exactly once.
	Wait() Result
}

// Spawner launches commands. Implementations must not modify cmd.
type Spawner interface {
	Spawn(cmd Command) (Handle, error)
}
