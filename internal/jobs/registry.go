// Package jobs tracks running external commands so they can be listed and
// aborted by ID.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamesprial/smbshare-mcp/internal/process"
)

var (
	// ErrNotFound is returned when no running job has the given ID.
	ErrNotFound = errors.New("jobs: job not found")
	// ErrAbortPending is returned by AbortContext when ctx ends before the
	// child has exited. The abort keeps running in the background.
	ErrAbortPending = errors.New("jobs: abort pending")
)

// Kind names the operation a job performs.
type Kind string

const (
	KindScan    Kind = "scan"
	KindMount   Kind = "mount"
	KindUnmount Kind = "unmount"
	KindPrint   Kind = "print"
)

// Info is a snapshot of a running job.
type Info struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Command     string    `json:"command"`
	StartedAt   time.Time `json:"started_at"`
	State       string    `json:"state"`
	Aborted     bool      `json:"aborted"`
}

type entry struct {
	info Info
	proc *process.Process
}

// Registry launches supervised processes and tracks them until they finish.
// It is safe for concurrent use.
type Registry struct {
	spawner process.Spawner
	metrics process.Metrics

	mu      sync.Mutex
	running map[string]*entry
}

// NewRegistry returns a Registry that spawns commands with spawner. metrics
// may be nil.
func NewRegistry(spawner process.Spawner, metrics process.Metrics) *Registry {
	if spawner == nil {
		panic("process spawner must not be nil")
	}
	return &Registry{
		spawner: spawner,
		metrics: metrics,
		running: make(map[string]*entry),
	}
}

// Launch starts cmd as a tracked job and returns its ID and process. The
// job is removed from the registry when the process finishes, before
// onFinish is called.
func (r *Registry) Launch(kind Kind, description string, cmd process.Command, onFinish func(process.Result)) (string, *process.Process, error) {
	var opts []process.Option
	if r.metrics != nil {
		opts = append(opts, process.WithMetrics(r.metrics))
	}
	p := process.New(r.spawner, opts...)

	id := uuid.NewString()
	e := &entry{
		info: Info{
			ID:          id,
			Kind:        kind,
			Description: description,
			Command:     strings.TrimSpace(cmd.Name + " " + strings.Join(redactArgs(cmd.Args), " ")),
			StartedAt:   time.Now(),
		},
		proc: p,
	}

	r.mu.Lock()
	r.running[id] = e
	r.mu.Unlock()

	err := p.Start(cmd, func(res process.Result) {
		r.mu.Lock()
		delete(r.running, id)
		r.mu.Unlock()
		if onFinish != nil {
			onFinish(res)
		}
	})
	if err != nil {
		r.mu.Lock()
		delete(r.running, id)
		r.mu.Unlock()
		return "", nil, fmt.Errorf("jobs: launch %s: %w", kind, err)
	}
	return id, p, nil
}

// Run launches cmd and waits for it to finish. If ctx ends first the
// process is aborted and Run waits for the child to exit; the returned
// Result then has Aborted set.
func (r *Registry) Run(ctx context.Context, kind Kind, description string, cmd process.Command) (process.Result, error) {
	_, p, err := r.Launch(kind, description, cmd, nil)
	if err != nil {
		return process.Result{}, err
	}

	select {
	case <-p.Done():
	case <-ctx.Done():
		p.Abort()
	}
	return p.Wait(), nil
}

// List returns the running jobs ordered by start time.
func (r *Registry) List() []Info {
	r.mu.Lock()
	infos := make([]Info, 0, len(r.running))
	procs := make([]*process.Process, 0, len(r.running))
	for _, e := range r.running {
		infos = append(infos, e.info)
		procs = append(procs, e.proc)
	}
	r.mu.Unlock()

	for i, p := range procs {
		infos[i].State = p.State().String()
		infos[i].Aborted = p.IsAborted()
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return infos
}

// Get returns the running job with the given ID.
func (r *Registry) Get(id string) (Info, bool) {
	r.mu.Lock()
	e, ok := r.running[id]
	r.mu.Unlock()
	if !ok {
		return Info{}, false
	}
	info := e.info
	info.State = e.proc.State().String()
	info.Aborted = e.proc.IsAborted()
	return info, true
}

// Abort aborts the job and blocks until its process has exited.
func (r *Registry) Abort(id string) error {
	r.mu.Lock()
	e, ok := r.running[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.proc.Abort()
	return nil
}

// AbortContext aborts the job from a background goroutine and waits for
// the child to exit or for ctx to end, whichever comes first.
func (r *Registry) AbortContext(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.running[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	done := make(chan struct{})
	go func() {
		e.proc.Abort()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", ErrAbortPending, id)
	}
}

// AbortAll aborts every running job and waits for all of them to exit.
func (r *Registry) AbortAll() {
	r.mu.Lock()
	procs := make([]*process.Process, 0, len(r.running))
	for _, e := range r.running {
		procs = append(procs, e.proc)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Abort()
		}()
	}
	wg.Wait()
}

// redactArgs hides credentials passed as user%password.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if user, _, ok := strings.Cut(a, "%"); ok && i > 0 && (args[i-1] == "-U" || args[i-1] == "--user") {
			a = user + "%***"
		}
		out[i] = a
	}
	return out
}
