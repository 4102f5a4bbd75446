package process

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Process runs exactly one external command and lets callers abort it.
//
// The aborted latch is set before the termination signal is sent, so a
// completion callback racing with Abort always observes IsAborted() == true.
// Abort blocks until the child has exited; there is no timeout and no
// escalation beyond the single SIGTERM.
type Process struct {
	spawner Spawner
	metrics Metrics

	aborted atomic.Bool

	mu       sync.Mutex
	state    State
	cmd      Command
	handle   Handle
	result   Result
	onFinish func(Result)
	done     chan struct{}
	// launched marks a Process that went through ProcessStarted; finish only
	// records ProcessFinished when it is true.
	launched bool
}

// Option configures a Process.
type Option func(*Process)

// WithMetrics records process lifecycle metrics to m.
func WithMetrics(m Metrics) Option {
	return func(p *Process) { p.metrics = m }
}

// New returns an idle Process that will launch its command through spawner.
func New(spawner Spawner, opts ...Option) *Process {
	if spawner == nil {
		panic("process spawner must not be nil")
	}
	p := &Process{
		spawner: spawner,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches cmd asynchronously. onFinish, if non-nil, is invoked exactly
// once when the command has exited or failed to spawn. Spawn failures are
// reported through onFinish with Result.Err set, not returned from Start.
func (p *Process) Start(cmd Command, onFinish func(Result)) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.cmd = withLocale(cmd)
	p.onFinish = onFinish

	if p.aborted.Load() {
		// Aborted before launch: never spawn.
		p.state = StateRunning
		p.mu.Unlock()
		go p.finish(Result{ExitCode: -1}, time.Now())
		return nil
	}

	p.state = StateRunning
	p.launched = true
	p.mu.Unlock()

	started := time.Now()
	if p.metrics != nil {
		p.metrics.ProcessStarted(cmd.Name)
	}

	handle, err := p.spawner.Spawn(p.cmd)
	if err != nil {
		go p.finish(Result{ExitCode: -1, Err: err}, started)
		return nil
	}

	p.mu.Lock()
	p.handle = handle
	abortPending := p.state == StateAborting
	p.mu.Unlock()

	// Abort arrived while spawning; it is waiting on done, so deliver the
	// signal on its behalf.
	if abortPending {
		_ = handle.Signal(unix.SIGTERM)
	}

	go func() {
		p.finish(handle.Wait(), started)
	}()
	return nil
}

// finish records res, moves to StateFinished, fires the callback and
// releases waiters.
func (p *Process) finish(res Result, started time.Time) {
	res.Aborted = p.aborted.Load()
	if res.Duration == 0 {
		res.Duration = time.Since(started)
	}

	p.mu.Lock()
	p.result = res
	p.state = StateFinished
	onFinish := p.onFinish
	name := p.cmd.Name
	launched := p.launched
	p.mu.Unlock()

	if p.metrics != nil && launched {
		p.metrics.ProcessFinished(name, outcome(res), res.Duration)
	}
	if onFinish != nil {
		onFinish(res)
	}
	close(p.done)
}

// Abort sets the aborted latch, sends SIGTERM to a running child and waits
// until the child has exited. It is safe to call repeatedly and from several
// goroutines. On an idle Process it only sets the latch; a later Start then
// finishes immediately as aborted.
func (p *Process) Abort() {
	p.aborted.Store(true)

	p.mu.Lock()
	switch p.state {
	case StateIdle, StateFinished:
		p.mu.Unlock()
		return
	case StateAborting:
		p.mu.Unlock()
		<-p.done
		return
	}

	p.state = StateAborting
	handle := p.handle
	p.mu.Unlock()

	// A nil handle means Spawn is still in flight; Start signals once it
	// has the handle.
	if handle != nil {
		_ = handle.Signal(unix.SIGTERM)
	}
	<-p.done
}

// IsAborted reports whether Abort has been called on this Process.
func (p *Process) IsAborted() bool {
	return p.aborted.Load()
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Command returns the command as launched, including the forced locale.
func (p *Process) Command() Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd
}

// Done returns a channel that is closed once the completion callback has
// returned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the Process has finished and returns its Result.
// Wait must only be called after Start.
func (p *Process) Wait() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// withLocale returns a copy of cmd whose environment has the caller's
// overrides plus the forced locale, which always wins.
func withLocale(cmd Command) Command {
	env := make(map[string]string, len(cmd.Env)+1)
	maps.Copy(env, cmd.Env)
	env[LocaleEnv] = LocaleValue
	cmd.Env = env
	cmd.Args = append([]string(nil), cmd.Args...)
	return cmd
}

func outcome(res Result) string {
	switch {
	case res.Aborted:
		return OutcomeAborted
	case res.Err != nil:
		return OutcomeError
	case res.ExitCode != 0:
		return OutcomeFailed
	default:
		return OutcomeOK
	}
}
