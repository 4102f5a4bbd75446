package printing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamesprial/smbshare-mcp/internal/smb"
)

// Printer sends a file to a printer share. *smb.Client implements it.
type Printer interface {
	Print(ctx context.Context, req smb.PrintRequest) error
}

// Manager accepts print jobs, stores them in a Queue and prints them in
// the background. Jobs for the same printer are printed one at a time in
// submission order.
type Manager struct {
	queue   *Queue
	printer Printer
	now     func() time.Time

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	running map[string]*run
	// tails holds, per printer, the idle channel of the most recently
	// submitted job. Each new job waits on its predecessor's.
	tails map[string]chan struct{}
}

type run struct {
	cancel context.CancelFunc
	// done is closed once the entry has settled.
	done chan struct{}
	// idle is closed once the printer is free for the next job.
	idle chan struct{}
}

// NewManager returns a Manager. Entries left unfinished by a previous run
// are marked failed.
func NewManager(queue *Queue, printer Printer) (*Manager, error) {
	if queue == nil {
		panic("print queue must not be nil")
	}
	if printer == nil {
		panic("printer must not be nil")
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		queue:   queue,
		printer: printer,
		now:     time.Now,
		ctx:     ctx,
		stop:    stop,
		running: make(map[string]*run),
		tails:   make(map[string]chan struct{}),
	}
	n, err := queue.failInterrupted(m.now())
	if err != nil {
		stop()
		return nil, fmt.Errorf("printing: recover queue: %w", err)
	}
	if n > 0 {
		log.Printf("printing: marked %d interrupted job(s) as failed", n)
	}
	return m, nil
}

// Submit validates job, queues it and starts printing it in the background.
func (m *Manager) Submit(job Job) (Entry, error) {
	if err := validate(job); err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:          uuid.NewString(),
		Job:         job.Clone(),
		Status:      StatusPending,
		SubmittedAt: m.now(),
	}
	if err := m.queue.Put(e); err != nil {
		return Entry{}, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	r := &run{cancel: cancel, done: make(chan struct{}), idle: make(chan struct{})}
	key := job.Printer().MinimalUNC()

	m.mu.Lock()
	m.running[e.ID] = r
	prev := m.tails[key]
	m.tails[key] = r.idle
	m.mu.Unlock()

	m.wg.Add(1)
	go m.work(ctx, r, e.ID, key, job, prev)
	return e, nil
}

// Cancel stops the job. A pending job is dropped before it starts; a job
// that is printing has its smbclient process aborted. Cancel waits for the
// job to settle or for ctx to end.
func (m *Manager) Cancel(ctx context.Context, id string) (Entry, error) {
	e, err := m.queue.Get(id)
	if err != nil {
		return Entry{}, err
	}
	if e.Status.Finished() {
		return e, fmt.Errorf("%w: %s is %s", ErrFinished, id, e.Status)
	}

	m.mu.Lock()
	r, ok := m.running[id]
	m.mu.Unlock()
	if !ok {
		return m.queue.Get(id)
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return m.queue.Get(id)
	}
	return m.queue.Get(id)
}

// Get returns the queue entry with the given ID.
func (m *Manager) Get(id string) (Entry, error) {
	return m.queue.Get(id)
}

// List returns every queue entry ordered by submission time.
func (m *Manager) List() ([]Entry, error) {
	return m.queue.List()
}

// Prune removes finished entries older than age.
func (m *Manager) Prune(age time.Duration) (int, error) {
	return m.queue.Prune(m.now().Add(-age))
}

// Close cancels every running job and waits for the workers to exit.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

// work prints one job once prev, the idle channel of the previous job for
// the same printer, is closed. A nil prev means the printer is free.
func (m *Manager) work(ctx context.Context, r *run, id, key string, job Job, prev <-chan struct{}) {
	defer m.wg.Done()
	defer m.release(r, key)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			m.settle(r, id, StatusCancelled, "")
			// Hold the slot until the predecessor is done so the next job
			// still runs after it.
			<-prev
			return
		}
	}
	if ctx.Err() != nil {
		m.settle(r, id, StatusCancelled, "")
		return
	}

	if _, err := m.queue.Update(id, func(e *Entry) error {
		if e.Status != StatusPending {
			return fmt.Errorf("entry is %s, not %s", e.Status, StatusPending)
		}
		e.Status = StatusPrinting
		e.StartedAt = m.now()
		return nil
	}); err != nil {
		log.Printf("printing: %s: start: %v", id, err)
		m.settle(r, id, StatusFailed, err.Error())
		return
	}

	printer := job.Printer()
	auth := printer.AuthInfo()
	err := m.printer.Print(ctx, smb.PrintRequest{
		Host:    printer.Host,
		Printer: printer.Name,
		File:    job.FilePath(),
		Copies:  job.Copies(),
		Credentials: smb.Credentials{
			User:      auth.User,
			Workgroup: auth.Workgroup,
			Password:  auth.Password,
		},
	})

	switch {
	case errors.Is(err, smb.ErrAborted):
		m.settle(r, id, StatusCancelled, "")
	case err != nil:
		log.Printf("printing: %s on %s failed: %v", job.FilePath(), printer.UNC(), err)
		m.settle(r, id, StatusFailed, err.Error())
	default:
		m.settle(r, id, StatusCompleted, "")
	}
}

// settle records the final status of id and wakes Cancel callers. It is
// called exactly once per job.
func (m *Manager) settle(r *run, id string, status Status, msg string) {
	_, err := m.queue.Update(id, func(e *Entry) error {
		e.Status = status
		e.Error = msg
		e.FinishedAt = m.now()
		return nil
	})
	if err != nil {
		log.Printf("printing: %s: record %s: %v", id, status, err)
	}

	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()
	r.cancel()
	close(r.done)
}

// release frees the printer for the next job and forgets the printer once
// no job is queued behind r.
func (m *Manager) release(r *run, key string) {
	m.mu.Lock()
	if m.tails[key] == r.idle {
		delete(m.tails, key)
	}
	m.mu.Unlock()
	close(r.idle)
}

func validate(job Job) error {
	printer := job.Printer()
	if printer.Host == "" || printer.Name == "" {
		return fmt.Errorf("%w: printer %q needs a host and a share name", ErrInvalidJob, printer.UNC())
	}
	if printer.Type != "" && !printer.IsPrinter() {
		return fmt.Errorf("%w: %s is a %s share, not a printer", ErrInvalidJob, printer.UNC(), printer.Type)
	}
	if job.Copies() < 1 {
		return fmt.Errorf("%w: copies must be at least 1, got %d", ErrInvalidJob, job.Copies())
	}
	info, err := os.Stat(job.FilePath())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidJob, job.FilePath())
	}
	return nil
}
