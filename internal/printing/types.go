// Package printing describes print jobs for printer shares and runs them
// from a persistent queue.
package printing

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jamesprial/smbshare-mcp/internal/shares"
)

var (
	// ErrNotFound is returned when no queue entry has the given ID.
	ErrNotFound = errors.New("printing: job not found")
	// ErrFinished is returned when cancelling a job that already ended.
	ErrFinished = errors.New("printing: job already finished")
	// ErrInvalidJob is returned by Submit for jobs that cannot be printed.
	ErrInvalidJob = errors.New("printing: invalid job")
)

// Job is a request to print one file on a printer share. Job is a value
// type; copying it copies the printer share too.
type Job struct {
	printer  shares.Share
	filePath string
	copies   int
}

// NewJob returns a job for printer with no file and one copy.
func NewJob(printer shares.Share) Job {
	return Job{printer: printer, copies: 1}
}

func (j Job) Printer() shares.Share { return j.printer }
func (j Job) FilePath() string      { return j.filePath }
func (j Job) Copies() int           { return j.copies }

// SetPrinter replaces the printer share.
func (j *Job) SetPrinter(printer shares.Share) { j.printer = printer }

// SetFilePath sets the local file to print.
func (j *Job) SetFilePath(path string) { j.filePath = path }

// SetCopies sets the number of copies. The value is not validated here.
func (j *Job) SetCopies(n int) { j.copies = n }

// Equals reports whether j and other print the same file the same number
// of times on the same printer. Credentials are ignored.
func (j Job) Equals(other Job) bool {
	return j.printer.SameShare(other.printer) &&
		j.filePath == other.filePath &&
		j.copies == other.copies
}

// Clone returns an independent copy of j.
func (j Job) Clone() Job {
	j.printer = j.printer.Clone()
	return j
}

// jobJSON is the stored form of a Job. The password is never persisted.
type jobJSON struct {
	Printer       string `json:"printer"`
	Host          string `json:"host"`
	Share         string `json:"share"`
	User          string `json:"user,omitempty"`
	Workgroup     string `json:"workgroup,omitempty"`
	AuthWorkgroup string `json:"auth_workgroup,omitempty"`
	File          string `json:"file"`
	Copies        int    `json:"copies"`
}

// MarshalJSON implements json.Marshaler.
func (j Job) MarshalJSON() ([]byte, error) {
	auth := j.printer.AuthInfo()
	return json.Marshal(jobJSON{
		Printer:       j.printer.UNC(),
		Host:          j.printer.Host,
		Share:         j.printer.Name,
		User:          auth.User,
		Workgroup:     j.printer.Workgroup,
		AuthWorkgroup: auth.Workgroup,
		File:          j.filePath,
		Copies:        j.copies,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *Job) UnmarshalJSON(data []byte) error {
	var v jobJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	printer := shares.Share{
		Host:      v.Host,
		Name:      v.Share,
		Workgroup: v.Workgroup,
		Type:      shares.ShareTypePrinter,
	}
	printer.SetAuthInfo(shares.AuthInfo{User: v.User, Workgroup: v.AuthWorkgroup})
	*j = Job{printer: printer, filePath: v.File, copies: v.Copies}
	return nil
}

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPrinting  Status = "printing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether s is a terminal status.
func (s Status) Finished() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Entry is one job in the print queue.
type Entry struct {
	ID          string    `json:"id"`
	Job         Job       `json:"job"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}
