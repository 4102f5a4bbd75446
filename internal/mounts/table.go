// Package mounts reads the kernel mount table to find mounted SMB shares.
package mounts

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FSType is the filesystem type of a mount.
type FSType string

const (
	FSTypeCIFS FSType = "cifs"
	FSTypeSMB3 FSType = "smb3"
)

// Mount is one SMB entry from the mount table.
type Mount struct {
	// Source is the mounted UNC, e.g. //server/share.
	Source     string   `json:"source"`
	MountPoint string   `json:"mount_point"`
	FSType     FSType   `json:"fs_type"`
	Options    []string `json:"options,omitempty"`
}

// Option returns the value of a key=value mount option and whether it was
// present.
func (m Mount) Option(key string) (string, bool) {
	for _, opt := range m.Options {
		k, v, _ := strings.Cut(opt, "=")
		if k == key {
			return v, true
		}
	}
	return "", false
}

// Table implements mount lookups by reading {procPath}/mounts.
type Table struct {
	procPath string
}

// NewTable returns a Table reading from the given proc directory
// (normally /proc).
func NewTable(procPath string) *Table {
	return &Table{procPath: procPath}
}

// List returns every cifs/smb3 mount in the table.
func (t *Table) List(ctx context.Context) ([]Mount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(t.procPath, "mounts")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mounts: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	mounts, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("mounts: scan %s: %w", path, err)
	}
	return mounts, nil
}

// IsMounted reports whether an SMB share is mounted at mountPoint.
func (t *Table) IsMounted(ctx context.Context, mountPoint string) (bool, error) {
	mounts, err := t.List(ctx)
	if err != nil {
		return false, err
	}
	want := filepath.Clean(mountPoint)
	for _, m := range mounts {
		if m.MountPoint == want {
			return true, nil
		}
	}
	return false, nil
}

// Parse reads fstab-format lines from r and returns the SMB entries.
// Malformed lines are skipped. A non-nil empty slice is returned when no
// SMB mounts are present.
//
// Format: source mountpoint fstype options dump pass
func Parse(r io.Reader) ([]Mount, error) {
	mounts := []Mount{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		fsType := FSType(fields[2])
		if fsType != FSTypeCIFS && fsType != FSTypeSMB3 {
			continue
		}
		mounts = append(mounts, Mount{
			Source:     unescape(fields[0]),
			MountPoint: unescape(fields[1]),
			FSType:     fsType,
			Options:    strings.Split(fields[3], ","),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// unescape decodes the \ooo octal escapes the kernel uses for spaces,
// tabs, newlines and backslashes.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
