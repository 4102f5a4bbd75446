// Package shares provides SMB share descriptors and share management
// (discovery, mounting and unmounting).
package shares

import (
	"context"
)

// ShareType classifies a share as reported by the server.
type ShareType string

const (
	ShareTypeDisk    ShareType = "disk"
	ShareTypePrinter ShareType = "printer"
	ShareTypeIPC     ShareType = "ipc"
)

// AuthInfo is an opaque reference to the credentials used for a share.
// The share layer stores and forwards it but never interprets it.
type AuthInfo struct {
	User      string `json:"user,omitempty"`
	Workgroup string `json:"workgroup,omitempty"`
	Password  string `json:"-"`
}

// IsZero reports whether no credentials are set.
func (a AuthInfo) IsZero() bool {
	return a == AuthInfo{}
}

// Share describes one discovered or mounted network share. Share is a
// value type: copies never alias each other.
type Share struct {
	Host      string    `json:"host"`
	Name      string    `json:"name"`
	Workgroup string    `json:"workgroup,omitempty"`
	Type      ShareType `json:"type"`
	Comment   string    `json:"comment,omitempty"`
	MountPath string    `json:"mount_path,omitempty"`

	auth AuthInfo
}

// UNC returns the share's //host/name form as stored.
func (s Share) UNC() string {
	if s.Name == "" {
		return "//" + s.Host
	}
	return "//" + s.Host + "/" + s.Name
}

// MinimalUNC returns the normalized identity of the share.
func (s Share) MinimalUNC() string {
	return minimalUNC(s.Host, s.Name)
}

// SameShare reports whether s and other refer to the same share.
// Credentials, mount path and descriptive fields are ignored.
func (s Share) SameShare(other Share) bool {
	return s.MinimalUNC() == other.MinimalUNC()
}

// IsPrinter reports whether the share is a printer queue.
func (s Share) IsPrinter() bool {
	return s.Type == ShareTypePrinter
}

// IsMounted reports whether a mount path is recorded for the share.
func (s Share) IsMounted() bool {
	return s.MountPath != ""
}

// AuthInfo returns the credentials reference attached to the share.
func (s Share) AuthInfo() AuthInfo {
	return s.auth
}

// SetAuthInfo replaces the credentials reference in place. It is the only
// partial update on Share; used when credentials are refreshed after a
// failed login.
func (s *Share) SetAuthInfo(auth AuthInfo) {
	s.auth = auth
}

// Clone returns an independent copy of s.
func (s Share) Clone() Share {
	return s
}

// ShareManager defines the interface for share operations.
type ShareManager interface {
	// List queries host for its shares.
	List(ctx context.Context, host string, auth AuthInfo) ([]Share, error)
	// Mounted returns the SMB shares currently mounted on this machine.
	Mounted(ctx context.Context) ([]Share, error)
	// Mount mounts share at mountPoint, or below the configured mount
	// root when mountPoint is empty, and returns the mounted share.
	Mount(ctx context.Context, share Share, mountPoint string) (Share, error)
	// Unmount unmounts the share mounted at mountPoint.
	Unmount(ctx context.Context, mountPoint string, lazy bool) error
}
