package shares

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesprial/smbshare-mcp/internal/mounts"
	"github.com/jamesprial/smbshare-mcp/internal/smb"
)

// ErrAlreadyMounted is returned by Mount when the mount point is in use.
var ErrAlreadyMounted = errors.New("shares: already mounted")

// Commander runs the Samba tools. *smb.Client implements it.
type Commander interface {
	ListShares(ctx context.Context, host string, creds smb.Credentials) (smb.Listing, error)
	Mount(ctx context.Context, host, share, mountPoint string, creds smb.Credentials, opts smb.MountOptions) error
	Unmount(ctx context.Context, mountPoint string, lazy bool) error
}

// MountLister reads the SMB entries of the mount table. *mounts.Table
// implements it.
type MountLister interface {
	List(ctx context.Context) ([]mounts.Mount, error)
}

// SMBShareManager implements ShareManager with smbclient, mount.cifs and
// the kernel mount table.
type SMBShareManager struct {
	cmd       Commander
	table     MountLister
	mountRoot string
	opts      smb.MountOptions
}

// NewSMBShareManager returns a manager that mounts shares below mountRoot
// unless a caller names an explicit mount point.
func NewSMBShareManager(cmd Commander, table MountLister, mountRoot string, opts smb.MountOptions) *SMBShareManager {
	if cmd == nil {
		panic("smb commander must not be nil")
	}
	if table == nil {
		panic("mount table must not be nil")
	}
	return &SMBShareManager{
		cmd:       cmd,
		table:     table,
		mountRoot: filepath.Clean(mountRoot),
		opts:      opts,
	}
}

// List queries host for its shares. An empty listing is returned as a
// non-nil empty slice.
func (m *SMBShareManager) List(ctx context.Context, host string, auth AuthInfo) ([]Share, error) {
	listing, err := m.cmd.ListShares(ctx, host, credentials(auth))
	if err != nil {
		return nil, fmt.Errorf("shares: list %s: %w", host, err)
	}

	workgroup := auth.Workgroup
	if workgroup == "" && len(listing.Workgroups) > 0 {
		workgroup = listing.Workgroups[0].Name
	}

	shares := make([]Share, 0, len(listing.Shares))
	for _, e := range listing.Shares {
		s := Share{
			Host:      host,
			Name:      e.Name,
			Workgroup: workgroup,
			Type:      shareType(e.Type),
			Comment:   e.Comment,
		}
		s.SetAuthInfo(auth)
		shares = append(shares, s)
	}
	return shares, nil
}

// Mounted returns the SMB shares in the mount table.
func (m *SMBShareManager) Mounted(ctx context.Context) ([]Share, error) {
	entries, err := m.table.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("shares: mounted: %w", err)
	}

	shares := make([]Share, 0, len(entries))
	for _, e := range entries {
		s, err := ParseUNC(e.Source)
		if err != nil {
			log.Printf("shares: skipping mount %s: %v", e.MountPoint, err)
			continue
		}
		s.MountPath = e.MountPoint
		var auth AuthInfo
		auth.User, _ = e.Option("username")
		auth.Workgroup, _ = e.Option("domain")
		s.Workgroup = auth.Workgroup
		s.SetAuthInfo(auth)
		shares = append(shares, s)
	}
	return shares, nil
}

// Mount mounts share at mountPoint, creating the directory if needed. An
// empty mountPoint selects {mountRoot}/{host}/{share}.
func (m *SMBShareManager) Mount(ctx context.Context, share Share, mountPoint string) (Share, error) {
	if share.Name == "" {
		return Share{}, fmt.Errorf("shares: mount %s: %w: no share name", share.UNC(), smb.ErrInvalidArgument)
	}
	if share.Type != "" && share.Type != ShareTypeDisk {
		return Share{}, fmt.Errorf("shares: mount %s: %w: %s shares cannot be mounted", share.UNC(), smb.ErrInvalidArgument, share.Type)
	}
	if mountPoint == "" {
		mountPoint = m.DefaultMountPoint(share)
	}
	mountPoint = filepath.Clean(mountPoint)

	mounted, err := m.mountedAt(ctx, mountPoint)
	if err != nil {
		return Share{}, err
	}
	if mounted != nil {
		return Share{}, fmt.Errorf("shares: mount %s: %w: %s holds %s", share.UNC(), ErrAlreadyMounted, mountPoint, mounted.Source)
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return Share{}, fmt.Errorf("shares: mount %s: create mount point: %w", share.UNC(), err)
	}

	if err := m.cmd.Mount(ctx, share.Host, share.Name, mountPoint, credentials(share.AuthInfo()), m.opts); err != nil {
		m.removeMountDir(mountPoint)
		return Share{}, fmt.Errorf("shares: mount %s: %w", share.UNC(), err)
	}

	share.MountPath = mountPoint
	return share, nil
}

// Unmount unmounts the SMB share at mountPoint. Mount points below the
// mount root are removed afterwards.
func (m *SMBShareManager) Unmount(ctx context.Context, mountPoint string, lazy bool) error {
	mountPoint = filepath.Clean(mountPoint)

	mounted, err := m.mountedAt(ctx, mountPoint)
	if err != nil {
		return err
	}
	if mounted == nil {
		return fmt.Errorf("shares: unmount %s: %w", mountPoint, smb.ErrNotMounted)
	}

	if err := m.cmd.Unmount(ctx, mountPoint, lazy); err != nil {
		return fmt.Errorf("shares: unmount %s: %w", mountPoint, err)
	}
	m.removeMountDir(mountPoint)
	return nil
}

// DefaultMountPoint is where Mount places share when no mount point is
// given.
func (m *SMBShareManager) DefaultMountPoint(share Share) string {
	return filepath.Join(m.mountRoot, safeSegment(share.Host), safeSegment(share.Name))
}

func (m *SMBShareManager) mountedAt(ctx context.Context, mountPoint string) (*mounts.Mount, error) {
	entries, err := m.table.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("shares: read mount table: %w", err)
	}
	for i := range entries {
		if filepath.Clean(entries[i].MountPoint) == mountPoint {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// removeMountDir removes an empty directory under the mount root and the
// host directory above it once that is empty too.
func (m *SMBShareManager) removeMountDir(mountPoint string) {
	rel, err := filepath.Rel(m.mountRoot, mountPoint)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	for dir := mountPoint; dir != m.mountRoot; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}

func credentials(auth AuthInfo) smb.Credentials {
	return smb.Credentials{User: auth.User, Workgroup: auth.Workgroup, Password: auth.Password}
}

func shareType(t smb.EntryType) ShareType {
	switch t {
	case smb.EntryPrinter:
		return ShareTypePrinter
	case smb.EntryIPC:
		return ShareTypeIPC
	default:
		return ShareTypeDisk
	}
}

// safeSegment keeps a host or share name usable as one path element.
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

var _ ShareManager = (*SMBShareManager)(nil)
