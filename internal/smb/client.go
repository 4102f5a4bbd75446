// Package smb drives the Samba command-line tools (smbclient, mount.cifs,
// umount) through supervised processes and interprets their output.
package smb

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesprial/smbshare-mcp/internal/jobs"
	"github.com/jamesprial/smbshare-mcp/internal/process"
)

// passwordEnv is read by both smbclient and mount.cifs, which keeps
// passwords off the command line.
const passwordEnv = "PASSWD"

// Runner runs one command to completion. jobs.Registry implements it.
type Runner interface {
	Run(ctx context.Context, kind jobs.Kind, description string, cmd process.Command) (process.Result, error)
}

// Binaries holds the paths of the external tools.
type Binaries struct {
	Smbclient string
	MountCifs string
	Umount    string
}

// DefaultBinaries resolves the tools through $PATH.
func DefaultBinaries() Binaries {
	return Binaries{Smbclient: "smbclient", MountCifs: "mount.cifs", Umount: "umount"}
}

// Credentials authenticate against a server. An empty User means guest
// access.
type Credentials struct {
	User      string
	Workgroup string
	Password  string
}

// MountOptions are passed to mount.cifs with -o.
type MountOptions struct {
	// Version is the SMB dialect (vers=), e.g. "3.0". Empty lets the
	// kernel negotiate.
	Version  string
	UID      string
	GID      string
	FileMode string
	DirMode  string
	ReadOnly bool
	Extra    []string
}

// PrintRequest prints a local file on a printer share.
type PrintRequest struct {
	Host        string
	Printer     string
	File        string
	Copies      int
	Credentials Credentials
}

// Client runs Samba tools through a Runner.
type Client struct {
	runner Runner
	bin    Binaries
}

// NewClient returns a Client. Empty binary paths fall back to
// DefaultBinaries.
func NewClient(runner Runner, bin Binaries) *Client {
	if runner == nil {
		panic("smb runner must not be nil")
	}
	def := DefaultBinaries()
	if bin.Smbclient == "" {
		bin.Smbclient = def.Smbclient
	}
	if bin.MountCifs == "" {
		bin.MountCifs = def.MountCifs
	}
	if bin.Umount == "" {
		bin.Umount = def.Umount
	}
	return &Client{runner: runner, bin: bin}
}

// ListShares returns the shares host advertises.
func (c *Client) ListShares(ctx context.Context, host string, creds Credentials) (Listing, error) {
	if err := validHost(host); err != nil {
		return Listing{}, err
	}
	args := []string{"-g", "-L", "//" + host}
	args = append(args, authArgs(creds)...)

	op := "list shares on " + host
	res, err := c.runner.Run(ctx, jobs.KindScan, op, process.Command{
		Name: c.bin.Smbclient,
		Args: args,
		Env:  passwordEnvFor(creds),
	})
	if err != nil {
		return Listing{}, fmt.Errorf("smb: %s: %w", op, err)
	}
	if err := interpret(op, res); err != nil {
		return Listing{}, err
	}
	return ParseListing(res.Stdout), nil
}

// Mount mounts //host/share at mountPoint.
func (c *Client) Mount(ctx context.Context, host, share, mountPoint string, creds Credentials, opts MountOptions) error {
	if err := validHost(host); err != nil {
		return err
	}
	if share == "" || strings.ContainsAny(share, "/\\") {
		return fmt.Errorf("%w: share name %q", ErrInvalidArgument, share)
	}
	if !filepath.IsAbs(mountPoint) {
		return fmt.Errorf("%w: mount point %q must be absolute", ErrInvalidArgument, mountPoint)
	}
	if err := validMountFields(creds, opts); err != nil {
		return err
	}

	unc := "//" + host + "/" + share
	args := []string{unc, filepath.Clean(mountPoint), "-o", mountOptionString(creds, opts)}

	op := "mount " + unc
	res, err := c.runner.Run(ctx, jobs.KindMount, op, process.Command{
		Name: c.bin.MountCifs,
		Args: args,
		Env:  passwordEnvFor(creds),
	})
	if err != nil {
		return fmt.Errorf("smb: %s: %w", op, err)
	}
	return interpret(op, res)
}

// validMountFields rejects values that would inject extra options into the
// comma-separated -o list.
func validMountFields(creds Credentials, opts MountOptions) error {
	for name, v := range map[string]string{"user": creds.User, "workgroup": creds.Workgroup} {
		if strings.ContainsAny(v, ",=\r\n") {
			return fmt.Errorf("%w: %s %q", ErrInvalidArgument, name, v)
		}
	}
	fields := []string{opts.Version, opts.UID, opts.GID, opts.FileMode, opts.DirMode}
	fields = append(fields, opts.Extra...)
	for _, v := range fields {
		if strings.ContainsAny(v, ",\r\n") {
			return fmt.Errorf("%w: mount option %q", ErrInvalidArgument, v)
		}
	}
	return nil
}

// Unmount unmounts the filesystem at mountPoint. A lazy unmount detaches
// it even while busy.
func (c *Client) Unmount(ctx context.Context, mountPoint string, lazy bool) error {
	if !filepath.IsAbs(mountPoint) {
		return fmt.Errorf("%w: mount point %q must be absolute", ErrInvalidArgument, mountPoint)
	}
	var args []string
	if lazy {
		args = append(args, "-l")
	}
	args = append(args, filepath.Clean(mountPoint))

	op := "unmount " + mountPoint
	res, err := c.runner.Run(ctx, jobs.KindUnmount, op, process.Command{
		Name: c.bin.Umount,
		Args: args,
	})
	if err != nil {
		return fmt.Errorf("smb: %s: %w", op, err)
	}
	return interpret(op, res)
}

// Print sends req.File to the printer share req.Copies times in a single
// smbclient session.
func (c *Client) Print(ctx context.Context, req PrintRequest) error {
	if err := validHost(req.Host); err != nil {
		return err
	}
	if req.Printer == "" {
		return fmt.Errorf("%w: empty printer name", ErrInvalidArgument)
	}
	if req.File == "" || strings.ContainsAny(req.File, "\";\n") {
		return fmt.Errorf("%w: file path %q", ErrInvalidArgument, req.File)
	}
	copies := max(req.Copies, 1)

	cmds := make([]string, copies)
	for i := range cmds {
		cmds[i] = `print "` + req.File + `"`
	}

	unc := "//" + req.Host + "/" + req.Printer
	args := []string{unc}
	args = append(args, authArgs(req.Credentials)...)
	args = append(args, "-c", strings.Join(cmds, "; "))

	op := fmt.Sprintf("print %s on %s", filepath.Base(req.File), unc)
	res, err := c.runner.Run(ctx, jobs.KindPrint, op, process.Command{
		Name: c.bin.Smbclient,
		Args: args,
		Env:  passwordEnvFor(req.Credentials),
	})
	if err != nil {
		return fmt.Errorf("smb: %s: %w", op, err)
	}
	return interpret(op, res)
}

func validHost(host string) error {
	if host == "" || strings.ContainsAny(host, "/\\ ") || strings.HasPrefix(host, "-") {
		return fmt.Errorf("%w: host %q", ErrInvalidArgument, host)
	}
	return nil
}

// authArgs returns smbclient's authentication flags. -N suppresses the
// password prompt when no password is supplied through the environment.
func authArgs(creds Credentials) []string {
	var args []string
	if creds.User != "" {
		args = append(args, "-U", creds.User)
	}
	if creds.Workgroup != "" {
		args = append(args, "-W", creds.Workgroup)
	}
	if creds.Password == "" {
		args = append(args, "-N")
	}
	return args
}

func passwordEnvFor(creds Credentials) map[string]string {
	if creds.Password == "" {
		return nil
	}
	return map[string]string{passwordEnv: creds.Password}
}

func mountOptionString(creds Credentials, opts MountOptions) string {
	var o []string
	if creds.User != "" {
		o = append(o, "username="+creds.User)
	} else {
		o = append(o, "guest")
	}
	if creds.Workgroup != "" {
		o = append(o, "domain="+creds.Workgroup)
	}
	if opts.Version != "" {
		o = append(o, "vers="+opts.Version)
	}
	if opts.UID != "" {
		o = append(o, "uid="+opts.UID)
	}
	if opts.GID != "" {
		o = append(o, "gid="+opts.GID)
	}
	if opts.FileMode != "" {
		o = append(o, "file_mode="+opts.FileMode)
	}
	if opts.DirMode != "" {
		o = append(o, "dir_mode="+opts.DirMode)
	}
	if opts.ReadOnly {
		o = append(o, "ro")
	}
	o = append(o, opts.Extra...)
	return strings.Join(o, ",")
}
