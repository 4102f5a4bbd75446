// Command smbctl browses, mounts and prints to SMB shares from a terminal,
// using the same command layer as the MCP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesprial/smbshare-mcp/internal/config"
	"github.com/jamesprial/smbshare-mcp/internal/jobs"
	"github.com/jamesprial/smbshare-mcp/internal/mounts"
	"github.com/jamesprial/smbshare-mcp/internal/process"
	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/jamesprial/smbshare-mcp/internal/smb"
	"github.com/spf13/cobra"
)

// passwordEnv is read for the password so it never appears in argv.
const passwordEnv = "PASSWD"

var (
	configPath string
	user       string
	workgroup  string
)

var rootCmd = &cobra.Command{
	Use:           "smbctl",
	Short:         "smbctl - browse, mount and print to SMB shares",
	Long:          "smbctl lists SMB shares, mounts and unmounts them with mount.cifs and prints files through smbclient.\nThe password is taken from $" + passwordEnv + ".",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Ctrl-C aborts the running child and waits for it to exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "U", "", "user name; guest access when empty")
	rootCmd.PersistentFlags().StringVarP(&workgroup, "workgroup", "W", "", "workgroup or domain")
}

// env bundles what the subcommands run against.
type env struct {
	cfg    *config.Config
	client *smb.Client
	shares *shares.SMBShareManager
}

func newEnv() (*env, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	client := smb.NewClient(jobs.NewRegistry(process.ExecSpawner{}, nil), smb.Binaries{
		Smbclient: cfg.Commands.Smbclient,
		MountCifs: cfg.Commands.MountCifs,
		Umount:    cfg.Commands.Umount,
	})
	mgr := shares.NewSMBShareManager(client, mounts.NewTable(cfg.Paths.Proc), cfg.Paths.MountRoot, smb.MountOptions{
		Version:  cfg.Mount.Version,
		UID:      cfg.Mount.UID,
		GID:      cfg.Mount.GID,
		FileMode: cfg.Mount.FileMode,
		DirMode:  cfg.Mount.DirMode,
		ReadOnly: cfg.Mount.ReadOnly,
		Extra:    cfg.Mount.Extra,
	})
	return &env{cfg: cfg, client: client, shares: mgr}, nil
}

func authFromFlags() shares.AuthInfo {
	return shares.AuthInfo{
		User:      user,
		Workgroup: workgroup,
		Password:  os.Getenv(passwordEnv),
	}
}
