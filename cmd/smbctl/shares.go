package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <host>",
	Short: "List the shares a host offers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		list, err := e.shares.List(cmd.Context(), args[0], authFromFlags())
		if err != nil {
			return err
		}
		mounted, err := e.shares.Mounted(cmd.Context())
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(list))
		for _, s := range list {
			mp := ""
			for _, m := range mounted {
				if s.SameShare(m) {
					mp = m.MountPath
					break
				}
			}
			rows = append(rows, []string{s.UNC(), string(s.Type), s.Comment, mp})
		}
		fmt.Fprintln(os.Stdout, renderTable([]string{"SHARE", "TYPE", "COMMENT", "MOUNTED AT"}, rows))
		return nil
	},
}

var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List mounted SMB shares",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		list, err := e.shares.Mounted(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, s := range list {
			rows = append(rows, []string{s.UNC(), s.MountPath, s.AuthInfo().User})
		}
		fmt.Fprintln(os.Stdout, renderTable([]string{"SHARE", "MOUNT POINT", "USER"}, rows))
		return nil
	},
}

var mountCmd = &cobra.Command{
	Use:   "mount <//host/share> [mount-point]",
	Short: "Mount a share with mount.cifs",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		share, err := shares.ParseUNC(args[0])
		if err != nil {
			return err
		}
		share.Workgroup = workgroup
		share.SetAuthInfo(authFromFlags())

		mp := ""
		if len(args) == 2 {
			mp = args[1]
		}
		mounted, err := e.shares.Mount(cmd.Context(), share, mp)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %s on %s\n", okStyle.Render("mounted"), mounted.UNC(), accentStyle.Render(mounted.MountPath))
		return nil
	},
}

var lazyUnmount bool

var unmountCmd = &cobra.Command{
	Use:     "unmount <mount-point>",
	Aliases: []string{"umount"},
	Short:   "Unmount a mounted share",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		mp := filepath.Clean(args[0])
		if err := e.shares.Unmount(cmd.Context(), mp, lazyUnmount); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %s\n", okStyle.Render("unmounted"), mp)
		return nil
	},
}

func init() {
	unmountCmd.Flags().BoolVarP(&lazyUnmount, "lazy", "l", false, "detach now, clean up when no longer busy")
	rootCmd.AddCommand(scanCmd, mountsCmd, mountCmd, unmountCmd)
}
