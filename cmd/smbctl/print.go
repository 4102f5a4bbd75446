package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/jamesprial/smbshare-mcp/internal/smb"
	"github.com/spf13/cobra"
)

var copies int

var printCmd = &cobra.Command{
	Use:   "print <//host/printer> <file>",
	Short: "Print a local file on a printer share",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		printer, err := shares.ParseUNC(args[0])
		if err != nil {
			return err
		}
		if copies < 1 {
			return fmt.Errorf("copies must be at least 1")
		}
		file, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		if info, err := os.Stat(file); err != nil {
			return err
		} else if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", file)
		}

		auth := authFromFlags()
		err = e.client.Print(cmd.Context(), smb.PrintRequest{
			Host:    printer.Host,
			Printer: printer.Name,
			File:    file,
			Copies:  copies,
			Credentials: smb.Credentials{
				User:      auth.User,
				Workgroup: auth.Workgroup,
				Password:  auth.Password,
			},
		})
		if errors.Is(err, smb.ErrAborted) {
			fmt.Fprintln(os.Stdout, warnStyle.Render("cancelled"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %s x%d on %s\n", okStyle.Render("printed"), filepath.Base(file), copies, printer.UNC())
		return nil
	},
}

func init() {
	printCmd.Flags().IntVarP(&copies, "copies", "n", 1, "number of copies")
	rootCmd.AddCommand(printCmd)
}
