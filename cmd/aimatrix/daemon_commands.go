package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"aimatrix/internal/daemonctl"
	"aimatrix/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the aimatrix daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			opts := daemonctl.LaunchOptions{}
			if ctx.configFlag != nil {
				opts.ConfigPath = *ctx.configFlag
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, opts, 10*time.Second)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the aimatrix daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			pid, err := daemonctl.Stop(ctx.socketPath(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if pid > 0 {
				fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", pid)
			} else {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			reachable, _, err := daemonctl.ProcessInfo(ctx.socketPath())
			if err != nil {
				return err
			}
			if !reachable {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(stdout, status)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

// daemonExecutable locates the aimatrixd binary, preferring the directory of
// the running CLI before falling back to PATH.
func daemonExecutable() (string, error) {
	self, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(self), "aimatrixd")
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("aimatrixd")
	if err != nil {
		return "", fmt.Errorf("locate aimatrixd: %w", err)
	}
	return path, nil
}

func renderStatus(stdout io.Writer, status *ipc.StatusResponse) {
	fmt.Fprintf(stdout, "Running: %s (pid %d)\n", yesNo(status.Running), status.PID)
	fmt.Fprintf(stdout, "Socket:  %s\n", status.SocketPath)
	fmt.Fprintf(stdout, "Lock:    %s\n", status.LockPath)
	fmt.Fprintf(stdout, "DB:      %s\n", status.DatabasePath)

	if len(status.Backends) > 0 {
		rows := make([][]string, 0, len(status.Backends))
		for _, backend := range status.Backends {
			rows = append(rows, []string{backend.Name, statusGlyph(backend.Ready), backend.Detail})
		}
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, renderTable(
			[]string{"Backend", "Ready", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft},
		))
	}

	if len(status.Jobs) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, renderJobTable(status.Jobs))
	}
}
