package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aimatrix/internal/ipc"
	"aimatrix/internal/job"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Submit and inspect workflows",
	}

	workflowCmd.AddCommand(
		newWorkflowExecuteCommand(ctx),
		newWorkflowStatusCommand(ctx),
		newWorkflowCancelCommand(ctx),
		newWorkflowListCommand(ctx),
		newWorkflowSaveCommand(ctx),
		newWorkflowLoadCommand(ctx),
		newWorkflowDefinitionsCommand(ctx),
	)
	return workflowCmd
}

func newWorkflowExecuteCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "execute [file]",
		Short: "Execute a workflow from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			wf, err := readWorkflow(cmd, args)
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowExecute(ipc.WorkflowExecuteRequest{Workflow: *wf})
				if err != nil {
					return err
				}
				result := resp.Result
				if !result.Success {
					return fmt.Errorf("workflow rejected: %s", result.Error)
				}
				fmt.Fprintf(stdout, "Job %s dispatched to %s\n", result.JobID, wf.Type)
				if !wait {
					return nil
				}
				return watchJob(cmd, client, result.JobID, ctx.pollInterval())
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job reaches a terminal status")
	return cmd
}

func newWorkflowStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show one job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if watch {
					return watchJob(cmd, client, args[0], ctx.pollInterval())
				}
				resp, err := client.WorkflowStatus(args[0])
				if err != nil {
					return err
				}
				printJob(cmd.OutOrStdout(), resp.Job)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "poll until the job reaches a terminal status")
	return cmd
}

func newWorkflowCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request a best-effort stop of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowCancel(args[0])
				if err != nil {
					return err
				}
				if resp.Cancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s already finished\n", args[0])
				}
				return nil
			})
		},
	}
}

func newWorkflowListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs across all backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs tracked")
					return nil
				}
				fmt.Fprintln(stdout, renderJobTable(resp.Jobs))
				return nil
			})
		},
	}
}

func newWorkflowSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save [file]",
		Short: "Persist a workflow definition from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := readWorkflow(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowSave(ipc.WorkflowSaveRequest{Workflow: *wf})
				if err != nil {
					return err
				}
				if !resp.Saved {
					return fmt.Errorf("workflow %s not saved", wf.ID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s saved\n", wf.ID)
				return nil
			})
		},
	}
}

func newWorkflowLoadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>",
		Short: "Print a saved workflow definition as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowLoad(args[0])
				if err != nil {
					return err
				}
				encoded, err := json.MarshalIndent(resp.Workflow, "", "  ")
				if err != nil {
					return fmt.Errorf("encode workflow: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			})
		},
	}
}

func newWorkflowDefinitionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "definitions",
		Short: "List saved workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkflowDefinitions()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Workflows) == 0 {
					fmt.Fprintln(stdout, "No workflow definitions saved")
					return nil
				}
				rows := make([][]string, 0, len(resp.Workflows))
				for _, wf := range resp.Workflows {
					rows = append(rows, []string{
						wf.ID,
						wf.Name,
						string(wf.Type),
						fmt.Sprintf("%d", len(wf.Inputs)),
						fmt.Sprintf("%d", len(wf.Outputs)),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Name", "Type", "Inputs", "Outputs"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

// readWorkflow decodes a workflow from the given file argument, or from
// stdin when no argument is supplied.
func readWorkflow(cmd *cobra.Command, args []string) (*job.Workflow, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read workflow file: %w", err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read workflow from stdin: %w", err)
		}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("workflow input is empty")
	}

	var wf job.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &wf, nil
}

func (c *commandContext) pollInterval() time.Duration {
	if cfg := c.configValue(); cfg != nil && cfg.Workflow.StatusPollInterval > 0 {
		return time.Duration(cfg.Workflow.StatusPollInterval) * time.Second
	}
	return 2 * time.Second
}

// watchJob polls one job and prints each status change until the job
// reaches a terminal status or the command context ends.
func watchJob(cmd *cobra.Command, client *ipc.Client, jobID string, interval time.Duration) error {
	stdout := cmd.OutOrStdout()
	var lastStatus job.Status
	var lastProgress int

	for {
		resp, err := client.WorkflowStatus(jobID)
		if err != nil {
			return err
		}
		snap := resp.Job
		if snap.Status != lastStatus || snap.Progress != lastProgress {
			fmt.Fprintf(stdout, "%s  %s  %d%%", snap.ID, snap.Status, snap.Progress)
			if snap.Message != "" {
				fmt.Fprintf(stdout, "  %s", snap.Message)
			}
			fmt.Fprintln(stdout)
			lastStatus = snap.Status
			lastProgress = snap.Progress
		}
		if snap.Status.Terminal() {
			printJobResult(stdout, snap)
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(interval):
		}
	}
}

func printJob(stdout io.Writer, snap job.Snapshot) {
	fmt.Fprintf(stdout, "Job:      %s\n", snap.ID)
	fmt.Fprintf(stdout, "Workflow: %s\n", snap.WorkflowID)
	fmt.Fprintf(stdout, "Backend:  %s\n", snap.Backend)
	fmt.Fprintf(stdout, "Status:   %s\n", snap.Status)
	fmt.Fprintf(stdout, "Progress: %d%%\n", snap.Progress)
	if snap.Message != "" {
		fmt.Fprintf(stdout, "Message:  %s\n", snap.Message)
	}
	fmt.Fprintf(stdout, "Started:  %s\n", snap.StartedAt.Format(time.RFC3339))
	if !snap.EndedAt.IsZero() {
		fmt.Fprintf(stdout, "Ended:    %s\n", snap.EndedAt.Format(time.RFC3339))
	}
	printJobResult(stdout, snap)
}

func printJobResult(stdout io.Writer, snap job.Snapshot) {
	if len(snap.Result) == 0 {
		return
	}
	fmt.Fprintf(stdout, "Result:   %s\n", string(snap.Result))
}

func renderJobTable(jobs []job.Snapshot) string {
	rows := make([][]string, 0, len(jobs))
	for _, snap := range jobs {
		rows = append(rows, []string{
			snap.ID,
			snap.WorkflowID,
			string(snap.Backend),
			string(snap.Status),
			fmt.Sprintf("%d%%", snap.Progress),
			snap.StartedAt.Format("15:04:05"),
			snap.Message,
		})
	}
	return renderTable(
		[]string{"Job", "Workflow", "Backend", "Status", "Progress", "Started", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}
