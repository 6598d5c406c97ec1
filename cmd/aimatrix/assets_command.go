package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aimatrix/internal/ipc"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	var (
		jobID   string
		sceneID string
		kind    string
	)

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List persisted assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Assets(ipc.AssetsRequest{
					JobID:   jobID,
					SceneID: sceneID,
					Kind:    kind,
				})
				if err != nil {
					return err
				}
				if len(resp.Assets) == 0 {
					fmt.Fprintln(stdout, "No assets found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Assets))
				for _, asset := range resp.Assets {
					rows = append(rows, []string{
						fmt.Sprintf("%d", asset.ID),
						asset.JobID,
						asset.SceneID,
						asset.Kind,
						asset.Path,
						asset.CreatedAt,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Job", "Scene", "Kind", "Path", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "filter by job id")
	cmd.Flags().StringVar(&sceneID, "scene", "", "filter by scene id")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by asset kind (text, image, video, audio, file)")
	return cmd
}
