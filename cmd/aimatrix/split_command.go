package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"aimatrix/internal/ipc"
)

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var (
		chunkSize  int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Split novel text into scenes by chapter headings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Split(ipc.SplitRequest{Text: text, ChunkSize: chunkSize})
				if err != nil {
					return err
				}

				if jsonOutput {
					encoded, err := json.MarshalIndent(resp.Scenes, "", "  ")
					if err != nil {
						return fmt.Errorf("encode scenes: %w", err)
					}
					fmt.Fprintln(stdout, string(encoded))
					return nil
				}

				if len(resp.Scenes) == 0 {
					fmt.Fprintln(stdout, "No scenes found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Scenes))
				for i, scene := range resp.Scenes {
					rows = append(rows, []string{
						fmt.Sprintf("%d", i+1),
						scene.Title,
						fmt.Sprintf("%d", len([]rune(scene.Content))),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"#", "Title", "Runes"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "fallback chunk size in runes when no headings match (0 uses the daemon default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print scenes as JSON")
	return cmd
}

// readText loads text from the given file argument, or from stdin when no
// argument is supplied.
func readText(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read text from stdin: %w", err)
		}
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("text input is empty")
	}
	return string(data), nil
}
