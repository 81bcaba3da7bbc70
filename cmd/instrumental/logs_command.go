package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			initialLimit := lines
			if initialLimit < 0 {
				initialLimit = 0
			}
			initialOffset := int64(-1)
			if initialLimit == 0 {
				initialOffset = 0
			}

			client, dialErr := ctx.dialClient()
			if dialErr != nil {
				// A stopped daemon still leaves its last log behind the
				// instrumental.log pointer.
				pointer := filepath.Join(cfg.Paths.LogDir, "instrumental.log")
				return tailLogFile(cmd, pointer, initialOffset, initialLimit, follow)
			}
			defer client.Close()

			runCtx := cmd.Context()
			offset := initialOffset
			limit := initialLimit
			printed := false

			for {
				resp, err := client.LogTail(ipc.LogTailRequest{
					Offset:     offset,
					Limit:      limit,
					Follow:     follow,
					WaitMillis: 1000,
				})
				if err != nil {
					return fmt.Errorf("tail logs: %w", err)
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					printed = true
				}
				offset = resp.Offset
				limit = 0
				if !follow {
					if !printed {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				select {
				case <-runCtx.Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

func tailLogFile(cmd *cobra.Command, path string, offset int64, limit int, follow bool) error {
	runCtx := cmd.Context()
	printed := false

	for {
		res, err := logs.Tail(runCtx, path, logs.TailOptions{
			Offset: offset,
			Limit:  limit,
			Follow: follow,
			Wait:   time.Second,
		})
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range res.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = res.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-runCtx.Done():
			return nil
		default:
		}
	}
}
