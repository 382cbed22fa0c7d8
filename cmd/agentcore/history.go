package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/checkpoint"

	"github.com/spf13/cobra"
)

func newHistoryCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse checkpointed runs",
	}
	cmd.AddCommand(newHistoryListCommand(cli))
	cmd.AddCommand(newResumePointCommand(cli))
	return cmd
}

func newHistoryListCommand(cli *CLI) *cobra.Command {
	var (
		query   string
		offset  int
		limit   int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := cli.initialize()
			if err != nil {
				return err
			}
			page, err := container.History.ListThreadsPage(cmd.Context(), query, offset, limit, refresh)
			if err != nil {
				return err
			}
			printThreads(cmd.OutOrStdout(), page, offset)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter on title, preview or run id")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many matching runs")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Rebuild cached summaries from the store")
	return cmd
}

func printThreads(out io.Writer, page checkpoint.Page, offset int) {
	if len(page.Items) == 0 {
		fmt.Fprintln(out, gray("No runs found."))
		return
	}
	for _, item := range page.Items {
		fmt.Fprintf(out, "%s  %s  %s  %s\n",
			bold(item.RunID),
			statusLabel(item.Status),
			gray(item.LatestCreatedAt.Local().Format(time.DateTime)),
			item.Title,
		)
		if item.Preview != "" {
			fmt.Fprintf(out, "    %s\n", gray(singleLine(item.Preview, 100)))
		}
	}
	shown := offset + len(page.Items)
	footer := fmt.Sprintf("%d-%d of %d", offset+1, shown, page.Total)
	if page.HasMore {
		footer += fmt.Sprintf(" (next: --offset %d)", shown)
	}
	fmt.Fprintln(out, gray(footer))
}

func statusLabel(status checkpoint.Status) string {
	label := fmt.Sprintf("%-9s", status)
	switch status {
	case checkpoint.StatusCompleted:
		return green(label)
	case checkpoint.StatusPartial:
		return yellow(label)
	default:
		return gray(label)
	}
}

func singleLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

func newResumePointCommand(cli *CLI) *cobra.Command {
	var checkpointID string
	cmd := &cobra.Command{
		Use:   "resume-point RUN_ID",
		Short: "Show the checkpoint a new turn of the run would continue from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := cli.initialize()
			if err != nil {
				return err
			}
			runID := args[0]
			var ref *storage.CheckpointRef
			if checkpointID != "" {
				ref = &storage.CheckpointRef{RunID: runID, CheckpointID: checkpointID}
			}
			cp, err := container.History.ResumePoint(cmd.Context(), runID, ref)
			if err != nil {
				return err
			}
			printResumePoint(cmd.OutOrStdout(), runID, checkpointID, cp)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointID, "checkpoint", "", "Checkpoint to resume from instead of the latest")
	return cmd
}

func printResumePoint(out io.Writer, runID, requested string, cp *storage.Checkpoint) {
	if cp == nil {
		fmt.Fprintf(out, "%s no checkpoints for run %s\n", yellow("!"), runID)
		return
	}
	if requested != "" && cp.CheckpointID != requested {
		fmt.Fprintf(out, "%s %s is not resumable; falling back\n", yellow("!"), requested)
	}
	fmt.Fprintf(out, "%s %s\n", bold("Checkpoint:"), blue(cp.CheckpointID))
	fmt.Fprintf(out, "%s %s\n", bold("Node:"), cp.NodePath)
	fmt.Fprintf(out, "%s %d\n", bold("Version:"), cp.Version)
	fmt.Fprintf(out, "%s %s\n", bold("Created:"), cp.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "%s %d\n", bold("Messages:"), len(cp.MessageHistory))
	if !cp.IsResumable() {
		fmt.Fprintf(out, "%s run finished here; a new turn starts fresh\n", yellow("!"))
	}
}
