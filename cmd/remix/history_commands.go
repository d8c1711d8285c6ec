package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"remix/internal/catalog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse the separation history",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

// historyView is the JSON shape of one history entry.
type historyView struct {
	UUID       string            `json:"uuid"`
	Input      string            `json:"input"`
	InputSHA   string            `json:"input_sha256,omitempty"`
	Model      string            `json:"model"`
	OutputDir  string            `json:"output_dir"`
	Stems      map[string]string `json:"stems"`
	SampleRate int               `json:"sample_rate"`
	Duration   float64           `json:"duration_secs"`
	CreatedAt  time.Time         `json:"created_at"`
}

func historyViewFromEntry(entry *catalog.Entry) historyView {
	return historyView{
		UUID:       entry.UUID,
		Input:      entry.InputPath,
		InputSHA:   entry.InputSHA256,
		Model:      entry.Model,
		OutputDir:  entry.OutputDir,
		Stems:      entry.Stems,
		SampleRate: entry.SampleRate,
		Duration:   entry.Duration.Seconds(),
		CreatedAt:  entry.CreatedAt,
	}
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded separations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				views := make([]historyView, 0, len(entries))
				for _, entry := range entries {
					views = append(views, historyViewFromEntry(entry))
				}
				return writeJSON(cmd, views)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No separations recorded")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					shortUUID(entry.UUID),
					entry.Model,
					filepath.Base(entry.InputPath),
					fmt.Sprintf("%d", len(entry.Stems)),
					entry.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Model", "Input", "Stems", "When"}, rows, 3))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one separation by UUID or unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no separation matches %q", args[0])
			}

			if jsonOut {
				return writeJSON(cmd, historyViewFromEntry(entry))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "UUID:    %s\n", entry.UUID)
			fmt.Fprintf(out, "Input:   %s\n", entry.InputPath)
			fmt.Fprintf(out, "Model:   %s\n", entry.Model)
			fmt.Fprintf(out, "Output:  %s\n", entry.OutputDir)
			fmt.Fprintf(out, "Rate:    %d Hz\n", entry.SampleRate)
			fmt.Fprintf(out, "Length:  %s\n", entry.Duration.Round(time.Second))
			fmt.Fprintf(out, "When:    %s\n", entry.CreatedAt.Local().Format(time.RFC1123))

			names := make([]string, 0, len(entry.Stems))
			for name := range entry.Stems {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-8s %s\n", name, entry.Stems[name])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop all but the newest history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries, kept the newest %d\n", removed, keep)
			return nil
		},
	}

	cmd.Flags().IntVarP(&keep, "keep", "k", 50, "Entries to keep")
	return cmd
}

func shortUUID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
