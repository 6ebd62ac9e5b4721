package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently sent requests",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryClearCmd(), newHistoryDiffCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the sent requests, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				out := cmd.OutOrStdout()
				entries := a.store.Snapshot().History
				if len(entries) == 0 {
					fmt.Fprintln(out, dimStyle.Render("no requests sent yet"))
					return nil
				}
				// entries are kept oldest first
				for i := len(entries) - 1; i >= 0; i-- {
					e := entries[i]
					fmt.Fprintf(out, "%-10s %-7s %s %s\n", e.ID, e.Method, e.URL,
						dimStyle.Render(humanize.RelTime(e.Date, time.Now(), "ago", "from now")))
				}
				return nil
			})
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the sent requests of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				return a.store.ClearHistory(cmd.Context())
			})
		},
	}
}

func newHistoryDiffCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "diff [id]",
		Short: "Show what changed in a draft since it was last sent",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				id, err := a.requestID(args)
				if err != nil {
					return err
				}
				diff, err := a.store.DiffFromHistory(id)
				if err != nil {
					return err
				}
				if diff == "" {
					fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no changes since last send"))
					return nil
				}
				if raw {
					fmt.Fprint(cmd.OutOrStdout(), diff)
					return nil
				}
				renderMarkdown(cmd.OutOrStdout(), "```diff\n"+diff+"```\n")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the plain unified diff")
	return cmd
}
