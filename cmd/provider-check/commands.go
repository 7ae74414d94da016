package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hattiebot/echoprovider/internal/provider"
)

func newRegisterCmd(a *app) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "register <name> <binary_path> [description]",
		Short: "Register a provider executable",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, binaryPath := args[0], args[1]
			description := ""
			if len(args) > 2 {
				description = args[2]
			}
			schema := ""
			if schemaPath != "" {
				data, err := os.ReadFile(schemaPath)
				if err != nil {
					return fmt.Errorf("reading schema: %w", err)
				}
				schema = string(data)
				v, err := provider.NewSchemaValidator(1)
				if err != nil {
					return err
				}
				if _, err := v.Compile(schema); err != nil {
					return err
				}
			}
			reg := a.providers()
			existing, err := reg.ProviderByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("provider %q already registered", name)
			}
			if _, err := reg.InsertProvider(cmd.Context(), name, binaryPath, description, schema); err != nil {
				return fmt.Errorf("insert provider: %w", err)
			}
			a.logger.Info("registered provider", zap.String("name", name), zap.String("binary_path", binaryPath))
			fmt.Fprintln(cmd.OutOrStdout(), "registered", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON Schema file for the response envelope (default: {\"output\": any} only)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var brokenOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered providers and their health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.providers()
			list, empty := reg.AllProviders, "no providers registered"
			if brokenOnly {
				list, empty = reg.ListBrokenProviders, "no broken providers"
			}
			providers, err := list(cmd.Context())
			if err != nil {
				return err
			}
			if len(providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), empty)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if brokenOnly {
				fmt.Fprintln(w, "NAME\tFAILURES\tLAST SUCCESS\tLAST ERROR")
			} else {
				fmt.Fprintln(w, "NAME\tSTATUS\tFAILURES\tLAST SUCCESS\tBINARY")
			}
			for _, p := range providers {
				last := "never"
				if p.LastSuccess != nil {
					last = humanize.Time(*p.LastSuccess)
				}
				if brokenOnly {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", p.Name, p.FailureCount, last, p.LastError)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Name, p.Status, p.FailureCount, last, p.BinaryPath)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&brokenOnly, "broken", false, "only list providers marked broken, with their last error")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered provider (its run history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.providers().DeleteProvider(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("provider %q not registered", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed", args[0])
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var showCases bool
	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "Show recent check runs of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			runs, err := a.db.RunsForProvider(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "no runs recorded for %s\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSUITE\tSTATUS\tPASSED\tFAILED\tSTARTED\tTOOK")
			for _, r := range runs {
				took := "-"
				if r.FinishedAt != nil {
					took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", r.ID, r.Suite, r.Status, r.Passed, r.Failed, humanize.Time(r.StartedAt), took)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if !showCases {
				return nil
			}
			results, err := a.db.CaseResults(cmd.Context(), runs[0].ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\ncases of %s:\n", runs[0].ID)
			for _, r := range results {
				if r.Passed {
					fmt.Fprintf(out, "  ok    %s\n", r.CaseName)
				} else {
					fmt.Fprintf(out, "  FAIL  %s: %s\n", r.CaseName, r.Detail)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.Flags().BoolVar(&showCases, "cases", false, "also list the case results of the latest run")
	return cmd
}

func newPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old check runs and their case results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			n, err := a.db.PruneRuns(cmd.Context(), time.Now().Add(-olderThan), keep)
			if err != nil {
				return err
			}
			a.logger.Debug("pruned runs", zap.Int64("count", n), zap.Duration("older_than", olderThan))
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d runs\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete runs started longer ago than this")
	cmd.Flags().IntVar(&keep, "keep", 5, "always keep this many recent runs per provider")
	return cmd
}
