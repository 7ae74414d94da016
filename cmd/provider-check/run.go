package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hattiebot/echoprovider/internal/checker"
	"github.com/hattiebot/echoprovider/internal/provider"
	"github.com/hattiebot/echoprovider/internal/suite"
)

type runFlags struct {
	suitePath   string
	concurrency int
	repeat      bool
	asJSON      bool
	metricsFile string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a conformance suite against a registered provider",
		Long: `Runs every case of the suite against the provider and records the run.
Exits non-zero when any case fails. Three consecutive failing runs mark the provider broken.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.suitePath, "suite", "", "YAML suite file (default: config suite_path or the built-in echo suite)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "parallel provider invocations (default from config)")
	cmd.Flags().BoolVar(&f.repeat, "repeat", false, "run each case twice and require byte-identical output")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, name string, f runFlags) error {
	s, err := a.loadSuite(f.suitePath)
	if err != nil {
		return err
	}
	concurrency := f.concurrency
	if concurrency <= 0 {
		concurrency = a.cfg.Concurrency
	}
	validator, err := provider.NewSchemaValidator(16)
	if err != nil {
		return err
	}
	var metrics *checker.Metrics
	if f.metricsFile != "" {
		metrics = checker.NewMetrics()
	}
	exe := &provider.Executor{Timeout: a.cfg.Timeout(), Dir: a.cfg.WorkspaceDir}
	c := checker.New(a.db, exe, validator, metrics, a.logger, checker.Options{
		Concurrency:    concurrency,
		Repeat:         f.repeat,
		OutputMaxRunes: a.cfg.OutputMaxRunes,
	})

	report, runErr := c.Run(cmd.Context(), name, s)
	if report == nil {
		return runErr
	}
	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report, colorEnabled(out))
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(f.metricsFile); err != nil {
			a.logger.Error("failed to write metrics", zap.String("path", f.metricsFile), zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d cases failed", report.Failed, len(report.Cases))
	}
	return nil
}

func (a *app) loadSuite(path string) (*suite.Suite, error) {
	if path == "" {
		path = a.cfg.SuitePath
	}
	if path == "" {
		return suite.Default(), nil
	}
	return suite.Load(path)
}

func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printReport(w io.Writer, r *checker.Report, color bool) {
	pass, fail := "PASS", "FAIL"
	if color {
		pass, fail = "\x1b[32mPASS\x1b[0m", "\x1b[31mFAIL\x1b[0m"
	}
	fmt.Fprintf(w, "run %s: provider %s, suite %s\n", r.RunID, r.Provider, r.Suite)
	for _, c := range r.Cases {
		if c.Passed {
			fmt.Fprintf(w, "  %s  %s (%s)\n", pass, c.Name, c.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "  %s  %s: %s\n", fail, c.Name, c.Error)
	}
	fmt.Fprintf(w, "%d passed, %d failed in %s\n", r.Passed, r.Failed, r.Duration.Round(time.Millisecond))
}
