// Package checker runs conformance suites against registered providers and records the outcome.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hattiebot/echoprovider/internal/provider"
	"github.com/hattiebot/echoprovider/internal/store"
	"github.com/hattiebot/echoprovider/internal/suite"
)

// ErrProviderNotFound is returned when the named provider is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// Runner invokes a provider binary with a request on stdin.
type Runner interface {
	Run(ctx context.Context, binaryPath string, stdin []byte) (provider.Result, error)
}

// Options tune a Checker.
type Options struct {
	// Concurrency bounds parallel provider invocations; <= 0 means 1.
	Concurrency int
	// Repeat runs every passing case a second time and fails it if the output differs.
	Repeat bool
	// OutputMaxRunes caps stdout/stderr kept in reports and the store (0 = no cap).
	OutputMaxRunes int
}

// CaseReport is the outcome of one case.
type CaseReport struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of one run. Cases are in suite order.
type Report struct {
	RunID    string        `json:"run_id"`
	Provider string        `json:"provider"`
	Suite    string        `json:"suite"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Cases    []CaseReport  `json:"cases"`
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Passed == len(r.Cases)
}

// Checker runs suites against providers from a registry.
type Checker struct {
	store     store.RunStore
	runner    Runner
	validator *provider.SchemaValidator
	metrics   *Metrics
	logger    *zap.Logger
	opts      Options
	newID     func() string
}

// New returns a Checker. metrics may be nil.
func New(st store.RunStore, runner Runner, validator *provider.SchemaValidator, metrics *Metrics, logger *zap.Logger, opts Options) *Checker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		store:     st,
		runner:    runner,
		validator: validator,
		metrics:   metrics,
		logger:    logger.Named("checker"),
		opts:      opts,
		newID:     uuid.NewString,
	}
}

// Run executes every case of s against the provider registered as name. Individual case
// failures are reported in the Report; the error is non-nil only when the run could not
// happen or was cancelled, in which case the partial Report is still returned.
func (c *Checker) Run(ctx context.Context, name string, s *suite.Suite) (*Report, error) {
	p, err := c.store.ProviderByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up provider: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	if _, err := c.validator.Compile(p.ResponseSchema); err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}

	report := &Report{
		RunID:    c.newID(),
		Provider: name,
		Suite:    s.Name,
		Cases:    make([]CaseReport, len(s.Cases)),
	}
	start := time.Now()
	if err := c.store.InsertRun(ctx, report.RunID, name, s.Name, start); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	log := c.logger.With(zap.String("run_id", report.RunID), zap.String("provider", name))
	log.Info("check run started", zap.String("suite", s.Name), zap.Int("cases", len(s.Cases)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, tc := range s.Cases {
		i, tc := i, tc
		g.Go(func() error {
			cr, err := c.runCase(gctx, p, tc)
			report.Cases[i] = cr
			if err != nil {
				return err
			}
			c.metrics.ObserveCase(name, cr.Passed, cr.Duration)
			if !cr.Passed {
				log.Debug("case failed", zap.String("case", cr.Name), zap.String("error", cr.Error))
			}
			return c.store.InsertCaseResult(gctx, store.CaseResult{
				RunID:    report.RunID,
				CaseName: cr.Name,
				Passed:   cr.Passed,
				ExitCode: cr.ExitCode,
				Stdout:   cr.Stdout,
				Stderr:   cr.Stderr,
				Detail:   cr.Error,
				Duration: cr.Duration,
			})
		})
	}
	runErr := g.Wait()
	report.Duration = time.Since(start)

	var firstFailure string
	for _, cr := range report.Cases {
		if cr.Passed {
			report.Passed++
			continue
		}
		report.Failed++
		if firstFailure == "" {
			firstFailure = cr.Name + ": " + cr.Error
		}
	}

	// Bookkeeping must land even when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)
	status := store.RunPassed
	if runErr != nil || !report.OK() {
		status = store.RunFailed
	}
	if err := c.store.FinishRun(bg, report.RunID, status, report.Passed, report.Failed); err != nil {
		log.Error("failed to record run result", zap.Error(err))
	}
	if runErr != nil {
		log.Warn("check run aborted", zap.Error(runErr))
		return report, fmt.Errorf("run %s aborted: %w", report.RunID, runErr)
	}

	c.metrics.ObserveRun(name, report.Passed, len(report.Cases))
	if report.OK() {
		err = c.store.RecordProviderSuccess(bg, name)
	} else {
		err = c.store.RecordProviderFailure(bg, name, firstFailure)
	}
	if err != nil {
		log.Error("failed to record provider health", zap.Error(err))
	}
	log.Info("check run finished",
		zap.String("status", status),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// runCase invokes the provider for tc and evaluates the result. The error is non-nil only
// when ctx is done.
func (c *Checker) runCase(ctx context.Context, p *store.RegisteredProvider, tc suite.Case) (CaseReport, error) {
	cr := CaseReport{Name: tc.Name}
	if err := ctx.Err(); err != nil {
		cr.Error = "not run: " + err.Error()
		return cr, err
	}
	res, err := c.runner.Run(ctx, p.BinaryPath, []byte(tc.Input))
	cr.ExitCode = res.ExitCode
	cr.Stdout = provider.TruncateHead(res.Stdout, c.opts.OutputMaxRunes)
	cr.Stderr = provider.TruncateTail(res.Stderr, c.opts.OutputMaxRunes)
	cr.Duration = res.Duration
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			cr.Error = "not run: " + ctxErr.Error()
			return cr, ctxErr
		}
		cr.Error = err.Error()
		return cr, nil
	}

	checkErr := tc.Check(c.validator, p.ResponseSchema, res)
	if checkErr == nil && c.opts.Repeat {
		again, err := c.runner.Run(ctx, p.BinaryPath, []byte(tc.Input))
		switch {
		case err != nil && ctx.Err() != nil:
			cr.Error = "not run: " + ctx.Err().Error()
			return cr, ctx.Err()
		case err != nil:
			checkErr = fmt.Errorf("repeat run: %w", err)
		case again.Stdout != res.Stdout || again.ExitCode != res.ExitCode:
			checkErr = fmt.Errorf("not repeatable: first %q (exit %d), second %q (exit %d)",
				res.Stdout, res.ExitCode, again.Stdout, again.ExitCode)
		}
	}
	cr.Passed = checkErr == nil
	if checkErr != nil {
		cr.Error = checkErr.Error()
	}
	return cr, nil
}
