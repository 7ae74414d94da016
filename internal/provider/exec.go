// Package provider runs provider executables and checks their stdin/stdout contract.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// DefaultTimeout bounds a single provider invocation when the Executor sets none.
const DefaultTimeout = 30 * time.Second

// Result is the observable outcome of one provider invocation.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Executor runs provider binaries with a request on stdin.
type Executor struct {
	Timeout time.Duration
	// Env is appended to the current process environment.
	Env map[string]string
	// Dir resolves relative binary paths and is the working directory of the process.
	Dir string
}

// ResolvePath joins a relative binaryPath onto dir, as registered paths may be workspace-relative.
func ResolvePath(dir, binaryPath string) string {
	if filepath.IsAbs(binaryPath) || dir == "" {
		return binaryPath
	}
	return filepath.Join(dir, filepath.Clean(binaryPath))
}

// Run executes binaryPath with stdin and returns its output and exit code.
// A non-zero exit or a timeout is reported in Result, not as an error; the error is
// non-nil only when the process could not be started or ctx was cancelled.
func (e *Executor) Run(ctx context.Context, binaryPath string, stdin []byte) (Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, ResolvePath(e.Dir, binaryPath))
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Dir = e.Dir
	cmd.WaitDelay = time.Second
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(e.Env))
	for k := range e.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, e.Env[k]))
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Duration: time.Since(start),
	}
	if runErr == nil {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		res.ExitCode = -1
		return res, err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		res.TimedOut = true
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("running %s: %w", binaryPath, runErr)
}
