// echo-provider is a stand-in model provider for exercising provider harnesses.
// Contract: read one JSON object from stdin, write {"output": <its "prompt">} to stdout.
// Exit 0 on success; on failure nothing is written to stdout and the exit status is 1.
// Usage: echo '{"prompt":"hi"}' | echo-provider
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/hattiebot/echoprovider/internal/envelope"
	"github.com/hattiebot/echoprovider/internal/logging"
)

// logLevelEnv optionally tunes diagnostics on stderr.
const logLevelEnv = "ECHO_PROVIDER_LOG_LEVEL"

func main() {
	logger := logging.NewOrNop(os.Getenv(logLevelEnv))
	code := run(os.Stdin, os.Stdout, os.Stderr, logger)
	_ = logger.Sync()
	os.Exit(code)
}

func run(stdin io.Reader, stdout, stderr io.Writer, logger *zap.Logger) int {
	counted := &countingReader{r: stdin}
	if err := envelope.Transform(counted, stdout); err != nil {
		logger.Debug("echo failed", zap.String("kind", errorKind(err)), zap.Error(err))
		fmt.Fprintf(stderr, "echo-provider: %v\n", err)
		return 1
	}
	logger.Debug("echoed prompt", zap.Int64("input_bytes", counted.n))
	return 0
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, envelope.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, envelope.ErrUnexpectedShape):
		return "unexpected_shape"
	case errors.Is(err, envelope.ErrStreamFailure):
		return "stream_failure"
	default:
		return "unknown"
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
