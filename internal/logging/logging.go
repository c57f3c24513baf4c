// Package logging provides the structured logging infrastructure for the
// orchestrator. It routes error-level log lines to stderr and everything
// else to stdout, which plays nicely with container log collectors that
// treat the two streams differently.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr or stdout based on
// whether logrus tagged them as an error.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger instance; services obtain scoped
// loggers from it via NewContextLogger rather than logging against it
// directly.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
