// Package common provides centralized logging infrastructure for the Airweave
// sync platform. This package implements intelligent log output routing that
// automatically directs error messages to stderr while sending other log
// levels to stdout, enabling proper stream separation for containerized and
// scripted environments.
//
// The logging system is built on logrus for structured logging capabilities
// with custom output handling that supports both development workflows and
// production deployment patterns. It provides a foundation for consistent
// logging across all components of the sync and search pipelines.
//
// Key Features:
//   - Automatic output stream routing based on log level
//   - Structured logging with JSON and text format support
//   - Container-friendly output separation for log aggregation
//   - Global logger instance for consistent usage patterns
//
// Output Routing Strategy:
//
//	The system implements intelligent output routing where error-level
//	messages are directed to stderr (for immediate attention and error
//	handling) while info, debug, and warning messages go to stdout (for
//	general log processing).
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter implements log output routing based on log content analysis.
// This custom writer examines log messages and directs them to appropriate
// output streams (stdout vs stderr) based on their severity level.
//
// Routing Logic:
//
//	The splitter analyzes each log message for error indicators and routes
//	them accordingly:
//	- Error messages (containing "level=error" or "level":"error") → stderr
//	- All other messages (info, debug, warn) → stdout
type OutputSplitter struct{}

// Write implements the io.Writer interface for the OutputSplitter.
// It analyzes incoming log data and routes it to the appropriate output
// stream based on content analysis.
//
// Uses bytes.Contains for efficient pattern matching against the literals
// that logrus produces for error-level entries: "level=error" from the text
// formatter and "level":"error" from the JSON formatter.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	// Analyze log content for error level indicators
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		// Route error messages to stderr for immediate attention
		return os.Stderr.Write(p)
	}
	// Route non-error messages to stdout for general processing
	return os.Stdout.Write(p)
}

// Logger provides the global logger instance for the Airweave platform.
// This logger is pre-configured with the OutputSplitter for intelligent
// log routing and serves as the default logging facility for components
// that are not handed a dedicated ContextLogger.
var Logger = func() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})
	return logger
}()
