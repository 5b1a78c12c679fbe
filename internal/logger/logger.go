// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is ffs's structured logger: a thin slog wrapper that
// renders text or JSON lines with a fixed five-level severity scheme
// (TRACE/DEBUG/INFO/WARNING/ERROR, plus OFF to silence everything) instead
// of slog's own DEBUG/INFO/WARN/ERROR names.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/mgree/ffs/cfg"
)

// Severity levels. TRACE sits below slog's built-in DEBUG and OFF sits
// above ERROR, so a LevelVar set to LevelOff silences every call.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// loggerFactory holds the configuration defaultLogger was last built from,
// so SetLogFormat and InitLogFile can rebuild it without losing the rest
// of the configuration.
type loggerFactory struct {
	file      *os.File
	sysWriter io.Writer
	level     cfg.LogSeverity
	format    string

	logRotateConfig cfg.LogRotateConfig

	programLevel *slog.LevelVar
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stdout
}

// createJsonOrTextHandler builds the slog.Handler ffs actually logs
// through. Its output shape is fixed by the severity scheme above, not by
// slog's own TextHandler/JSONHandler formatting.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	return &handler{
		w:      w,
		level:  programLevel,
		prefix: prefix,
		json:   f.format != "text",
	}
}

type handler struct {
	w      io.Writer
	level  *slog.LevelVar
	prefix string
	json   bool
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	msg := h.prefix + r.Message
	sev := severityName(r.Level)

	var line string
	if h.json {
		line = fmt.Sprintf("{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q}\n",
			r.Time.Unix(), r.Time.Nanosecond(), sev, msg)
	} else {
		line = fmt.Sprintf("time=%q severity=%s message=%q\n",
			r.Time.Format("01/02/2006 15:04:05.000000"), sev, msg)
	}

	_, err := io.WriteString(h.w, line)
	return err
}

func (h *handler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *handler) WithGroup(_ string) slog.Handler      { return h }

// setLoggingLevel maps a cfg.LogSeverity spelling onto programLevel.
// Unknown spellings fall back to INFO.
func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch cfg.LogSeverity(strings.ToUpper(level)) {
	case cfg.TraceLogSeverity:
		programLevel.Set(LevelTrace)
	case cfg.DebugLogSeverity:
		programLevel.Set(LevelDebug)
	case cfg.WarningLogSeverity:
		programLevel.Set(LevelWarn)
	case cfg.ErrorLogSeverity:
		programLevel.Set(LevelError)
	case cfg.OffLogSeverity:
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(LevelInfo)
	}
}

func buildLogger(f *loggerFactory) *slog.Logger {
	if f.programLevel == nil {
		f.programLevel = new(slog.LevelVar)
	}
	setLoggingLevel(string(f.level), f.programLevel)
	return slog.New(f.createJsonOrTextHandler(f.writer(), f.programLevel, ""))
}

var defaultLoggerFactory = &loggerFactory{
	level:           cfg.InfoLogSeverity,
	format:          "json",
	logRotateConfig: cfg.LogRotateConfig{MaxFileSizeMB: 512, BackupFileCount: 10, Compress: true},
}

var defaultLogger = buildLogger(defaultLoggerFactory)

// InitLogFile points the default logger at newLogConfig: a file if
// FilePath is set, stdout otherwise.
func InitLogFile(newLogConfig cfg.LoggingConfig) error {
	var f *os.File
	if newLogConfig.FilePath != "" {
		var err error
		f, err = os.OpenFile(string(newLogConfig.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("logger: opening log file %q: %w", newLogConfig.FilePath, err)
		}
	}

	defaultLoggerFactory = &loggerFactory{
		file:            f,
		level:           newLogConfig.Severity,
		format:          newLogConfig.Format,
		logRotateConfig: newLogConfig.LogRotate,
	}
	defaultLogger = buildLogger(defaultLoggerFactory)
	return nil
}

// SetLogFormat switches the default logger between "text" and JSON output
// (any other spelling, including "", renders as JSON) without touching the
// rest of the configuration.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = buildLogger(defaultLoggerFactory)
}

// Default returns the package's current default logger, for packages
// (e.g. internal/fsops) that take a *slog.Logger directly rather than
// calling through the Tracef/Debugf/... helpers.
func Default() *slog.Logger {
	return defaultLogger
}

func Tracef(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelDebug, fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelInfo, fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelWarn, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelError, fmt.Sprintf(format, v...))
}

// levelWriter forwards each line the jacobsa/fuse driver writes into it to
// the default logger at a fixed severity.
type levelWriter struct {
	level slog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	defaultLogger.Log(context.Background(), w.level, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewLegacyLogger bridges ffs's slog-based logger to the stdlib *log.Logger
// that jacobsa/fuse's MountConfig.ErrorLogger/DebugLogger require, so FUSE
// driver diagnostics flow through the same severity/format pipeline as the
// rest of ffs's logging.
func NewLegacyLogger(level slog.Level, prefix string) *log.Logger {
	return log.New(levelWriter{level: level}, prefix, 0)
}
