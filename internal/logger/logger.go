package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger provides leveled logging (debug/info/warning/error) to stdout/stderr
// and, when a directory is given, to one file per level.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	debug      bool
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger; logDir may be empty to log to the console only
func New(logDir string, debug bool) (*Logger, error) {
	l := &Logger{debug: debug}

	out, errOut := io.Writer(os.Stdout), io.Writer(os.Stderr)
	var infoOut, warnOut, errorOut = out, out, errOut

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		infoFile, err := l.openLogFile(filepath.Join(logDir, "info.log"))
		if err != nil {
			return nil, err
		}
		warnFile, err := l.openLogFile(filepath.Join(logDir, "warning.log"))
		if err != nil {
			l.Close()
			return nil, err
		}
		errorFile, err := l.openLogFile(filepath.Join(logDir, "error.log"))
		if err != nil {
			l.Close()
			return nil, err
		}
		infoOut = io.MultiWriter(out, infoFile)
		warnOut = io.MultiWriter(out, warnFile)
		errorOut = io.MultiWriter(errOut, errorFile)
	}

	l.setup(infoOut, infoOut, warnOut, errorOut)
	return l, nil
}

// NewWithWriter sends every level to w, used by tests and embedding callers
func NewWithWriter(w io.Writer, debug bool) *Logger {
	l := &Logger{debug: debug}
	l.setup(w, w, w, w)
	return l
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewWithWriter(io.Discard, false)
}

func (l *Logger) setup(debugOut, infoOut, warnOut, errorOut io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lmsgprefix
	l.debugLog = log.New(debugOut, "DEBUG   ", flags)
	l.infoLog = log.New(infoOut, "INFO    ", flags)
	l.warningLog = log.New(warnOut, "WARNING ", flags)
	l.errorLog = log.New(errorOut, "ERROR   ", flags)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Printf(format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close closes any open log files
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
