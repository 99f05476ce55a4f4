// Package logging writes per-component log lines into one file per session.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

type level string

const (
	levelDebug level = "DEBUG"
	levelInfo  level = "INFO"
	levelWarn  level = "WARN"
	levelError level = "ERROR"
)

// session is the state shared by every logger of one process run.
type session struct {
	mu    sync.RWMutex
	id    string
	dir   string
	debug bool
}

var current = &session{}

// SetLogDirectory chooses where log files of this session go. Loggers
// already open keep writing to their file.
func SetLogDirectory(dir string) {
	current.mu.Lock()
	defer current.mu.Unlock()
	current.dir = dir
}

// SetDebug turns Debugf output on or off for all loggers.
func SetDebug(enabled bool) {
	current.mu.Lock()
	defer current.mu.Unlock()
	current.debug = enabled
}

func debugEnabled() bool {
	current.mu.RLock()
	defer current.mu.RUnlock()
	return current.debug
}

// Session returns the id of this run, creating it on first use.
func Session() string {
	current.mu.Lock()
	defer current.mu.Unlock()
	if current.id == "" {
		current.id = uuid.New().String()
	}
	return current.id
}

// Directory returns the log directory, ~/.recordbook/logs unless set, and
// makes sure it exists.
func Directory() (string, error) {
	current.mu.RLock()
	dir := current.dir
	current.mu.RUnlock()

	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("logging: no home directory: %w", err)
		}
		dir = filepath.Join(home, ".recordbook", "logs")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("logging: create %s: %w", dir, err)
	}
	return dir, nil
}

// Logger writes to <log dir>/<session>-recordbook.log. Debugf lines are
// dropped unless debug output is enabled with SetDebug.
type Logger struct {
	session   string
	component string
	out       *log.Logger
	file      *os.File
	path      string

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewLogger creates a logger for a component.
//
// If the log file cannot be opened it returns a stderr logger together with
// the error, so callers can warn and carry on.
func NewLogger(component string) (*Logger, error) {
	id := Session()

	dir, err := Directory()
	if err != nil {
		return stderrLogger(component, id, err), err
	}

	path := filepath.Join(dir, id+"-recordbook.log")
	// append: every component of a session shares the file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("logging: open %s: %w", path, err)
		return stderrLogger(component, id, err), err
	}

	return &Logger{
		session:   id,
		component: component,
		out:       log.New(file, "", 0),
		file:      file,
		path:      path,
	}, nil
}

// NewWriterLogger creates a logger that writes to w instead of the session file.
func NewWriterLogger(component string, w io.Writer) *Logger {
	return &Logger{
		session:   Session(),
		component: component,
		out:       log.New(w, "", 0),
	}
}

func stderrLogger(component, id string, cause error) *Logger {
	l := &Logger{
		session:   id,
		component: component,
		out:       log.New(os.Stderr, "", 0),
	}
	l.Warnf("file logging unavailable: %v", cause)
	return l
}

func (l *Logger) write(lvl level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("%s [%s] [%s] %s",
		time.Now().Format("2006-01-02 15:04:05.000"), l.component, lvl, fmt.Sprintf(format, v...))
}

// Debugf logs only when debug output is enabled.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if debugEnabled() {
		l.write(levelDebug, format, v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) { l.write(levelInfo, format, v...) }

func (l *Logger) Warnf(format string, v ...interface{}) { l.write(levelWarn, format, v...) }

func (l *Logger) Errorf(format string, v ...interface{}) { l.write(levelError, format, v...) }

// Writer returns the underlying destination.
func (l *Logger) Writer() io.Writer {
	return l.out.Writer()
}

// InstallSlog routes the default slog logger into this logger's destination,
// so packages that log through log/slog end up in the session file.
func (l *Logger) InstallSlog() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debugEnabled() {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(l.Writer(), opts)).With("session", l.session))
}

// SessionID returns the session this logger belongs to.
func (l *Logger) SessionID() string {
	return l.session
}

// LogPath returns the path to the log file, empty when not writing to a file.
func (l *Logger) LogPath() string {
	return l.path
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
