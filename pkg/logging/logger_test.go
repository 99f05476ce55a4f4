package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestDir points the package at a fresh temp directory and resets the
// session so each test gets its own log file.
func setupTestDir(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	current = &session{dir: tempDir}
	t.Cleanup(func() { current = &session{} })
	return tempDir
}

func readLog(t *testing.T, l *Logger) string {
	t.Helper()
	content, err := os.ReadFile(l.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewLogger(t *testing.T) {
	dir := setupTestDir(t)

	logger, err := NewLogger("store")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "store" {
		t.Errorf("Expected component 'store', got %q", logger.component)
	}
	if logger.SessionID() == "" {
		t.Error("Expected non-empty session ID")
	}
	if filepath.Dir(logger.LogPath()) != dir {
		t.Errorf("Expected log in %s, got %s", dir, logger.LogPath())
	}
	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}
}

func TestLoggerLevels(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("app")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debugf("hidden %d", 1)
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	SetDebug(true)
	logger.Debugf("visible %d", 2)

	content := readLog(t, logger)
	for _, pattern := range []string{
		"[app] [INFO] Info message",
		"[app] [WARN] Warning message",
		"[app] [ERROR] Error message",
		"[app] [DEBUG] visible 2",
	} {
		if !strings.Contains(content, pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, content)
		}
	}
	if strings.Contains(content, "hidden") {
		t.Error("debug line written while debug output was off")
	}
}

func TestMultipleComponents(t *testing.T) {
	setupTestDir(t)

	ui, err := NewLogger("ui")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer ui.Close()

	app, err := NewLogger("app")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer app.Close()

	if ui.SessionID() != app.SessionID() || ui.LogPath() != app.LogPath() {
		t.Fatal("components in one session must share the log file")
	}

	ui.Infof("from ui")
	app.Infof("from app")

	content := readLog(t, ui)
	if !strings.Contains(content, "[ui]") || !strings.Contains(content, "[app]") {
		t.Errorf("Log missing component entries:\n%s", content)
	}
}

func TestInstallSlog(t *testing.T) {
	setupTestDir(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger, err := NewLogger("app")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	SetDebug(true)
	logger.InstallSlog()
	slog.Debug("persistence: saved collection", "records", 3)

	content := readLog(t, logger)
	if !strings.Contains(content, "records=3") {
		t.Errorf("slog output not routed to session log:\n%s", content)
	}
	if !strings.Contains(content, "session="+logger.SessionID()) {
		t.Error("slog output missing session attribute")
	}
}

func TestFallbackLogger(t *testing.T) {
	dir := setupTestDir(t)
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("Failed to write blocker: %v", err)
	}
	// a regular file where the log directory should be
	SetLogDirectory(filepath.Join(blocker, "logs"))

	logger, err := NewLogger("app")
	if err == nil {
		t.Fatal("expected an error when the log directory cannot be created")
	}
	if logger == nil {
		t.Fatal("expected a fallback logger")
	}
	if logger.LogPath() != "" {
		t.Errorf("fallback logger should have no log path, got %q", logger.LogPath())
	}
	if logger.Writer() != os.Stderr {
		t.Error("fallback logger should write to stderr")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on fallback logger failed: %v", err)
	}
}

func TestNewWriterLogger(t *testing.T) {
	setupTestDir(t)

	var buf strings.Builder
	logger := NewWriterLogger("cli", &buf)
	logger.Warnf("quota %s", "exceeded")

	if !strings.Contains(buf.String(), "[cli] [WARN] quota exceeded") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if logger.LogPath() != "" {
		t.Errorf("writer logger should have no log path, got %q", logger.LogPath())
	}
}

func TestLogPathFormat(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-recordbook.log") {
		t.Errorf("Expected log file to end with '-recordbook.log', got %q", fileName)
	}
	if strings.TrimSuffix(fileName, "-recordbook.log") != Session() {
		t.Errorf("Expected file name to start with the session ID, got %q", fileName)
	}

	dir, err := Directory()
	if err != nil {
		t.Fatalf("Failed to get log directory: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Log directory does not exist or is not a directory: %s", dir)
	}
}

func TestSetLogDirectoryAfterFirstLogger(t *testing.T) {
	setupTestDir(t)

	first, err := NewLogger("a")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer first.Close()

	moved := filepath.Join(t.TempDir(), "nested", "logs")
	SetLogDirectory(moved)

	second, err := NewLogger("b")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer second.Close()

	if filepath.Dir(second.LogPath()) != moved {
		t.Errorf("Expected new logger in %s, got %s", moved, second.LogPath())
	}
	if first.SessionID() != second.SessionID() {
		t.Error("session must not change with the directory")
	}
}

func TestLoggerClose(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
