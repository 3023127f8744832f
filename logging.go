package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mqttwatch/config"
)

const (
	logTimestampLayout = "2006/01/02 15:04:05"
	logFilePrefix      = "mqttwatch-"
	logFileDateLayout  = "2006-01-02"
	maxLogBufferBytes  = 16 * 1024
)

type lineSink interface {
	WriteLine(line string, now time.Time)
	Close() error
}

// ioLineSink writes to stderr before the terminal UI takes the screen and
// after it gives it back.
type ioLineSink struct {
	w             io.Writer
	withTimestamp bool
}

func (s *ioLineSink) WriteLine(line string, now time.Time) {
	if s == nil || s.w == nil {
		return
	}
	if s.withTimestamp {
		line = formatLogTimestamp(now) + " " + line
	}
	_, _ = io.WriteString(s.w, line+"\n")
}

func (s *ioLineSink) Close() error { return nil }

// noticeSink hands each line to the session footer.
type noticeSink struct {
	notify func(string)
}

func (s *noticeSink) WriteLine(line string, _ time.Time) {
	if s == nil || s.notify == nil {
		return
	}
	s.notify(line)
}

func (s *noticeSink) Close() error { return nil }

// dailyFileSink appends to one file per UTC day under dir and prunes files
// older than the retention window whenever it opens a new one.
type dailyFileSink struct {
	mu            sync.Mutex
	dir           string
	retentionDays int
	currentDate   string
	file          *os.File
	lastErrorAt   time.Time
}

// Purpose: Create the log directory and prune stale files up front.
// Key aspects: Retention defaults to 7 days; cleanup failure is not fatal.
// Upstream: setupLogging.
// Downstream: os.MkdirAll, cleanupOldLogs.
func newDailyFileSink(dir string, retentionDays int) (*dailyFileSink, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("log directory is empty")
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", trimmed, err)
	}
	if err := cleanupOldLogs(trimmed, time.Now().UTC(), retentionDays); err != nil {
		fmt.Fprintf(os.Stderr, "Logging: cleanup failed for %s: %v\n", trimmed, err)
	}
	return &dailyFileSink{dir: trimmed, retentionDays: retentionDays}, nil
}

// Purpose: Append one timestamped line, switching files at UTC midnight.
// Key aspects: Errors go to stderr at most once a minute.
// Upstream: logFanout.Write.
// Downstream: os.OpenFile, cleanupOldLogs.
func (s *dailyFileSink) WriteLine(line string, now time.Time) {
	if s == nil {
		return
	}
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if date := now.Format(logFileDateLayout); s.file == nil || s.currentDate != date {
		s.openLocked(date, now)
	}
	if s.file == nil {
		return
	}
	if _, err := s.file.WriteString(formatLogTimestamp(now) + " " + line + "\n"); err != nil {
		s.reportErrorLocked(now, fmt.Errorf("write failed: %w", err))
	}
}

func (s *dailyFileSink) openLocked(date string, now time.Time) {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	path := filepath.Join(s.dir, logFileNameForDate(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.reportErrorLocked(now, fmt.Errorf("open failed for %s: %w", path, err))
		return
	}
	s.file = file
	s.currentDate = date
	if err := cleanupOldLogs(s.dir, now, s.retentionDays); err != nil {
		s.reportErrorLocked(now, fmt.Errorf("cleanup failed: %w", err))
	}
}

func (s *dailyFileSink) reportErrorLocked(now time.Time, err error) {
	if !s.lastErrorAt.IsZero() && now.Sub(s.lastErrorAt) < time.Minute {
		return
	}
	s.lastErrorAt = now
	fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
}

func (s *dailyFileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.currentDate = ""
	return err
}

// logFanout is the log.Logger output. It splits writes into lines and
// copies each to the console, file and notice sinks that are set.
type logFanout struct {
	mu      sync.Mutex
	buf     []byte
	console lineSink
	file    lineSink
	notice  lineSink
}

func newLogFanout(console, file lineSink) *logFanout {
	return &logFanout{console: console, file: file}
}

// Purpose: Build the fanout from config.
// Key aspects: Returns a usable fanout even when the file sink fails.
// Upstream: main.run.
// Downstream: newDailyFileSink.
func setupLogging(cfg config.LoggingConfig, console io.Writer) (*logFanout, error) {
	fanout := newLogFanout(&ioLineSink{w: console, withTimestamp: true}, nil)
	if strings.TrimSpace(cfg.Dir) == "" {
		return fanout, nil
	}
	sink, err := newDailyFileSink(cfg.Dir, cfg.RetentionDays)
	if err != nil {
		return fanout, err
	}
	fanout.setFile(sink)
	return fanout, nil
}

// Purpose: Swap the console sink; nil silences it while the UI owns the screen.
// Key aspects: Takes effect for the next complete line.
// Upstream: main around terminal open/restore.
// Downstream: None.
func (f *logFanout) SetConsole(w io.Writer) {
	var sink lineSink
	if w != nil {
		sink = &ioLineSink{w: w, withTimestamp: true}
	}
	f.mu.Lock()
	f.console = sink
	f.mu.Unlock()
}

// Purpose: Route log lines to the session footer.
// Key aspects: notify must not block; nil detaches.
// Upstream: main after the session exists.
// Downstream: monitor.Session.Notice.
func (f *logFanout) SetNotice(notify func(string)) {
	var sink lineSink
	if notify != nil {
		sink = &noticeSink{notify: notify}
	}
	f.mu.Lock()
	f.notice = sink
	f.mu.Unlock()
}

func (f *logFanout) setFile(sink lineSink) {
	f.mu.Lock()
	f.file = sink
	f.mu.Unlock()
}

func (f *logFanout) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.buf = append(f.buf, p...)
	data := f.buf
	var lines []string
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(data[:idx], "\r")))
		data = data[idx+1:]
	}
	if len(data) > maxLogBufferBytes {
		if trimmed := string(bytes.TrimRight(data, "\r")); trimmed != "" {
			lines = append(lines, trimmed)
		}
		data = data[:0]
	}
	f.buf = data
	sinks := []lineSink{f.console, f.file, f.notice}
	f.mu.Unlock()

	now := time.Now().UTC()
	for _, line := range lines {
		for _, sink := range sinks {
			if sink != nil {
				sink.WriteLine(line, now)
			}
		}
	}
	return len(p), nil
}

// Close flushes nothing; it only closes the file sink.
func (f *logFanout) Close() error {
	f.mu.Lock()
	file := f.file
	f.file = nil
	f.mu.Unlock()
	if file == nil {
		return nil
	}
	return file.Close()
}

func formatLogTimestamp(now time.Time) string {
	return now.UTC().Format(logTimestampLayout)
}

func logFileNameForDate(now time.Time) string {
	return logFilePrefix + now.UTC().Format(logFileDateLayout) + ".log"
}

func parseLogFileDate(name string) (time.Time, bool) {
	if filepath.Ext(name) != ".log" || !strings.HasPrefix(name, logFilePrefix) {
		return time.Time{}, false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(name, logFilePrefix), ".log")
	parsed, err := time.ParseInLocation(logFileDateLayout, base, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// cleanupOldLogs removes our own dated files older than retentionDays,
// counting today as the first day.
func cleanupOldLogs(dir string, now time.Time, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseLogFileDate(entry.Name())
		if ok && date.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
