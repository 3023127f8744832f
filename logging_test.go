package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mqttwatch/config"
)

func TestLogFileNameForDate(t *testing.T) {
	when := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if got := logFileNameForDate(when); got != "mqttwatch-2026-01-22.log" {
		t.Fatalf("expected mqttwatch-2026-01-22.log, got %q", got)
	}
}

func TestParseLogFileDate(t *testing.T) {
	parsed, ok := parseLogFileDate("mqttwatch-2026-01-22.log")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if parsed.Year() != 2026 || parsed.Month() != time.January || parsed.Day() != 22 {
		t.Fatalf("unexpected parsed date: %s", parsed.Format(time.RFC3339))
	}
	for _, name := range []string{"notes.txt", "2026-01-22.log", "other-2026-01-22.log"} {
		if _, ok := parseLogFileDate(name); ok {
			t.Fatalf("expected %s to be rejected", name)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"mqttwatch-2026-01-20.log",
		"mqttwatch-2026-01-21.log",
		"mqttwatch-2026-01-22.log",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "mqttwatch-2026-01-20.log")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest log to be removed, stat err = %v", err)
	}
	for _, name := range []string{"mqttwatch-2026-01-21.log", "mqttwatch-2026-01-22.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesByDate(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 30)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	day1 := time.Date(2026, time.January, 22, 23, 59, 0, 0, time.UTC)
	sink.WriteLine("first", day1)
	sink.WriteLine("second", day1.Add(2*time.Minute))

	for name, want := range map[string]string{
		"mqttwatch-2026-01-22.log": "first",
		"mqttwatch-2026-01-23.log": "second",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), want) {
			t.Fatalf("%s = %q, want line %q", name, data, want)
		}
	}
}

func TestLogFanoutSplitsLinesAcrossSinks(t *testing.T) {
	var console bytes.Buffer
	fanout, err := setupLogging(config.LoggingConfig{}, &console)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	var notices []string
	fanout.SetNotice(func(line string) { notices = append(notices, line) })
	logger := log.New(fanout, "", 0)

	logger.Print("MQTT: Connected")
	_, _ = fanout.Write([]byte("partial"))
	if len(notices) != 1 || notices[0] != "MQTT: Connected" {
		t.Fatalf("notices = %v", notices)
	}
	_, _ = fanout.Write([]byte(" line\n"))
	if len(notices) != 2 || notices[1] != "partial line" {
		t.Fatalf("notices = %v", notices)
	}
	if !strings.Contains(console.String(), "MQTT: Connected") {
		t.Fatalf("console = %q", console.String())
	}

	fanout.SetConsole(nil)
	logger.Print("hidden")
	if strings.Contains(console.String(), "hidden") {
		t.Fatalf("console sink still active")
	}
}

func TestSetupLoggingWritesFile(t *testing.T) {
	dir := t.TempDir()
	fanout, err := setupLogging(config.LoggingConfig{Dir: dir, RetentionDays: 3}, nil)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	log.New(fanout, "", 0).Print("Queue: overflow")
	if err := fanout.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logFileNameForDate(time.Now())))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "Queue: overflow") {
		t.Fatalf("log file = %q", data)
	}
}
