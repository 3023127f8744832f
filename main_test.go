package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.yaml")
	body := "broker:\n  host: file.example\n  topic: \"file/#\"\ndisplay:\n  sort: label\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var stderr bytes.Buffer
	cfg, err := loadConfig([]string{
		"--config", path,
		"-t", "cli/#",
		"-x", "$SYS/*", "-x", "tmp/*",
		"--mask", "secret",
		"--preserve", "last4",
	}, &stderr)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Broker.Topic != "cli/#" || cfg.Broker.Host != "file.example" {
		t.Fatalf("broker = %+v", cfg.Broker)
	}
	if cfg.Display.Sort != "label" {
		t.Fatalf("unset flag overrode file value: sort=%q", cfg.Display.Sort)
	}
	if strings.Join(cfg.Filter.Exclude, ",") != "$SYS/*,tmp/*" {
		t.Fatalf("exclude = %v", cfg.Filter.Exclude)
	}
	if len(cfg.Mask.Patterns) != 1 || cfg.Mask.Preserve != "last4" {
		t.Fatalf("mask = %+v", cfg.Mask)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	var stderr bytes.Buffer
	_, err := loadConfig([]string{"--sort", "tme", "--include-mode", "topic"}, &stderr)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"display.sort", `did you mean "time"?`, "filter.include_mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoadConfigHelp(t *testing.T) {
	var stderr bytes.Buffer
	_, err := loadConfig([]string{"--help"}, &stderr)
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stderr.String(), "--include-mode") {
		t.Fatalf("help output missing flags: %q", stderr.String())
	}
}

func TestLoadConfigRejectsPositionalArgs(t *testing.T) {
	if _, err := loadConfig([]string{"extra"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for positional argument")
	}
}
