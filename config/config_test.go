package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mqttwatch/filter"
	"mqttwatch/ui"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mqttwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
broker:
  host: broker.example
  topic: "sensors/#"
filter:
  exclude: ["$SYS/*"]
  include_mode: both
mask:
  patterns: [secret]
  preserve: last4
display:
  sort: label
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker.Host != "broker.example" || cfg.Broker.Port != 1883 {
		t.Fatalf("broker = %+v", cfg.Broker)
	}
	if cfg.IncludeMode() != filter.IncludeBoth || cfg.PreserveMode() != filter.PreserveLast4 {
		t.Fatalf("modes = %v %v", cfg.IncludeMode(), cfg.PreserveMode())
	}
	if cfg.SortKey() != ui.SortLabel {
		t.Fatalf("sort = %v", cfg.SortKey())
	}
	if len(cfg.Filter.Exclude) != 1 || cfg.Filter.Exclude[0] != "$SYS/*" {
		t.Fatalf("exclude = %v", cfg.Filter.Exclude)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "display:\n  sortt: label\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker.Topic != "#" {
		t.Fatalf("topic = %q", cfg.Broker.Topic)
	}
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Display.Sort = "lable"
	cfg.Mask.Preserve = "last5"
	cfg.Display.Mode = "everything"
	cfg.Broker.Password = "hunter2"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		`display.sort: invalid value "lable"`,
		`did you mean "label"?`,
		`mask.preserve: invalid value "last5"`,
		`display.mode: invalid value "everything"`,
		"broker.password: set without broker.username",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, `"everything" (want one of live, retained); did you mean`) {
		t.Fatalf("unexpected suggestion for distant value: %q", msg)
	}
}

func TestUsernameWithoutPasswordIsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Broker.Username = "viewer"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRetainedOnlyAndSummary(t *testing.T) {
	cfg := Default()
	cfg.Display.Mode = "retained"
	cfg.Broker.Username = "u"
	cfg.Broker.Password = "topsecret"
	if !cfg.RetainedOnly() {
		t.Fatalf("expected retained-only")
	}
	if s := cfg.Summary(); strings.Contains(s, "topsecret") || !strings.Contains(s, "user u") {
		t.Fatalf("summary = %q", s)
	}
}
