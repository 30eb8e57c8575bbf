package main

import (
	"bytes"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PVF_PARALLEL", "PVF_TMPDIR", "PVF_MIN_SCORE", "PVF_MAX_P_VALUE",
		"PVF_SPLIT_BIN", "PVF_RSCRIPT_BIN", "PVF_LEDGER", "PVF_METRICS_FILE",
		"NATS_URL", "PVF_EVENT_SUBJECT", "PVF_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig([]string{"-i", "in.fa", "-o", "out.csv"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Parallel != 4 || cfg.MinScore != 0.9 || cfg.MaxPValue != 0.05 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TmpDir != os.TempDir() {
		t.Fatalf("unexpected tmpdir: %s", cfg.TmpDir)
	}
	if cfg.SplitBin != "fu-split" || cfg.RscriptBin != "Rscript" {
		t.Fatalf("unexpected binaries: %s %s", cfg.SplitBin, cfg.RscriptBin)
	}
	if cfg.EventSubject != "parallel-virfinder.runs" || cfg.NATSURL != "" {
		t.Fatalf("unexpected event settings: %s %s", cfg.NATSURL, cfg.EventSubject)
	}
	if cfg.KeepTmp || cfg.Timeout != 0 {
		t.Fatalf("unexpected retention settings: keep=%v timeout=%s", cfg.KeepTmp, cfg.Timeout)
	}
	if logLevel(cfg) != slog.LevelWarn {
		t.Fatalf("default level should be warn")
	}
}

func TestLoadConfigShortAndLongFlags(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig([]string{
		"--input", "in.fa", "-o", "out.csv", "-f", "pass.fa", "-n", "8",
		"--min-score", "0.7", "-p", "0.01", "--no-check", "--timeout", "90m",
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	pc := cfg.pipelineConfig()
	if pc.Input != "in.fa" || pc.Output != "out.csv" || pc.Fasta != "pass.fa" || pc.Parallel != 8 {
		t.Fatalf("unexpected paths: %+v", pc)
	}
	if pc.Criteria.MinScore != 0.7 || pc.Criteria.MaxPValue != 0.01 {
		t.Fatalf("unexpected criteria: %+v", pc.Criteria)
	}
	if !pc.SkipChecks || pc.Timeout != 90*time.Minute {
		t.Fatalf("unexpected run settings: %+v", pc)
	}
}

func TestLoadConfigVerboseKeepsTemp(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		args  []string
		level slog.Level
		keep  bool
	}{
		{[]string{"-v"}, slog.LevelInfo, true},
		{[]string{"--debug"}, slog.LevelDebug, true},
		{[]string{"--keep-tmp"}, slog.LevelWarn, true},
		{nil, slog.LevelWarn, false},
	}
	for _, tt := range tests {
		cfg, err := loadConfig(tt.args, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if logLevel(cfg) != tt.level || cfg.KeepTmp != tt.keep {
			t.Fatalf("%v: level=%s keep=%v", tt.args, logLevel(cfg), cfg.KeepTmp)
		}
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PVF_PARALLEL", "16")
	t.Setenv("PVF_MIN_SCORE", "0.5")
	t.Setenv("PVF_RSCRIPT_BIN", "/opt/R/bin/Rscript")
	t.Setenv("PVF_TIMEOUT", "2h")

	cfg, err := loadConfig([]string{"-n", "6"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Parallel != 6 {
		t.Fatalf("flag should override environment, got %d", cfg.Parallel)
	}
	if cfg.MinScore != 0.5 || cfg.RscriptBin != "/opt/R/bin/Rscript" || cfg.Timeout != 2*time.Hour {
		t.Fatalf("environment not applied: %+v", cfg)
	}
}

func TestLoadConfigInvalidEnvironment(t *testing.T) {
	for _, kv := range [][2]string{
		{"PVF_PARALLEL", "many"},
		{"PVF_MIN_SCORE", "high"},
		{"PVF_MAX_P_VALUE", "x"},
		{"PVF_TIMEOUT", "-5m"},
	} {
		t.Run(kv[0], func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := loadConfig(nil, &bytes.Buffer{}); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PVF_PARALLEL", "3")

	path := filepath.Join(t.TempDir(), "pvf.yaml")
	yml := `input: contigs.fa
output: from-file.csv
parallel: 12
min_score: 0.8
timeout: 45m
ledger: /var/lib/pvf/ledger.db
nats_url: nats://queue:4222
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig([]string{"--config", path, "-o", "from-flag.csv"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Input != "contigs.fa" || cfg.Output != "from-flag.csv" {
		t.Fatalf("unexpected paths: %s %s", cfg.Input, cfg.Output)
	}
	if cfg.Parallel != 12 || cfg.MinScore != 0.8 || cfg.MaxPValue != 0.05 {
		t.Fatalf("config file not applied over environment: %+v", cfg)
	}
	if cfg.Timeout != 45*time.Minute || cfg.Ledger != "/var/lib/pvf/ledger.db" || cfg.NATSURL != "nats://queue:4222" {
		t.Fatalf("unexpected extras: %+v", cfg)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("parallel: [1, 2"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	for _, path := range []string{bad, filepath.Join(dir, "missing.yaml")} {
		if _, err := loadConfig([]string{"--config", path}, &bytes.Buffer{}); err == nil {
			t.Fatalf("expected error for %s", path)
		}
	}
}

func TestLoadConfigRejectsStrayArguments(t *testing.T) {
	clearEnv(t)
	if _, err := loadConfig([]string{"-i", "in.fa", "extra"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for positional argument")
	}
	if _, err := loadConfig([]string{"-h"}, &bytes.Buffer{}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestNewLoggerPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("visible", "chunk", 3)
	if got := buf.String(); !strings.Contains(got, "msg=visible chunk=3") || strings.Contains(got, "hidden") {
		t.Fatalf("unexpected log output: %q", got)
	}
}
