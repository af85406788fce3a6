package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureReportLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log := Logger()
	if err := log.Configure("report", "text", "stderr", 0); err != nil {
		t.Fatalf("report level rejected: %v", err)
	}
	if log.GetLevel().String() != "info" {
		t.Fatalf("report should map to info, got %s", log.GetLevel())
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "out.log")
	log := Logger()
	if err := log.Configure("info", "json", path, 0); err != nil {
		t.Fatalf("configure file output: %v", err)
	}
	log.WithComponent("file_test").Info("hello")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"component":"file_test"`)) {
		t.Fatalf("log line not written: %s", data)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogMetricFields(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	log.LogMetric("cache", "cache_hit", 1, "", Fields{"cache": "ticker"})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["metric"] != "cache_hit" || line["metric_type"] != "counter" || line["cache"] != "ticker" {
		t.Fatalf("unexpected metric line: %v", line)
	}
}

func TestWarnAndErrorAreCounted(t *testing.T) {
	log := Logger()
	log.SetOutput(&bytes.Buffer{})
	log.WithComponent("counted").Warn("w")
	log.WithComponent("counted").Error("e")
	log.WithComponent("counted").Error("e")

	warns, errors := ComponentCounts("counted")
	if warns != 1 || errors != 2 {
		t.Fatalf("expected 1 warn 2 errors, got %d %d", warns, errors)
	}

	fields := reportFields(func() Fields { return Fields{"cache_keys": 3} })
	if fields["cache_keys"] != 3 {
		t.Fatalf("provider fields missing: %v", fields)
	}
}

func TestWriterForRotatesWithMaxAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	w, err := writerFor(path, 7)
	if err != nil {
		t.Fatalf("writerFor: %v", err)
	}
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("expected lumberjack writer, got %T", w)
	}
	if lj.Filename != path || lj.MaxAge != 7 {
		t.Fatalf("unexpected rotation settings: %+v", lj)
	}
	if w, _ := writerFor("", 0); w != os.Stdout {
		t.Fatalf("empty output should be stdout")
	}
}
