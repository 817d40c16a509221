package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf
	config.Level = INFO

	logger := New(config)
	compLogger := logger.WithComponent(ComponentApp)

	compLogger.Debug("This should not appear")
	compLogger.Info("This should appear")
	compLogger.Warn("This should appear")
	compLogger.Error("This should appear")

	output := buf.String()
	if strings.Contains(output, "This should not appear") {
		t.Error("DEBUG message should be filtered out")
	}
	if got := strings.Count(output, "This should appear"); got != 3 {
		t.Errorf("expected 3 INFO/WARN/ERROR lines, got %d", got)
	}
}

func TestLogger_Components(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf
	config.Components[ComponentStore] = false

	logger := New(config)
	cacheLogger := logger.WithComponent(ComponentCache)
	storeLogger := logger.WithComponent(ComponentStore)

	cacheLogger.Warn("Cache message")
	storeLogger.Info("Store message")

	output := buf.String()
	if !strings.Contains(output, "Cache message") {
		t.Error("Cache message should appear")
	}
	if strings.Contains(output, "Store message") {
		t.Error("Store message should be filtered out")
	}

	logger.EnableComponent(ComponentStore)
	storeLogger.Info("Store enabled")
	if !strings.Contains(buf.String(), "Store enabled") {
		t.Error("Store message should appear after EnableComponent")
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf
	config.Format = FormatJSON

	logger := New(config)
	logger.WithComponent(ComponentCache).Warn("store write failed", map[string]interface{}{
		"key": "site_user_token",
		"err": errors.New("quota"),
	})

	var got struct {
		Level     string                 `json:"level"`
		Component string                 `json:"component"`
		Message   string                 `json:"message"`
		Fields    map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if got.Level != "WARN" || got.Component != "cache" || got.Message != "store write failed" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.Fields["err"] != "quota" {
		t.Errorf("error field should be flattened, got %v", got.Fields["err"])
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	logger := New(config)
	logger.WithComponent(ComponentApp).Info("Test message", map[string]interface{}{
		"url":   "https://example.com",
		"count": 42,
	})

	output := buf.String()
	if !strings.Contains(output, "count=42 url=https://example.com") {
		t.Errorf("fields should be included in sorted order, got %q", output)
	}
}

func TestLogger_MergedFields(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	New(config).WithComponent(ComponentApp).Info("merge",
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"b": 2},
	)
	if !strings.Contains(buf.String(), "a=1 b=2") {
		t.Errorf("later field maps should win, got %q", buf.String())
	}
}

func TestLogger_Timestamp(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf
	config.Timestamp = true

	New(config).WithComponent(ComponentApp).Info("Test message")

	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} `).MatchString(buf.String()) {
		t.Errorf("timestamp should prefix the line, got %q", buf.String())
	}
}

func TestLogger_Caller(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf
	config.ShowCaller = true

	New(config).WithComponent(ComponentApp).Info("Test message")

	if !strings.Contains(buf.String(), "(logger_test.go:") {
		t.Errorf("caller information should be included, got %q", buf.String())
	}
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	SetGlobalLogger(New(config))
	WithComponent(ComponentApp).Info("Global logger test")

	if !strings.Contains(buf.String(), "Global logger test") {
		t.Error("Global logger should work")
	}
}

func TestLogger_Concurrency(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Output = &buf

	compLogger := New(config).WithComponent(ComponentApp)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			compLogger.Info("Concurrent message", map[string]interface{}{
				"goroutine": i,
			})
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 10 {
		t.Errorf("Expected 10 log lines, got %d", len(lines))
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(ERROR, ComponentApp) {
		t.Error("Discard logger should not enable ERROR")
	}
	l.WithComponent(ComponentCache).Error("dropped")
}

func TestLevel_String(t *testing.T) {
	expected := map[Level]string{
		TRACE: "TRACE",
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
	}
	for level, name := range expected {
		if level.String() != name {
			t.Errorf("Level %d should have name %s, got %s", level, name, level.String())
		}
	}
	if Level(42).String() != "LEVEL(42)" {
		t.Errorf("unknown level name: %s", Level(42).String())
	}
}
