package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarning, false},
		{"WARN", LevelWarning, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLevel(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestSetupJSON(t *testing.T) {
	if err := Setup(context.Background(), Options{Level: "warn", ErrorSampleRate: 1}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	SetOutput(&buf)

	Info("hidden")
	Warn("shown", "tenant_id", "t1")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level, got %s", out)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if record["msg"] != "shown" || record["tenant_id"] != "t1" {
		t.Errorf("unexpected record %v", record)
	}
}

func TestWarnCountsEvenWhenSampled(t *testing.T) {
	if err := Setup(context.Background(), Options{Level: "info", ErrorSampleRate: 1000000}); err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	defer errorSampleRate.Store(1)

	var buf bytes.Buffer
	SetOutput(&buf)

	before := TotalWarnings.Load()
	for i := 0; i < 10; i++ {
		Warn("sampled")
	}
	if got := TotalWarnings.Load() - before; got != 10 {
		t.Errorf("expected 10 counted warnings, got %d", got)
	}
}

func TestCountHTTPStatus(t *testing.T) {
	before := Snapshot()
	CountHTTPStatus(404)
	CountHTTPStatus(503)
	CountHTTPStatus(200)
	after := Snapshot()

	if after.Errors4xx-before.Errors4xx != 1 {
		t.Errorf("expected one 4xx, got %d", after.Errors4xx-before.Errors4xx)
	}
	if after.Errors5xx-before.Errors5xx != 1 {
		t.Errorf("expected one 5xx, got %d", after.Errors5xx-before.Errors5xx)
	}
}
