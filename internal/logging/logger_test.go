package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesJSONLinesToFile(t *testing.T) {
	l := &Logger{enabled: true}
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&OperationLog{Op: "acquire", VMID: "vm-1", Host: "host-1", DurationMs: 12, Success: true})
	l.Log(&OperationLog{Op: "acquire", VMID: "vm-2", Host: "host-1", Success: false, Error: "boom"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), string(data))
	}

	var first OperationLog
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first.VMID != "vm-1" || !first.Success {
		t.Errorf("first entry = %+v, want vm-1/success", first)
	}

	var second OperationLog
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second line: %v", err)
	}
	if second.Error != "boom" {
		t.Errorf("second entry error = %q, want boom", second.Error)
	}
}

func TestLoggerDisabledWritesNothing(t *testing.T) {
	l := &Logger{enabled: false}
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&OperationLog{Op: "acquire", VMID: "vm-1", Success: true})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected no output while disabled, got %q", string(data))
	}
}

func TestSetOutputReplacesPreviousFile(t *testing.T) {
	l := &Logger{enabled: true}
	first := filepath.Join(t.TempDir(), "a.jsonl")
	second := filepath.Join(t.TempDir(), "b.jsonl")

	if err := l.SetOutput(first); err != nil {
		t.Fatal(err)
	}
	if err := l.SetOutput(second); err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Log(&OperationLog{Op: "release", VMID: "vm-3", Success: true})

	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("reading second log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected entry written to the replacement file")
	}
}

func TestDefaultReturnsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same Logger instance across calls")
	}
}
