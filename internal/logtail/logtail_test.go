package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/five82/toolroom/internal/logger"
)

func TestRead(t *testing.T) {
	// Create a temporary log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	// Write 10 lines of content
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if lines != nil {
		t.Fatalf("Read() = %v, want nil", lines)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"warn","ts":"2026-03-01T10:15:30.123Z","logger":"toolroom.api","caller":"api/client.go:250","msg":"request rejected","status":404,"path":"/Machines/id/9"}`
	entry, ok := Parse(line)
	if !ok {
		t.Fatalf("Parse() ok = false, want true")
	}
	if entry.Level != zapcore.WarnLevel {
		t.Errorf("Level = %v, want warn", entry.Level)
	}
	if entry.Logger != "toolroom.api" || entry.Message != "request rejected" {
		t.Errorf("Logger/Message = %q/%q", entry.Logger, entry.Message)
	}
	if entry.Time.IsZero() || entry.Time.Minute() != 15 {
		t.Errorf("Time = %v, want 10:15:30", entry.Time)
	}
	if got := entry.FieldString(); got != "path=/Machines/id/9 status=404" {
		t.Errorf("FieldString() = %q", got)
	}

	plain, ok := Parse("  panic: boom  ")
	if ok {
		t.Fatalf("Parse(plain) ok = true, want false")
	}
	if plain.Message != "panic: boom" || plain.Level != zapcore.InfoLevel {
		t.Errorf("plain entry = %+v", plain)
	}
}

func TestReadEntriesFromLoggerOutput(t *testing.T) {
	dir := t.TempDir()
	log, closeLog, err := logger.New(logger.Options{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	log.Named("poller").Debug("poll ok", logger.Int("machines", 12))
	log.Named("data").Error("mutation failed", logger.String("mutation", "part.delete"))
	log.Info("started")
	closeLog()

	entries, err := ReadEntries(filepath.Join(dir, logger.FileName), 0)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ReadEntries() returned %d entries, want 3", len(entries))
	}
	if entries[0].Logger != "poller" || entries[0].Fields["machines"] != float64(12) {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Caller == "" {
		t.Errorf("caller missing from %+v", entries[1])
	}

	if got := Filter(entries, zapcore.InfoLevel, ""); len(got) != 2 {
		t.Errorf("Filter(info) returned %d entries, want 2", len(got))
	}
	got := Filter(entries, zapcore.DebugLevel, "PART.DELETE")
	if len(got) != 1 || got[0].Message != "mutation failed" {
		t.Errorf("Filter(query) = %+v", got)
	}
}
