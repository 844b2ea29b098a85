package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	log, closeFn, err := New(Options{Dir: dir, Level: "debug"})
	require.NoError(t, err)

	log.Info("machine loaded", String("number", "M-100"), Int("hours", 42))
	closeFn()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"msg":"machine loaded"`)
	assert.Contains(t, line, `"number":"M-100"`)
	assert.Contains(t, line, `"ts":`)
}

func TestNewWithoutDirIsNop(t *testing.T) {
	log, closeFn, err := New(Options{})
	require.NoError(t, err)
	defer closeFn()
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
