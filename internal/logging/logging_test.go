package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseLevel(%q)", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Stderr: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "package_id", "a")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "package_id=a")
}

func TestNewJSONWithService(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l, err := New(Config{JSON: true, Service: "registry", Stderr: &buf})
	require.NoError(t, err)
	l.Info("published", "package_id", "a")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "registry", rec["service"])
	assert.Equal(t, "a", rec["package_id"])
}

func TestNewWritesFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	l, err := New(Config{Dir: dir, Service: "svc", Stderr: &buf})
	require.NoError(t, err)
	l.Error("persist failed")
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "svc_"))
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "persist failed")
	assert.Contains(t, buf.String(), "persist failed")
}

func TestQuietWithoutFileDiscards(t *testing.T) {
	t.Parallel()
	l, err := New(Config{Quiet: true})
	require.NoError(t, err)
	l.Info("nowhere")
	assert.NoError(t, l.Close())
}
