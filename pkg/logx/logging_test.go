package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestWriterFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(Component("engine"))

	log.Info("status updated", Int("areas", 3), Duration("took", 1500*time.Millisecond), Err(errors.New("boom")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	l := lines[0]
	assert.Equal(t, "info", l["level"])
	assert.Equal(t, "status updated", l["message"])
	assert.Equal(t, "engine", l["comp"])
	assert.EqualValues(t, 3, l["areas"])
	assert.Equal(t, "boom", l["err"])
	assert.Contains(t, l["caller"], "logging_test.go:")
}

func TestWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.False(t, log.Enabled(LevelInfo))
	assert.True(t, log.Enabled(LevelError))
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	assert.True(t, zero.IsZero())
	zero.Info("nothing happens")

	nop := Nop()
	assert.False(t, nop.IsZero())
	nop.Error("nothing happens", Any("x", 1))
}

func TestErrNilIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "debug").Info("ok", Err(nil))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "err")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in, zerolog.InfoLevel), in)
	}
}

func TestServiceFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.With(Component("test")).Info("to file")

	// A derived logger follows Apply.
	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("filtered")
	log.Error("kept")
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"message":"to file"`)
	assert.Contains(t, out, `"comp":"test"`)
	assert.NotContains(t, out, "filtered")
	assert.Contains(t, out, `"message":"kept"`)
}

func TestServiceRedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level:  "info",
		File:   FileConfig{Enabled: true, Path: path},
		Redact: []string{"A1B2-C3D4-E5F6", " ", "ab"},
	})
	log.Info("calling esp", String("url", "https://example.test/status?token=A1B2-C3D4-E5F6"))
	log.Info("short values stay", String("v", "abc"))
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.NotContains(t, out, "A1B2-C3D4-E5F6")
	assert.Contains(t, out, "token=***")
	assert.Contains(t, out, `"v":"abc"`)
}

func TestNewRedactWriterSkipsEmpty(t *testing.T) {
	assert.Nil(t, newRedactWriter(&bytes.Buffer{}, nil))
	assert.Nil(t, newRedactWriter(&bytes.Buffer{}, []string{"", "xyz"}))

	var buf bytes.Buffer
	rw := newRedactWriter(&buf, []string{"secret-token"})
	require.NotNil(t, rw)
	n, err := rw.Write([]byte("a secret-token b"))
	require.NoError(t, err)
	assert.Equal(t, len("a secret-token b"), n)
	assert.Equal(t, "a *** b", buf.String())
}

func TestWithDoesNotShareFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriter(&buf, "debug").With(Component("engine"))
	a := base.With(Int("offset", 55))
	b := base.With(Int("offset", 5))
	a.Info("a")
	b.Info("b")
	base.Info("base")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.EqualValues(t, 55, lines[0]["offset"])
	assert.EqualValues(t, 5, lines[1]["offset"])
	assert.NotContains(t, lines[2], "offset")
	for _, l := range lines {
		assert.Equal(t, "engine", l["comp"])
	}
}
