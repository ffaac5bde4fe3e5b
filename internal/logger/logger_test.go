package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and returns a restore func.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()
	originalLevel := GetLevel()
	originalFormat, _ := currentFormat.Load().(string)
	reconfigure()

	return buf, func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		SetLevel(originalLevel.String())
		SetFormat(originalFormat)
		reconfigure()
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{"INFO", []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{"WARN", []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{"ERROR", []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf, cleanup := captureOutput()
			defer cleanup()

			SetLevel(tt.level)
			Debug("debug msg")
			Info("info msg")
			Warn("warn msg")
			Error("error msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Run("CaseInsensitive", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("dEbUg")
		Debug("visible")
		assert.Contains(t, buf.String(), "visible")
		assert.Equal(t, LevelDebug, GetLevel())
	})

	t.Run("IgnoresInvalid", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("LOUD")
		Debug("hidden")
		Info("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestTextFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Info("transfer complete", KeyFilename, "a.txt", KeyBytes, 5, "note", "two words")

	line := buf.String()
	assert.Contains(t, line, "[INFO] transfer complete")
	assert.Contains(t, line, "filename=a.txt")
	assert.Contains(t, line, "bytes=5")
	assert.Contains(t, line, `note="two words"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestTextFormatGroups(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	With("server", "distd").WithGroup("stats").Info("snapshot", "errors", 0)

	line := buf.String()
	assert.Contains(t, line, "server=distd")
	assert.Contains(t, line, "stats.errors=0")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	Info("json message", KeyCode, 226)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "json message", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.EqualValues(t, 226, entry["code"])
}

func TestContextLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	lc := NewLogContext("c-1", "127.0.0.1:5000").WithCommand("GET", "a.txt")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "sending file")

	line := buf.String()
	assert.Contains(t, line, "conn_id=c-1")
	assert.Contains(t, line, "client_addr=127.0.0.1:5000")
	assert.Contains(t, line, "command=GET")
	assert.Contains(t, line, "filename=a.txt")
}

func TestContextWithoutLogContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	WarnCtx(context.Background(), "plain")
	assert.Contains(t, buf.String(), "plain")
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("c-2", "10.0.0.1:1")
	derived := lc.WithCommand("PUT", "b.bin").WithTrace("abc")

	assert.Empty(t, lc.Command)
	assert.Equal(t, "PUT", derived.Command)
	assert.Equal(t, "abc", derived.TraceID)
	assert.Equal(t, "c-2", derived.ConnID)
	assert.GreaterOrEqual(t, derived.DurationMs(), 0.0)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Zero(t, nilCtx.DurationMs())
}

func TestErrField(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Info("no error", Err(nil))
	Info("with error", Err(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, strings.SplitN(out, "\n", 2)[0], "error=")
	assert.Contains(t, out, "error=boom")
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("concurrent", "worker", n)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20*50)
}

func TestInitFileOutput(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "distd.log")
	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("to file")
	t.Cleanup(func() {
		mu.Lock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
		mu.Unlock()
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
