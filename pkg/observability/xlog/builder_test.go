package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Defaults(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	logger.Info("hello", "component", "xlru")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "component=xlru")
}

func TestBuilder_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	logger.Warn("backing store degraded", "driver", "redis")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "backing store degraded", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "redis", entry["driver"])
}

func TestBuilder_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := New().SetOutput(&buf).SetLevel(LevelWarn).Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	logger.Info("suppressed")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "visible")
}

func TestBuilder_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	b := New().SetOutput(&buf)

	logger, cleanup, err := b.Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	logger.Debug("before")
	b.LevelVar().Set(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
}

func TestBuilder_InvalidLevelString(t *testing.T) {
	_, _, err := New().SetLevelString("loud").Build()
	assert.Error(t, err)
}

func TestBuilder_InvalidFormat(t *testing.T) {
	_, _, err := New().SetFormat("xml").Build()
	assert.Error(t, err)
}

func TestBuilder_EmptyFormatDefaultsToText(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := New().SetOutput(&buf).SetFormat("").Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	logger.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	_, _, err := New().SetLevelString("loud").SetFormat("xml").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestBuilder_ReplaceAttr(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := New().
		SetOutput(&buf).
		SetFormat("json").
		SetReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "token" {
				return slog.String("token", "***")
			}
			return a
		}).
		Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	logger.Info("auth", "token", "abcdef123456")

	out := buf.String()
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "abcdef123456")
}

func TestBuilder_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "app.log")

	logger, cleanup, err := New().
		SetRotation(path, WithMaxSize(1), WithCompress(false)).
		Build()
	require.NoError(t, err)

	logger.Info("rotated output")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated output")

	// cleanup 幂等，二次调用不报错
	assert.NoError(t, cleanup())
}

func TestBuilder_RotationInvalidConfig(t *testing.T) {
	_, _, err := New().SetRotation("").Build()
	assert.ErrorIs(t, err, ErrEmptyFilename)

	_, _, err = New().
		SetRotation(filepath.Join(t.TempDir(), "a.log"), WithMaxSize(-1)).
		Build()
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, _, err = New().
		SetRotation(filepath.Join(t.TempDir(), "a.log"), WithMaxBackups(0), WithMaxAge(0)).
		Build()
	assert.ErrorIs(t, err, ErrNoCleanupPolicy)
}

func TestRotator_ClosedSemantics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")

	rot, err := newRotator(path, WithCompress(false))
	require.NoError(t, err)

	_, err = rot.Write([]byte("line\n"))
	require.NoError(t, err)

	require.NoError(t, rot.Close())

	_, err = rot.Write([]byte("late\n"))
	assert.ErrorIs(t, err, ErrRotatorClosed)
	assert.ErrorIs(t, rot.Rotate(), ErrRotatorClosed)
	assert.ErrorIs(t, rot.Close(), ErrRotatorClosed)
}

func TestRotator_ManualRotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.log")

	rot, err := newRotator(path, WithCompress(false))
	require.NoError(t, err)
	defer rot.Close() //nolint:errcheck

	_, err = rot.Write([]byte(strings.Repeat("x", 128) + "\n"))
	require.NoError(t, err)
	require.NoError(t, rot.Rotate())

	// 轮转后继续写入到新文件
	_, err = rot.Write([]byte("fresh\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(data))
}

func TestBuilder_ContextHandlerPassthrough(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)
	defer cleanup() //nolint:errcheck

	// enrich 开启时，无请求作用域的 context 不注入任何属性
	logger.InfoContext(context.Background(), "no scope")

	out := buf.String()
	assert.Contains(t, out, "no scope")
	assert.NotContains(t, out, "request_id")
}
