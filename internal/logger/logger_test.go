package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestConfigure_LevelAndFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	tests := []struct {
		level, format string
		wantLevel     logrus.Level
		text          bool
	}{
		{"debug", "text", logrus.DebugLevel, true},
		{"WARN", "json", logrus.WarnLevel, false},
		{"error", "", logrus.ErrorLevel, false},
		{"", "text", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l := New()
			require.NoError(t, l.Configure(tt.level, tt.format, "stdout"))

			assert.Equal(t, tt.wantLevel, l.GetLevel())
			_, isText := l.Formatter.(*logrus.TextFormatter)
			assert.Equal(t, tt.text, isText)
			assert.Equal(t, os.Stdout, l.Out)
		})
	}
}

func TestConfigure_Invalid(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	err := New().Configure("loud", "json", "stderr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level 'loud'")

	err = New().Configure("info", "xml", "stderr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format 'xml'")
}

func TestConfigure_EnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "trace")

	l := New()
	assert.Equal(t, logrus.TraceLevel, l.GetLevel())

	require.NoError(t, l.Configure("error", "json", "stderr"))
	assert.Equal(t, logrus.TraceLevel, l.GetLevel())
	assert.Equal(t, os.Stderr, l.Out)
}

func TestConfigure_FileOutputRotates(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "collector.log")

	l := New()
	require.NoError(t, l.Configure("info", "json", path))

	lj, ok := l.Out.(*lumberjack.Logger)
	require.True(t, ok, "expected a lumberjack writer, got %T", l.Out)
	assert.Equal(t, path, lj.Filename)
	assert.True(t, lj.Compress)
}

func TestComponent_Fields(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.WithComponent("fetcher").
		WithFields(Fields{"match_id": "KR_1"}).
		WithError(errors.New("boom")).
		Warn("fetch failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "fetcher", line["component"])
	assert.Equal(t, "KR_1", line["match_id"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "fetch failed", line["message"])
	assert.Equal(t, "warning", line["level"])
	assert.Contains(t, line, "timestamp")
	assert.Contains(t, line["file"], "logger_test.go:")

	assert.Equal(t, "discovery", Component("discovery").Data["component"])
}

func TestParseLevel_Fallback(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, parseLevel("", logrus.InfoLevel))
	assert.Equal(t, logrus.WarnLevel, parseLevel("nonsense", logrus.WarnLevel))
	assert.Equal(t, logrus.DebugLevel, parseLevel("DEBUG", logrus.WarnLevel))
}
