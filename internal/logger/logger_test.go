package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: WARN, Mode: MINIMAL, Console: &buf})
	require.NoError(t, err)

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)
	log.Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] shown 3")
}

func TestLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "petalert.log")

	var console bytes.Buffer
	log, err := New(Config{Level: DEBUG, Mode: NORMAL, LogFilePath: path, Console: &console})
	require.NoError(t, err)

	log.Debug("sweep finished: %s", "users=2")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[DEBUG] sweep finished: users=2"))
}

func TestParseLevelAndMode(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
	assert.Equal(t, FULL, ParseMode("FULL"))
	assert.Equal(t, NORMAL, ParseMode(""))
}

func TestDiscardDropsEverything(t *testing.T) {
	log := Discard()
	log.Error("nothing %s", "here")
	assert.NoError(t, log.Close())
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: INFO, Mode: MINIMAL, Console: &buf})
	require.NoError(t, err)

	log.Debug("before %d", 1)
	log.SetLevel(DEBUG)
	log.Debug("after %d", 2)

	assert.NotContains(t, buf.String(), "before 1")
	assert.Contains(t, buf.String(), "[DEBUG] after 2")
}

func TestFullModeRecordsCallSite(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: INFO, Mode: FULL, Console: &buf})
	require.NoError(t, err)

	log.Info("rule %s fired", "r1")

	assert.Contains(t, buf.String(), "logger_test.go:")
	assert.Contains(t, buf.String(), "| rule r1 fired")
}
