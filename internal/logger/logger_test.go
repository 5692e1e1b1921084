package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/go-logr/stdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	prev := Logger()
	SetLogger(stdr.New(log.New(buf, "", 0)))
	SetLogLevel(level)
	t.Cleanup(func() {
		SetLogger(prev)
		SetLogLevel(INFO)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, WARN)

	Debug("ARP: debug %d", 1)
	Info("ARP: info %d", 2)
	Warn("ARP: warn %d", 3)
	Error("ARP: error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "error 4")
}

func TestDebugEnablesVerbosity(t *testing.T) {
	buf := captureLogs(t, DEBUG)

	Debug("L3: forwarding %s", "10.0.0.1")
	assert.Contains(t, buf.String(), "L3: forwarding 10.0.0.1")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestDebugEnabled(t *testing.T) {
	captureLogs(t, INFO)
	assert.False(t, DebugEnabled())

	SetLogLevel(DEBUG)
	assert.True(t, DebugEnabled())
}
