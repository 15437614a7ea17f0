package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	require.Len(t, id, 8)
	assert.Regexp(t, "^[0-9a-f]{8}$", id)

	assert.NotEqual(t, id, GenerateID())
}

func TestLogCarriesIDAndComponent(t *testing.T) {
	buf := captureOutput(t)
	l := New("checker")

	l.Info("deadbeef", "checked %d locations", 3)

	out := buf.String()
	assert.Contains(t, out, "[deadbeef]")
	assert.Contains(t, out, "[INFO ]")
	assert.Contains(t, out, "[checker ]")
	assert.Contains(t, out, "checked 3 locations")
}

func TestBackgroundLogUsesPlaceholderID(t *testing.T) {
	buf := captureOutput(t)
	l := New("prober")

	l.WarnBg("pool is empty")

	out := buf.String()
	assert.Contains(t, out, "[xxxxxxxx]")
	assert.Contains(t, out, "[WARN ]")
	assert.Contains(t, out, "pool is empty")
}
