package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestLoggerWritesJSONLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "audit.log")
	l, err := NewLogger(DefaultConfig(p))
	require.NoError(t, err)

	l.AppStart("v1.0.0")
	l.FileLoad("shifts.xlsx", 120, 6, nil)
	l.Redaction("req-1", map[string]string{"Personel": "name pattern"})
	l.APICall("req-1", "openai", "gpt-4o-mini", 1500, 2*time.Second, nil)
	l.APICall("req-2", "anthropic", "claude-3-haiku-20240307", 0, time.Second, errors.New("rate limited"))
	l.Export("json", "out.json", nil)
	l.Error("render", nil)
	require.NoError(t, l.Close())

	events := readEvents(t, p)
	require.Len(t, events, 6)
	for _, e := range events {
		assert.Equal(t, l.SessionID(), e["session_id"])
	}
	assert.Equal(t, "app.start", events[0]["event"])
	assert.Equal(t, "data.redaction", events[2]["event"])
	assert.Equal(t, "name pattern", events[2]["fields"].(map[string]any)["Personel"])
	assert.Equal(t, "api.call", events[3]["event"])
	assert.Equal(t, float64(1500), events[3]["tokens"])
	assert.Equal(t, "failure", events[4]["result"])
	assert.Equal(t, "error", events[4]["level"])
	assert.Equal(t, "rate limited", events[4]["error"])
}

func TestLogAfterCloseIsDropped(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(DefaultConfig(p))
	require.NoError(t, err)
	l.AppStart("v")
	require.NoError(t, l.Close())
	l.AppStart("again")
	require.NoError(t, l.Close())
	assert.Len(t, readEvents(t, p), 1)
}

func TestNopAndNil(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Log(Event{Type: EventError})
	assert.NoError(t, nilLogger.Close())

	n := Nop()
	n.APICall("r", "p", "m", 1, 0, nil)
	assert.NotEmpty(t, n.SessionID())
	assert.NoError(t, n.Close())

	_, err := NewLogger(Config{})
	assert.Error(t, err)
}
