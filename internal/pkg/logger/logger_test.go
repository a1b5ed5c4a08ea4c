package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
		SetRedactPII(true)
	})
	return &buf
}

func TestLog_RedactsRespondentPII(t *testing.T) {
	buf := capture(t)
	SetRedactPII(true)

	Info("[matching] paired", "before_email", "maria@example.com", "display_name", "Maria Lopez", "cohort", "C1")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "ma***@example.com", entry["before_email"])
	assert.Equal(t, "M*** L***", entry["display_name"])
	assert.Equal(t, "C1", entry["cohort"])
}

func TestLog_KeepsCountsUnderPIIKeys(t *testing.T) {
	buf := capture(t)
	SetRedactPII(true)

	Info("[matching] auto-match complete", "email_matches", 3, "name_matches", 0, "name", 7, "cohort_name", "C1")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "3", entry["email_matches"])
	assert.Equal(t, "0", entry["name_matches"])
	assert.Equal(t, "7", entry["name"])
	assert.Equal(t, "C1", entry["cohort_name"])
}

func TestLog_RedactsEmbeddedEmails(t *testing.T) {
	buf := capture(t)
	SetRedactPII(true)

	Warn("[intake] row rejected", "reason", "duplicate of maria@example.com")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "duplicate of ma***@example.com", entry["reason"])
}

func TestLog_LevelFilter(t *testing.T) {
	buf := capture(t)
	Configure("warn", false)

	Info("dropped")
	assert.Zero(t, buf.Len())

	Warn("kept", "email", "ab@x.org")
	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ab@x.org", entry["email"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
	assert.Equal(t, "", RedactEmail(""))
}
