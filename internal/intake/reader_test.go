package intake

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	csvData := "\xEF\xBB\xBFTimestamp,Email Address,Your Name,Cohort,Confidence,situation_Presenting,situation_networking\n" +
		"2024-03-01 09:30:00,Ana@Example.com,Ana Lopez,C1,2,3,\n" +
		"3/2/2024 10:15,,Bo,C1,,\"4,5\",1\n" +
		",,,,,,\n" +
		"yesterday,cy@example.com,Cy,C1,3,,\n" +
		"2024-03-03 08:00:00,dee@example.com,Dee,C2,high,,\n"

	batch, err := Read(strings.NewReader(csvData), "situation_")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 3)

	ana := batch.Rows[0]
	assert.Equal(t, 2, ana.Line)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), ana.SubmittedAt)
	assert.Equal(t, "Ana@Example.com", ana.Email)
	assert.Equal(t, "Ana Lopez", ana.Name)
	assert.Equal(t, "C1", ana.Cohort)
	require.NotNil(t, ana.Confidence)
	assert.Equal(t, 2.0, *ana.Confidence)
	assert.Equal(t, map[string]float64{"presenting": 3}, ana.Situations)

	bo := batch.Rows[1]
	assert.Equal(t, time.Date(2024, 3, 2, 10, 15, 0, 0, time.UTC), bo.SubmittedAt)
	assert.Nil(t, bo.Confidence)
	assert.Equal(t, map[string]float64{"presenting": 4.5, "networking": 1}, bo.Situations)

	dee := batch.Rows[2]
	assert.Equal(t, "Dee", dee.Name)
	assert.Nil(t, dee.Confidence)

	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, 5, batch.Rejected[0].Line)
	require.Len(t, batch.Warnings, 1)
	assert.Equal(t, 6, batch.Warnings[0].Line)
	assert.Contains(t, batch.Warnings[0].Reason, "confidence")
}

func TestRead_UnparsableSituationKeepsRow(t *testing.T) {
	csvData := "timestamp,name,situation_a,situation_b\n" +
		"2024-03-01 09:00:00,Ana,n/a,4\n"

	batch, err := Read(strings.NewReader(csvData), "situation_")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "Ana", batch.Rows[0].Name)
	assert.Equal(t, map[string]float64{"b": 4}, batch.Rows[0].Situations)
	assert.Empty(t, batch.Rejected)
	require.Len(t, batch.Warnings, 1)
	assert.Equal(t, 2, batch.Warnings[0].Line)
	assert.Contains(t, batch.Warnings[0].Reason, "a: not a number")
}

func TestRead_NonFiniteRejectsRow(t *testing.T) {
	csvData := "timestamp,name,confidence,situation_a\n" +
		"2024-03-01 09:00:00,Ana,NaN,1\n" +
		"2024-03-01 09:01:00,Bo,2,Inf\n" +
		"2024-03-01 09:02:00,Cy,-infinity,\n" +
		"2024-03-01 09:03:00,Dee,3,2\n"

	batch, err := Read(strings.NewReader(csvData), "situation_")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "Dee", batch.Rows[0].Name)
	require.Len(t, batch.Rejected, 3)
	assert.Contains(t, batch.Rejected[0].Reason, "confidence: not a finite number")
	assert.Contains(t, batch.Rejected[1].Reason, "a: not a finite number")
	assert.Contains(t, batch.Rejected[2].Reason, "confidence")
}

func TestRead_FirstAndLastName(t *testing.T) {
	batch, err := Read(strings.NewReader("date,first name,last name\n2024-03-01,Kim,Park\n"), "situation_")
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "Kim Park", batch.Rows[0].Name)
	assert.Empty(t, batch.Rows[0].Cohort)
}

func TestRead_StructuralErrors(t *testing.T) {
	_, err := Read(strings.NewReader(""), "situation_")
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Read(strings.NewReader("email,name\na@example.com,A\n"), "situation_")
	assert.ErrorIs(t, err, ErrNoTimestamp)

	_, err = Read(strings.NewReader("timestamp,cohort\n2024-03-01,C1\n"), "situation_")
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestMapColumns(t *testing.T) {
	m := MapColumns([]string{" EMAIL ", "email_address", "Situation_Small Talk", "notes"}, "situation_")
	assert.Equal(t, 0, m.Fields[FieldEmail])
	assert.Equal(t, "small talk", m.Situations[2])
	assert.Len(t, m.Fields, 1)
	assert.True(t, m.HasIdentity())
}

type failingReader struct{ data string }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.data == "" {
		return 0, io.ErrClosedPipe
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestRead_ReaderFailureAborts(t *testing.T) {
	_, err := Read(&failingReader{data: "timestamp,name\n2024-03-01,A\n"}, "situation_")
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
