package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A@X.com", "a@x.com"},
		{"  a@x.com \t", "a@x.com"},
		{"a @x.com", "a@x.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in), "input %q", tt.in)
	}
}

func TestNewRespondent_UnknownCohortRequiresManualMatch(t *testing.T) {
	r := NewRespondent("  ", SideBefore, "X@Y.org", " Ana ")
	assert.Equal(t, UnknownCohort, r.Cohort)
	assert.True(t, r.RequiresManualMatch)
	assert.Equal(t, "x@y.org", r.NormalizedEmail)
	assert.Equal(t, "Ana", r.DisplayName)

	r = NewRespondent("C1", SideAfter, "", "Ana")
	assert.False(t, r.RequiresManualMatch)
	assert.Empty(t, r.NormalizedEmail)
}

func TestParseSurveySide(t *testing.T) {
	side, err := ParseSurveySide("PRE")
	require.NoError(t, err)
	assert.Equal(t, SideBefore, side)

	side, err = ParseSurveySide("post")
	require.NoError(t, err)
	assert.Equal(t, SideAfter, side)

	_, err = ParseSurveySide("during")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAverage_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Average `json:"a"`
		B Average `json:"b"`
	}{A: Average{Value: 3, HasData: true}, B: NoData})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3.00,"b":null}`, string(b))

	var back struct {
		A Average `json:"a"`
		B Average `json:"b"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Average{Value: 3, HasData: true}, back.A)
	assert.Equal(t, NoData, back.B)
	assert.Equal(t, "n/a", back.B.String())
}

func TestStorageError_Is(t *testing.T) {
	base := errors.New("connection refused")
	err := NewStorageError("insert pairing", base)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, base)
	assert.Nil(t, NewStorageError("noop", nil))
	assert.Equal(t, ErrNotFound, NewStorageError("find", ErrNotFound))
}

func TestOverrideKey_Equal(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	a := NewOverrideKey("C1", &ts, " A@x.com", "Ana ")
	b := NewOverrideKey("C1", &ts, "a@x.com", "Ana")
	assert.True(t, a.Equal(b))

	c := NewOverrideKey("C1", nil, "a@x.com", "Ana")
	assert.False(t, a.Equal(c))
	assert.True(t, c.Equal(NewOverrideKey("C1", nil, "a@x.com", "Ana")))

	// Wall clock, not instant: the file stores local date-times.
	cet := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	assert.True(t, a.Equal(NewOverrideKey("C1", &cet, "a@x.com", "Ana")))
	sameInstant := ts.In(time.FixedZone("CET", 3600))
	assert.False(t, a.Equal(NewOverrideKey("C1", &sameInstant, "a@x.com", "Ana")))
	assert.Equal(t, "2024-03-01T09:30:00", FormatLocalDateTime(&cet))
	assert.Equal(t, "", FormatLocalDateTime(nil))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "maria lopez", NormalizeName("  Maria LOPEZ "))
	assert.Equal(t, "", NormalizeName("   "))
	// decomposed and precomposed forms compare equal
	assert.Equal(t, NormalizeName("José"), NormalizeName("José"))
}
