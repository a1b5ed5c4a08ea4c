package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("respondent x: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: side", domain.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{&domain.StorageError{Op: "match.run", Err: errors.New("db down")}, http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		FromError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.code, body.Code)
		if tt.status == http.StatusInternalServerError {
			assert.NotContains(t, body.Error, "db down")
		}
	}
}

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	assert.True(t, Decode(rec, req, &dst))
	assert.Equal(t, "x", dst.Name)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
