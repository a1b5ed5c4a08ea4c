package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_second.sql"), []byte("CREATE TABLE b (id int);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_first.sql"), []byte("CREATE TABLE a (id int);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "003_empty.sql"), []byte("\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not sql"), 0o644))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id int);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id int);")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	var out bytes.Buffer
	okCount, errCount, err := applyDir(context.Background(), db, dir, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, errCount)
	assert.Contains(t, out.String(), "001_first.sql ... OK")
	assert.Contains(t, out.String(), "002_second.sql ... ERROR: syntax error")
	assert.NotContains(t, out.String(), "003_empty.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDir_MissingDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, _, err = applyDir(context.Background(), db, filepath.Join(t.TempDir(), "nope"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestListTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).
			AddRow("survey_pairings").AddRow("survey_respondents").AddRow("survey_responses"))

	var out bytes.Buffer
	require.NoError(t, listTables(context.Background(), db, &out))
	assert.Contains(t, out.String(), "survey_pairings")
	assert.Contains(t, out.String(), "Total: 3 tables")
	assert.NoError(t, mock.ExpectationsWereMet())
}
