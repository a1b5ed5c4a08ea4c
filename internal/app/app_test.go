package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/cohort-match/internal/config"
	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/intake"
	"github.com/ignite/cohort-match/internal/pkg/distlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Overrides.LocalPath = filepath.Join(t.TempDir(), "manual_overrides.properties")
	a, err := New(context.Background(), cfg, Options{Memory: true})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_MemoryPipeline(t *testing.T) {
	a := memoryApp(t)
	ctx := context.Background()
	prefix := a.Config.Ingest.SituationPrefix

	before := "timestamp,email,name,cohort,confidence\n" +
		"2024-03-01 09:00:00,ana@example.com,Ana Lopez,C1,2\n" +
		"2024-03-01 09:05:00,,Bob Smithe,C1,3\n"
	after := "timestamp,email,name,cohort,confidence\n" +
		"2024-06-01 09:00:00,ANA@example.com,Ana L,C1,4\n" +
		"2024-06-01 09:05:00,,Bob Smith,C1,4\n"

	res, _, err := intake.Import(ctx, a.Ingester, domain.SideBefore, strings.NewReader(before), prefix)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	res, _, err = intake.Import(ctx, a.Ingester, domain.SideAfter, strings.NewReader(after), prefix)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	matched, err := a.Matcher.RunAutoMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, matched.EmailMatches)
	assert.Equal(t, 1, matched.NameMatches)

	result, err := a.Analyzer.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MatchedPairs)
	assert.Equal(t, domain.Average{Value: 2.5, HasData: true}, result.Overall.Before)
	assert.Equal(t, domain.Average{Value: 4, HasData: true}, result.Overall.After)
	assert.Equal(t, domain.Average{Value: 1.5, HasData: true}, result.Overall.Delta)
}

func TestApp_LockInMemoryMode(t *testing.T) {
	a := memoryApp(t)
	assert.IsType(t, &distlock.LocalLock{}, a.Lock(distlock.AutoMatchKey))
}

func TestNew_RejectsUnknownOverrideStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Overrides.Type = "ftp"
	_, err := New(context.Background(), cfg, Options{Memory: true})
	assert.Error(t, err)
}

func TestOpenDB_RequiresURL(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}

func TestOpenRedis(t *testing.T) {
	assert.Nil(t, OpenRedis(context.Background(), config.RedisConfig{}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := OpenRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NotNil(t, client)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())

	mr.Close()
	assert.Nil(t, OpenRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}))
}

func TestExtractHost(t *testing.T) {
	assert.Equal(t, "db.internal:5432", extractHost("postgres://u:p@db.internal:5432/survey?sslmode=disable"))
	assert.Equal(t, "(unknown)", extractHost("host=localhost dbname=survey"))
}
