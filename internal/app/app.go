// Package app builds the repositories, services and locks shared by the
// server and the CLI from one configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/cohort-match/internal/config"
	"github.com/ignite/cohort-match/internal/pkg/distlock"
	"github.com/ignite/cohort-match/internal/pkg/logger"
	"github.com/ignite/cohort-match/internal/repository/memory"
	"github.com/ignite/cohort-match/internal/repository/postgres"
	"github.com/ignite/cohort-match/internal/service/analysis"
	"github.com/ignite/cohort-match/internal/service/ingest"
	"github.com/ignite/cohort-match/internal/service/matching"
	"github.com/ignite/cohort-match/internal/service/override"
	"github.com/ignite/cohort-match/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// Options changes how New wires the application.
type Options struct {
	// Memory keeps all respondents, responses and pairings in process
	// instead of PostgreSQL. The override file is still persisted.
	Memory bool
}

// App holds the wired services. DB and Redis are nil when not in use.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Backend   storage.Backend
	Overrides *override.Store
	Matcher   *matching.Service
	Ingester  *ingest.Service
	Analyzer  *analysis.Service
}

// New connects to the configured stores and builds the services.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	backend, err := storage.New(ctx, cfg.Overrides)
	if err != nil {
		return nil, fmt.Errorf("override storage: %w", err)
	}
	logger.Info("[app] override file", "location", backend.Location())

	a := &App{
		Config:    cfg,
		Backend:   backend,
		Overrides: override.NewStore(backend),
	}

	if opts.Memory {
		store := memory.NewStore()
		a.Matcher = matching.NewService(store.People(), store.Matches(), store.Responses(), store, a.Overrides)
		a.Ingester = ingest.NewService(store.People(), store.Responses(), store)
		a.Analyzer = analysis.NewService(store.People(), store.Matches(), store.Responses())
		logger.Info("[app] using in-memory repositories")
		return a, nil
	}

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Redis = OpenRedis(ctx, cfg.Redis)

	people := postgres.NewPersonRepo(db)
	matches := postgres.NewMatchRepo(db)
	responses := postgres.NewResponseRepo(db)
	tx := postgres.NewTxRunner(db)

	a.Matcher = matching.NewService(people, matches, responses, tx, a.Overrides)
	a.Ingester = ingest.NewService(people, responses, tx)
	a.Analyzer = analysis.NewService(people, matches, responses)
	return a, nil
}

// Lock returns the single-flight lock for key: Redis when connected,
// PostgreSQL advisory locks otherwise, process-local in memory mode.
func (a *App) Lock(key string) distlock.DistLock {
	return distlock.NewLock(a.Redis, a.DB, key, a.Config.Matching.LockTTL())
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// OpenDB opens the PostgreSQL pool and verifies it answers.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is not configured (set DATABASE_URL)")
	}
	dbURL := cfg.URL
	if !strings.Contains(dbURL, "connect_timeout") {
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		dbURL += sep + "connect_timeout=5"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("[app] database connected", "host", extractHost(cfg.URL))
	return db, nil
}

// OpenRedis connects to Redis when configured. It returns nil when Redis is
// not configured or does not answer, in which case locks fall back to
// PostgreSQL advisory locks.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled() {
		logger.Info("[app] redis not configured, using PG advisory locks")
		return nil
	}

	var client *redis.Client
	if opts, err := redis.ParseURL(cfg.Addr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("[app] redis connection failed, falling back to PG advisory locks",
			"addr", cfg.Addr, "error", err.Error())
		client.Close()
		return nil
	}
	logger.Info("[app] redis connected", "addr", cfg.Addr)
	return client
}

// extractHost returns the host portion of a DSN so it can be logged
// without credentials.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
