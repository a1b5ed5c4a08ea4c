package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/cohort-match/internal/app"
	"github.com/ignite/cohort-match/internal/config"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("[migrate] load config", "error", err.Error())
		os.Exit(1)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Redact())

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	ctx := context.Background()
	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		logger.Error("[migrate] connect", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if listOnly {
		if err := listTables(ctx, db, os.Stdout); err != nil {
			logger.Error("[migrate] list tables", "error", err.Error())
			os.Exit(1)
		}
		return
	}

	okCount, errCount, err := applyDir(ctx, db, dir, os.Stdout)
	if err != nil {
		logger.Error("[migrate] apply", "dir", dir, "error", err.Error())
		os.Exit(1)
	}
	logger.Info("[migrate] done", "ok", okCount, "errors", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

// listTables prints the survey tables present in the public schema.
func listTables(ctx context.Context, db *sql.DB, out io.Writer) error {
	rows, err := db.QueryContext(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname='public' AND tablename LIKE 'survey_%' ORDER BY tablename")
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Fprintln(out, " ", t)
		n++
	}
	fmt.Fprintf(out, "Total: %d tables\n", n)
	return rows.Err()
}

// applyDir runs every .sql file in dir in name order, each in its own
// transaction. A failing file is rolled back and reported; the rest still run.
func applyDir(ctx context.Context, db *sql.DB, dir string, out io.Writer) (okCount, errCount int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			return okCount, errCount, fmt.Errorf("read %s: %w", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(out, "  %s ... ", f)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			fmt.Fprintf(out, "BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.ExecContext(ctx, content); err != nil {
			tx.Rollback()
			fmt.Fprintf(out, "ERROR: %v\n", err)
			errCount++
			continue
		}
		if err := tx.Commit(); err != nil {
			fmt.Fprintf(out, "COMMIT ERROR: %v\n", err)
			errCount++
			continue
		}
		fmt.Fprintln(out, "OK")
		okCount++
	}
	return okCount, errCount, nil
}
