// Package sqlite checks the embedded database file in the data area before
// the service starts. It never inspects or migrates the schema; that belongs
// to the application.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Result describes what the preflight found.
type Result struct {
	Path    string
	Exists  bool
	Journal string
}

// Preflight opens path read-only and runs PRAGMA quick_check. A missing file
// is not an error: the application creates it on first start.
func Preflight(ctx context.Context, path string, timeout time.Duration) (Result, error) {
	res := Result{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return res, fmt.Errorf("database path %s is a directory", path)
	}
	res.Exists = true

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return res, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return res, fmt.Errorf("failed to connect to database: %w", err)
	}

	var check string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		return res, fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(check, "ok") {
		return res, fmt.Errorf("quick_check reported %q", check)
	}

	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&res.Journal); err != nil {
		return res, fmt.Errorf("journal_mode: %w", err)
	}

	return res, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}
