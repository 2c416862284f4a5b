// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/snipcheck/pkg/types"
)

const sqliteFile = "snippet.db"

// runSQLite executes a SQL snippet against a fresh database file in dir.
// Parse errors map to compile-failed; every other error to ran-failed.
func runSQLite(ctx context.Context, dir, source string, stderr io.Writer) (types.Status, error) {
	db, err := sql.Open("sqlite3", filepath.Join(dir, sqliteFile)+"?_foreign_keys=on")
	if err != nil {
		return types.StatusRanFailed, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, source); err != nil {
		fmt.Fprintln(stderr, err)
		if isSQLSyntaxError(err) {
			return types.StatusCompileFailed, err
		}
		return types.StatusRanFailed, err
	}
	return types.StatusRanOK, nil
}

func isSQLSyntaxError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrError {
		return false
	}
	msg := se.Error()
	return strings.Contains(msg, "syntax error") || strings.Contains(msg, "incomplete input")
}
