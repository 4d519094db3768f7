//go:build sqlite
// +build sqlite

package writer

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"jmxpoller/internal/model"
	logx "jmxpoller/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteWriter persists every Result batch into a SQLite database,
// repurposed from the teacher's audit-log SQLite backend
// (internal/storage/sqlite.go): same single-writer-connection, WAL-mode,
// embedded-migration shape, applied to a results table instead of audit
// and dedup tables.
type sqliteWriter struct {
	db  *sql.DB
	log logx.Logger
}

func newSQLiteWriter(spec Spec, log logx.Logger) (*sqliteWriter, error) {
	if spec.Path == "" {
		return nil, errors.New("writer: sqlite writer requires path")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", spec.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	w := &sqliteWriter{db: db, log: log}
	return w, nil
}

func (w *sqliteWriter) Start(ctx context.Context) error {
	_, _ = w.db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = w.db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, string(b))
	return err
}

func (w *sqliteWriter) ValidateSetup(ctx context.Context, server *model.Server, query *model.Query) error {
	return w.db.PingContext(ctx)
}

func (w *sqliteWriter) Write(ctx context.Context, server *model.Server, query *model.Query, results []model.Result) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results(at, server, object_name, attribute, value, key_tags) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339Nano)
	tags, _ := json.Marshal(query.KeyTags)
	for _, r := range results {
		val := fmt.Sprint(r.Value)
		if _, err := stmt.ExecContext(ctx, now, server.Key(), r.ObjectName, r.Attribute, val, string(tags)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (w *sqliteWriter) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *sqliteWriter) Name() string { return "sqlite" }
