// Package sqlite implements the record store on SQLite via the pure-Go
// modernc.org driver. It is the default persistence backend for
// single-process deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/attune/pkg/types"
)

// Schema creates the records table. Saves upsert on the
// (kind, conversation_id, key) identity.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    kind            TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    key             TEXT NOT NULL,
    payload         BLOB NOT NULL,
    updated_at      TIMESTAMP NOT NULL,
    PRIMARY KEY (kind, conversation_id, key)
);

CREATE INDEX IF NOT EXISTS idx_records_conversation
    ON records(conversation_id, kind, updated_at DESC);
`

// RecordStore is the SQLite-backed record store.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore opens (or creates) the database at the given DSN and
// ensures the schema exists.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open
	// connection serialises writes and avoids SQLITE_BUSY errors; WAL
	// mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Save upserts a single record.
func (s *RecordStore) Save(ctx context.Context, record *types.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (kind, conversation_id, key, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, conversation_id, key)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(record.Kind), record.ConversationID, record.Key, record.Payload, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save record %s/%s: %w", record.Kind, record.Key, err)
	}
	return nil
}

// Query returns records matching the filter, most recently updated
// first.
func (s *RecordStore) Query(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error) {
	query := `SELECT kind, conversation_id, key, payload, updated_at FROM records WHERE 1=1`
	var args []interface{}

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.ConversationID != "" {
		query += ` AND conversation_id = ?`
		args = append(args, filter.ConversationID)
	}
	if filter.KeyPrefix != "" {
		query += ` AND key LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(filter.KeyPrefix)+"%")
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*types.Record
	for rows.Next() {
		var rec types.Record
		var kind string
		if err := rows.Scan(&kind, &rec.ConversationID, &rec.Key, &rec.Payload, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = types.RecordKind(kind)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Close releases the database connection.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
