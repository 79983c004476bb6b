// Package postgres implements the record store on PostgreSQL via
// lib/pq, for deployments that share persistence across processes.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/scrypster/attune/pkg/types"
)

// Schema creates the records table. Saves upsert on the
// (kind, conversation_id, key) identity.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    kind            TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    key             TEXT NOT NULL,
    payload         BYTEA NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (kind, conversation_id, key)
);

CREATE INDEX IF NOT EXISTS idx_records_conversation
    ON records(conversation_id, kind, updated_at DESC);
`

// RecordStore is the PostgreSQL-backed record store.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore connects to the database at the given DSN and ensures
// the schema exists.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Save upserts a single record.
func (s *RecordStore) Save(ctx context.Context, record *types.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (kind, conversation_id, key, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, conversation_id, key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		string(record.Kind), record.ConversationID, record.Key, record.Payload, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save record %s/%s: %w", record.Kind, record.Key, err)
	}
	return nil
}

// Query returns records matching the filter, most recently updated
// first.
func (s *RecordStore) Query(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error) {
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.ConversationID != "" {
		args = append(args, filter.ConversationID)
		conditions = append(conditions, fmt.Sprintf("conversation_id = $%d", len(args)))
	}
	if filter.KeyPrefix != "" {
		args = append(args, escapeLike(filter.KeyPrefix)+"%")
		conditions = append(conditions, fmt.Sprintf(`key LIKE $%d ESCAPE '\'`, len(args)))
	}

	query := `SELECT kind, conversation_id, key, payload, updated_at FROM records`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
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

// Close releases the database connections.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

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
