// Package audit provides a SQLite-backed audit trail for catalog writes.
// Every mutation records who did what to which entity; reads are never
// audited.
package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Actions recorded by the catalog services.
const (
	ActionBookAdd    = "book.add"
	ActionAuthorEdit = "author.edit"
	ActionUserCreate = "user.create"
	ActionUserLogin  = "user.login"
)

// AnonymousActor is recorded when no authenticated user is attached to
// the operation, which only happens for login attempts.
const AnonymousActor = "anonymous"

// Entry is one audit trail record.
type Entry struct {
	OccurredAt time.Time `json:"occurred_at"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Summary    string    `json:"summary"`
	ID         int64     `json:"id"`
}

// Filter narrows List and Count results. Zero values mean no constraint.
type Filter struct {
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Trail is a SQLite-backed audit log.
type Trail struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the audit database at the given path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger) (*Trail, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Trail{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (t *Trail) Close() error {
	return t.db.Close()
}

// Record appends an entry to the trail. A zero OccurredAt is stamped
// with the current time; an empty actor is recorded as anonymous.
func (t *Trail) Record(ctx context.Context, entry Entry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	if entry.Actor == "" {
		entry.Actor = AnonymousActor
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO audit_log (occurred_at, actor, action, entity_type, entity_id, summary)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(entry.OccurredAt),
		entry.Actor,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Summary,
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (t *Trail) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	where, args := buildWhere(filter)

	query := `
		SELECT id, occurred_at, actor, action, entity_type, entity_id, summary
		FROM audit_log` + where + `
		ORDER BY occurred_at DESC, id DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var occurredAt string

		if err := rows.Scan(
			&entry.ID,
			&occurredAt,
			&entry.Actor,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Summary,
		); err != nil {
			return nil, err
		}

		entry.OccurredAt, err = parseTime(occurredAt)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Count returns the number of entries matching the filter.
func (t *Trail) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args := buildWhere(filter)

	var count int64
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit log: %w", err)
	}
	return count, nil
}

// Prune deletes entries older than the cutoff and returns how many were
// removed.
func (t *Trail) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := t.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE occurred_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune audit log: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if t.logger != nil && removed > 0 {
		t.logger.Info("pruned audit log",
			slog.Int64("removed", removed),
			slog.Time("before", before))
	}
	return removed, nil
}

// buildWhere assembles the WHERE clause for a filter.
func buildWhere(filter Filter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "occurred_at < ?")
		args = append(args, formatTime(filter.Until))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
