package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"petagenda/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the local operator journal. It never caches backend data.
type DB struct {
	db     *sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Audit journal initialized")
	return &DB{db: db, path: path, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            chat_id INTEGER NOT NULL,
            action TEXT NOT NULL,
            entity TEXT NOT NULL,
            entity_id INTEGER,
            details TEXT,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_chat_created ON audit_log(chat_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// InsertAudit appends one entry and sets its ID.
func (db *DB) InsertAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var entityID sql.NullInt64
	if entry.EntityID != 0 {
		entityID = sql.NullInt64{Int64: entry.EntityID, Valid: true}
	}

	res, err := db.db.ExecContext(ctx,
		`INSERT INTO audit_log (chat_id, action, entity, entity_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ChatID, entry.Action, entry.Entity, entityID, entry.Details, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// RecentAudit returns the newest entries of chatID, newest first.
func (db *DB) RecentAudit(ctx context.Context, chatID int64, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = models.AuditHistoryLimit
	}

	rows, err := db.db.QueryContext(ctx,
		`SELECT id, chat_id, action, entity, entity_id, details, created_at
         FROM audit_log
         WHERE chat_id = ?
         ORDER BY created_at DESC, id DESC
         LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			entry    models.AuditEntry
			entityID sql.NullInt64
			details  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.ChatID, &entry.Action, &entry.Entity, &entityID, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.EntityID = entityID.Int64
		entry.Details = details.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (db *DB) PingContext(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.db.Close()
}
