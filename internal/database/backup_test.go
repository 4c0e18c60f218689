package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"petagenda/internal/config"
	"petagenda/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertAudit(ctx, &models.AuditEntry{ChatID: 1, Action: "login", Entity: "session"}))

	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	s := NewBackupService(db, config.JournalBackupConfig{Enabled: true, Dir: dir, RetentionDays: 1}, &logger)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC) }

	t.Run("Snapshot", func(t *testing.T) {
		path, err := s.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "audit_20250310_083000.db"), path)

		copyDB, err := sql.Open("sqlite3", path)
		require.NoError(t, err)
		defer copyDB.Close()

		var n int
		require.NoError(t, copyDB.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("SnapshotOverwrites", func(t *testing.T) {
		_, err := s.Snapshot(ctx)
		assert.NoError(t, err)
	})

	t.Run("Prune", func(t *testing.T) {
		old := filepath.Join(dir, "audit_20250301_000000.db")
		require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
		foreign := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		past := s.now().AddDate(0, 0, -3)
		require.NoError(t, os.Chtimes(old, past, past))
		require.NoError(t, os.Chtimes(foreign, past, past))

		assert.Equal(t, 1, s.Prune())
		assert.NoFileExists(t, old)
		assert.FileExists(t, foreign)
		assert.FileExists(t, filepath.Join(dir, "audit_20250310_083000.db"))
	})
}

func TestBackupService_Disabled(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	s := NewBackupService(db, config.JournalBackupConfig{Enabled: false}, &logger)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled backup service did not return")
	}
}

func TestBackupService_StopsOnCancel(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	dir := t.TempDir()
	s := NewBackupService(db, config.JournalBackupConfig{Enabled: true, Dir: dir, Interval: "1h"}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
