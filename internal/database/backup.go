package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"petagenda/internal/config"

	"github.com/rs/zerolog"
)

const snapshotPrefix = "audit_"

// BackupService periodically snapshots the audit journal.
type BackupService struct {
	db     *DB
	config config.JournalBackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.JournalBackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:     db,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start blocks until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Journal backup is disabled")
		return
	}

	interval := s.config.Every()
	s.logger.Info().Dur("interval", interval).Str("dir", s.config.Dir).Msg("Journal backup started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Snapshot(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Journal backup failed")
		}
		s.Prune()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Snapshot writes a consistent copy of the journal and returns its path.
func (s *BackupService) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	target := filepath.Join(s.config.Dir, snapshotPrefix+s.now().Format("20060102_150405")+".db")

	// VACUUM INTO refuses to overwrite.
	_ = os.Remove(target)

	if _, err := s.db.db.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, copying the file instead")
		if err := copyFile(s.db.path, target); err != nil {
			return "", fmt.Errorf("copy journal: %w", err)
		}
	}

	s.logger.Info().Str("path", target).Msg("Journal snapshot written")
	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Prune removes snapshots older than the retention window.
func (s *BackupService) Prune() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	files, err := os.ReadDir(s.config.Dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), snapshotPrefix) {
			continue
		}
		info, err := file.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.Dir, file.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to delete old snapshot")
			continue
		}
		removed++
	}
	return removed
}
