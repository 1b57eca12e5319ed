package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunMaintenance executes housekeeping tasks. All tasks are idempotent and
// safe to run multiple times.
func RunMaintenance(ctx context.Context, s *Store, logger *slog.Logger) error {
	start := time.Now()
	logger.Info("maintenance: start")

	// Try to acquire a DB-level singleton lock (Postgres only).
	unlock, err := tryAcquireLock(ctx, s)
	if err != nil {
		return err
	}
	if unlock != nil {
		defer unlock()
	}

	if err := deleteInvalidAPITokens(ctx, s); err != nil {
		return fmt.Errorf("delete invalid API tokens: %w", err)
	}

	// Rendered documents are regenerated on demand, so old files for
	// invoices whose document path moved on can be dropped.
	if err := pruneOrphanedDocuments(ctx, s); err != nil {
		return fmt.Errorf("prune orphaned documents: %w", err)
	}

	if err := vacuumAnalyze(ctx, s); err != nil {
		return fmt.Errorf("vacuum/analyze: %w", err)
	}

	logger.Info("maintenance: done", "duration", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// --------------------------------------------------------------------
// DB locking (only relevant for Postgres, safe no-op for SQLite)
// --------------------------------------------------------------------

func tryAcquireLock(ctx context.Context, s *Store) (func(), error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}

	switch s.db.Dialector.Name() {
	case "postgres":
		var got bool
		if err := sqlDB.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", 74120553).Scan(&got); err != nil {
			return nil, err
		}
		if !got {
			return nil, errors.New("another maintenance run is in progress")
		}
		return func() {
			_, _ = sqlDB.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", 74120553)
		}, nil
	default:
		// No locking available in SQLite
		return nil, nil
	}
}

// --------------------------------------------------------------------
// Maintenance tasks
// --------------------------------------------------------------------

// deleteInvalidAPITokens removes tokens that are explicitly disabled
// or past their expiration date.
func deleteInvalidAPITokens(ctx context.Context, s *Store) error {
	return s.db.WithContext(ctx).
		Exec(`DELETE FROM api_tokens WHERE disabled = TRUE OR (expires_at IS NOT NULL AND expires_at < ?)`, time.Now()).
		Error
}

// pruneOrphanedDocuments removes files in the document directory that no
// invoice points at anymore.
func pruneOrphanedDocuments(ctx context.Context, s *Store) error {
	dir := s.Config.DocumentDir
	if dir == "" {
		return nil
	}
	var paths []string
	if err := s.db.WithContext(ctx).Model(&Invoice{}).
		Where("document_path <> ''").
		Pluck("document_path", &paths).Error; err != nil {
		return err
	}
	referenced := make(map[string]bool, len(paths))
	for _, p := range paths {
		referenced[filepath.Base(p)] = true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, e := range entries {
		if e.IsDir() || referenced[e.Name()] {
			continue
		}
		fi, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		// Keep very recent files, a render may still be in flight.
		if fi.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}

// vacuumAnalyze runs database cleanup commands depending on DB engine.
func vacuumAnalyze(ctx context.Context, s *Store) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	switch s.db.Dialector.Name() {
	case "postgres":
		_, err = sqlDB.ExecContext(ctx, "VACUUM (ANALYZE)")
	case "sqlite":
		_, err = sqlDB.ExecContext(ctx, "VACUUM")
		if err == nil {
			_, _ = sqlDB.ExecContext(ctx, "PRAGMA optimize")
		}
	}
	return err
}
