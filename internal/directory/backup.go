package directory

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"classbook/internal/config"

	"github.com/rs/zerolog"
)

// BackupService periodically snapshots the directory database and the JSON
// store files into timestamped directories under the backup storage path.
type BackupService struct {
	dbPath  string
	dataDir string
	config  config.BackupConfig
	logger  *zerolog.Logger
}

func NewBackupService(dbPath, dataDir string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath:  dbPath,
		dataDir: dataDir,
		config:  cfg,
		logger:  logger,
	}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Backup service started")

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("Failed to parse backup schedule, using default 24h")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first backup immediately
	if err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

// PerformBackup writes one timestamped backup directory holding a VACUUM
// INTO copy of the directory database and a plain copy of every JSON
// snapshot in the data dir.
func (s *BackupService) PerformBackup() error {
	timestamp := time.Now().Format("20060102_150405")
	backupDir := filepath.Join(s.config.StoragePath, "backup_"+timestamp)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	s.logger.Info().Str("path", backupDir).Msg("Performing backup")

	if err := s.backupDatabase(filepath.Join(backupDir, filepath.Base(s.dbPath))); err != nil {
		return err
	}
	if err := s.backupSnapshots(backupDir); err != nil {
		return err
	}

	s.logger.Info().Msg("Backup completed successfully")
	return nil
}

func (s *BackupService) backupDatabase(backupPath string) error {
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	// VACUUM INTO is a safe online backup; fall back to a file copy when
	// the sqlite build does not support it.
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		return copyFile(s.dbPath, backupPath)
	}
	return nil
}

func (s *BackupService) backupSnapshots(backupDir string) error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		src := filepath.Join(s.dataDir, entry.Name())
		dst := filepath.Join(backupDir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("failed to copy snapshot %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func copyFile(srcPath, dstPath string) error {
	source, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer destination.Close()

	_, err = io.Copy(destination, source)
	return err
}

func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "backup_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", entry.Name()).Msg("Deleting old backup")
			os.RemoveAll(filepath.Join(s.config.StoragePath, entry.Name()))
		}
	}
}
