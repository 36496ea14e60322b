// Package runlog persists one row per batch-job run (see pkg/jobconfig)
// to a SQLite database, grounded on the teacher's pkg/database GORM
// repository pattern.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dbehnke/convcode/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

// Config holds run-history database configuration.
type Config struct {
	Path string // Path to SQLite database file
}

// Store wraps the GORM connection backing the run-history table.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open creates or opens the run-history database at cfg.Path, running
// migrations. A nil log discards GORM's own logging output.
func Open(cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "convcode-runs.db"
	}
	if log == nil {
		log = logger.New(logger.Config{Level: "error"})
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run-history directory: %w", err)
		}
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path,
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open run-history database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("run-history database initialized", logger.String("path", cfg.Path))

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts a completed run into the history table.
func (s *Store) Record(r *Run) error {
	return s.db.Create(r).Error
}

// Recent returns the most recent limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// ByJobName returns the most recent limit runs for a given job name.
func (s *Store) ByJobName(name string, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.Where("job_name = ?", name).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// gormLogAdapter routes GORM's log writer calls through *logger.Logger.
type gormLogAdapter struct {
	log *logger.Logger
}

func (a *gormLogAdapter) Printf(format string, args ...interface{}) {
	a.log.Warn(fmt.Sprintf(format, args...))
}
