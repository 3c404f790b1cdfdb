package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tradeforge/walkforward/core"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLStorage implements core.TrialStorage using a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// FromSQLite creates a new SQLite trial storage with default configuration
func FromSQLite(dbPath string, opts ...gorm.Option) (core.TrialStorage, error) {
	return NewFromSQLite(dbPath, DefaultConfig(), opts...)
}

// NewFromSQLite creates a new SQLite trial storage instance
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (core.TrialStorage, error) {
	dialect := sqlite.Open(dbPath)
	return newFromSQL(dialect, config, opts...)
}

// newFromSQL creates a new SQL storage instance with the specified configuration
func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (core.TrialStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err = db.AutoMigrate(&core.TrialRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// SaveTrial appends a trial record to the database
func (s *SQLStorage) SaveTrial(ctx context.Context, record *core.TrialRecord) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Create(record); result.Error != nil {
		return fmt.Errorf("failed to save trial: %w", result.Error)
	}
	return nil
}

// Trials retrieves the trial log of a study, ordered by save time
func (s *SQLStorage) Trials(ctx context.Context, study string) ([]*core.TrialRecord, error) {
	tx := s.db.WithContext(ctx)

	query := tx.Order("saved_at")
	if study != "" {
		query = query.Where("study = ?", study)
	}

	var records []*core.TrialRecord
	if result := query.Find(&records); result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to fetch trials: %w", result.Error)
	}

	return records, nil
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
