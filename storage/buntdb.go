// Package storage provides persistence backends for the append-only trial
// log: an embedded key-value store for lightweight runs and a SQL backend
// for studies that need querying.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/tidwall/buntdb"
	"github.com/tradeforge/walkforward/core"
)

const (
	// DefaultIndexName orders trial retrieval by save time
	DefaultIndexName = "saved_at"
)

// BuntStorage implements core.TrialStorage using BuntDB
type BuntStorage struct {
	lastID int64
	db     *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		SyncPolicy: buntdb.Never,
	}
}

// FromMemory creates an in-memory trial storage with default configuration
func FromMemory() (core.TrialStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// FromFile creates a file-based trial storage with default configuration
func FromFile(file string) (core.TrialStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a new BuntDB storage instance with the specified configuration
func NewBuntStorage(sourceFile string, config BuntConfig) (core.TrialStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(DefaultIndexName, "*", buntdb.IndexJSON("saved_at")); err != nil {
		return nil, fmt.Errorf("failed to create default index: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

// getID generates a unique ID for trial records
func (b *BuntStorage) getID() int64 {
	return atomic.AddInt64(&b.lastID, 1)
}

// SaveTrial appends a trial record to the database
func (b *BuntStorage) SaveTrial(_ context.Context, record *core.TrialRecord) error {
	// Use a context-aware version if BuntDB adds context support in future
	return b.db.Update(func(tx *buntdb.Tx) error {
		if record.ID == 0 {
			record.ID = b.getID()
		}

		content, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal trial: %w", err)
		}

		key := strconv.FormatInt(record.ID, 10)
		if _, _, err = tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store trial: %w", err)
		}

		return nil
	})
}

// Trials retrieves the trial log of a study, ordered by save time
func (b *BuntStorage) Trials(_ context.Context, study string) ([]*core.TrialRecord, error) {
	records := make([]*core.TrialRecord, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend(DefaultIndexName, func(key, value string) bool {
			var record core.TrialRecord
			if err := json.Unmarshal([]byte(value), &record); err != nil {
				return true // Continue iteration
			}

			if study != "" && record.Study != study {
				return true
			}

			records = append(records, &record)
			return true
		})

		if err != nil {
			return fmt.Errorf("failed to iterate over trials: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
