// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore implements storage.Store on BadgerDB.
//
// BadgerDB gives the engine low-latency embedded persistence without an
// external service dependency. In-memory mode backs the test suite.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/kodiak/services/engine/storage"
)

// Config holds configuration for a Badger-backed store.
type Config struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to a negative value to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC
	// rewrites a value log file. Default: 0.5.
	GCDiscardRatio float64

	// Logger receives Badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes, 5-minute GC.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: in-memory, no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		GCInterval: -1,
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the Badger-backed storage.Store implementation.
type Store struct {
	db     *badger.DB
	gcDone chan struct{}
	gcStop chan struct{}
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if necessary) a Badger-backed store.
//
// # Outputs
//
//   - *Store: Ready for use. Caller must Close() when done.
//   - error: Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	s := &Store{
		db:     db,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}

	interval := cfg.GCInterval
	if interval == 0 {
		interval = 5 * time.Minute
	}
	ratio := cfg.GCDiscardRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	if interval > 0 && !cfg.InMemory {
		go s.runGC(interval, ratio)
	} else {
		close(s.gcDone)
	}

	return s, nil
}

// Put stores value under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or storage.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get %q: %w", key, storage.ErrKeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return out, nil
}

// Delete removes key. Absent keys are not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// List returns all key-value pairs under prefix.
func (s *Store) List(_ context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[string(item.Key())] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	return out, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	select {
	case <-s.gcStop:
		// Already closed.
	default:
		close(s.gcStop)
	}
	<-s.gcDone
	return s.db.Close()
}

// runGC triggers value log garbage collection on the configured
// interval. badger.ErrNoRewrite just means there was nothing to collect.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(ratio); err != nil {
					break
				}
			}
		case <-s.gcStop:
			return
		}
	}
}
