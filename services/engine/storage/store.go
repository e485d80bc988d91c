// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the persistence collaborator contract for the
// engine. The engine itself only depends on this interface; a concrete
// backend (BadgerDB in-tree, anything else out-of-tree) is injected at
// the composition root and may back the context store and task history
// transparently without changing the orchestrator's contract.
//
// # Key Layout
//
//	context/<id>   serialized SharedContext
//	history/<seq>  serialized OrchestrationResult
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// Store is a minimal key-value persistence contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all key-value pairs whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Close releases backend resources.
	Close() error
}
