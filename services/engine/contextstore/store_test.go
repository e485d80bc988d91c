// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contextstore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/kodiak/services/engine/datatypes"
)

func newTestStore(t *testing.T) (*Store, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	return NewStore(clock, nil, nil), clock
}

func TestStore_CreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)

	id, err := s.Create("session-1", "user-1", time.Hour)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sc, err := s.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sc.SessionID != "session-1" || sc.UserID != "user-1" {
		t.Errorf("ownership = %q/%q, want session-1/user-1", sc.SessionID, sc.UserID)
	}
	if !sc.ExpiresAt.Equal(sc.CreatedAt.Add(time.Hour)) {
		t.Errorf("expires_at = %v, want created_at + 1h", sc.ExpiresAt)
	}
}

func TestStore_CreateRejectsNonPositiveTTL(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create("s", "u", 0); err == nil {
		t.Error("expected an error for zero ttl")
	}
	if _, err := s.Create("s", "u", -time.Minute); err == nil {
		t.Error("expected an error for negative ttl")
	}
}

func TestStore_LazyExpiryOnGet(t *testing.T) {
	s, clock := newTestStore(t)
	id, _ := s.Create("s", "u", time.Hour)

	// One second before the deadline: readable.
	clock.Advance(time.Hour - time.Second)
	if _, err := s.Get(id); err != nil {
		t.Fatalf("get before expiry failed: %v", err)
	}

	// Past the deadline: unreadable with the expiry error, even though
	// no sweep ever ran.
	clock.Advance(2 * time.Second)
	_, err := s.Get(id)
	if !errors.Is(err, datatypes.ErrContextExpired) {
		t.Errorf("get after expiry error = %v, want ErrContextExpired", err)
	}

	// The detected-expired entry was evicted; the ID is now unknown.
	_, err = s.Get(id)
	if !errors.Is(err, datatypes.ErrContextNotFound) {
		t.Errorf("get after eviction error = %v, want ErrContextNotFound", err)
	}
}

func TestStore_LazyExpiryOnPut(t *testing.T) {
	s, clock := newTestStore(t)
	id, _ := s.Create("s", "u", time.Minute)

	clock.Advance(2 * time.Minute)
	err := s.Put(id, "comp-a", map[string]any{"k": "v"})
	if !errors.Is(err, datatypes.ErrContextExpired) {
		t.Errorf("put after expiry error = %v, want ErrContextExpired", err)
	}
}

func TestStore_PutAndFilteredGet(t *testing.T) {
	s, _ := newTestStore(t)
	id, _ := s.Create("s", "u", time.Hour)

	if err := s.Put(id, "comp-a", "alpha"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Put(id, "comp-b", "beta"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	full, _ := s.Get(id)
	if len(full.Payloads) != 2 {
		t.Errorf("unfiltered payloads = %v, want both", full.Payloads)
	}

	filtered, _ := s.Get(id, "comp-b")
	if len(filtered.Payloads) != 1 || filtered.Payloads["comp-b"] != "beta" {
		t.Errorf("filtered payloads = %v, want only comp-b", filtered.Payloads)
	}
}

func TestStore_GetReturnsSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	id, _ := s.Create("s", "u", time.Hour)
	s.Put(id, "comp-a", "original")

	sc, _ := s.Get(id)
	sc.Payloads["comp-a"] = "mutated"
	sc.Payloads["intruder"] = "x"

	again, _ := s.Get(id)
	if again.Payloads["comp-a"] != "original" {
		t.Error("mutating a snapshot leaked into the store")
	}
	if _, ok := again.Payloads["intruder"]; ok {
		t.Error("snapshot payload insertion leaked into the store")
	}
}

func TestStore_DeleteIsTerminal(t *testing.T) {
	s, _ := newTestStore(t)
	id, _ := s.Create("s", "u", time.Hour)

	if err := s.Delete(id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.Delete(id); !errors.Is(err, datatypes.ErrContextNotFound) {
		t.Errorf("second delete error = %v, want ErrContextNotFound", err)
	}
	if _, err := s.Get(id); !errors.Is(err, datatypes.ErrContextNotFound) {
		t.Errorf("get after delete error = %v, want ErrContextNotFound", err)
	}
}

func TestStore_PurgeExpiredOnlyRemovesExpired(t *testing.T) {
	s, clock := newTestStore(t)
	short, _ := s.Create("s", "u", time.Minute)
	long, _ := s.Create("s", "u", time.Hour)

	clock.Advance(5 * time.Minute)

	if n := s.PurgeExpired(); n != 1 {
		t.Errorf("purge evicted %d, want 1", n)
	}
	if _, err := s.Get(long); err != nil {
		t.Errorf("unexpired context was purged: %v", err)
	}
	if _, err := s.Get(short); !errors.Is(err, datatypes.ErrContextNotFound) {
		t.Errorf("expired context still present: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_ConcurrentPutsDistinctContexts(t *testing.T) {
	s, _ := newTestStore(t)

	ids := make([]string, 4)
	for i := range ids {
		ids[i], _ = s.Create("s", "u", time.Hour)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if err := s.Put(id, "comp", i); err != nil {
					t.Errorf("put failed: %v", err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		sc, err := s.Get(id)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if sc.Payloads["comp"] != 199 {
			t.Errorf("final payload = %v, want 199", sc.Payloads["comp"])
		}
	}
}

func TestSweeper_RunNowEvicts(t *testing.T) {
	clock := NewFakeClock(time.Now())
	s := NewStore(clock, nil, nil)
	sw := NewSweeper(s, time.Minute, nil)

	s.Create("s", "u", time.Minute)
	s.Create("s", "u", time.Minute)
	clock.Advance(2 * time.Minute)

	if n := sw.RunNow(); n != 2 {
		t.Errorf("sweep evicted %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", s.Len())
	}
}

func TestSweeper_StartStop(t *testing.T) {
	clock := NewFakeClock(time.Now())
	s := NewStore(clock, nil, nil)
	sw := NewSweeper(s, time.Hour, nil)

	if err := sw.Start(t.Context()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sw.Start(t.Context()); err == nil {
		t.Error("second Start should fail while running")
	}
	sw.Stop()
	sw.Stop() // idempotent
}
