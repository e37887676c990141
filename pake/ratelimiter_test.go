// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package pake

import (
	"testing"
	"time"
)

func newTestRateLimiter(start time.Time) (*RateLimiter, *time.Time) {
	cur := start
	rl := NewRateLimiter(RateLimiterConfig{
		MaxAttempts:     3,
		BaseBackoff:     time.Second,
		MaxBackoff:      time.Minute,
		LockoutDuration: 5 * time.Minute,
		MaxRecords:      10,
		AttemptTTL:      10 * time.Minute,
		CleanupInterval: time.Minute,
	})
	rl.now = func() time.Time { return cur }
	return rl, &cur
}

func TestRateLimiterAllowsFreshIdentifier(t *testing.T) {
	rl, _ := newTestRateLimiter(time.Unix(1000, 0))
	allowed, _ := rl.Allow("peer-1")
	if !allowed {
		t.Fatal("expected a never-seen identifier to be allowed")
	}
}

func TestRateLimiterBacksOffAfterFailure(t *testing.T) {
	rl, cur := newTestRateLimiter(time.Unix(1000, 0))
	rl.RecordFailure("peer-1")
	allowed, wait := rl.Allow("peer-1")
	if allowed {
		t.Fatal("expected identifier to be backed off immediately after a failure")
	}
	if wait <= 0 {
		t.Fatal("expected a positive wait duration")
	}
	*cur = cur.Add(2 * time.Second)
	if allowed, _ := rl.Allow("peer-1"); !allowed {
		t.Fatal("expected identifier to be allowed again once backoff has elapsed")
	}
}

func TestRateLimiterLocksOutAfterMaxAttempts(t *testing.T) {
	rl, cur := newTestRateLimiter(time.Unix(1000, 0))
	for i := 0; i < 3; i++ {
		rl.RecordFailure("peer-1")
		*cur = cur.Add(time.Minute)
	}
	allowed, wait := rl.Allow("peer-1")
	if allowed {
		t.Fatal("expected identifier to be locked out after MaxAttempts failures")
	}
	if wait <= 0 {
		t.Fatal("expected a positive lockout wait duration")
	}
}

func TestRateLimiterRecordSuccessClearsState(t *testing.T) {
	rl, _ := newTestRateLimiter(time.Unix(1000, 0))
	rl.RecordFailure("peer-1")
	rl.RecordSuccess("peer-1")
	allowed, _ := rl.Allow("peer-1")
	if !allowed {
		t.Fatal("expected RecordSuccess to clear the rate-limit state")
	}
	if rl.Len() != 0 {
		t.Fatalf("expected no tracked records after success, got %d", rl.Len())
	}
}

func TestRateLimiterEvictsOldestAtCapacity(t *testing.T) {
	rl, cur := newTestRateLimiter(time.Unix(1000, 0))
	for i := 0; i < rl.cfg.MaxRecords; i++ {
		rl.RecordFailure(string(rune('a' + i)))
		*cur = cur.Add(time.Second)
	}
	if rl.Len() != rl.cfg.MaxRecords {
		t.Fatalf("expected %d records, got %d", rl.cfg.MaxRecords, rl.Len())
	}
	// one more failure should evict the oldest (10%, at least 1) rather than grow unbounded
	rl.RecordFailure("newcomer")
	if rl.Len() > rl.cfg.MaxRecords {
		t.Fatalf("expected record count to stay bounded, got %d", rl.Len())
	}
	if _, ok := rl.records["a"]; ok {
		t.Fatal("expected the oldest record to have been evicted")
	}
}

func TestRateLimiterCleanupDropsExpiredAttempts(t *testing.T) {
	rl, cur := newTestRateLimiter(time.Unix(1000, 0))
	rl.RecordFailure("peer-1")
	*cur = cur.Add(11 * time.Minute)
	rl.Allow("stale-trigger") // any access runs opportunistic cleanup
	if _, ok := rl.records["peer-1"]; ok {
		t.Fatal("expected expired attempt record to be cleaned up")
	}
}
