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
	"sort"
	"sync"
	"time"
)

// RateLimiterConfig tunes the bounded-memory guard in front of PAKE
// attempts (spec §4.7).
type RateLimiterConfig struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	LockoutDuration time.Duration
	MaxRecords      int
	AttemptTTL      time.Duration
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig matches the values named in spec §4.7.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxAttempts:     5,
		BaseBackoff:     time.Second,
		MaxBackoff:      time.Hour,
		LockoutDuration: 15 * time.Minute,
		MaxRecords:      50000,
		AttemptTTL:      10 * time.Minute,
		CleanupInterval: 60 * time.Second,
	}
}

type record struct {
	failedAttempts int
	lastFailure    time.Time
	backoffLevel   int
	lockoutUntil   time.Time
}

// RateLimiter is the sole writer of its own state (spec §5): bounded
// per-identifier failure tracking with exponential backoff and lockout.
type RateLimiter struct {
	mu          sync.Mutex
	records     map[string]*record
	lastCleanup time.Time
	cfg         RateLimiterConfig
	now         func() time.Time
}

// NewRateLimiter constructs a rate limiter with cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		records: make(map[string]*record),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Allow reports whether identifier may attempt a PAKE exchange right
// now. When false, it also returns how long the caller must wait.
func (rl *RateLimiter) Allow(identifier string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cleanupLocked()

	r, ok := rl.records[identifier]
	if !ok {
		return true, 0
	}
	now := rl.now()

	if now.Before(r.lockoutUntil) {
		return false, r.lockoutUntil.Sub(now)
	}
	wait := backoffDuration(rl.cfg, r.backoffLevel)
	nextAllowed := r.lastFailure.Add(wait)
	if now.Before(nextAllowed) {
		return false, nextAllowed.Sub(now)
	}
	return true, 0
}

// RecordFailure registers a failed attempt for identifier, advancing its
// backoff level and, once the failure count reaches MaxAttempts, placing
// it into lockout.
func (rl *RateLimiter) RecordFailure(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cleanupLocked()

	r, ok := rl.records[identifier]
	if !ok {
		if len(rl.records) >= rl.cfg.MaxRecords {
			rl.evictOldestLocked()
		}
		r = &record{}
		rl.records[identifier] = r
	}

	now := rl.now()
	r.failedAttempts++
	r.lastFailure = now
	r.backoffLevel++
	if r.failedAttempts >= rl.cfg.MaxAttempts {
		r.lockoutUntil = now.Add(rl.cfg.LockoutDuration)
	}
}

// RecordSuccess clears any attempt/lockout state for identifier (spec
// §4.7: "successful PAKE completion clears both attempt and lockout
// records for that identifier").
func (rl *RateLimiter) RecordSuccess(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.records, identifier)
}

// backoffDuration implements min(base * 2^min(level,20), max).
func backoffDuration(cfg RateLimiterConfig, level int) time.Duration {
	if level > 20 {
		level = 20
	}
	d := cfg.BaseBackoff << uint(level)
	if d <= 0 || d > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return d
}

// cleanupLocked runs opportunistic cleanup at most once per
// CleanupInterval: expired attempt records (lastFailure older than
// AttemptTTL, and no live lockout) are dropped. Caller holds rl.mu.
func (rl *RateLimiter) cleanupLocked() {
	now := rl.now()
	if !rl.lastCleanup.IsZero() && now.Sub(rl.lastCleanup) < rl.cfg.CleanupInterval {
		return
	}
	rl.lastCleanup = now

	for id, r := range rl.records {
		if now.Before(r.lockoutUntil) {
			continue
		}
		if now.Sub(r.lastFailure) > rl.cfg.AttemptTTL {
			delete(rl.records, id)
		}
	}
}

// evictOldestLocked drops the 10% oldest records by lastFailure when at
// MaxRecords capacity. Caller holds rl.mu.
func (rl *RateLimiter) evictOldestLocked() {
	type aged struct {
		id   string
		last time.Time
	}
	all := make([]aged, 0, len(rl.records))
	for id, r := range rl.records {
		all = append(all, aged{id, r.lastFailure})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].last.Before(all[j].last) })

	evictCount := len(all) / 10
	if evictCount == 0 {
		evictCount = 1
	}
	for i := 0; i < evictCount && i < len(all); i++ {
		delete(rl.records, all[i].id)
	}
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.records)
}
