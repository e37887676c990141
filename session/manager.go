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

package session

import (
	"sync"
	"time"
)

// Manager owns the lifecycle of all established sessions, one per peer
// (spec §5: multiple peers proceed in parallel, with no cross-peer lock
// on the critical path — each Session carries its own mutex and the
// Manager's map lock is held only for the lookup/insert itself).
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	byPeerAlias   map[string]string // peerAlias -> sessionID, for replacement on bootstrap-assisted recovery
	defaultConfig Config

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewManager creates a session manager and starts its background
// expired-session sweep.
func NewManager(defaultConfig Config) *Manager {
	m := &Manager{
		sessions:      make(map[string]*Session),
		byPeerAlias:   make(map[string]string),
		defaultConfig: withDefaults(defaultConfig),
		cleanupTicker: time.NewTicker(30 * time.Second),
		stopCleanup:   make(chan struct{}),
	}
	go m.runCleanup()
	return m
}

// Install registers a newly-established session, closing and replacing
// any existing session for the same peer alias. This is exactly the
// "resulting session replaces the bootstrap session" step of spec
// §4.11's bootstrap-assisted recovery.
func (m *Manager) Install(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prevID, ok := m.byPeerAlias[sess.PeerAlias()]; ok {
		if prev, ok := m.sessions[prevID]; ok {
			prev.Close()
		}
		delete(m.sessions, prevID)
	}
	m.sessions[sess.ID()] = sess
	m.byPeerAlias[sess.PeerAlias()] = sess.ID()
}

// Get returns the session for id, evicting it first if expired.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if sess.IsExpired() {
		m.Remove(id)
		return nil, false
	}
	return sess, true
}

// GetByPeerAlias returns the current session for a peer, if any.
func (m *Manager) GetByPeerAlias(alias string) (*Session, bool) {
	m.mu.RLock()
	id, ok := m.byPeerAlias[alias]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.Get(id)
}

// Remove closes and forgets the session with id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return
	}
	sess.Close()
	delete(m.sessions, id)
	if m.byPeerAlias[sess.PeerAlias()] == id {
		delete(m.byPeerAlias, sess.PeerAlias())
	}
}

// Count returns the number of currently tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats reports the active/expired split across tracked sessions.
func (m *Manager) Stats() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Status{TotalSessions: len(m.sessions)}
	for _, sess := range m.sessions {
		if sess.IsExpired() {
			stats.ExpiredSessions++
		} else {
			stats.ActiveSessions++
		}
	}
	return stats
}

// Close stops the manager and closes every tracked session.
func (m *Manager) Close() error {
	close(m.stopCleanup)
	m.cleanupTicker.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		sess.Close()
	}
	m.sessions = make(map[string]*Session)
	m.byPeerAlias = make(map[string]string)
	return nil
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.sweepExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.IsExpired() {
			sess.Close()
			delete(m.sessions, id)
			if m.byPeerAlias[sess.PeerAlias()] == id {
				delete(m.byPeerAlias, sess.PeerAlias())
			}
		}
	}
}
