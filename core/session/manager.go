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

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// MaxSessions bounds the fixed-size slot array spec.md's session store
// requires; libspdm defaults to 4 concurrent sessions per connection.
const MaxSessions = 4

// Store is a fixed-size array of session slots. Allocate scans for the
// first free slot; Find does a linear search by session id. The connection
// actor (core/connection) is responsible for serializing concurrent
// callers, but Store's own mutex makes it safe to call from a background
// key-update or teardown path too.
type Store struct {
	mu    sync.Mutex
	slots [MaxSessions]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{}
}

// Allocate reserves the first free slot for sess. Returns
// SESSION_LIMIT_EXCEEDED if every slot is occupied.
func (s *Store) Allocate(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, slot := range s.slots {
		if slot == nil {
			s.slots[i] = sess
			return nil
		}
	}
	return spdmerr.New("session.Store.Allocate", spdmerr.CodeSessionLimitExceeded)
}

// Find returns the session with the given id, or false if none is active.
func (s *Store) Find(sessionID uint32) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.slots {
		if slot != nil && slot.ID == sessionID {
			return slot, true
		}
	}
	return nil, false
}

// Close zeroes sess's key material and frees its slot.
func (s *Store) Close(sessionID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, slot := range s.slots {
		if slot != nil && slot.ID == sessionID {
			slot.Close()
			s.slots[i] = nil
			return
		}
	}
}

// CloseAll tears down every active session, e.g. on connection reset.
func (s *Store) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, slot := range s.slots {
		if slot != nil {
			slot.Close()
			s.slots[i] = nil
		}
	}
}

// Count reports the number of occupied slots.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.slots {
		if slot != nil {
			n++
		}
	}
	return n
}
