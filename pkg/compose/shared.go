// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"maps"
	"sync"
)

// SharedState is the state shared by every context of a tree. One writer
// at a time: every method holds the state's lock for its duration, and
// Update runs its function under the lock.
type SharedState struct {
	mu     sync.Mutex
	values map[string]any
}

// NewSharedState returns an empty shared state.
func NewSharedState() *SharedState {
	return &SharedState{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *SharedState) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores v under key.
func (s *SharedState) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Delete removes key.
func (s *SharedState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Update replaces the value under key with fn(old, ok) and returns it.
// fn must not call back into s.
func (s *SharedState) Update(key string, fn func(old any, ok bool) any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.values[key]
	v := fn(old, ok)
	s.values[key] = v
	return v
}

// Snapshot returns a shallow copy of every stored value.
func (s *SharedState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}
