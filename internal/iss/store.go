package iss

import (
	"sync/atomic"
	"time"
)

// Store keeps the most recent satellite position. There is no history.
type Store struct {
	latest    atomic.Pointer[Position]
	updatedAt atomic.Int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the latest position, or nil if none has been recorded.
func (s *Store) Get() *Position {
	return s.latest.Load()
}

// Set atomically replaces the latest position.
func (s *Store) Set(p Position) {
	s.latest.Store(&p)
	s.updatedAt.Store(time.Now().UnixNano())
}

// AgeSeconds returns the seconds since the last Set, or -1 when empty.
func (s *Store) AgeSeconds() float64 {
	ns := s.updatedAt.Load()
	if ns == 0 {
		return -1
	}
	return time.Since(time.Unix(0, ns)).Seconds()
}
