// Package state tracks per-user request state shared between the inbound
// handlers and the two worker loops.
package state

import (
	"sync"

	"github.com/ruvid/rutube-dl-bot/internal/rutube"
)

// Store maps a user to their latest submitted link, their latest resolved
// stream set and the number of outstanding downloads. All writes are
// last-write-wins; there are no transactions across the maps, so a reader
// may observe a fresh link next to a stale stream set. That window is
// accepted: a stale selection simply fails the label lookup.
type Store struct {
	mu       sync.RWMutex
	requests map[int64]string
	streams  map[int64][]rutube.Stream
	pending  map[int64]int
}

func NewStore() *Store {
	return &Store{
		requests: make(map[int64]string),
		streams:  make(map[int64][]rutube.Stream),
		pending:  make(map[int64]int),
	}
}

func (s *Store) SetRequest(user int64, link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[user] = link
}

func (s *Store) Request(user int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[user]
}

func (s *Store) SetStreams(user int64, streams []rutube.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[user] = streams
}

func (s *Store) Streams(user int64) []rutube.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streams[user]
}

// AddPending records a download job for the user. It is called when the
// job is enqueued, before the worker picks it up.
func (s *Store) AddPending(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[user]++
}

// DonePending releases a pending download. Called by the download worker
// on every exit path of a job, terminal state notwithstanding.
func (s *Store) DonePending(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[user] > 1 {
		s.pending[user]--
		return
	}
	delete(s.pending, user)
}

// HasPendingDownload reports whether the user has a download job queued
// or in progress. New link submissions are rejected while it holds.
func (s *Store) HasPendingDownload(user int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[user] > 0
}
