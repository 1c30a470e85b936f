package extraction

import (
	"sync"
	"time"

	"cardscan-backend/internal/cards"
)

// SessionResultSet is the accumulated output shown to one session.
type SessionResultSet struct {
	Records   []cards.Record              `json:"records"`
	Archive   map[string][]map[string]any `json:"archive"`
	Replies   map[string]string           `json:"replies"`
	Notices   []Notice                    `json:"notices"`
	LastRunID string                      `json:"lastRunId,omitempty"`
	UpdatedAt time.Time                   `json:"updatedAt,omitempty"`
}

type sessionEntry struct {
	set     SessionResultSet
	running bool
}

// Sessions keeps result sets in memory, keyed by session id.
type Sessions struct {
	mu   sync.Mutex
	sets map[string]*sessionEntry
}

// NewSessions constructs an empty registry.
func NewSessions() *Sessions {
	return &Sessions{sets: make(map[string]*sessionEntry)}
}

// Get returns a copy of the session's result set.
func (s *Sessions) Get(session string) SessionResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sets[session]
	if !ok {
		return emptySet()
	}
	return copySet(e.set)
}

// Begin marks a run as started. It fails with ErrRunInProgress if one is already running.
func (s *Sessions) Begin(session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(session)
	if e.running {
		return ErrRunInProgress
	}
	e.running = true
	return nil
}

// End marks a run as finished without changing results.
func (s *Sessions) End(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sets[session]; ok {
		e.running = false
	}
}

// Commit replaces the session's result set with a run's output and ends the run.
// Every run covers the whole working directory, so nothing from earlier runs
// (edits included) survives.
func (s *Sessions) Commit(session, runID string, res Result) SessionResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(session)
	e.running = false
	e.set = emptySet()
	e.set.Records = append(e.set.Records, res.Records...)
	for name, entries := range res.Archive {
		e.set.Archive[name] = entries
	}
	for name, raw := range res.Replies {
		e.set.Replies[name] = raw
	}
	e.set.Notices = append(e.set.Notices, res.Notices...)
	e.set.LastRunID = runID
	e.set.UpdatedAt = time.Now().UTC()
	return copySet(e.set)
}

// ReplaceRecords swaps in an edited grid.
func (s *Sessions) ReplaceRecords(session string, records []cards.Record) SessionResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(session)
	e.set.Records = append([]cards.Record{}, records...)
	e.set.UpdatedAt = time.Now().UTC()
	return copySet(e.set)
}

// Reset drops the session's result set and releases the guard taken with Begin.
func (s *Sessions) Reset(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, session)
}

func (s *Sessions) entry(session string) *sessionEntry {
	e, ok := s.sets[session]
	if !ok {
		e = &sessionEntry{set: emptySet()}
		s.sets[session] = e
	}
	return e
}

func emptySet() SessionResultSet {
	return SessionResultSet{
		Records: []cards.Record{},
		Archive: map[string][]map[string]any{},
		Replies: map[string]string{},
		Notices: []Notice{},
	}
}

func copySet(in SessionResultSet) SessionResultSet {
	out := emptySet()
	out.Records = append(out.Records, in.Records...)
	for k, v := range in.Archive {
		out.Archive[k] = v
	}
	for k, v := range in.Replies {
		out.Replies[k] = v
	}
	out.Notices = append(out.Notices, in.Notices...)
	out.LastRunID = in.LastRunID
	out.UpdatedAt = in.UpdatedAt
	return out
}
