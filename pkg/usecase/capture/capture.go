// Package capture owns the live session registry and the audio-triggered
// ingestion pipeline: buffered samples are gated by voice activity
// detection, qualifying speech is handed to the transcription and
// diarization collaborators, and the results land on the session timeline.
package capture

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Store is the concurrency-safe session registry. Every mutating operation
// on a session runs under that session's own mutex; results are handed out
// as deep copies, never as pointers into guarded state.
type Store struct {
	mu      sync.RWMutex
	entries map[model.SessionID]*entry

	transcriber interfaces.Transcriber
	diarizer    interfaces.Diarizer
	summarizer  interfaces.Summarizer
	clock       func() time.Time
}

// entry pairs a session with the mutex serializing its mutations.
type entry struct {
	mu      sync.Mutex
	session *model.Session
}

// NewInput contains the collaborators a Store orchestrates
type NewInput struct {
	Transcriber interfaces.Transcriber
	Diarizer    interfaces.Diarizer
	Summarizer  interfaces.Summarizer
}

// Option is a functional option for Store
type Option func(*Store)

// WithClock overrides the session creation time source
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates an empty session store
func New(input NewInput, opts ...Option) *Store {
	s := &Store{
		entries:     map[model.SessionID]*entry{},
		transcriber: input.Transcriber,
		diarizer:    input.Diarizer,
		summarizer:  input.Summarizer,
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) entryOf(id model.SessionID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrSessionNotFound, "unknown session", goerr.V("sessionID", id))
	}
	return e, nil
}

// Create registers a new session. Creating an ID that is already live is
// rejected; Restore is the explicit overwrite path.
func (s *Store) Create(id model.SessionID, language, title string, agenda []string) (*model.Session, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "session_id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; ok {
		return nil, goerr.Wrap(model.ErrSessionExists, "session already registered", goerr.V("sessionID", id))
	}

	session := model.NewSession(id, language, s.clock())
	if title != "" {
		session.UpdateMetadata(&title, nil)
	}
	if len(agenda) > 0 {
		session.UpdateMetadata(nil, &agenda)
	}
	s.entries[id] = &entry{session: session}

	return session.Clone(), nil
}

// Get returns a copy of the session state.
func (s *Store) Get(id model.SessionID) (*model.Session, error) {
	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Exists reports whether the session is live.
func (s *Store) Exists(id model.SessionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Delete drops the session, reporting whether it was live.
func (s *Store) Delete(id model.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// SessionIDs returns the live session IDs in lexicographic order.
func (s *Store) SessionIDs() []model.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]model.SessionID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear drops every session.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[model.SessionID]*entry{}
}
