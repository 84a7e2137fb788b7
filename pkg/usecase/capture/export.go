package capture

import (
	"context"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Summary summarizes the session transcript accumulated so far. maxPoints
// caps the bullet points; zero or negative falls back to the summarizer's
// default.
func (s *Store) Summary(ctx context.Context, id model.SessionID, maxPoints int) (*model.Summary, error) {
	snapshot, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarizer.Summarize(ctx, snapshot.TranscriptText(), maxPoints)
	if err != nil {
		return nil, goerr.Wrap(err, "summarization failed", goerr.V("sessionID", id))
	}
	return summary, nil
}

// Export derives the portable record of the session: a consistent snapshot
// is taken under the session lock, summarized, and serialized without the
// audio buffer.
func (s *Store) Export(ctx context.Context, id model.SessionID) (*model.Export, error) {
	snapshot, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarizer.Summarize(ctx, snapshot.TranscriptText(), 0)
	if err != nil {
		return nil, goerr.Wrap(err, "summarization failed", goerr.V("sessionID", id))
	}
	return snapshot.Export(*summary), nil
}

// Restore registers a session rebuilt from an export, replacing any live
// session with the same ID. The audio buffer starts empty.
func (s *Store) Restore(export *model.Export) *model.Session {
	session := model.RestoreSession(export)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[session.ID] = &entry{session: session}

	return session.Clone()
}
