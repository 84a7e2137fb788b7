package capture

import (
	"context"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// AppendResult pairs the refreshed session view with the segments added by
// one call and the speakers first seen in that batch.
type AppendResult struct {
	Session     *model.Session
	Appended    []model.Segment
	NewSpeakers []model.SpeakerID
}

// Append adds pre-diarized segments to the session timeline.
func (s *Store) Append(id model.SessionID, segments []model.Segment) (*AppendResult, error) {
	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	newSpeakers := e.session.AppendSegments(segments)
	return &AppendResult{
		Session:     e.session.Clone(),
		Appended:    segments,
		NewSpeakers: newSpeakers,
	}, nil
}

// AppendTranscript runs free text through transcription and diarization and
// appends the result to the timeline.
func (s *Store) AppendTranscript(ctx context.Context, id model.SessionID, transcript string) (*AppendResult, error) {
	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	segments, newSpeakers, err := s.runPipeline(ctx, e.session, transcript)
	if err != nil {
		return nil, err
	}
	return &AppendResult{
		Session:     e.session.Clone(),
		Appended:    segments,
		NewSpeakers: newSpeakers,
	}, nil
}

// Label assigns a human-readable display name to a speaker.
func (s *Store) Label(id model.SessionID, speaker model.SpeakerID, displayName string) (*model.Session, error) {
	if speaker == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "speaker_id must not be empty")
	}

	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.LabelSpeaker(speaker, displayName)
	return e.session.Clone(), nil
}

// ForgetResult reports a privacy scrub.
type ForgetResult struct {
	Session  *model.Session
	Scrubbed int
}

// Forget removes a speaker's label and replaces their utterances with the
// redaction text.
func (s *Store) Forget(id model.SessionID, speaker model.SpeakerID, redactionText string) (*ForgetResult, error) {
	if speaker == "" {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "speaker_id must not be empty")
	}

	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	scrubbed := e.session.ForgetSpeaker(speaker, redactionText)
	return &ForgetResult{
		Session:  e.session.Clone(),
		Scrubbed: scrubbed,
	}, nil
}

// Search returns the serialized segments whose text contains the query,
// ignoring case.
func (s *Store) Search(id model.SessionID, query string) ([]model.SegmentRecord, error) {
	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Search(query), nil
}
