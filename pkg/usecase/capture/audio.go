package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/giji/pkg/vad"
	"github.com/m-mizutani/goerr/v2"
)

// AppendAudio buffers raw samples on the session. A positive trimTo keeps
// only the newest trimTo samples; a nil trimTo leaves the buffer unbounded.
// Returns the buffered sample count.
func (s *Store) AppendAudio(id model.SessionID, samples []float64, trimTo *int) (int, error) {
	if len(samples) == 0 {
		return 0, goerr.Wrap(model.ErrInvalidArgument, "samples must not be empty")
	}
	if trimTo != nil && *trimTo <= 0 {
		return 0, goerr.Wrap(model.ErrInvalidArgument, "trim_to must be positive", goerr.V("trimTo", *trimTo))
	}

	e, err := s.entryOf(id)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	limit := 0
	if trimTo != nil {
		limit = *trimTo
	}
	return e.session.AppendAudio(samples, limit), nil
}

// AudioSamples returns a copy of the buffered samples, limited to the newest
// maxSamples when positive, plus the total buffered count.
func (s *Store) AudioSamples(id model.SessionID, maxSamples int) ([]float64, int, error) {
	e, err := s.entryOf(id)
	if err != nil {
		return nil, 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.AudioSamples(maxSamples), len(e.session.AudioBuffer), nil
}

// ProcessInput gates one ingestion run over the session's audio buffer.
// Threshold and MinRun are explicit; resolve defaults at the edge.
type ProcessInput struct {
	Threshold      float64
	MinRun         int
	TranscriptHint string
	ClearBuffer    bool
}

// ProcessResult describes one ingestion run.
type ProcessResult struct {
	Session     *model.Session
	Triggered   bool
	Spans       []vad.Span
	Segments    []model.Segment
	NewSpeakers []model.SpeakerID
	Buffered    int
}

// ProcessBuffer scans the whole audio buffer for active spans and, when any
// qualify, feeds a description of them through transcription and
// diarization onto the timeline. Without qualifying spans the session is
// left untouched. ClearBuffer empties the buffer after a triggered run.
func (s *Store) ProcessBuffer(ctx context.Context, id model.SessionID, input ProcessInput) (*ProcessResult, error) {
	if input.MinRun < 1 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "min_run must be >= 1", goerr.V("minRun", input.MinRun))
	}

	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	session := e.session
	spans := vad.Detect(session.AudioBuffer, input.Threshold, input.MinRun)
	result := &ProcessResult{
		Spans:       spans,
		Segments:    []model.Segment{},
		NewSpeakers: []model.SpeakerID{},
	}
	if len(spans) == 0 {
		result.Session = session.Clone()
		result.Buffered = len(session.AudioBuffer)
		return result, nil
	}

	segments, newSpeakers, err := s.runPipeline(ctx, session, describeSpans(spans, "buffer", input.TranscriptHint))
	if err != nil {
		return nil, err
	}
	result.Triggered = true
	result.Segments = segments
	result.NewSpeakers = newSpeakers

	if input.ClearBuffer {
		session.ClearAudio()
	}
	result.Session = session.Clone()
	result.Buffered = len(session.AudioBuffer)
	return result, nil
}

// IngestInput is a one-shot detection over caller-provided samples; the
// session's own buffer is not involved.
type IngestInput struct {
	Samples        []float64
	Threshold      float64
	MinRun         int
	TranscriptHint string
}

// IngestResult describes one ingest attempt.
type IngestResult struct {
	Session     *model.Session
	Triggered   bool
	Spans       []vad.Span
	Segments    []model.Segment
	NewSpeakers []model.SpeakerID
}

// Ingest runs detection over the provided samples and appends diarized
// segments when speech qualifies.
func (s *Store) Ingest(ctx context.Context, id model.SessionID, input IngestInput) (*IngestResult, error) {
	if len(input.Samples) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "samples must not be empty")
	}
	if input.MinRun < 1 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "min_run must be >= 1", goerr.V("minRun", input.MinRun))
	}

	e, err := s.entryOf(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	spans := vad.Detect(input.Samples, input.Threshold, input.MinRun)
	result := &IngestResult{
		Spans:       spans,
		Segments:    []model.Segment{},
		NewSpeakers: []model.SpeakerID{},
	}
	if len(spans) == 0 {
		result.Session = e.session.Clone()
		return result, nil
	}

	segments, newSpeakers, err := s.runPipeline(ctx, e.session, describeSpans(spans, "speech", input.TranscriptHint))
	if err != nil {
		return nil, err
	}
	result.Triggered = true
	result.Segments = segments
	result.NewSpeakers = newSpeakers
	result.Session = e.session.Clone()
	return result, nil
}

// runPipeline transcribes the described speech and appends the diarized
// segments. The caller holds the session lock.
func (s *Store) runPipeline(ctx context.Context, session *model.Session, description string) ([]model.Segment, []model.SpeakerID, error) {
	transcript, err := s.transcriber.Transcribe(ctx, description, session.Language)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "transcription failed", goerr.V("sessionID", session.ID))
	}

	segments, err := s.diarizer.Diarize(ctx, transcript)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "diarization failed", goerr.V("sessionID", session.ID))
	}

	newSpeakers := session.AppendSegments(segments)
	logging.From(ctx).Debug("ingestion pipeline appended segments",
		"sessionID", session.ID,
		"segments", len(segments),
		"newSpeakers", len(newSpeakers),
	)
	return segments, newSpeakers, nil
}

// describeSpans renders detected spans as the synthetic utterance handed to
// the transcriber, e.g. "standup: buffer 1-3; buffer 6-8".
func describeSpans(spans []vad.Span, kind, hint string) string {
	parts := make([]string, 0, len(spans))
	for _, span := range spans {
		parts = append(parts, fmt.Sprintf("%s %d-%d", kind, span.Start, span.End))
	}

	text := strings.Join(parts, "; ")
	if hint != "" {
		text = hint + ": " + text
	}
	return text
}
