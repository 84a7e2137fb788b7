package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type SpeakerID string

const (
	DefaultLanguage      = "fa"
	DefaultRedactionText = "[redacted]"
)

// Segment is one diarized utterance in a session timeline.
type Segment struct {
	Speaker SpeakerID `json:"speaker"`
	Text    string    `json:"text"`
}

// SegmentRecord is the serialized view of a segment with the speaker's
// display label resolved. SpeakerLabel is null when the speaker has no label.
type SegmentRecord struct {
	Speaker      SpeakerID `json:"speaker"`
	SpeakerLabel *string   `json:"speaker_label"`
	Text         string    `json:"text"`
}

// Metadata is the mutable descriptive part of a session.
type Metadata struct {
	Title  *string  `json:"title"`
	Agenda []string `json:"agenda"`
}

// Session is the mutable aggregate of one capture: identity, metadata, the
// diarized segment timeline, speaker display labels and the raw audio buffer.
// Session itself is not goroutine safe; concurrent access is serialized by
// the owning store.
type Session struct {
	ID        SessionID
	Language  string
	CreatedAt time.Time
	Title     string
	Agenda    []string

	Segments      []Segment
	SpeakerLabels map[SpeakerID]string
	AudioBuffer   []float64
}

// NewSession creates an empty session. An empty language falls back to
// DefaultLanguage.
func NewSession(id SessionID, language string, createdAt time.Time) *Session {
	if language == "" {
		language = DefaultLanguage
	}
	return &Session{
		ID:            id,
		Language:      language,
		CreatedAt:     createdAt.UTC(),
		SpeakerLabels: map[SpeakerID]string{},
	}
}

// AppendSegments adds segments to the timeline and returns the speakers that
// had no display label at call time, in order of appearance. A speaker
// repeated within one batch is reported once per occurrence, matching the
// label-map state when the batch started.
func (x *Session) AppendSegments(segments []Segment) []SpeakerID {
	newSpeakers := []SpeakerID{}
	for _, seg := range segments {
		if _, ok := x.SpeakerLabels[seg.Speaker]; !ok {
			newSpeakers = append(newSpeakers, seg.Speaker)
		}
		x.Segments = append(x.Segments, seg)
	}
	return newSpeakers
}

// LabelSpeaker assigns a display name to a speaker. Existing segments are
// untouched; only the label mapping changes.
func (x *Session) LabelSpeaker(id SpeakerID, displayName string) {
	x.SpeakerLabels[id] = displayName
}

// ForgetSpeaker removes the speaker's display label and rewrites every
// segment attributed to the speaker with redactionText (DefaultRedactionText
// when empty). Returns the number of rewritten segments. Irreversible.
func (x *Session) ForgetSpeaker(id SpeakerID, redactionText string) int {
	if redactionText == "" {
		redactionText = DefaultRedactionText
	}
	delete(x.SpeakerLabels, id)

	var scrubbed int
	for i := range x.Segments {
		if x.Segments[i].Speaker == id {
			x.Segments[i].Text = redactionText
			scrubbed++
		}
	}
	return scrubbed
}

// AppendAudio extends the audio buffer. When trimTo is positive and the
// buffer grew past it, samples are dropped from the front so exactly the
// most recent trimTo samples remain. Returns the buffered sample count.
func (x *Session) AppendAudio(samples []float64, trimTo int) int {
	x.AudioBuffer = append(x.AudioBuffer, samples...)
	if trimTo > 0 && len(x.AudioBuffer) > trimTo {
		x.AudioBuffer = x.AudioBuffer[len(x.AudioBuffer)-trimTo:]
	}
	return len(x.AudioBuffer)
}

// AudioSamples returns a copy of the buffer, limited to the most recent
// maxSamples when positive.
func (x *Session) AudioSamples(maxSamples int) []float64 {
	samples := x.AudioBuffer
	if maxSamples > 0 && len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	out := make([]float64, len(samples))
	copy(out, samples)
	return out
}

// ClearAudio empties the audio buffer.
func (x *Session) ClearAudio() {
	x.AudioBuffer = nil
}

// UpdateMetadata applies the provided fields; nil means leave unchanged.
// Titles are trimmed (whitespace-only clears the title) and agenda entries
// are trimmed with empties dropped.
func (x *Session) UpdateMetadata(title *string, agenda *[]string) {
	if title != nil {
		x.Title = strings.TrimSpace(*title)
	}
	if agenda != nil {
		entries := make([]string, 0, len(*agenda))
		for _, entry := range *agenda {
			if v := strings.TrimSpace(entry); v != "" {
				entries = append(entries, v)
			}
		}
		x.Agenda = entries
	}
}

// Metadata returns the title/agenda view. The title is null when unset.
func (x *Session) Metadata() Metadata {
	meta := Metadata{Agenda: append([]string{}, x.Agenda...)}
	if x.Title != "" {
		title := x.Title
		meta.Title = &title
	}
	return meta
}

// TranscriptText joins all segment texts with a single space, in timeline
// order. This is the summarizer input.
func (x *Session) TranscriptText() string {
	parts := make([]string, 0, len(x.Segments))
	for _, seg := range x.Segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// SerializedSegments resolves display labels into the timeline view.
func (x *Session) SerializedSegments() []SegmentRecord {
	records := make([]SegmentRecord, 0, len(x.Segments))
	for _, seg := range x.Segments {
		rec := SegmentRecord{Speaker: seg.Speaker, Text: seg.Text}
		if label, ok := x.SpeakerLabels[seg.Speaker]; ok {
			rec.SpeakerLabel = &label
		}
		records = append(records, rec)
	}
	return records
}

// Search returns the serialized segments whose text contains query,
// case-insensitively.
func (x *Session) Search(query string) []SegmentRecord {
	needle := strings.ToLower(query)
	results := []SegmentRecord{}
	for _, rec := range x.SerializedSegments() {
		if strings.Contains(strings.ToLower(rec.Text), needle) {
			results = append(results, rec)
		}
	}
	return results
}

// Clone returns a deep copy safe to hand across goroutines.
func (x *Session) Clone() *Session {
	c := *x
	c.Agenda = append([]string{}, x.Agenda...)
	c.Segments = append([]Segment{}, x.Segments...)
	c.SpeakerLabels = make(map[SpeakerID]string, len(x.SpeakerLabels))
	for k, v := range x.SpeakerLabels {
		c.SpeakerLabels[k] = v
	}
	c.AudioBuffer = append([]float64{}, x.AudioBuffer...)
	return &c
}
