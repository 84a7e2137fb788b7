package model

import (
	"fmt"
	"strings"
	"time"
)

// Export is the durable point-in-time snapshot of a session: metadata, the
// labeled timeline and the generated summary. It is self-contained and
// round-trips losslessly through JSON.
type Export struct {
	SessionID SessionID       `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
	Language  string          `json:"language"`
	Title     string          `json:"title,omitempty"`
	Agenda    []string        `json:"agenda"`
	Segments  []SegmentRecord `json:"segments"`
	Summary   Summary         `json:"summary"`
}

// Export snapshots the session with the given summary. The session's audio
// buffer is intentionally not part of the snapshot.
func (x *Session) Export(summary Summary) *Export {
	if summary.BulletPoints == nil {
		summary.BulletPoints = []string{}
	}
	return &Export{
		SessionID: x.ID,
		CreatedAt: x.CreatedAt,
		Language:  x.Language,
		Title:     x.Title,
		Agenda:    append([]string{}, x.Agenda...),
		Segments:  x.SerializedSegments(),
		Summary:   summary,
	}
}

// RestoreSession rebuilds an in-memory session from a snapshot. Speaker
// labels are re-derived from segment records carrying a non-null label and
// the audio buffer starts empty.
func RestoreSession(export *Export) *Session {
	s := NewSession(export.SessionID, export.Language, export.CreatedAt)
	s.Title = export.Title
	s.Agenda = append([]string{}, export.Agenda...)
	for _, rec := range export.Segments {
		s.Segments = append(s.Segments, Segment{Speaker: rec.Speaker, Text: rec.Text})
		if rec.SpeakerLabel != nil {
			s.SpeakerLabels[rec.Speaker] = *rec.SpeakerLabel
		}
	}
	return s
}

// DisplayName returns the speaker's label, falling back to the speaker ID.
func (x SegmentRecord) DisplayName() string {
	if x.SpeakerLabel != nil && *x.SpeakerLabel != "" {
		return *x.SpeakerLabel
	}
	return string(x.Speaker)
}

func (x *Export) heading() string {
	if x.Title != "" {
		return x.Title
	}
	return string(x.SessionID)
}

// RenderMarkdown renders the export as a human-readable meeting note.
func (x *Export) RenderMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", x.heading())
	fmt.Fprintf(&b, "- Session: %s\n", x.SessionID)
	fmt.Fprintf(&b, "- Created: %s\n", x.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Language: %s\n", x.Language)
	if len(x.Agenda) > 0 {
		fmt.Fprintf(&b, "- Agenda: %s\n", strings.Join(x.Agenda, "; "))
	}

	b.WriteString("\n## Summary\n\n")
	if x.Summary.Highlight != "" {
		fmt.Fprintf(&b, "%s\n\n", x.Summary.Highlight)
	}
	for _, point := range x.Summary.BulletPoints {
		fmt.Fprintf(&b, "- %s\n", point)
	}

	b.WriteString("\n## Transcript\n\n")
	for _, rec := range x.Segments {
		fmt.Fprintf(&b, "- **%s**: %s\n", rec.DisplayName(), rec.Text)
	}
	return b.String()
}

// RenderText renders the export as plain text.
func (x *Export) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", x.heading())
	fmt.Fprintf(&b, "Session: %s\n", x.SessionID)
	fmt.Fprintf(&b, "Created: %s\n", x.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Language: %s\n", x.Language)
	if len(x.Agenda) > 0 {
		fmt.Fprintf(&b, "Agenda: %s\n", strings.Join(x.Agenda, "; "))
	}

	if x.Summary.Highlight != "" || len(x.Summary.BulletPoints) > 0 {
		fmt.Fprintf(&b, "\nSummary: %s\n", x.Summary.Highlight)
		for _, point := range x.Summary.BulletPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
	}

	b.WriteString("\nTranscript:\n")
	for _, rec := range x.Segments {
		fmt.Fprintf(&b, "%s: %s\n", rec.DisplayName(), rec.Text)
	}
	return b.String()
}
