package model

import "strings"

// Transcript is the raw result of a transcription collaborator.
type Transcript struct {
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}

type TranscriptSegment struct {
	Speaker    SpeakerID `json:"speaker"`
	Text       string    `json:"text"`
	Start      float64   `json:"start"`
	End        float64   `json:"end"`
	Confidence float64   `json:"confidence"`
}

// Text joins segment texts with a single space.
func (x *Transcript) Text() string {
	parts := make([]string, 0, len(x.Segments))
	for _, seg := range x.Segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// Summary is the condensed view of a session transcript.
type Summary struct {
	Highlight    string   `json:"highlight"`
	BulletPoints []string `json:"bullet_points"`
}

// SpeechAudio is a synthesized speech payload.
type SpeechAudio struct {
	Text     string
	Voice    string
	Encoding string
	Payload  []byte
}
