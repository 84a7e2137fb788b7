package interfaces

import (
	"context"

	"github.com/m-mizutani/giji/pkg/model"
)

// Transcriber converts captured audio (or its textual stand-in) into a
// transcript. The language tag is advisory; implementations may override it.
type Transcriber interface {
	Transcribe(ctx context.Context, content, language string) (*model.Transcript, error)
}

// Diarizer attributes transcript segments to speakers.
type Diarizer interface {
	Diarize(ctx context.Context, transcript *model.Transcript) ([]model.Segment, error)
}

// Summarizer condenses transcript text into a highlight and bullet points.
// maxPoints caps the number of bullet points; implementations apply their
// own default when it is not positive.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, maxPoints int) (*model.Summary, error)
}

// Synthesizer renders text into a speech payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*model.SpeechAudio, error)
}
