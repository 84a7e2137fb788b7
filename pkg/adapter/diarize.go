package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/model"
)

// hashDiarizer derives a stable pseudo speaker identity from the utterance
// text, so identical utterances map to the same speaker across runs.
type hashDiarizer struct{}

// NewHashDiarizer creates the deterministic diarization collaborator.
func NewHashDiarizer() interfaces.Diarizer {
	return &hashDiarizer{}
}

func (x *hashDiarizer) Diarize(ctx context.Context, transcript *model.Transcript) ([]model.Segment, error) {
	segments := make([]model.Segment, 0, len(transcript.Segments))
	for _, seg := range transcript.Segments {
		segments = append(segments, model.Segment{
			Speaker: speakerFor(seg.Text),
			Text:    seg.Text,
		})
	}
	return segments, nil
}

func speakerFor(text string) model.SpeakerID {
	if text == "" {
		return "unknown"
	}
	digest := sha256.Sum256([]byte(text))
	return model.SpeakerID("speaker-" + hex.EncodeToString(digest[:])[:8])
}
