package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/model"
)

// offlineTranscriber is a deterministic transcriber for environments without
// a speech model: the content is treated as already-spoken text and becomes
// a single unattributed segment.
type offlineTranscriber struct{}

// NewOfflineTranscriber creates the offline transcription collaborator.
func NewOfflineTranscriber() interfaces.Transcriber {
	return &offlineTranscriber{}
}

func (x *offlineTranscriber) Transcribe(ctx context.Context, content, language string) (*model.Transcript, error) {
	if language == "" {
		language = model.DefaultLanguage
	}
	transcript := &model.Transcript{
		Language: language,
		Segments: []model.TranscriptSegment{},
	}

	cleaned := strings.TrimSpace(content)
	if cleaned == "" {
		return transcript, nil
	}

	transcript.Segments = append(transcript.Segments, model.TranscriptSegment{
		Speaker:    "unknown",
		Text:       cleaned,
		Confidence: 1.0,
	})
	return transcript, nil
}
