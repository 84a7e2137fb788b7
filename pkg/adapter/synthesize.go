package adapter

import (
	"context"
	"strings"

	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/model"
)

// DefaultVoice is applied by callers when a synthesis request omits one.
const DefaultVoice = "fa-IR-Standard-A"

// textSynthesizer emits the text itself as the speech payload, which keeps
// the synthesis contract exercisable without an audio model.
type textSynthesizer struct{}

// NewTextSynthesizer creates the offline synthesis collaborator.
func NewTextSynthesizer() interfaces.Synthesizer {
	return &textSynthesizer{}
}

func (x *textSynthesizer) Synthesize(ctx context.Context, text, voice string) (*model.SpeechAudio, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	cleaned := strings.TrimSpace(text)
	return &model.SpeechAudio{
		Text:     cleaned,
		Voice:    voice,
		Encoding: "text/utf-8",
		Payload:  []byte(cleaned),
	}, nil
}
