package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// DefaultMaxPoints caps summary bullet points when the caller does not.
const DefaultMaxPoints = 5

// heuristicSummarizer summarizes without a model: the first sentence becomes
// the highlight and the longest sentences become the bullet points.
type heuristicSummarizer struct{}

// NewHeuristicSummarizer creates the deterministic fallback summarizer.
func NewHeuristicSummarizer() interfaces.Summarizer {
	return &heuristicSummarizer{}
}

func (x *heuristicSummarizer) Summarize(ctx context.Context, transcript string, maxPoints int) (*model.Summary, error) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	sentences := splitSentences(transcript)
	summary := &model.Summary{BulletPoints: []string{}}
	if len(sentences) == 0 {
		return summary, nil
	}

	summary.Highlight = sentences[0]

	ranked := append([]string{}, sentences...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return utf8.RuneCountInString(ranked[i]) > utf8.RuneCountInString(ranked[j])
	})
	if len(ranked) > maxPoints {
		ranked = ranked[:maxPoints]
	}
	summary.BulletPoints = ranked

	return summary, nil
}

func splitSentences(text string) []string {
	cleaned := strings.Join(strings.Fields(text), " ")
	sentences := []string{}
	for _, part := range strings.Split(cleaned, ".") {
		if v := strings.TrimSpace(part); v != "" {
			sentences = append(sentences, v)
		}
	}
	return sentences
}

// geminiSummarizer asks Gemini for a structured summary and falls back to
// the heuristic summarizer when the model call fails.
type geminiSummarizer struct {
	gemini   Gemini
	fallback interfaces.Summarizer
}

// NewGeminiSummarizer creates the model-backed summarizer.
func NewGeminiSummarizer(gemini Gemini) interfaces.Summarizer {
	return &geminiSummarizer{
		gemini:   gemini,
		fallback: NewHeuristicSummarizer(),
	}
}

func (x *geminiSummarizer) Summarize(ctx context.Context, transcript string, maxPoints int) (*model.Summary, error) {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if strings.TrimSpace(transcript) == "" {
		return &model.Summary{BulletPoints: []string{}}, nil
	}

	summary, err := x.generate(ctx, transcript, maxPoints)
	if err != nil {
		logging.From(ctx).Warn("summary generation failed, using heuristic fallback", "error", err)
		return x.fallback.Summarize(ctx, transcript, maxPoints)
	}
	return summary, nil
}

func (x *geminiSummarizer) generate(ctx context.Context, transcript string, maxPoints int) (*model.Summary, error) {
	prompt := fmt.Sprintf(
		"Summarize the following meeting transcript in its own language. Provide a one-sentence highlight and up to %d bullet points.\n\n%s",
		maxPoints, transcript)

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"highlight": {
					Type:        genai.TypeString,
					Description: "One-sentence highlight of the meeting",
				},
				"bullet_points": {
					Type:        genai.TypeArray,
					Description: "Key points in the order they were discussed",
					Items: &genai.Schema{
						Type: genai.TypeString,
					},
				},
			},
			Required: []string{"highlight", "bullet_points"},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate summary")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var payload struct {
		Highlight    string   `json:"highlight"`
		BulletPoints []string `json:"bullet_points"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &payload); err != nil {
		return nil, goerr.Wrap(err, "failed to parse summary response", goerr.V("response", rawJSON))
	}

	if payload.BulletPoints == nil {
		payload.BulletPoints = []string{}
	}
	if len(payload.BulletPoints) > maxPoints {
		payload.BulletPoints = payload.BulletPoints[:maxPoints]
	}

	return &model.Summary{
		Highlight:    payload.Highlight,
		BulletPoints: payload.BulletPoints,
	}, nil
}
