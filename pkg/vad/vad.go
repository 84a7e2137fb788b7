// Package vad implements amplitude-based voice activity detection over raw
// audio samples. It is pure and deterministic; callers decide what to do
// with the detected speech spans.
package vad

import "math"

const (
	DefaultThreshold = 0.01
	DefaultMinRun    = 3
)

// Span is an inclusive index range of consecutive speech samples.
type Span struct {
	Start int `json:"start_index"`
	End   int `json:"end_index"`
}

// Detect scans samples left to right and returns every maximal run of active
// samples (|sample| >= threshold) whose length is at least minRun. Shorter
// runs are discarded, never merged with neighbors. Indices are inclusive and
// spans are returned in ascending order. Callers validate minRun >= 1.
func Detect(samples []float64, threshold float64, minRun int) []Span {
	spans := []Span{}
	run := 0
	for i, sample := range samples {
		if math.Abs(sample) >= threshold {
			run++
			continue
		}
		if run >= minRun {
			spans = append(spans, Span{Start: i - run, End: i - 1})
		}
		run = 0
	}
	if run >= minRun {
		spans = append(spans, Span{Start: len(samples) - run, End: len(samples) - 1})
	}
	return spans
}
