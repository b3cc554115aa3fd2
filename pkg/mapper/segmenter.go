package mapper

import "strings"

// Segment is one coded statement extracted from free text. An empty Code
// falls back to the section's code.
type Segment struct {
	System  string
	Code    string
	Display string
	Value   string
}

// Segmenter splits report narrative into findings.
type Segmenter interface {
	Segment(text string) []Segment
}

// WordSegmenter emits one uncoded finding per whitespace-separated word.
type WordSegmenter struct{}

func (WordSegmenter) Segment(text string) []Segment {
	words := strings.Fields(text)
	segments := make([]Segment, 0, len(words))
	for _, word := range words {
		segments = append(segments, Segment{Value: word})
	}
	return segments
}
