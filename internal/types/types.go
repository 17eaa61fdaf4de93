package types

import (
	"fmt"
	"strings"
)

type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Interval is a time span in seconds on whatever timeline the caller is
// working on (source or clip-local).
type Interval struct {
	Start float64
	End   float64
}

func (t Transcript) Empty() bool {
	for _, s := range t.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// Text serializes the transcript into timestamped lines, one per segment,
// in the form the analysis prompts expect.
func (t Transcript) Text() string {
	var b strings.Builder
	for _, s := range t.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%.1fs - %.1fs] %s\n", s.Start, s.End, text)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// WordsInRange returns every word whose interval overlaps [start, end],
// inclusive on both ends. Partially overlapping words are included so
// boundary words are not lost.
func (t Transcript) WordsInRange(start, end float64) []Word {
	var out []Word
	for _, s := range t.Segments {
		for _, w := range s.Words {
			if w.End >= start && w.Start <= end {
				out = append(out, w)
			}
		}
	}
	return out
}

// ExcerptText returns timestamped segment text for every segment that
// overlaps [start, end], inclusive on both ends.
func (t Transcript) ExcerptText(start, end float64) string {
	var b strings.Builder
	for _, s := range t.Segments {
		if s.End < start || s.Start > end {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%.1fs] %s\n", s.Start, text)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
