package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTranscript() Transcript {
	return Transcript{Segments: []Segment{
		{Start: 0, End: 4.5, Text: "Welcome back to the show.", Words: []Word{
			{Start: 0, End: 0.6, Word: "Welcome"},
			{Start: 0.6, End: 1.0, Word: "back"},
		}},
		{Start: 4.5, End: 9.2, Text: "Today we talk about databases.", Words: []Word{
			{Start: 4.5, End: 5.0, Word: "Today"},
		}},
		{Start: 9.2, End: 12.0, Text: "   "},
	}}
}

func TestTranscriptText(t *testing.T) {
	got := sampleTranscript().Text()
	want := "[0.0s - 4.5s] Welcome back to the show.\n[4.5s - 9.2s] Today we talk about databases."
	assert.Equal(t, want, got)
}

func TestTranscriptEmpty(t *testing.T) {
	assert.True(t, Transcript{}.Empty())
	assert.True(t, Transcript{Segments: []Segment{{Text: "  "}}}.Empty())
	assert.False(t, sampleTranscript().Empty())
}

func TestWordsInRangeInclusive(t *testing.T) {
	tr := sampleTranscript()

	words := tr.WordsInRange(0.6, 4.5)
	if assert.Len(t, words, 3) {
		assert.Equal(t, "Welcome", words[0].Word) // ends exactly at range start
		assert.Equal(t, "back", words[1].Word)
		assert.Equal(t, "Today", words[2].Word) // starts exactly at range end
	}

	assert.Empty(t, tr.WordsInRange(20, 30))
}

func TestExcerptTextOverlapInclusive(t *testing.T) {
	tr := sampleTranscript()

	// Range touching the first segment's end pulls it in.
	got := tr.ExcerptText(4.5, 8)
	want := "[0.0s] Welcome back to the show.\n[4.5s] Today we talk about databases."
	assert.Equal(t, want, got)

	assert.Equal(t, "", tr.ExcerptText(50, 60))
}
