package profanity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/types"
)

func TestFlagged(t *testing.T) {
	assert.True(t, Flagged("fuck"))
	assert.True(t, Flagged("Shit,"))
	assert.True(t, Flagged("DAMN!"))
	assert.False(t, Flagged("duck"))
	assert.False(t, Flagged(""))
	assert.False(t, Flagged("123"))
}

func trWithWords(words ...types.Word) types.Transcript {
	return types.Transcript{Segments: []types.Segment{{Start: 0, End: 100, Words: words}}}
}

func TestMuteIntervalsBufferAndClipLocal(t *testing.T) {
	tr := trWithWords(
		types.Word{Start: 15.0, End: 15.3, Word: "shit"},
	)

	got := MuteIntervals(tr, 10, 40, MuteBuffer)
	require.Len(t, got, 1)
	assert.InDelta(t, 4.95, got[0].Start, 1e-9)
	assert.InDelta(t, 5.35, got[0].End, 1e-9)
}

func TestMuteIntervalsClampAtZero(t *testing.T) {
	tr := trWithWords(
		types.Word{Start: 10.0, End: 10.2, Word: "damn"},
	)

	got := MuteIntervals(tr, 10, 40, MuteBuffer)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Start)
	assert.InDelta(t, 0.25, got[0].End, 1e-9)
}

func TestMuteIntervalsMergeAdjacent(t *testing.T) {
	tr := trWithWords(
		types.Word{Start: 20.0, End: 20.3, Word: "fucking"},
		types.Word{Start: 20.35, End: 20.6, Word: "shit"},
		types.Word{Start: 30.0, End: 30.2, Word: "damn"},
	)

	got := MuteIntervals(tr, 10, 40, MuteBuffer)
	require.Len(t, got, 2)

	// First two words pad into each other and merge.
	assert.InDelta(t, 9.95, got[0].Start, 1e-9)
	assert.InDelta(t, 10.65, got[0].End, 1e-9)

	assert.InDelta(t, 19.95, got[1].Start, 1e-9)
	assert.InDelta(t, 20.25, got[1].End, 1e-9)
}

func TestMuteIntervalsIncludesBoundaryWords(t *testing.T) {
	// Words touching either clip edge are still muted.
	tr := trWithWords(
		types.Word{Start: 9.7, End: 10.0, Word: "shit"},
		types.Word{Start: 40.0, End: 40.3, Word: "damn"},
	)

	got := MuteIntervals(tr, 10, 40, MuteBuffer)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].Start)
	assert.InDelta(t, 0.05, got[0].End, 1e-9)
	assert.InDelta(t, 29.95, got[1].Start, 1e-9)
	assert.InDelta(t, 30.35, got[1].End, 1e-9)
}

func TestMuteIntervalsIgnoresOutsideRange(t *testing.T) {
	tr := trWithWords(
		types.Word{Start: 5.0, End: 5.2, Word: "shit"},
		types.Word{Start: 50.0, End: 50.2, Word: "shit"},
	)
	assert.Empty(t, MuteIntervals(tr, 10, 40, MuteBuffer))
}

func TestMuteIntervalsCleanSpeech(t *testing.T) {
	tr := trWithWords(
		types.Word{Start: 12.0, End: 12.4, Word: "hello"},
		types.Word{Start: 12.4, End: 12.9, Word: "world"},
	)
	assert.Empty(t, MuteIntervals(tr, 10, 40, MuteBuffer))
}
