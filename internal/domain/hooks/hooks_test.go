package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/types"
)

type fakeAnalyst struct {
	response string
	err      error
	user     string
}

func (f *fakeAnalyst) Analyze(_ context.Context, _, user string) (string, error) {
	f.user = user
	return f.response, f.err
}

func sampleTranscript() types.Transcript {
	return types.Transcript{Segments: []types.Segment{
		{Start: 0, End: 10, Text: "Intro rambling."},
		{Start: 10, End: 20, Text: "The big claim lands here."},
		{Start: 20, End: 30, Text: "And the payoff follows."},
		{Start: 30, End: 40, Text: "Unrelated outro."},
	}}
}

func TestGenerate(t *testing.T) {
	fa := &fakeAnalyst{response: `{"hooks":[
		{"hook_text":"He said WHAT?","caption_text":"You won't believe this. #clips #viral #wow","style_tag":"curiosity"},
		{"hook_text":"The claim nobody checks","caption_text":"Fact or fiction? #clips #facts #truth","style_tag":"bold_claim"},
		{"hook_text":"Why this matters","caption_text":"Here's why. #clips #explained #learn","style_tag":"question"}]}`}
	w := NewWriter(fa)

	variants, err := w.Generate(context.Background(), sampleTranscript(), 12, 28)
	require.NoError(t, err)
	require.Len(t, variants, 3)
	assert.Equal(t, "He said WHAT?", variants[0].HookText)
	assert.Equal(t, "curiosity", variants[0].StyleTag)

	// The excerpt covers every overlapping segment, including the two that
	// only partially overlap the range.
	assert.Contains(t, fa.user, "[10.0s] The big claim lands here.")
	assert.Contains(t, fa.user, "[20.0s] And the payoff follows.")
	assert.NotContains(t, fa.user, "Unrelated outro")
}

func TestGenerateNoSegmentsInRange(t *testing.T) {
	w := NewWriter(&fakeAnalyst{response: `{"hooks":[]}`})
	_, err := w.Generate(context.Background(), sampleTranscript(), 500, 600)
	assert.ErrorIs(t, err, faults.ErrAnalysis)
}

func TestParseVariants(t *testing.T) {
	t.Run("strips fences", func(t *testing.T) {
		raw := "```json\n{\"hooks\":[{\"hook_text\":\"h\",\"caption_text\":\"c\",\"style_tag\":\"story\"}]}\n```"
		got, err := parseVariants(raw)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "story", got[0].StyleTag)
	})

	t.Run("rejects empty hook list", func(t *testing.T) {
		_, err := parseVariants(`{"hooks":[]}`)
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})

	t.Run("rejects blank hook text", func(t *testing.T) {
		_, err := parseVariants(`{"hooks":[{"hook_text":" ","caption_text":"c","style_tag":"story"}]}`)
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})

	t.Run("rejects prose", func(t *testing.T) {
		_, err := parseVariants("Sure! Here are some hooks.")
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})
}
