package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/types"
)

type fakeAnalyst struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeAnalyst) Analyze(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func transcriptOfLength(minChars int) types.Transcript {
	var segs []types.Segment
	start := 0.0
	total := 0
	for i := 0; total < minChars; i++ {
		text := fmt.Sprintf("Segment %d talks about something mildly interesting for a while.", i)
		segs = append(segs, types.Segment{Start: start, End: start + 5, Text: text})
		start += 5
		total += len(text) + 20
	}
	return types.Transcript{Segments: segs}
}

func TestDetectSingleRequest(t *testing.T) {
	fa := &fakeAnalyst{responses: []string{
		`{"moments":[{"start_sec":10,"end_sec":55,"viral_score":80,"reasoning":"strong hook"},{"start_sec":100,"end_sec":150,"viral_score":60,"reasoning":"good story"}]}`,
	}}
	d := NewDetector(fa)

	tr := types.Transcript{Segments: []types.Segment{{Start: 0, End: 200, Text: "hello world"}}}
	moments, err := d.Detect(context.Background(), tr, 5)
	require.NoError(t, err)
	require.Len(t, moments, 2)
	assert.Len(t, fa.prompts, 1)

	// Best score first.
	assert.Equal(t, 80, moments[0].ViralScore)
	assert.Equal(t, 10.0, moments[0].StartSec)
	assert.Equal(t, "strong hook", moments[0].Reasoning)
}

func TestDetectEmptyTranscript(t *testing.T) {
	fa := &fakeAnalyst{responses: []string{`{"moments":[]}`}}
	d := NewDetector(fa)

	moments, err := d.Detect(context.Background(), types.Transcript{}, 5)
	require.NoError(t, err)
	assert.Empty(t, moments)
	assert.Empty(t, fa.prompts, "nothing to analyze")

	// Whitespace-only segments count as empty too.
	tr := types.Transcript{Segments: []types.Segment{{Start: 0, End: 5, Text: "   "}}}
	moments, err = d.Detect(context.Background(), tr, 5)
	require.NoError(t, err)
	assert.Empty(t, moments)
}

func TestDetectTruncatesToMax(t *testing.T) {
	fa := &fakeAnalyst{responses: []string{
		`{"moments":[
			{"start_sec":0,"end_sec":40,"viral_score":50,"reasoning":"a"},
			{"start_sec":100,"end_sec":140,"viral_score":90,"reasoning":"b"},
			{"start_sec":200,"end_sec":240,"viral_score":70,"reasoning":"c"}]}`,
	}}
	d := NewDetector(fa)

	tr := types.Transcript{Segments: []types.Segment{{Start: 0, End: 300, Text: "x"}}}
	moments, err := d.Detect(context.Background(), tr, 2)
	require.NoError(t, err)
	require.Len(t, moments, 2)
	assert.Equal(t, 90, moments[0].ViralScore)
	assert.Equal(t, 70, moments[1].ViralScore)
}

func TestDetectWindowsLongTranscript(t *testing.T) {
	fa := &fakeAnalyst{responses: []string{
		`{"moments":[{"start_sec":10,"end_sec":50,"viral_score":70,"reasoning":"w1"}]}`,
		`{"moments":[{"start_sec":12,"end_sec":52,"viral_score":85,"reasoning":"w2"}]}`,
	}}
	d := NewDetector(fa)

	tr := transcriptOfLength(maxSingleRequestChars + 1000)
	moments, err := d.Detect(context.Background(), tr, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(fa.prompts), 2, "long transcript should be analyzed in windows")

	// The near-duplicates from adjacent windows collapse to the higher score.
	require.Len(t, moments, 1)
	assert.Equal(t, 85, moments[0].ViralScore)
}

func TestDetectAnalystError(t *testing.T) {
	boom := errors.New("boom")
	d := NewDetector(&fakeAnalyst{err: boom})

	tr := types.Transcript{Segments: []types.Segment{{Start: 0, End: 10, Text: "x"}}}
	_, err := d.Detect(context.Background(), tr, 5)
	assert.ErrorIs(t, err, boom)
}

func TestParseMoments(t *testing.T) {
	t.Run("strips code fences", func(t *testing.T) {
		raw := "```json\n{\"moments\":[{\"start_sec\":1,\"end_sec\":2,\"viral_score\":10,\"reasoning\":\"r\"}]}\n```"
		moments, err := parseMoments(raw)
		require.NoError(t, err)
		require.Len(t, moments, 1)
	})

	t.Run("rejects end before start", func(t *testing.T) {
		_, err := parseMoments(`{"moments":[{"start_sec":5,"end_sec":5,"viral_score":10,"reasoning":"r"}]}`)
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})

	t.Run("rejects score out of range", func(t *testing.T) {
		_, err := parseMoments(`{"moments":[{"start_sec":1,"end_sec":2,"viral_score":101,"reasoning":"r"}]}`)
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})

	t.Run("rejects prose", func(t *testing.T) {
		_, err := parseMoments("Here are the moments I found: none.")
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		_, err := parseMoments(`{"moments":[],"commentary":"hi"}`)
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})

	t.Run("rejects empty response", func(t *testing.T) {
		_, err := parseMoments("   ")
		assert.ErrorIs(t, err, faults.ErrAnalysis)
	})
}

func TestDedup(t *testing.T) {
	t.Run("higher score replaces overlapping", func(t *testing.T) {
		got := dedup([]Moment{
			{StartSec: 0, EndSec: 40, ViralScore: 50},
			{StartSec: 5, EndSec: 45, ViralScore: 80},
		})
		require.Len(t, got, 1)
		assert.Equal(t, 80, got[0].ViralScore)
	})

	t.Run("equal scores keep the earlier", func(t *testing.T) {
		got := dedup([]Moment{
			{StartSec: 0, EndSec: 40, ViralScore: 70, Reasoning: "first"},
			{StartSec: 5, EndSec: 45, ViralScore: 70, Reasoning: "second"},
		})
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Reasoning)
	})

	t.Run("half overlap keeps both", func(t *testing.T) {
		// Overlap is exactly 50% of the shorter duration, not over it.
		got := dedup([]Moment{
			{StartSec: 0, EndSec: 40, ViralScore: 70},
			{StartSec: 20, EndSec: 60, ViralScore: 60},
		})
		assert.Len(t, got, 2)
	})

	t.Run("disjoint moments untouched", func(t *testing.T) {
		got := dedup([]Moment{
			{StartSec: 0, EndSec: 40, ViralScore: 70},
			{StartSec: 100, EndSec: 140, ViralScore: 60},
		})
		assert.Len(t, got, 2)
	})

	t.Run("chain collapses to single winner", func(t *testing.T) {
		got := dedup([]Moment{
			{StartSec: 0, EndSec: 40, ViralScore: 50},
			{StartSec: 2, EndSec: 42, ViralScore: 90},
			{StartSec: 4, EndSec: 44, ViralScore: 60},
		})
		require.Len(t, got, 1)
		assert.Equal(t, 90, got[0].ViralScore)
	})
}

func TestWindows(t *testing.T) {
	t.Run("short text is one window", func(t *testing.T) {
		got := windows("short text")
		require.Len(t, got, 1)
		assert.Equal(t, "short text", got[0])
	})

	t.Run("long text splits with overlap", func(t *testing.T) {
		text := transcriptOfLength(maxSingleRequestChars + 5000).Text()
		got := windows(text)
		require.Greater(t, len(got), 1)

		for i, w := range got {
			assert.LessOrEqual(t, len(w), windowChars+200, "window %d too large", i)
		}

		// Consecutive windows share trailing/leading lines.
		firstLines := strings.Split(got[0], "\n")
		tail := firstLines[len(firstLines)-1]
		assert.Contains(t, got[1], tail)

		// No line is lost: every source line appears in some window.
		joined := strings.Join(got, "\n")
		for _, line := range strings.Split(text, "\n") {
			assert.Contains(t, joined, line)
		}
	})
}
