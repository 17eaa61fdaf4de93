package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

const (
	// Transcripts above this size get analyzed in overlapping windows so a
	// single request never exceeds the model's useful context.
	maxSingleRequestChars = 32000
	windowChars           = 24000
	windowOverlapChars    = 4000

	MinClipSec = 30
	MaxClipSec = 90

	// Windows overlapping this much of the shorter moment count as the same
	// moment during dedup.
	dedupOverlapRatio = 0.5
)

// Moment is one clip-worthy range the analysis model found.
type Moment struct {
	StartSec   float64
	EndSec     float64
	ViralScore int
	Reasoning  string
}

// Detector asks the analysis model for clip-worthy moments in a transcript.
type Detector struct {
	analyst ports.Analyst
}

func NewDetector(analyst ports.Analyst) *Detector {
	return &Detector{analyst: analyst}
}

// Detect returns at most maxMoments moments, best score first. A transcript
// too long for one request is windowed and the per-window results merged.
// An empty transcript has no moments and is not an error.
func (d *Detector) Detect(ctx context.Context, tr types.Transcript, maxMoments int) ([]Moment, error) {
	if tr.Empty() || maxMoments <= 0 {
		return nil, nil
	}

	text := tr.Text()
	windowed := len(text) > maxSingleRequestChars

	var all []Moment
	for _, w := range windows(text) {
		moments, err := d.detectOne(ctx, w, maxMoments)
		if err != nil {
			return nil, err
		}
		all = append(all, moments...)
	}

	if windowed {
		all = dedup(all)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ViralScore > all[j].ViralScore })
	if len(all) > maxMoments {
		all = all[:maxMoments]
	}
	return all, nil
}

func (d *Detector) detectOne(ctx context.Context, transcriptText string, maxMoments int) ([]Moment, error) {
	user := fmt.Sprintf(userPromptTemplate, maxMoments, MinClipSec, MaxClipSec, transcriptText)
	raw, err := d.analyst.Analyze(ctx, SystemPrompt, user)
	if err != nil {
		return nil, err
	}
	return parseMoments(raw)
}

// parseMoments enforces the response contract. A response that does not
// match the schema is an error, never silently reinterpreted.
func parseMoments(raw string) ([]Moment, error) {
	clean, err := stripFences(raw)
	if err != nil {
		return nil, err
	}

	var out struct {
		Moments []struct {
			StartSec   float64 `json:"start_sec"`
			EndSec     float64 `json:"end_sec"`
			ViralScore int     `json:"viral_score"`
			Reasoning  string  `json:"reasoning"`
		} `json:"moments"`
	}
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: parse moments response: %v", faults.ErrAnalysis, err)
	}

	moments := make([]Moment, 0, len(out.Moments))
	for i, m := range out.Moments {
		if m.EndSec <= m.StartSec {
			return nil, fmt.Errorf("%w: moment %d has end %.1f <= start %.1f", faults.ErrAnalysis, i, m.EndSec, m.StartSec)
		}
		if m.ViralScore < 0 || m.ViralScore > 100 {
			return nil, fmt.Errorf("%w: moment %d has score %d outside 0..100", faults.ErrAnalysis, i, m.ViralScore)
		}
		moments = append(moments, Moment{
			StartSec:   m.StartSec,
			EndSec:     m.EndSec,
			ViralScore: m.ViralScore,
			Reasoning:  strings.TrimSpace(m.Reasoning),
		})
	}
	return moments, nil
}

func stripFences(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("%w: empty analysis response", faults.ErrAnalysis)
	}
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	if !strings.HasPrefix(t, "{") {
		return "", fmt.Errorf("%w: response is not a JSON object", faults.ErrAnalysis)
	}
	return t, nil
}

// windows splits serialized transcript text on line boundaries into chunks
// of at most windowChars, each carrying windowOverlapChars of trailing
// context from the previous chunk. Short text yields one window.
func windows(text string) []string {
	if len(text) <= maxSingleRequestChars {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var out []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, strings.Join(cur, "\n"))

		// Seed the next window with the tail of this one.
		var overlap []string
		overlapLen := 0
		for i := len(cur) - 1; i >= 0; i-- {
			lineLen := len(cur[i]) + 1
			if overlapLen+lineLen > windowOverlapChars {
				break
			}
			overlap = append([]string{cur[i]}, overlap...)
			overlapLen += lineLen
		}
		cur = overlap
		curLen = overlapLen
	}

	for _, line := range lines {
		lineLen := len(line) + 1
		if curLen+lineLen > windowChars && curLen > 0 {
			flush()
		}
		cur = append(cur, line)
		curLen += lineLen
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, "\n"))
	}
	return out
}

// dedup collapses moments that cover mostly the same range, which happens
// when a moment falls inside the overlap between two windows. The survivor
// is the higher-scored one; on equal scores the earlier-kept one stays.
func dedup(moments []Moment) []Moment {
	if len(moments) < 2 {
		return moments
	}
	sorted := make([]Moment, len(moments))
	copy(sorted, moments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartSec < sorted[j].StartSec })

	out := sorted[:1]
	for _, m := range sorted[1:] {
		last := &out[len(out)-1]
		if overlapRatio(*last, m) > dedupOverlapRatio {
			if m.ViralScore > last.ViralScore {
				*last = m
			}
			continue
		}
		out = append(out, m)
	}
	return out
}

func overlapRatio(a, b Moment) float64 {
	start := a.StartSec
	if b.StartSec > start {
		start = b.StartSec
	}
	end := a.EndSec
	if b.EndSec < end {
		end = b.EndSec
	}
	overlap := end - start
	if overlap <= 0 {
		return 0
	}
	shorter := a.EndSec - a.StartSec
	if d := b.EndSec - b.StartSec; d < shorter {
		shorter = d
	}
	if shorter <= 0 {
		return 0
	}
	return overlap / shorter
}
