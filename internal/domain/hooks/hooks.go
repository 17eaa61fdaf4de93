package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

const systemPrompt = `You write overlay hooks and captions for short-form vertical video. Hooks are short, punchy, curiosity-driven lines that stop the scroll. Captions pair the hook with a post text including a call to action and a few relevant hashtags.

Respond with strictly valid JSON only. No markdown, no code fences, no commentary outside the JSON object.`

const userPromptTemplate = `Write %d hook and caption variants for this clip excerpt. Each line is one spoken segment with its start time.

Rules:
- hook_text is at most 8 words, no hashtags, no emoji.
- caption_text is the full post text: one or two sentences plus 3 to 5 hashtags.
- style_tag is one of "question", "bold_claim", "curiosity", "list", "story".
- Variants must differ in angle, not just wording.

Return a JSON object with exactly this shape:
{"hooks":[{"hook_text":"...","caption_text":"...","style_tag":"curiosity"}]}

Excerpt:
%s`

// VariantCount is how many hook angles the writer asks for per moment.
const VariantCount = 3

// Variant is one hook and caption pairing for a moment.
type Variant struct {
	HookText    string
	CaptionText string
	StyleTag    string
}

// Writer generates hook variants from a clip's transcript excerpt.
type Writer struct {
	analyst ports.Analyst
}

func NewWriter(analyst ports.Analyst) *Writer {
	return &Writer{analyst: analyst}
}

// Generate returns hook variants for the moment spanning [startSec, endSec].
// The excerpt covers every transcript segment overlapping that range.
func (w *Writer) Generate(ctx context.Context, tr types.Transcript, startSec, endSec float64) ([]Variant, error) {
	excerpt := tr.ExcerptText(startSec, endSec)
	if excerpt == "" {
		return nil, fmt.Errorf("%w: no transcript segments in %.1f..%.1f", faults.ErrAnalysis, startSec, endSec)
	}

	raw, err := w.analyst.Analyze(ctx, systemPrompt, fmt.Sprintf(userPromptTemplate, VariantCount, excerpt))
	if err != nil {
		return nil, err
	}
	return parseVariants(raw)
}

func parseVariants(raw string) ([]Variant, error) {
	t := strings.TrimSpace(raw)
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	var out struct {
		Hooks []struct {
			HookText    string `json:"hook_text"`
			CaptionText string `json:"caption_text"`
			StyleTag    string `json:"style_tag"`
		} `json:"hooks"`
	}
	if err := json.Unmarshal([]byte(t), &out); err != nil {
		return nil, fmt.Errorf("%w: parse hooks response: %v", faults.ErrAnalysis, err)
	}
	if len(out.Hooks) == 0 {
		return nil, fmt.Errorf("%w: hooks response contained no variants", faults.ErrAnalysis)
	}

	variants := make([]Variant, 0, len(out.Hooks))
	for i, h := range out.Hooks {
		hook := strings.TrimSpace(h.HookText)
		caption := strings.TrimSpace(h.CaptionText)
		if hook == "" || caption == "" {
			return nil, fmt.Errorf("%w: variant %d has empty hook or caption", faults.ErrAnalysis, i)
		}
		variants = append(variants, Variant{
			HookText:    hook,
			CaptionText: caption,
			StyleTag:    strings.TrimSpace(h.StyleTag),
		})
	}
	return variants, nil
}
