package captions

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/types"
)

// StyleWordHighlight is recorded on generated clips whose captions use the
// per-word highlight renderer.
const StyleWordHighlight = "word_highlight"

const wordsPerLine = 5

// Render produces an ASS subtitle document for the clip spanning
// [startSec, endSec] of the source transcript. Event times are clip-local.
// Each line shows up to five words with the currently spoken word
// highlighted; when word timestamps are missing the whole text is shown for
// the clip duration instead.
func Render(tr types.Transcript, startSec, endSec float64) (string, error) {
	if endSec <= startSec {
		return "", fmt.Errorf("invalid caption range %.1f..%.1f", startSec, endSec)
	}
	words := collectWords(tr, startSec, endSec)
	if len(words) == 0 {
		text := collectSegmentText(tr, startSec, endSec)
		if text == "" {
			return "", fmt.Errorf("no transcript text in %.1f..%.1f", startSec, endSec)
		}
		return renderPlain(text, endSec-startSec), nil
	}
	return renderHighlight(packLines(words)), nil
}

type word struct {
	Start float64
	End   float64
	Text  string
}

type line struct {
	Start float64
	End   float64
	Words []word
}

func collectWords(tr types.Transcript, startSec, endSec float64) []word {
	var out []word
	for _, w := range tr.WordsInRange(startSec, endSec) {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		ws := w.Start - startSec
		we := w.End - startSec
		if ws < 0 {
			ws = 0
		}
		if max := endSec - startSec; we > max {
			we = max
		}
		out = append(out, word{Start: ws, End: we, Text: sanitize(text)})
	}
	return out
}

func collectSegmentText(tr types.Transcript, startSec, endSec float64) string {
	var parts []string
	for _, s := range tr.Segments {
		if s.End <= startSec || s.Start >= endSec {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return sanitize(strings.Join(parts, " "))
}

func packLines(words []word) []line {
	var out []line
	for len(words) > 0 {
		n := wordsPerLine
		if n > len(words) {
			n = len(words)
		}
		out = append(out, line{
			Start: words[0].Start,
			End:   words[n-1].End,
			Words: words[:n],
		})
		words = words[n:]
	}
	return out
}

// renderHighlight emits one event per word: the full line is shown with the
// active word colored yellow, so the highlight walks the line as speech
// progresses.
func renderHighlight(lines []line) string {
	var b strings.Builder
	b.WriteString(header())
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ln := range lines {
		for i, w := range ln.Words {
			start := w.Start
			end := w.End
			if i == len(ln.Words)-1 {
				end = ln.End
			}
			b.WriteString("Dialogue: 0,")
			b.WriteString(assTime(start))
			b.WriteString(",")
			b.WriteString(assTime(end))
			b.WriteString(",Clip,,0,0,0,,")
			for j, other := range ln.Words {
				if j > 0 {
					b.WriteString(" ")
				}
				if j == i {
					b.WriteString("{\\c&H00FFFF&}")
					b.WriteString(other.Text)
					b.WriteString("{\\c&HFFFFFF&}")
				} else {
					b.WriteString(other.Text)
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderPlain(text string, durSec float64) string {
	var b strings.Builder
	b.WriteString(header())
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	b.WriteString("Dialogue: 0,0:00:00.00,")
	b.WriteString(assTime(durSec))
	b.WriteString(",Clip,,0,0,0,,")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}

func header() string {
	return strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Clip, Montserrat, 96, &H00FFFFFF, &H0000FFFF, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,6,2,2, 90,90,320,1
`)
}

func assTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int(sec * 100)
	cs := total % 100
	s := (total / 100) % 60
	m := (total / 6000) % 60
	h := total / 360000
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}
