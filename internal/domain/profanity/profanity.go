package profanity

import (
	"strings"

	"github.com/clipforge/clipforge/internal/types"
)

// MuteBuffer pads each flagged word on both sides so the mute covers the
// word's attack and tail.
const MuteBuffer = 0.05

var lexicon = map[string]struct{}{
	"fuck":         {},
	"fucking":      {},
	"fucked":       {},
	"fucker":       {},
	"motherfucker": {},
	"shit":         {},
	"shitty":       {},
	"bullshit":     {},
	"bitch":        {},
	"bitches":      {},
	"asshole":      {},
	"assholes":     {},
	"cunt":         {},
	"dick":         {},
	"dickhead":     {},
	"pussy":        {},
	"bastard":      {},
	"damn":         {},
	"goddamn":      {},
	"goddamnit":    {},
	"cock":         {},
	"whore":        {},
	"slut":         {},
	"nigger":       {},
	"nigga":        {},
	"faggot":       {},
	"retard":       {},
	"retarded":     {},
}

// Flagged reports whether the spoken word is in the mute lexicon. Matching
// normalizes case and strips everything but letters, so "F*ck!" and
// "Shit," still match when ASR passes punctuation through.
func Flagged(w string) bool {
	_, ok := lexicon[normalize(w)]
	return ok
}

func normalize(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MuteIntervals returns clip-local intervals covering every flagged word
// whose span overlaps [startSec, endSec] of the source transcript, boundary
// words included. Each interval is padded by buffer, clamped at zero, and
// adjacent intervals are merged.
func MuteIntervals(tr types.Transcript, startSec, endSec, buffer float64) []types.Interval {
	var out []types.Interval
	for _, w := range tr.WordsInRange(startSec, endSec) {
		if !Flagged(w.Word) {
			continue
		}
		iv := types.Interval{
			Start: w.Start - startSec - buffer,
			End:   w.End - startSec + buffer,
		}
		if iv.Start < 0 {
			iv.Start = 0
		}
		if last := len(out) - 1; last >= 0 && iv.Start <= out[last].End {
			if iv.End > out[last].End {
				out[last].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
