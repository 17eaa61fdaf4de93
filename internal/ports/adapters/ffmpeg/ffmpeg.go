package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

// Adapter wraps ffmpeg/ffprobe invocations. Every call uses an argument
// vector, never a shell string, and carries a fixed timeout.
type Adapter struct {
	ffmpeg  string
	ffprobe string
	font    string
	timeout time.Duration
}

func New(ffmpegPath, ffprobePath string, timeout time.Duration) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, timeout: timeout}
}

// SetFont overrides the font file used by the hook overlay.
func (a *Adapter) SetFont(path string) { a.font = path }

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string) error {
	return a.run(ctx, "extract audio",
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
}

// Extract cuts [startSec, endSec] out of src with stream copy; re-seeking
// stays fast and the heavy encode happens once at the crop stage.
func (a *Adapter) Extract(ctx context.Context, src string, startSec, endSec float64, out string) error {
	return a.run(ctx, "extract clip",
		"-y",
		"-ss", fmtSeconds(startSec),
		"-to", fmtSeconds(endSec),
		"-i", src,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		out,
	)
}

func (a *Adapter) CropVertical(ctx context.Context, in, out string) error {
	return a.run(ctx, "crop vertical",
		"-y",
		"-i", in,
		"-vf", "crop=ih*9/16:ih,scale=1080:1920",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		out,
	)
}

func (a *Adapter) BurnCaptions(ctx context.Context, in, assPath, out string) error {
	return a.run(ctx, "burn captions",
		"-y",
		"-i", in,
		"-vf", "ass="+escapeFilterPath(assPath),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "copy",
		out,
	)
}

func (a *Adapter) OverlayHook(ctx context.Context, in, text string, windowSec float64, out string) error {
	return a.run(ctx, "overlay hook",
		"-y",
		"-i", in,
		"-vf", DrawtextFilter(text, a.font, windowSec),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "copy",
		out,
	)
}

func (a *Adapter) MuteIntervals(ctx context.Context, in string, intervals []types.Interval, out string) error {
	if len(intervals) == 0 {
		return a.run(ctx, "copy clip",
			"-y",
			"-i", in,
			"-c", "copy",
			out,
		)
	}
	return a.run(ctx, "mute intervals",
		"-y",
		"-i", in,
		"-af", MuteFilter(intervals),
		"-c:v", "copy",
		out,
	)
}

func (a *Adapter) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	b, err := cmd.Output()
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("%w: ffprobe: %v", faults.ErrMedia, err)
	}

	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("%w: parse ffprobe output: %v", faults.ErrMedia, err)
	}

	info := ports.MediaInfo{}
	if raw.Format.Duration != "" {
		sec, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return ports.MediaInfo{}, fmt.Errorf("%w: parse duration %q: %v", faults.ErrMedia, raw.Format.Duration, err)
		}
		info.DurationSec = sec
	}
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			info.HasVideo = true
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if st, err := os.Stat(path); err == nil {
		info.SizeBytes = st.Size()
	}
	return info, nil
}

func (a *Adapter) run(ctx context.Context, op string, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: ffmpeg %s timed out after %s", faults.ErrMedia, op, a.timeout)
		}
		return fmt.Errorf("%w: ffmpeg %s: %v\n%s", faults.ErrMedia, op, err, string(b))
	}
	return nil
}

// MuteFilter builds a chained volume filter muting each interval.
func MuteFilter(intervals []types.Interval) string {
	parts := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		parts = append(parts, fmt.Sprintf(
			"volume=enable='between(t,%s,%s)':volume=0",
			fmtSeconds(iv.Start), fmtSeconds(iv.End),
		))
	}
	return strings.Join(parts, ",")
}

// DrawtextFilter renders the hook text centered near the top for the
// opening window of the clip.
func DrawtextFilter(text, font string, windowSec float64) string {
	f := "drawtext=text='" + escapeDrawtext(text) + "'"
	if font != "" {
		f += ":fontfile='" + escapeFilterPath(font) + "'"
	}
	f += ":fontsize=48:fontcolor=white:borderw=3:bordercolor=black" +
		":x=(w-text_w)/2:y=h*0.15" +
		fmt.Sprintf(":enable='between(t,0,%s)'", fmtSeconds(windowSec))
	return f
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}

func escapeDrawtext(s string) string {
	// Single quotes end the drawtext argument; swap them for a typographic
	// apostrophe rather than attempting nested quoting.
	s = strings.ReplaceAll(s, "'", "’")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ":", "\\:")
	return s
}

var _ ports.MediaTool = (*Adapter)(nil)
