package ports

import (
	"context"
	"time"

	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/types"
)

// MediaTool issues external transcode/extract/crop/burn/mute operations.
// Implementations must invoke tools with argument vectors only, never
// shell-interpreted strings.
type MediaTool interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
	Extract(ctx context.Context, src string, startSec, endSec float64, out string) error
	CropVertical(ctx context.Context, in, out string) error
	BurnCaptions(ctx context.Context, in, assPath, out string) error
	OverlayHook(ctx context.Context, in, text string, windowSec float64, out string) error
	MuteIntervals(ctx context.Context, in string, intervals []types.Interval, out string) error
	Probe(ctx context.Context, path string) (MediaInfo, error)
}

type MediaInfo struct {
	DurationSec float64
	Width       int
	Height      int
	HasVideo    bool
	HasAudio    bool
	SizeBytes   int64
}

// ASR produces segment and word level timestamps for an audio file.
// workDir holds per-run scratch output the caller is expected to discard.
type ASR interface {
	Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error)
}

// Analyst is the LLM analysis collaborator. It returns raw text; callers
// enforce strict structured parsing of the result.
type Analyst interface {
	Analyze(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Downloader resolves and fetches source videos.
type Downloader interface {
	// Resolve validates the URL (allow-listed domain, HTTPS, no private
	// addresses) and returns the validated form before any request is made.
	Resolve(url string) (string, error)
	Download(ctx context.Context, url, destDir string) (DownloadResult, error)
	Info(ctx context.Context, url string) (DownloadInfo, error)
}

type DownloadResult struct {
	FilePath    string
	Title       string
	DurationSec float64
}

type DownloadInfo struct {
	Title       string
	DurationSec float64
	Uploader    string
	ID          string
}

// Poster publishes one video to one platform.
type Poster interface {
	Platform() model.Platform
	PostVideo(ctx context.Context, path, caption string, account *model.Account) (PostResult, error)
	// CanPostNow reports whether the account is within platform rate limits,
	// based on elapsed time since its last successful post.
	CanPostNow(account *model.Account, now time.Time) bool
}

type PostResult struct {
	PlatformPostID string
	PostedAt       time.Time
	PostURL        string
}
