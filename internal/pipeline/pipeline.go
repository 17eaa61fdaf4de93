package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/domain/captions"
	"github.com/clipforge/clipforge/internal/domain/hooks"
	"github.com/clipforge/clipforge/internal/domain/profanity"
	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/storage"
)

const (
	// HookWindowSec is how long the hook overlay stays on screen.
	HookWindowSec = 3.0

	minClipDurationSec = 15.0
	maxClipDurationSec = 120.0

	targetWidth  = 1080
	targetHeight = 1920
)

// Pipeline renders one moment of a source into a finished vertical clip:
// extract the range, burn captions, overlay the hook, mute profanity, crop
// to 9:16 and validate the result before storing it.
type Pipeline struct {
	media     ports.MediaTool
	artifacts storage.ArtifactStore
	tempDir   string
	logger    *slog.Logger
}

func New(media ports.MediaTool, artifacts storage.ArtifactStore, tempDir string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{media: media, artifacts: artifacts, tempDir: tempDir, logger: logger}
}

// Render produces an unpersisted GeneratedClip for the moment. A clip that
// fails the quality gate is still returned, with QualityPassed false and
// the error explaining the failure; callers decide whether to keep it.
func (p *Pipeline) Render(
	ctx context.Context,
	source *model.Source,
	moment *model.ClipMoment,
	hook hooks.Variant,
	variation int,
) (*model.GeneratedClip, error) {
	if source.Transcript == nil {
		return nil, fmt.Errorf("%w: source %d has no transcript", faults.ErrMedia, source.ID)
	}

	work, err := os.MkdirTemp(p.tempDir, fmt.Sprintf("clip_%d_", moment.ID))
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(work)

	stage := func(n int, name string) string {
		return filepath.Join(work, fmt.Sprintf("stage%d_%s.mp4", n, name))
	}

	p.logger.Info("rendering clip", "moment", moment.ID, "variation", variation)

	extracted := stage(1, "extract")
	if err := p.media.Extract(ctx, source.FilePath, moment.StartSec, moment.EndSec, extracted); err != nil {
		return nil, fmt.Errorf("extract %0.1f..%0.1f: %w", moment.StartSec, moment.EndSec, err)
	}

	assPath := filepath.Join(work, "captions.ass")
	assDoc, err := captions.Render(*source.Transcript, moment.StartSec, moment.EndSec)
	if err != nil {
		return nil, fmt.Errorf("render captions: %w", err)
	}
	if err := os.WriteFile(assPath, []byte(assDoc), 0o644); err != nil {
		return nil, fmt.Errorf("write captions: %w", err)
	}
	captioned := stage(2, "captions")
	if err := p.media.BurnCaptions(ctx, extracted, assPath, captioned); err != nil {
		return nil, fmt.Errorf("burn captions: %w", err)
	}

	hooked := stage(3, "hook")
	if err := p.media.OverlayHook(ctx, captioned, hook.HookText, HookWindowSec, hooked); err != nil {
		return nil, fmt.Errorf("overlay hook: %w", err)
	}

	muted := stage(4, "muted")
	intervals := profanity.MuteIntervals(*source.Transcript, moment.StartSec, moment.EndSec, profanity.MuteBuffer)
	if err := p.media.MuteIntervals(ctx, hooked, intervals, muted); err != nil {
		return nil, fmt.Errorf("mute profanity: %w", err)
	}

	final := stage(5, "vertical")
	if err := p.media.CropVertical(ctx, muted, final); err != nil {
		return nil, fmt.Errorf("crop vertical: %w", err)
	}

	info, err := p.media.Probe(ctx, final)
	if err != nil {
		return nil, fmt.Errorf("probe rendered clip: %w", err)
	}

	clip := &model.GeneratedClip{
		MomentID:     moment.ID,
		DurationSec:  info.DurationSec,
		Resolution:   fmt.Sprintf("%dx%d", info.Width, info.Height),
		CaptionStyle: captions.StyleWordHighlight,
		HookStyle:    hook.StyleTag,
		Variation:    variation,
	}

	qualityErr := validate(info)
	clip.QualityPassed = qualityErr == nil

	key := fmt.Sprintf("clip_%d_v%d.mp4", moment.ID, variation)
	location, err := p.artifacts.Store(ctx, final, key)
	if err != nil {
		return nil, fmt.Errorf("store clip: %w", err)
	}
	clip.FilePath = location

	if qualityErr != nil {
		p.logger.Warn("clip failed quality gate", "moment", moment.ID, "variation", variation, "reason", qualityErr)
		return clip, qualityErr
	}
	p.logger.Info("rendered clip", "moment", moment.ID, "variation", variation, "file", location)
	return clip, nil
}

func validate(info ports.MediaInfo) error {
	switch {
	case info.SizeBytes == 0:
		return fmt.Errorf("%w: rendered file is empty", faults.ErrQuality)
	case !info.HasVideo:
		return fmt.Errorf("%w: rendered file has no video stream", faults.ErrQuality)
	case !info.HasAudio:
		return fmt.Errorf("%w: rendered file has no audio stream", faults.ErrQuality)
	case info.DurationSec < minClipDurationSec || info.DurationSec > maxClipDurationSec:
		return fmt.Errorf("%w: duration %.1fs outside %.0f..%.0fs", faults.ErrQuality, info.DurationSec, minClipDurationSec, maxClipDurationSec)
	case info.Width != targetWidth || info.Height != targetHeight:
		return fmt.Errorf("%w: resolution %dx%d, want %dx%d", faults.ErrQuality, info.Width, info.Height, targetWidth, targetHeight)
	}
	return nil
}
