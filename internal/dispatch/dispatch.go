package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipforge/clipforge/internal/domain/detect"
	"github.com/clipforge/clipforge/internal/domain/hooks"
	"github.com/clipforge/clipforge/internal/domain/schedule"
	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/internal/transcribe"
	"github.com/clipforge/clipforge/internal/types"
)

const (
	// dueJobBatch caps how many due jobs one sweep picks up.
	dueJobBatch = 50

	// rateLimitDefer is how far out a rate-limited job gets requeued.
	rateLimitDefer = time.Hour

	// External calls get a small fixed retry budget with doubling delays.
	downloadAttempts = 3
	taskAttempts     = 3
)

// PosterRegistry resolves the poster adapter for a platform.
type PosterRegistry interface {
	For(p model.Platform) (ports.Poster, error)
}

// Dispatcher drives every entity through its lifecycle. Each task checks
// the entity's state first and no-ops when another run already advanced it,
// so a crashed or doubled worker never rewinds a row.
type Dispatcher struct {
	reg         storage.Registry
	downloader  ports.Downloader
	media       ports.MediaTool
	transcriber *transcribe.Transcriber
	detector    *detect.Detector
	hooks       *hooks.Writer
	pipeline    *pipeline.Pipeline
	scheduler   *schedule.Scheduler
	posters     PosterRegistry
	logger      *slog.Logger
	now         func() time.Time
}

type Config struct {
	Registry    storage.Registry
	Downloader  ports.Downloader
	Media       ports.MediaTool
	Transcriber *transcribe.Transcriber
	Detector    *detect.Detector
	Hooks       *hooks.Writer
	Pipeline    *pipeline.Pipeline
	Scheduler   *schedule.Scheduler
	Posters     PosterRegistry
	Logger      *slog.Logger
	Now         func() time.Time
}

func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		reg:         cfg.Registry,
		downloader:  cfg.Downloader,
		media:       cfg.Media,
		transcriber: cfg.Transcriber,
		detector:    cfg.Detector,
		hooks:       cfg.Hooks,
		pipeline:    cfg.Pipeline,
		scheduler:   cfg.Scheduler,
		posters:     cfg.Posters,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// IngestSource downloads a video by URL and creates its pending row.
func (d *Dispatcher) IngestSource(ctx context.Context, rawURL, destDir string) (*model.Source, error) {
	validated, err := d.downloader.Resolve(rawURL)
	if err != nil {
		return nil, err
	}

	var res ports.DownloadResult
	err = withRetry(ctx, downloadAttempts, time.Second, func() error {
		var dlErr error
		res, dlErr = d.downloader.Download(ctx, validated, destDir)
		return dlErr
	})
	if err != nil {
		return nil, err
	}

	src := &model.Source{
		URL:         validated,
		FilePath:    res.FilePath,
		Title:       res.Title,
		DurationSec: res.DurationSec,
		Status:      model.SourcePending,
	}
	if err := d.reg.Sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	d.logger.Info("ingested source", "source", src.ID, "title", src.Title)
	return src, nil
}

// IngestFile registers an already-local video file as a pending source.
func (d *Dispatcher) IngestFile(ctx context.Context, path string) (*model.Source, error) {
	info, err := d.media.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.HasVideo {
		return nil, fmt.Errorf("%w: %s has no video stream", faults.ErrValidation, path)
	}

	src := &model.Source{
		FilePath:    path,
		Title:       path,
		DurationSec: info.DurationSec,
		Status:      model.SourcePending,
	}
	if err := d.reg.Sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	d.logger.Info("ingested local source", "source", src.ID, "path", path)
	return src, nil
}

// TranscribeSource moves a pending source through transcription. A source
// in any other state is left untouched.
func (d *Dispatcher) TranscribeSource(ctx context.Context, sourceID int64) error {
	src, err := d.reg.Sources.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if src.Status != model.SourcePending {
		d.logger.Debug("skipping transcription", "source", sourceID, "status", src.Status)
		return nil
	}

	src.Status = model.SourceTranscribing
	if err := d.reg.Sources.Update(ctx, src); err != nil {
		return err
	}

	var tr types.Transcript
	err = withRetry(ctx, taskAttempts, time.Second, func() error {
		var terr error
		tr, terr = d.transcriber.Transcribe(ctx, src.FilePath)
		return terr
	})
	if err != nil {
		src.Status = model.SourceFailed
		if uerr := d.reg.Sources.Update(ctx, src); uerr != nil {
			return errors.Join(err, uerr)
		}
		return err
	}

	src.Transcript = &tr
	src.Status = model.SourceReady
	if err := d.reg.Sources.Update(ctx, src); err != nil {
		return err
	}
	d.logger.Info("source transcribed", "source", sourceID, "segments", len(tr.Segments))
	return nil
}

// DetectMoments runs moment detection over a ready source and persists one
// detected row per moment found.
func (d *Dispatcher) DetectMoments(ctx context.Context, sourceID int64, maxMoments int) ([]*model.ClipMoment, error) {
	src, err := d.reg.Sources.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Status != model.SourceReady || src.Transcript == nil {
		return nil, fmt.Errorf("%w: source %d is %s, want ready with transcript", faults.ErrValidation, sourceID, src.Status)
	}

	var found []detect.Moment
	err = withRetry(ctx, taskAttempts, time.Second, func() error {
		var derr error
		found, derr = d.detector.Detect(ctx, *src.Transcript, maxMoments)
		return derr
	})
	if err != nil {
		return nil, err
	}

	var out []*model.ClipMoment
	for _, m := range found {
		row := &model.ClipMoment{
			SourceID:   sourceID,
			StartSec:   m.StartSec,
			EndSec:     m.EndSec,
			ViralScore: m.ViralScore,
			Reasoning:  m.Reasoning,
			Status:     model.MomentDetected,
		}
		if err := d.reg.Moments.Create(ctx, row); err != nil {
			return out, fmt.Errorf("create moment: %w", err)
		}
		out = append(out, row)
	}
	d.logger.Info("detected moments", "source", sourceID, "count", len(out))
	return out, nil
}

// GenerateClip renders a detected moment into a clip. Hook generation runs
// first; its first variant becomes the moment's hook and caption. A clip
// failing the quality gate is still persisted, flagged, and the moment
// still becomes ready so operators can inspect the artifact.
func (d *Dispatcher) GenerateClip(ctx context.Context, momentID int64) error {
	moment, err := d.reg.Moments.Get(ctx, momentID)
	if err != nil {
		return err
	}
	if moment.Status != model.MomentDetected {
		d.logger.Debug("skipping clip generation", "moment", momentID, "status", moment.Status)
		return nil
	}

	moment.Status = model.MomentGenerating
	if err := d.reg.Moments.Update(ctx, moment); err != nil {
		return err
	}

	src, err := d.reg.Sources.Get(ctx, moment.SourceID)
	if err != nil {
		return d.failMoment(ctx, moment, err)
	}
	if src.Transcript == nil {
		return d.failMoment(ctx, moment, fmt.Errorf("%w: source %d has no transcript", faults.ErrValidation, src.ID))
	}

	variants, err := d.hooks.Generate(ctx, *src.Transcript, moment.StartSec, moment.EndSec)
	if err != nil {
		return d.failMoment(ctx, moment, err)
	}
	hook := variants[0]
	moment.HookText = hook.HookText
	moment.CaptionText = hook.CaptionText
	if err := d.reg.Moments.Update(ctx, moment); err != nil {
		return err
	}

	existing, err := d.reg.Clips.FindByMoment(ctx, momentID)
	if err != nil {
		return d.failMoment(ctx, moment, err)
	}
	variation := len(existing) + 1

	clip, renderErr := d.pipeline.Render(ctx, src, moment, hook, variation)
	if renderErr != nil && !errors.Is(renderErr, faults.ErrQuality) {
		return d.failMoment(ctx, moment, renderErr)
	}
	if err := d.reg.Clips.Create(ctx, clip); err != nil {
		return d.failMoment(ctx, moment, err)
	}

	moment.Status = model.MomentReady
	if err := d.reg.Moments.Update(ctx, moment); err != nil {
		return err
	}
	d.logger.Info("generated clip", "moment", momentID, "clip", clip.ID, "quality", clip.QualityPassed)
	return nil
}

// Regenerate puts a moment back to detected and renders a fresh variation.
func (d *Dispatcher) Regenerate(ctx context.Context, momentID int64) error {
	moment, err := d.reg.Moments.Get(ctx, momentID)
	if err != nil {
		return err
	}
	switch moment.Status {
	case model.MomentReady, model.MomentPosted, model.MomentFailed:
	default:
		return fmt.Errorf("%w: moment %d is %s, cannot regenerate", faults.ErrValidation, momentID, moment.Status)
	}

	moment.Status = model.MomentDetected
	if err := d.reg.Moments.Update(ctx, moment); err != nil {
		return err
	}
	return d.GenerateClip(ctx, momentID)
}

// ScheduleDay plans the next day of post jobs.
func (d *Dispatcher) ScheduleDay(ctx context.Context, dayStart time.Time) ([]*model.PostJob, error) {
	return d.scheduler.ScheduleDay(ctx, dayStart)
}

// RunDueJobs executes every due job in the current batch. Job failures are
// recorded on their rows, not returned, so one bad job never blocks the rest.
func (d *Dispatcher) RunDueJobs(ctx context.Context) error {
	jobs, err := d.reg.Jobs.Due(ctx, d.now(), dueJobBatch)
	if err != nil {
		return fmt.Errorf("find due jobs: %w", err)
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.ExecuteJob(ctx, job.ID); err != nil {
			d.logger.Error("post job failed", "job", job.ID, "err", err)
		}
	}
	return nil
}

// ExecuteJob attempts one queued post job. Terminal outcomes are posted or
// failed; a failed job may spawn a fresh queued row per the retry policy,
// but the failed row itself never goes back to queued.
func (d *Dispatcher) ExecuteJob(ctx context.Context, jobID int64) error {
	job, err := d.reg.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.PostQueued {
		d.logger.Debug("skipping job", "job", jobID, "status", job.Status)
		return nil
	}

	job.Status = model.PostPosting
	if err := d.reg.Jobs.Update(ctx, job); err != nil {
		return err
	}

	clip, err := d.reg.Clips.Get(ctx, job.ClipID)
	if err != nil {
		return d.failJob(ctx, job, err)
	}
	account, err := d.reg.Accounts.Get(ctx, job.AccountID)
	if err != nil {
		return d.failJob(ctx, job, err)
	}

	// Unhealthy accounts fail the job terminally; no retry row.
	if account.Status != model.AccountActive {
		job.Status = model.PostFailed
		job.ErrorMessage = fmt.Sprintf("account %d is %s", account.ID, account.Status)
		return d.reg.Jobs.Update(ctx, job)
	}

	poster, err := d.posters.For(account.Platform)
	if err != nil {
		return d.failJob(ctx, job, err)
	}

	now := d.now()
	if !poster.CanPostNow(account, now) {
		job.Status = model.PostFailed
		job.ErrorMessage = "rate limited"
		if err := d.reg.Jobs.Update(ctx, job); err != nil {
			return err
		}
		// Requeue as a fresh row without burning retry budget.
		requeued := &model.PostJob{
			ClipID:      job.ClipID,
			AccountID:   job.AccountID,
			ScheduledAt: now.Add(rateLimitDefer),
			Status:      model.PostQueued,
			Caption:     job.Caption,
			Hashtags:    job.Hashtags,
			RetryCount:  job.RetryCount,
		}
		if err := d.reg.Jobs.Create(ctx, requeued); err != nil {
			return err
		}
		d.logger.Info("job rate limited, requeued", "job", job.ID, "requeued", requeued.ID, "at", requeued.ScheduledAt)
		return nil
	}

	result, postErr := poster.PostVideo(ctx, clip.FilePath, job.Caption, account)
	if postErr != nil {
		if err := d.failJob(ctx, job, postErr); err != nil {
			return err
		}
		delay, ok := schedule.Backoff(job.RetryCount)
		if !ok {
			d.logger.Warn("job retries exhausted", "job", job.ID, "retries", job.RetryCount)
			return postErr
		}
		retry := &model.PostJob{
			ClipID:      job.ClipID,
			AccountID:   job.AccountID,
			ScheduledAt: now.Add(delay),
			Status:      model.PostQueued,
			Caption:     job.Caption,
			Hashtags:    job.Hashtags,
			RetryCount:  job.RetryCount + 1,
		}
		if err := d.reg.Jobs.Create(ctx, retry); err != nil {
			return errors.Join(postErr, err)
		}
		d.logger.Info("job retry queued", "job", job.ID, "retry", retry.ID, "delay", delay)
		return postErr
	}

	postedAt := result.PostedAt
	job.Status = model.PostPosted
	job.PostedAt = &postedAt
	job.PlatformPostID = result.PlatformPostID
	if err := d.reg.Jobs.Update(ctx, job); err != nil {
		return err
	}

	account.LastPostedAt = &postedAt
	if err := d.reg.Accounts.Update(ctx, account); err != nil {
		return err
	}

	moment, err := d.reg.Moments.Get(ctx, clip.MomentID)
	if err == nil && moment.Status == model.MomentReady {
		moment.Status = model.MomentPosted
		if err := d.reg.Moments.Update(ctx, moment); err != nil {
			return err
		}
	}

	d.logger.Info("posted clip", "job", job.ID, "platform", account.Platform, "post", result.PlatformPostID)
	return nil
}

// Run sweeps on the interval: pending sources get transcribed, detected
// moments get rendered, due jobs get posted. Detection stays operator
// driven; it needs an explicit moment budget.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher running", "interval", interval)
	for {
		d.sweep(ctx)
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	pending, err := d.reg.Sources.FindByStatus(ctx, model.SourcePending)
	if err != nil {
		d.logger.Error("find pending sources", "err", err)
	}
	for _, src := range pending {
		if err := d.TranscribeSource(ctx, src.ID); err != nil {
			d.logger.Error("transcription failed", "source", src.ID, "err", err)
		}
	}

	detected, err := d.reg.Moments.FindByStatus(ctx, model.MomentDetected)
	if err != nil {
		d.logger.Error("find detected moments", "err", err)
	}
	for _, m := range detected {
		if err := d.GenerateClip(ctx, m.ID); err != nil {
			d.logger.Error("clip generation failed", "moment", m.ID, "err", err)
		}
	}

	if err := d.RunDueJobs(ctx); err != nil {
		d.logger.Error("due job sweep failed", "err", err)
	}
}

func (d *Dispatcher) failMoment(ctx context.Context, moment *model.ClipMoment, cause error) error {
	moment.Status = model.MomentFailed
	if err := d.reg.Moments.Update(ctx, moment); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (d *Dispatcher) failJob(ctx context.Context, job *model.PostJob, cause error) error {
	job.Status = model.PostFailed
	job.ErrorMessage = cause.Error()
	if err := d.reg.Jobs.Update(ctx, job); err != nil {
		return errors.Join(cause, err)
	}
	return nil
}

// withRetry runs fn up to attempts times with doubling delays. Validation
// failures never retry.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, faults.ErrValidation) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
