package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/creds"
	"github.com/clipforge/clipforge/internal/dispatch"
	"github.com/clipforge/clipforge/internal/domain/detect"
	"github.com/clipforge/clipforge/internal/domain/hooks"
	"github.com/clipforge/clipforge/internal/domain/schedule"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/ports/adapters/ffmpeg"
	"github.com/clipforge/clipforge/internal/ports/adapters/llm"
	"github.com/clipforge/clipforge/internal/ports/adapters/platforms"
	"github.com/clipforge/clipforge/internal/ports/adapters/whispercpp"
	"github.com/clipforge/clipforge/internal/ports/adapters/ytdlp"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/internal/transcribe"
)

// app bundles everything a command needs. Built once per invocation, no
// lazy globals.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   storage.Registry
	keeper     *creds.Keeper
	dispatcher *dispatch.Dispatcher
	close      func() error
}

func buildApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pg, err := storage.NewPostgres(storage.PostgresInfo{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Database: cfg.PostgresDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	registry := pg.Registry()

	keeper, err := creds.NewKeeper(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("credential keeper: %w", err)
	}

	media := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, cfg.MediaTimeout)
	asr := whispercpp.New(cfg.WhisperBin, cfg.WhisperModel, cfg.DownloadTimeout)
	analyst := llm.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.AnalysisTimeout)
	downloader := ytdlp.New(cfg.YtDlpPath, cfg.AllowedDomains, cfg.DownloadTimeout)

	var artifacts storage.ArtifactStore
	if cfg.S3Bucket != "" {
		s3, err := storage.NewS3ArtifactStore(cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, fmt.Errorf("s3 artifact store: %w", err)
		}
		artifacts = s3
	} else {
		artifacts = &storage.LocalArtifactStore{Dir: cfg.StorageDir}
	}

	transcriber := transcribe.New(media, asr, cfg.MaxTranscriptions, cfg.TempDir, logger)
	renderer := pipeline.New(media, artifacts, cfg.TempDir, logger)
	scheduler := schedule.NewScheduler(registry, cfg.PostsPerAccountPerDay, cfg.SlotJitter, nil)
	posters := platforms.NewRegistry(keeper, nil)

	dispatcher := dispatch.New(dispatch.Config{
		Registry:    registry,
		Downloader:  downloader,
		Media:       media,
		Transcriber: transcriber,
		Detector:    detect.NewDetector(analyst),
		Hooks:       hooks.NewWriter(analyst),
		Pipeline:    renderer,
		Scheduler:   scheduler,
		Posters:     posters,
		Logger:      logger,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		keeper:     keeper,
		dispatcher: dispatcher,
		close:      pg.Close,
	}, nil
}

func runIngest(cmd *cobra.Command, arg string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	local, _ := cmd.Flags().GetBool("local")
	var src *model.Source
	if local {
		src, err = a.dispatcher.IngestFile(ctx, arg)
	} else {
		src, err = a.dispatcher.IngestSource(ctx, arg, a.cfg.StorageDir)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "source %d created (%s)\n", src.ID, src.Title)
	return nil
}

func runDetect(cmd *cobra.Command, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("source id: %w", err)
	}
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	maxMoments, _ := cmd.Flags().GetInt("moments")
	moments, err := a.dispatcher.DetectMoments(ctx, id, maxMoments)
	if err != nil {
		return err
	}
	for _, m := range moments {
		fmt.Fprintf(cmd.OutOrStdout(), "moment %d: %.1f..%.1fs score %d\n", m.ID, m.StartSec, m.EndSec, m.ViralScore)
	}
	return nil
}

func runInfo(cmd *cobra.Command, rawURL string) error {
	// Metadata probes need no database or API keys, only yt-dlp.
	cfg := config.Load()
	dl := ytdlp.New(cfg.YtDlpPath, cfg.AllowedDomains, cfg.DownloadTimeout)

	ctx, cancel := signalContext()
	defer cancel()

	info, err := dl.Info(ctx, rawURL)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:       %s\n", info.ID)
	fmt.Fprintf(out, "title:    %s\n", info.Title)
	fmt.Fprintf(out, "uploader: %s\n", info.Uploader)
	fmt.Fprintf(out, "duration: %.0fs\n", info.DurationSec)
	return nil
}

func runWorker(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	err = a.dispatcher.Run(ctx, a.cfg.DispatchInterval)
	if err == context.Canceled {
		return nil
	}
	return err
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	dayStart := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	jobs, err := a.dispatcher.ScheduleDay(ctx, dayStart)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		fmt.Fprintf(cmd.OutOrStdout(), "job %d: clip %d on account %d at %s\n",
			j.ID, j.ClipID, j.AccountID, j.ScheduledAt.Format(time.RFC3339))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d jobs scheduled\n", len(jobs))
	return nil
}

func runStatus(cmd *cobra.Command, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("source id: %w", err)
	}
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	src, err := a.registry.Sources.Get(ctx, id)
	if err != nil {
		return err
	}
	stats, err := a.registry.Moments.Stats(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "source %d (%s): %s\n", src.ID, src.Title, src.Status)
	fmt.Fprintf(out, "moments: %d total, %d generating, %d ready, %d posted, %d failed\n",
		stats.Total, stats.Generating, stats.Ready, stats.Posted, stats.Failed)
	return nil
}

func runAccountsAdd(cmd *cobra.Command, platformArg, username, credsPath string) error {
	platform := model.Platform(platformArg)
	if !platform.Valid() {
		return fmt.Errorf("unknown platform %q", platformArg)
	}

	raw, err := os.ReadFile(credsPath)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	var credMap map[string]any
	if err := json.Unmarshal(raw, &credMap); err != nil {
		return fmt.Errorf("parse credentials: %w", err)
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	sealed, err := a.keeper.Seal(credMap)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	account := &model.Account{
		Platform:    platform,
		Username:    username,
		CredsSealed: sealed,
		Status:      model.AccountActive,
	}
	if err := a.registry.Accounts.Create(ctx, account); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account %d created for %s/%s\n", account.ID, platform, username)
	return nil
}

func runGenKey(cmd *cobra.Command, _ []string) error {
	key, err := creds.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
