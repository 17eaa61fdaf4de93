package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

// Transcriber runs audio extraction plus ASR with a bounded number of
// concurrent jobs. Whisper saturates memory fast; the semaphore is the only
// throttle in the system.
type Transcriber struct {
	media   ports.MediaTool
	asr     ports.ASR
	sem     *semaphore.Weighted
	workDir string
	logger  *slog.Logger
}

func New(media ports.MediaTool, asr ports.ASR, maxConcurrent int, workDir string, logger *slog.Logger) *Transcriber {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		media:   media,
		asr:     asr,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		workDir: workDir,
		logger:  logger,
	}
}

// Transcribe extracts 16 kHz mono audio from videoPath and runs ASR over
// it. Scratch files live in a per-run directory that is removed before the
// semaphore slot frees up.
func (t *Transcriber) Transcribe(ctx context.Context, videoPath string) (types.Transcript, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return types.Transcript{}, fmt.Errorf("%w: acquire transcription slot: %v", faults.ErrTranscription, err)
	}
	defer t.sem.Release(1)

	runDir := filepath.Join(t.workDir, "transcribe-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return types.Transcript{}, fmt.Errorf("%w: create work dir: %v", faults.ErrTranscription, err)
	}
	defer os.RemoveAll(runDir)

	wavPath := filepath.Join(runDir, "audio.wav")
	t.logger.Info("extracting audio", "video", videoPath)
	if err := t.media.ExtractAudioMono16k(ctx, videoPath, wavPath); err != nil {
		return types.Transcript{}, fmt.Errorf("extract audio: %w", err)
	}

	t.logger.Info("transcribing", "video", videoPath)
	tr, err := t.asr.Transcribe(ctx, wavPath, runDir)
	if err != nil {
		return types.Transcript{}, err
	}
	t.logger.Info("transcribed", "video", videoPath, "segments", len(tr.Segments))
	return tr, nil
}
