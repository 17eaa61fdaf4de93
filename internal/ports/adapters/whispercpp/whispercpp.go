package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

type Adapter struct {
	bin     string
	model   string
	timeout time.Duration
}

func New(binPath, modelPath string, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Adapter{bin: binPath, model: modelPath, timeout: timeout}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	outPrefix := filepath.Join(workDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-owts",
	}
	cmd := exec.CommandContext(runCtx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return types.Transcript{}, fmt.Errorf("%w: whisper.cpp timed out after %s", faults.ErrTranscription, a.timeout)
		}
		return types.Transcript{}, fmt.Errorf("%w: whisper.cpp failed: %v\n%s", faults.ErrTranscription, err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("%w: read whisper output: %v", faults.ErrTranscription, err)
	}

	var tr types.Transcript
	if err := json.Unmarshal(jb, &tr); err != nil {
		return types.Transcript{}, fmt.Errorf("%w: parse whisper output: %v", faults.ErrTranscription, err)
	}
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		for j := range tr.Segments[i].Words {
			tr.Segments[i].Words[j].Word = strings.TrimSpace(tr.Segments[i].Words[j].Word)
		}
	}
	if tr.Empty() {
		return types.Transcript{}, fmt.Errorf("%w: empty transcript for %s", faults.ErrTranscription, wavPath)
	}
	return tr, nil
}

var _ ports.ASR = (*Adapter)(nil)
