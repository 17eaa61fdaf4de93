package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/storage"
)

const (
	// DefaultPostsPerAccountPerDay spreads output thin enough that accounts
	// do not trip platform spam heuristics.
	DefaultPostsPerAccountPerDay = 2
	// DefaultSlotJitter keeps posting times from looking machine-regular.
	DefaultSlotJitter = 30 * time.Minute

	// MaxRetries caps how many fresh rows one posting failure chain may spawn.
	MaxRetries = 3
	// retryBase is the first retry delay; each further retry triples it.
	retryBase = 5 * time.Minute
)

// Slot is one planned posting opportunity for an account within a day.
type Slot struct {
	Account *model.Account
	At      time.Time
}

// Slots spreads quota posts per account evenly across the 24 hours starting
// at dayStart. The day is divided among all accounts' posts together, so two
// accounts never share a base time, and each slot shifts by a random jitter.
// Every returned slot falls within the day regardless of jitter configuration.
func Slots(accounts []*model.Account, dayStart time.Time, quota int, jitter time.Duration, rng *rand.Rand) []Slot {
	if quota <= 0 || len(accounts) == 0 {
		return nil
	}

	total := len(accounts) * quota
	interval := 24 * time.Hour / time.Duration(total)
	maxJitter := jitter
	if maxJitter > interval {
		maxJitter = interval
	}

	out := make([]Slot, 0, total)
	for i, acc := range accounts {
		for j := 0; j < quota; j++ {
			at := dayStart.Add(time.Duration(i*quota+j) * interval)
			if maxJitter > 0 {
				at = at.Add(time.Duration(rng.Int63n(int64(maxJitter))))
			}
			out = append(out, Slot{Account: acc, At: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Backoff returns the delay before retry number retryCount+1, or false when
// the retry budget is spent. Delays run 5, 15, 45 minutes.
func Backoff(retryCount int) (time.Duration, bool) {
	if retryCount >= MaxRetries {
		return 0, false
	}
	d := retryBase
	for i := 0; i < retryCount; i++ {
		d *= 3
	}
	return d, true
}

// Scheduler plans a day of post jobs: the best postable clips, one per
// slot, are queued across the active accounts.
type Scheduler struct {
	clips    storage.ClipRepository
	moments  storage.MomentRepository
	accounts storage.AccountRepository
	jobs     storage.JobRepository

	quota  int
	jitter time.Duration
	rng    *rand.Rand
}

func NewScheduler(reg storage.Registry, quota int, jitter time.Duration, rng *rand.Rand) *Scheduler {
	if quota <= 0 {
		quota = DefaultPostsPerAccountPerDay
	}
	if jitter <= 0 {
		jitter = DefaultSlotJitter
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{
		clips:    reg.Clips,
		moments:  reg.Moments,
		accounts: reg.Accounts,
		jobs:     reg.Jobs,
		quota:    quota,
		jitter:   jitter,
		rng:      rng,
	}
}

// ScheduleDay queues jobs for the 24 hours starting at dayStart and returns
// them. Clips are assigned best viral score first; when clips run out the
// remaining slots stay empty.
func (s *Scheduler) ScheduleDay(ctx context.Context, dayStart time.Time) ([]*model.PostJob, error) {
	accounts, err := s.accounts.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("find active accounts: %w", err)
	}
	slots := Slots(accounts, dayStart, s.quota, s.jitter, s.rng)
	if len(slots) == 0 {
		return nil, nil
	}

	clips, err := s.clips.FindPostable(ctx, len(slots))
	if err != nil {
		return nil, fmt.Errorf("find postable clips: %w", err)
	}

	var jobs []*model.PostJob
	for i, clip := range clips {
		if i >= len(slots) {
			break
		}
		moment, err := s.moments.Get(ctx, clip.MomentID)
		if err != nil {
			return jobs, fmt.Errorf("load moment %d: %w", clip.MomentID, err)
		}
		job := &model.PostJob{
			ClipID:      clip.ID,
			AccountID:   slots[i].Account.ID,
			ScheduledAt: slots[i].At,
			Status:      model.PostQueued,
			Caption:     moment.CaptionText,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			return jobs, fmt.Errorf("create post job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
