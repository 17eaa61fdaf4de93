package storage

import (
	"context"
	"errors"
	"time"

	"github.com/clipforge/clipforge/internal/model"
)

var ErrNotFound = errors.New("not found")

type SourceRepository interface {
	Create(ctx context.Context, src *model.Source) error
	Get(ctx context.Context, id int64) (*model.Source, error)
	Update(ctx context.Context, src *model.Source) error
	FindByStatus(ctx context.Context, statuses ...model.SourceStatus) ([]*model.Source, error)
}

type MomentRepository interface {
	Create(ctx context.Context, m *model.ClipMoment) error
	Get(ctx context.Context, id int64) (*model.ClipMoment, error)
	Update(ctx context.Context, m *model.ClipMoment) error
	FindBySource(ctx context.Context, sourceID int64) ([]*model.ClipMoment, error)
	FindByStatus(ctx context.Context, statuses ...model.MomentStatus) ([]*model.ClipMoment, error)
	Stats(ctx context.Context, sourceID int64) (MomentStats, error)
}

// MomentStats is the per-source batch surface: counts by state, never raw
// errors.
type MomentStats struct {
	Total      int
	Generating int
	Ready      int
	Posted     int
	Failed     int
}

type ClipRepository interface {
	Create(ctx context.Context, c *model.GeneratedClip) error
	Get(ctx context.Context, id int64) (*model.GeneratedClip, error)
	FindByMoment(ctx context.Context, momentID int64) ([]*model.GeneratedClip, error)
	// FindPostable returns quality-passed clips whose owning moment is ready,
	// best viral score first.
	FindPostable(ctx context.Context, limit int) ([]*model.GeneratedClip, error)
}

type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	Get(ctx context.Context, id int64) (*model.Account, error)
	Update(ctx context.Context, a *model.Account) error
	FindActive(ctx context.Context) ([]*model.Account, error)
}

type JobRepository interface {
	Create(ctx context.Context, j *model.PostJob) error
	Get(ctx context.Context, id int64) (*model.PostJob, error)
	Update(ctx context.Context, j *model.PostJob) error
	// Due returns queued jobs whose scheduled time has passed, oldest first,
	// capped at limit.
	Due(ctx context.Context, now time.Time, limit int) ([]*model.PostJob, error)
}

// Registry bundles the five repositories behind one handle.
type Registry struct {
	Sources  SourceRepository
	Moments  MomentRepository
	Clips    ClipRepository
	Accounts AccountRepository
	Jobs     JobRepository
}
