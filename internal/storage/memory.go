package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/model"
)

// NewMemory returns a Registry backed by in-process maps. It exists for
// tests and for single-shot CLI runs that do not need a database.
func NewMemory() Registry {
	moments := &MemoryMomentRepository{rows: map[int64]*model.ClipMoment{}}
	clips := &MemoryClipRepository{rows: map[int64]*model.GeneratedClip{}}
	clips.BindMoments(moments)
	return Registry{
		Sources:  &MemorySourceRepository{rows: map[int64]*model.Source{}},
		Moments:  moments,
		Clips:    clips,
		Accounts: &MemoryAccountRepository{rows: map[int64]*model.Account{}},
		Jobs:     &MemoryJobRepository{rows: map[int64]*model.PostJob{}},
	}
}

type MemorySourceRepository struct {
	mu     sync.RWMutex
	lastID int64
	rows   map[int64]*model.Source
}

func (r *MemorySourceRepository) Create(_ context.Context, src *model.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	src.ID = r.lastID
	src.CreatedAt = time.Now().UTC()
	cp := *src
	r.rows[src.ID] = &cp
	return nil
}

func (r *MemorySourceRepository) Get(_ context.Context, id int64) (*model.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemorySourceRepository) Update(_ context.Context, src *model.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[src.ID]; !ok {
		return ErrNotFound
	}
	cp := *src
	r.rows[src.ID] = &cp
	return nil
}

func (r *MemorySourceRepository) FindByStatus(_ context.Context, statuses ...model.SourceStatus) ([]*model.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Source
	for _, row := range r.rows {
		for _, s := range statuses {
			if row.Status == s {
				cp := *row
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryMomentRepository struct {
	mu     sync.RWMutex
	lastID int64
	rows   map[int64]*model.ClipMoment
}

func (r *MemoryMomentRepository) Create(_ context.Context, m *model.ClipMoment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	m.ID = r.lastID
	m.CreatedAt = time.Now().UTC()
	cp := *m
	r.rows[m.ID] = &cp
	return nil
}

func (r *MemoryMomentRepository) Get(_ context.Context, id int64) (*model.ClipMoment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryMomentRepository) Update(_ context.Context, m *model.ClipMoment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	r.rows[m.ID] = &cp
	return nil
}

func (r *MemoryMomentRepository) FindBySource(_ context.Context, sourceID int64) ([]*model.ClipMoment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ClipMoment
	for _, row := range r.rows {
		if row.SourceID == sourceID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViralScore > out[j].ViralScore })
	return out, nil
}

func (r *MemoryMomentRepository) FindByStatus(_ context.Context, statuses ...model.MomentStatus) ([]*model.ClipMoment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ClipMoment
	for _, row := range r.rows {
		for _, s := range statuses {
			if row.Status == s {
				cp := *row
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryMomentRepository) Stats(_ context.Context, sourceID int64) (MomentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats MomentStats
	for _, row := range r.rows {
		if row.SourceID != sourceID {
			continue
		}
		stats.Total++
		switch row.Status {
		case model.MomentGenerating:
			stats.Generating++
		case model.MomentReady:
			stats.Ready++
		case model.MomentPosted:
			stats.Posted++
		case model.MomentFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type MemoryClipRepository struct {
	mu      sync.RWMutex
	lastID  int64
	rows    map[int64]*model.GeneratedClip
	moments *MemoryMomentRepository
}

// BindMoments lets FindPostable consult moment status, mirroring the join
// the Postgres implementation does.
func (r *MemoryClipRepository) BindMoments(m *MemoryMomentRepository) { r.moments = m }

func (r *MemoryClipRepository) Create(_ context.Context, c *model.GeneratedClip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	c.ID = r.lastID
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *MemoryClipRepository) Get(_ context.Context, id int64) (*model.GeneratedClip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryClipRepository) FindByMoment(_ context.Context, momentID int64) ([]*model.GeneratedClip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.GeneratedClip
	for _, row := range r.rows {
		if row.MomentID == momentID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variation < out[j].Variation })
	return out, nil
}

func (r *MemoryClipRepository) FindPostable(ctx context.Context, limit int) ([]*model.GeneratedClip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	type scored struct {
		clip  *model.GeneratedClip
		score int
	}
	var candidates []scored
	for _, row := range r.rows {
		if !row.QualityPassed {
			continue
		}
		score := 0
		if r.moments != nil {
			m, err := r.moments.Get(ctx, row.MomentID)
			if err != nil || m.Status != model.MomentReady {
				continue
			}
			score = m.ViralScore
		}
		cp := *row
		candidates = append(candidates, scored{clip: &cp, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].clip.ID < candidates[j].clip.ID
	})
	var out []*model.GeneratedClip
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		out = append(out, c.clip)
	}
	return out, nil
}

type MemoryAccountRepository struct {
	mu     sync.RWMutex
	lastID int64
	rows   map[int64]*model.Account
}

func (r *MemoryAccountRepository) Create(_ context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	a.ID = r.lastID
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *MemoryAccountRepository) Get(_ context.Context, id int64) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryAccountRepository) Update(_ context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *MemoryAccountRepository) FindActive(_ context.Context) ([]*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Account
	for _, row := range r.rows {
		if row.Status == model.AccountActive {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type MemoryJobRepository struct {
	mu     sync.RWMutex
	lastID int64
	rows   map[int64]*model.PostJob
}

func (r *MemoryJobRepository) Create(_ context.Context, j *model.PostJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	j.ID = r.lastID
	j.CreatedAt = time.Now().UTC()
	cp := *j
	r.rows[j.ID] = &cp
	return nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id int64) (*model.PostJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *MemoryJobRepository) Update(_ context.Context, j *model.PostJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[j.ID]; !ok {
		return ErrNotFound
	}
	cp := *j
	r.rows[j.ID] = &cp
	return nil
}

func (r *MemoryJobRepository) Due(_ context.Context, now time.Time, limit int) ([]*model.PostJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.PostJob
	for _, row := range r.rows {
		if row.Status == model.PostQueued && !row.ScheduledAt.After(now) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
