package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/model"
)

func TestMemorySourceLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	src := &model.Source{Title: "A", Status: model.SourcePending}
	require.NoError(t, reg.Sources.Create(ctx, src))
	assert.NotZero(t, src.ID)

	src.Status = model.SourceReady
	require.NoError(t, reg.Sources.Update(ctx, src))

	got, err := reg.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceReady, got.Status)

	_, err = reg.Sources.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	err = reg.Sources.Update(ctx, &model.Source{ID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	src := &model.Source{Title: "A", Status: model.SourcePending}
	require.NoError(t, reg.Sources.Create(ctx, src))

	// Mutating the returned row must not leak into the store.
	got, err := reg.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	got.Status = model.SourceFailed

	again, err := reg.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SourcePending, again.Status)
}

func TestMemoryFindPostable(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	mk := func(score int, status model.MomentStatus, quality bool) *model.GeneratedClip {
		m := &model.ClipMoment{SourceID: 1, StartSec: 0, EndSec: 30, ViralScore: score, Status: status}
		require.NoError(t, reg.Moments.Create(ctx, m))
		c := &model.GeneratedClip{MomentID: m.ID, QualityPassed: quality, Variation: 1}
		require.NoError(t, reg.Clips.Create(ctx, c))
		return c
	}

	best := mk(90, model.MomentReady, true)
	mid := mk(70, model.MomentReady, true)
	mk(95, model.MomentReady, false)    // quality gate failed
	mk(99, model.MomentPosted, true)    // already posted
	mk(98, model.MomentGenerating, true)

	got, err := reg.Clips.FindPostable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, best.ID, got[0].ID)
	assert.Equal(t, mid.ID, got[1].ID)

	limited, err := reg.Clips.FindPostable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, best.ID, limited[0].ID)
}

func TestMemoryJobsDue(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	add := func(at time.Time, status model.PostStatus) *model.PostJob {
		j := &model.PostJob{ClipID: 1, AccountID: 1, ScheduledAt: at, Status: status}
		require.NoError(t, reg.Jobs.Create(ctx, j))
		return j
	}

	late := add(now.Add(-2*time.Hour), model.PostQueued)
	recent := add(now.Add(-time.Minute), model.PostQueued)
	add(now.Add(time.Hour), model.PostQueued)   // not due yet
	add(now.Add(-time.Hour), model.PostFailed)  // wrong status
	onTime := add(now, model.PostQueued)        // boundary counts as due

	got, err := reg.Jobs.Due(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, late.ID, got[0].ID, "oldest first")
	assert.Equal(t, recent.ID, got[1].ID)
	assert.Equal(t, onTime.ID, got[2].ID)

	capped, err := reg.Jobs.Due(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestMemoryMomentStats(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	add := func(sourceID int64, status model.MomentStatus) {
		m := &model.ClipMoment{SourceID: sourceID, StartSec: 0, EndSec: 30, Status: status}
		require.NoError(t, reg.Moments.Create(ctx, m))
	}
	add(1, model.MomentDetected)
	add(1, model.MomentGenerating)
	add(1, model.MomentReady)
	add(1, model.MomentReady)
	add(1, model.MomentPosted)
	add(1, model.MomentFailed)
	add(2, model.MomentReady) // other source

	stats, err := reg.Moments.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, MomentStats{Total: 6, Generating: 1, Ready: 2, Posted: 1, Failed: 1}, stats)
}

func TestMemoryAccountsFindActive(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory()

	active := &model.Account{Platform: model.PlatformTikTok, Status: model.AccountActive}
	require.NoError(t, reg.Accounts.Create(ctx, active))
	require.NoError(t, reg.Accounts.Create(ctx, &model.Account{Platform: model.PlatformTwitter, Status: model.AccountBanned}))

	got, err := reg.Accounts.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}
