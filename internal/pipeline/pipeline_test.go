package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/domain/captions"
	"github.com/clipforge/clipforge/internal/domain/hooks"
	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

type fakeMedia struct {
	calls     []string
	failAt    string
	probeInfo ports.MediaInfo
	intervals []types.Interval
	hookText  string
}

func (f *fakeMedia) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeMedia) ExtractAudioMono16k(context.Context, string, string) error {
	return f.step("extractAudio")
}

func (f *fakeMedia) Extract(_ context.Context, _ string, _, _ float64, _ string) error {
	return f.step("extract")
}

func (f *fakeMedia) CropVertical(context.Context, string, string) error {
	return f.step("crop")
}

func (f *fakeMedia) BurnCaptions(context.Context, string, string, string) error {
	return f.step("captions")
}

func (f *fakeMedia) OverlayHook(_ context.Context, _, text string, _ float64, _ string) error {
	f.hookText = text
	return f.step("hook")
}

func (f *fakeMedia) MuteIntervals(_ context.Context, _ string, intervals []types.Interval, _ string) error {
	f.intervals = intervals
	return f.step("mute")
}

func (f *fakeMedia) Probe(context.Context, string) (ports.MediaInfo, error) {
	if err := f.step("probe"); err != nil {
		return ports.MediaInfo{}, err
	}
	return f.probeInfo, nil
}

type fakeArtifacts struct {
	stored []string
}

func (f *fakeArtifacts) Store(_ context.Context, _, key string) (string, error) {
	f.stored = append(f.stored, key)
	return "/stored/" + key, nil
}

func goodInfo() ports.MediaInfo {
	return ports.MediaInfo{
		DurationSec: 45,
		Width:       1080,
		Height:      1920,
		HasVideo:    true,
		HasAudio:    true,
		SizeBytes:   1 << 20,
	}
}

func testSource() *model.Source {
	return &model.Source{
		ID:       1,
		FilePath: "/videos/source.mp4",
		Transcript: &types.Transcript{Segments: []types.Segment{
			{Start: 0, End: 60, Text: "some spoken words here", Words: []types.Word{
				{Start: 10, End: 10.4, Word: "some"},
				{Start: 10.4, End: 10.8, Word: "shit"},
				{Start: 10.8, End: 11.2, Word: "here"},
			}},
		}},
	}
}

func testMoment() *model.ClipMoment {
	return &model.ClipMoment{ID: 7, SourceID: 1, StartSec: 5, EndSec: 50, Status: model.MomentGenerating}
}

func testHook() hooks.Variant {
	return hooks.Variant{HookText: "Wait for it", CaptionText: "caption #tag", StyleTag: "curiosity"}
}

func TestRenderStageOrder(t *testing.T) {
	media := &fakeMedia{probeInfo: goodInfo()}
	artifacts := &fakeArtifacts{}
	p := New(media, artifacts, t.TempDir(), nil)

	clip, err := p.Render(context.Background(), testSource(), testMoment(), testHook(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"extract", "captions", "hook", "mute", "crop", "probe"}, media.calls)
	assert.Equal(t, "Wait for it", media.hookText)

	require.NotNil(t, clip)
	assert.True(t, clip.QualityPassed)
	assert.Equal(t, int64(7), clip.MomentID)
	assert.Equal(t, 1, clip.Variation)
	assert.Equal(t, "1080x1920", clip.Resolution)
	assert.Equal(t, captions.StyleWordHighlight, clip.CaptionStyle)
	assert.Equal(t, "curiosity", clip.HookStyle)
	assert.Equal(t, "/stored/clip_7_v1.mp4", clip.FilePath)
	assert.Equal(t, []string{"clip_7_v1.mp4"}, artifacts.stored)
}

func TestRenderPassesMuteIntervals(t *testing.T) {
	media := &fakeMedia{probeInfo: goodInfo()}
	p := New(media, &fakeArtifacts{}, t.TempDir(), nil)

	_, err := p.Render(context.Background(), testSource(), testMoment(), testHook(), 1)
	require.NoError(t, err)

	// The flagged word at source 10.4..10.8 lands clip-local around 5.4.
	require.Len(t, media.intervals, 1)
	assert.InDelta(t, 5.35, media.intervals[0].Start, 1e-9)
	assert.InDelta(t, 5.85, media.intervals[0].End, 1e-9)
}

func TestRenderAbortsOnStageFailure(t *testing.T) {
	media := &fakeMedia{failAt: "captions", probeInfo: goodInfo()}
	artifacts := &fakeArtifacts{}
	p := New(media, artifacts, t.TempDir(), nil)

	_, err := p.Render(context.Background(), testSource(), testMoment(), testHook(), 1)
	require.Error(t, err)

	assert.Equal(t, []string{"extract", "captions"}, media.calls)
	assert.Empty(t, artifacts.stored, "failed render must not store an artifact")
}

func TestRenderQualityFailureStillStores(t *testing.T) {
	info := goodInfo()
	info.Width = 720
	info.Height = 1280
	media := &fakeMedia{probeInfo: info}
	artifacts := &fakeArtifacts{}
	p := New(media, artifacts, t.TempDir(), nil)

	clip, err := p.Render(context.Background(), testSource(), testMoment(), testHook(), 2)
	require.ErrorIs(t, err, faults.ErrQuality)

	require.NotNil(t, clip)
	assert.False(t, clip.QualityPassed)
	assert.Equal(t, "/stored/clip_7_v2.mp4", clip.FilePath)
}

func TestRenderRequiresTranscript(t *testing.T) {
	p := New(&fakeMedia{probeInfo: goodInfo()}, &fakeArtifacts{}, t.TempDir(), nil)
	src := testSource()
	src.Transcript = nil

	_, err := p.Render(context.Background(), src, testMoment(), testHook(), 1)
	assert.ErrorIs(t, err, faults.ErrMedia)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ports.MediaInfo)
		ok     bool
	}{
		{"good", func(*ports.MediaInfo) {}, true},
		{"empty file", func(i *ports.MediaInfo) { i.SizeBytes = 0 }, false},
		{"no video", func(i *ports.MediaInfo) { i.HasVideo = false }, false},
		{"no audio", func(i *ports.MediaInfo) { i.HasAudio = false }, false},
		{"too short", func(i *ports.MediaInfo) { i.DurationSec = 10 }, false},
		{"too long", func(i *ports.MediaInfo) { i.DurationSec = 300 }, false},
		{"wrong resolution", func(i *ports.MediaInfo) { i.Width = 720; i.Height = 1280 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := goodInfo()
			tc.mutate(&info)
			err := validate(info)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, faults.ErrQuality)
			}
		})
	}
}
