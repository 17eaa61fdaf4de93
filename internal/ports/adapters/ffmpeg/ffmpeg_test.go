package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipforge/clipforge/internal/types"
)

func TestMuteFilter(t *testing.T) {
	got := MuteFilter([]types.Interval{
		{Start: 1.5, End: 2.25},
		{Start: 10, End: 10.5},
	})
	want := "volume=enable='between(t,1.500,2.250)':volume=0," +
		"volume=enable='between(t,10.000,10.500)':volume=0"
	assert.Equal(t, want, got)
}

func TestDrawtextFilter(t *testing.T) {
	got := DrawtextFilter("Wait for it", "", 3)
	assert.Contains(t, got, "drawtext=text='Wait for it'")
	assert.Contains(t, got, "enable='between(t,0,3.000)'")
	assert.NotContains(t, got, "fontfile")

	withFont := DrawtextFilter("x", "/fonts/bold.ttf", 3)
	assert.Contains(t, withFont, "fontfile='/fonts/bold.ttf'")
}

func TestEscapeDrawtext(t *testing.T) {
	// Single quotes would terminate the filter argument.
	assert.NotContains(t, escapeDrawtext("it's here"), "'")
	assert.Equal(t, `a\:b`, escapeDrawtext("a:b"))
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, `C\:\\tmp\\subs.ass`, escapeFilterPath(`C:\tmp\subs.ass`))
	assert.Equal(t, "/tmp/subs.ass", escapeFilterPath("/tmp/subs.ass"))
}

func TestFmtSeconds(t *testing.T) {
	assert.Equal(t, "0.000", fmtSeconds(0))
	assert.Equal(t, "12.345", fmtSeconds(12.345))
	assert.Equal(t, "90.000", fmtSeconds(90))
}
