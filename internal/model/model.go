package model

import (
	"time"

	"github.com/clipforge/clipforge/internal/types"
)

type SourceStatus string

const (
	SourcePending      SourceStatus = "pending"
	SourceTranscribing SourceStatus = "transcribing"
	SourceReady        SourceStatus = "ready"
	SourceFailed       SourceStatus = "failed"
)

type MomentStatus string

const (
	MomentDetected   MomentStatus = "detected"
	MomentGenerating MomentStatus = "generating"
	MomentReady      MomentStatus = "ready"
	MomentPosted     MomentStatus = "posted"
	MomentFailed     MomentStatus = "failed"
)

type PostStatus string

const (
	PostQueued  PostStatus = "queued"
	PostPosting PostStatus = "posting"
	PostPosted  PostStatus = "posted"
	PostFailed  PostStatus = "failed"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountWarned    AccountStatus = "warned"
	AccountSuspended AccountStatus = "suspended"
	AccountBanned    AccountStatus = "banned"
)

type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitter   Platform = "twitter"
)

// Platforms is the closed set of supported platform variants. Adding a
// platform means a new constant here and a new poster adapter, nothing else.
var Platforms = []Platform{PlatformTikTok, PlatformInstagram, PlatformYouTube, PlatformTwitter}

func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Source is one ingested video. The transcript is set exactly once by the
// transcription task; downstream stages never mutate the row.
type Source struct {
	ID          int64
	URL         string
	FilePath    string
	Title       string
	DurationSec float64
	Transcript  *types.Transcript
	Status      SourceStatus
	CreatedAt   time.Time
}

// ClipMoment is one candidate excerpt of a Source. Rows are never deleted,
// only marked failed.
type ClipMoment struct {
	ID          int64
	SourceID    int64
	StartSec    float64
	EndSec      float64
	ViralScore  int
	HookText    string
	CaptionText string
	Reasoning   string
	Status      MomentStatus
	CreatedAt   time.Time
}

func (m *ClipMoment) DurationSec() float64 { return m.EndSec - m.StartSec }

// GeneratedClip is one rendered output file for a moment. Regeneration
// creates a new row with the next variation number, never overwrites.
type GeneratedClip struct {
	ID            int64
	MomentID      int64
	FilePath      string
	DurationSec   float64
	Resolution    string
	CaptionStyle  string
	HookStyle     string
	Variation     int
	QualityPassed bool
	CreatedAt     time.Time
}

// Account is one social platform identity. Credentials are stored only in
// sealed form; decryption happens transiently inside the posting call.
type Account struct {
	ID           int64
	Platform     Platform
	Username     string
	CredsSealed  string
	SessionPath  string
	Status       AccountStatus
	LastPostedAt *time.Time
	CreatedAt    time.Time
}

// PostJob binds a GeneratedClip to an Account at a scheduled time. A failed
// job never transitions back to queued; retries are fresh rows carrying an
// incremented RetryCount.
type PostJob struct {
	ID             int64
	ClipID         int64
	AccountID      int64
	ScheduledAt    time.Time
	PostedAt       *time.Time
	PlatformPostID string
	Status         PostStatus
	ErrorMessage   string
	Caption        string
	Hashtags       string
	RetryCount     int
	CreatedAt      time.Time
}
