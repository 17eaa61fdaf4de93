package platforms

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/clipforge/clipforge/internal/creds"
	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/ports"
)

// YouTube uploads clips as Shorts through the Data API. Credentials hold an
// OAuth client plus refresh token; the token source refreshes on demand.
type YouTube struct {
	keeper *creds.Keeper
}

func NewYouTube(keeper *creds.Keeper) *YouTube {
	return &YouTube{keeper: keeper}
}

func (y *YouTube) Platform() model.Platform { return model.PlatformYouTube }

func (y *YouTube) CanPostNow(account *model.Account, now time.Time) bool {
	return canPostNow(account, now)
}

func (y *YouTube) PostVideo(ctx context.Context, path, caption string, account *model.Account) (ports.PostResult, error) {
	cm, err := y.keeper.Open(account.CredsSealed)
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube: %v", faults.ErrPosting, err)
	}
	clientID, err := credString(cm, "client_id")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube: %v", faults.ErrPosting, err)
	}
	clientSecret, err := credString(cm, "client_secret")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube: %v", faults.ErrPosting, err)
	}
	refreshToken, err := credString(cm, "refresh_token")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube: %v", faults.ErrPosting, err)
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube: create service: %v", faults.ErrPosting, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube: %v", faults.ErrPosting, err)
	}
	defer f.Close()

	title, description := splitCaption(caption)
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			CategoryId:  "24",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
		},
	}

	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Context(ctx).
		Media(f).
		Do()
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: youtube upload: %v", faults.ErrPosting, err)
	}

	return ports.PostResult{
		PlatformPostID: resp.Id,
		PostedAt:       time.Now().UTC(),
		PostURL:        "https://www.youtube.com/shorts/" + resp.Id,
	}, nil
}

// splitCaption uses the first line as the video title, capped at YouTube's
// 100 character limit, and the full caption as the description.
func splitCaption(caption string) (string, string) {
	title := caption
	if i := strings.IndexByte(caption, '\n'); i >= 0 {
		title = caption[:i]
	}
	title = strings.TrimSpace(title)
	if len(title) > 100 {
		title = title[:97] + "..."
	}
	if title == "" {
		title = "Clip"
	}
	return title, caption
}

var _ ports.Poster = (*YouTube)(nil)
