package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/clipforge/clipforge/internal/creds"
	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/ports"
)

const (
	instagramGraphURL  = "https://graph.facebook.com/v21.0"
	instagramUploadURL = "https://rupload.facebook.com/ig-api-upload"
)

// Instagram posts clips as Reels through the Graph API resumable upload:
// create a media container, push the bytes, then publish the container.
type Instagram struct {
	keeper    *creds.Keeper
	client    *http.Client
	graphURL  string
	uploadURL string
}

func NewInstagram(keeper *creds.Keeper, client *http.Client) *Instagram {
	return &Instagram{keeper: keeper, client: client, graphURL: instagramGraphURL, uploadURL: instagramUploadURL}
}

func (g *Instagram) Platform() model.Platform { return model.PlatformInstagram }

func (g *Instagram) CanPostNow(account *model.Account, now time.Time) bool {
	return canPostNow(account, now)
}

func (g *Instagram) PostVideo(ctx context.Context, path, caption string, account *model.Account) (ports.PostResult, error) {
	cm, err := g.keeper.Open(account.CredsSealed)
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: instagram: %v", faults.ErrPosting, err)
	}
	token, err := credString(cm, "access_token")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: instagram: %v", faults.ErrPosting, err)
	}
	userID, err := credString(cm, "ig_user_id")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: instagram: %v", faults.ErrPosting, err)
	}

	containerID, err := g.createContainer(ctx, token, userID, caption)
	if err != nil {
		return ports.PostResult{}, err
	}
	if err := g.uploadVideo(ctx, token, containerID, path); err != nil {
		return ports.PostResult{}, err
	}
	if err := g.awaitContainer(ctx, token, containerID); err != nil {
		return ports.PostResult{}, err
	}
	mediaID, err := g.publish(ctx, token, userID, containerID)
	if err != nil {
		return ports.PostResult{}, err
	}

	return ports.PostResult{
		PlatformPostID: mediaID,
		PostedAt:       time.Now().UTC(),
		PostURL:        "https://www.instagram.com/reel/" + mediaID,
	}, nil
}

func (g *Instagram) createContainer(ctx context.Context, token, userID, caption string) (string, error) {
	form := url.Values{}
	form.Set("media_type", "REELS")
	form.Set("upload_type", "resumable")
	form.Set("caption", caption)
	form.Set("access_token", token)

	var out struct {
		ID string `json:"id"`
	}
	if err := g.postForm(ctx, g.graphURL+"/"+userID+"/media", form, &out); err != nil {
		return "", fmt.Errorf("%w: instagram create container: %v", faults.ErrPosting, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: instagram create container returned no id", faults.ErrPosting)
	}
	return out.ID, nil
}

func (g *Instagram) uploadVideo(ctx context.Context, token, containerID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: instagram upload: %v", faults.ErrPosting, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: instagram upload: %v", faults.ErrPosting, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL+"/"+containerID, f)
	if err != nil {
		return fmt.Errorf("%w: instagram upload: %v", faults.ErrPosting, err)
	}
	req.ContentLength = st.Size()
	req.Header.Set("Authorization", "OAuth "+token)
	req.Header.Set("offset", "0")
	req.Header.Set("file_size", strconv.FormatInt(st.Size(), 10))

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: instagram upload: %v", faults.ErrPosting, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: instagram upload status %d: %s", faults.ErrPosting, resp.StatusCode, string(rb))
	}
	return nil
}

func (g *Instagram) awaitContainer(ctx context.Context, token, containerID string) error {
	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: instagram container: %v", faults.ErrPosting, ctx.Err())
		case <-time.After(2 * time.Second):
		}

		u := g.graphURL + "/" + containerID + "?fields=status_code&access_token=" + url.QueryEscape(token)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("%w: instagram container: %v", faults.ErrPosting, err)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: instagram container status: %v", faults.ErrPosting, err)
		}
		var out struct {
			StatusCode string `json:"status_code"`
		}
		decErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if decErr != nil {
			return fmt.Errorf("%w: instagram container status: decode: %v", faults.ErrPosting, decErr)
		}

		switch out.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("%w: instagram container %s: %s", faults.ErrPosting, containerID, out.StatusCode)
		}
	}
	return fmt.Errorf("%w: instagram container %s did not finish in time", faults.ErrPosting, containerID)
}

func (g *Instagram) publish(ctx context.Context, token, userID, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", token)

	var out struct {
		ID string `json:"id"`
	}
	if err := g.postForm(ctx, g.graphURL+"/"+userID+"/media_publish", form, &out); err != nil {
		return "", fmt.Errorf("%w: instagram publish: %v", faults.ErrPosting, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: instagram publish returned no id", faults.ErrPosting)
	}
	return out.ID, nil
}

func (g *Instagram) postForm(ctx context.Context, u string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(rb))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ports.Poster = (*Instagram)(nil)
