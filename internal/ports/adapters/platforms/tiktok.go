package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/clipforge/clipforge/internal/creds"
	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/ports"
)

const tiktokBaseURL = "https://open.tiktokapis.com/v2"

// TikTok posts through the content posting API: init an upload, PUT the
// file, then poll publish status until the post lands or fails.
type TikTok struct {
	keeper  *creds.Keeper
	client  *http.Client
	baseURL string
}

func NewTikTok(keeper *creds.Keeper, client *http.Client) *TikTok {
	return &TikTok{keeper: keeper, client: client, baseURL: tiktokBaseURL}
}

func (t *TikTok) Platform() model.Platform { return model.PlatformTikTok }

func (t *TikTok) CanPostNow(account *model.Account, now time.Time) bool {
	return canPostNow(account, now)
}

func (t *TikTok) PostVideo(ctx context.Context, path, caption string, account *model.Account) (ports.PostResult, error) {
	cm, err := t.keeper.Open(account.CredsSealed)
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: tiktok: %v", faults.ErrPosting, err)
	}
	token, err := credString(cm, "access_token")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: tiktok: %v", faults.ErrPosting, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: tiktok: %v", faults.ErrPosting, err)
	}

	publishID, uploadURL, err := t.initUpload(ctx, token, caption, st.Size())
	if err != nil {
		return ports.PostResult{}, err
	}
	if err := t.upload(ctx, uploadURL, path, st.Size()); err != nil {
		return ports.PostResult{}, err
	}
	if err := t.awaitPublish(ctx, token, publishID); err != nil {
		return ports.PostResult{}, err
	}

	return ports.PostResult{
		PlatformPostID: publishID,
		PostedAt:       time.Now().UTC(),
	}, nil
}

func (t *TikTok) initUpload(ctx context.Context, token, caption string, size int64) (string, string, error) {
	payload := map[string]any{
		"post_info": map[string]any{
			"title":           caption,
			"privacy_level":   "PUBLIC_TO_EVERYONE",
			"disable_duet":    false,
			"disable_stitch":  false,
			"disable_comment": false,
		},
		"source_info": map[string]any{
			"source":            "FILE_UPLOAD",
			"video_size":        size,
			"chunk_size":        size,
			"total_chunk_count": 1,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("%w: tiktok: marshal init: %v", faults.ErrPosting, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/post/publish/video/init/", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("%w: tiktok: %v", faults.ErrPosting, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: tiktok init: %v", faults.ErrPosting, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", "", fmt.Errorf("%w: tiktok init status %d: %s", faults.ErrPosting, resp.StatusCode, string(rb))
	}

	var out struct {
		Data struct {
			PublishID string `json:"publish_id"`
			UploadURL string `json:"upload_url"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("%w: tiktok init: decode: %v", faults.ErrPosting, err)
	}
	if out.Error.Code != "" && out.Error.Code != "ok" {
		return "", "", fmt.Errorf("%w: tiktok init: %s: %s", faults.ErrPosting, out.Error.Code, out.Error.Message)
	}
	if out.Data.PublishID == "" || out.Data.UploadURL == "" {
		return "", "", fmt.Errorf("%w: tiktok init returned no upload target", faults.ErrPosting)
	}
	return out.Data.PublishID, out.Data.UploadURL, nil
}

func (t *TikTok) upload(ctx context.Context, uploadURL, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: tiktok upload: %v", faults.ErrPosting, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("%w: tiktok upload: %v", faults.ErrPosting, err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: tiktok upload: %v", faults.ErrPosting, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: tiktok upload status %d: %s", faults.ErrPosting, resp.StatusCode, string(rb))
	}
	return nil
}

func (t *TikTok) awaitPublish(ctx context.Context, token, publishID string) error {
	body, _ := json.Marshal(map[string]string{"publish_id": publishID})
	for i := 0; i < 30; i++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: tiktok publish: %v", faults.ErrPosting, ctx.Err())
		case <-time.After(2 * time.Second):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/post/publish/status/fetch/", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%w: tiktok publish: %v", faults.ErrPosting, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: tiktok publish status: %v", faults.ErrPosting, err)
		}
		var out struct {
			Data struct {
				Status     string `json:"status"`
				FailReason string `json:"fail_reason"`
			} `json:"data"`
		}
		decErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if decErr != nil {
			return fmt.Errorf("%w: tiktok publish status: decode: %v", faults.ErrPosting, decErr)
		}

		switch out.Data.Status {
		case "PUBLISH_COMPLETE":
			return nil
		case "FAILED":
			return fmt.Errorf("%w: tiktok publish failed: %s", faults.ErrPosting, out.Data.FailReason)
		}
	}
	return fmt.Errorf("%w: tiktok publish %s did not complete in time", faults.ErrPosting, publishID)
}

var _ ports.Poster = (*TikTok)(nil)
