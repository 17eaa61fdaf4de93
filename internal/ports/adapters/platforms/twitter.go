package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
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
	twitterUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	twitterAPIURL    = "https://api.twitter.com/2"

	twitterChunkSize = 4 << 20
)

// Twitter uploads video through the chunked media endpoint (INIT, APPEND,
// FINALIZE) and then creates the tweet referencing the media id.
type Twitter struct {
	keeper    *creds.Keeper
	client    *http.Client
	uploadURL string
	apiURL    string
}

func NewTwitter(keeper *creds.Keeper, client *http.Client) *Twitter {
	return &Twitter{keeper: keeper, client: client, uploadURL: twitterUploadURL, apiURL: twitterAPIURL}
}

func (t *Twitter) Platform() model.Platform { return model.PlatformTwitter }

func (t *Twitter) CanPostNow(account *model.Account, now time.Time) bool {
	return canPostNow(account, now)
}

func (t *Twitter) PostVideo(ctx context.Context, path, caption string, account *model.Account) (ports.PostResult, error) {
	cm, err := t.keeper.Open(account.CredsSealed)
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: twitter: %v", faults.ErrPosting, err)
	}
	token, err := credString(cm, "access_token")
	if err != nil {
		return ports.PostResult{}, fmt.Errorf("%w: twitter: %v", faults.ErrPosting, err)
	}

	mediaID, err := t.uploadMedia(ctx, token, path)
	if err != nil {
		return ports.PostResult{}, err
	}
	tweetID, err := t.createTweet(ctx, token, caption, mediaID)
	if err != nil {
		return ports.PostResult{}, err
	}

	return ports.PostResult{
		PlatformPostID: tweetID,
		PostedAt:       time.Now().UTC(),
		PostURL:        "https://twitter.com/" + account.Username + "/status/" + tweetID,
	}, nil
}

func (t *Twitter) uploadMedia(ctx context.Context, token, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: twitter upload: %v", faults.ErrPosting, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: twitter upload: %v", faults.ErrPosting, err)
	}

	mediaID, err := t.uploadInit(ctx, token, st.Size())
	if err != nil {
		return "", err
	}

	buf := make([]byte, twitterChunkSize)
	for segment := 0; ; segment++ {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			if err := t.uploadAppend(ctx, token, mediaID, segment, buf[:n]); err != nil {
				return "", err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("%w: twitter upload: read chunk: %v", faults.ErrPosting, readErr)
		}
	}

	if err := t.uploadFinalize(ctx, token, mediaID); err != nil {
		return "", err
	}
	return mediaID, nil
}

func (t *Twitter) uploadInit(ctx context.Context, token string, size int64) (string, error) {
	form := url.Values{}
	form.Set("command", "INIT")
	form.Set("media_type", "video/mp4")
	form.Set("media_category", "tweet_video")
	form.Set("total_bytes", strconv.FormatInt(size, 10))

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := t.doForm(ctx, token, form, &out); err != nil {
		return "", fmt.Errorf("%w: twitter INIT: %v", faults.ErrPosting, err)
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("%w: twitter INIT returned no media id", faults.ErrPosting)
	}
	return out.MediaIDString, nil
}

func (t *Twitter) uploadAppend(ctx context.Context, token, mediaID string, segment int, chunk []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("command", "APPEND")
	_ = mw.WriteField("media_id", mediaID)
	_ = mw.WriteField("segment_index", strconv.Itoa(segment))
	fw, err := mw.CreateFormField("media")
	if err != nil {
		return fmt.Errorf("%w: twitter APPEND: %v", faults.ErrPosting, err)
	}
	if _, err := fw.Write(chunk); err != nil {
		return fmt.Errorf("%w: twitter APPEND: %v", faults.ErrPosting, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: twitter APPEND: %v", faults.ErrPosting, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, &body)
	if err != nil {
		return fmt.Errorf("%w: twitter APPEND: %v", faults.ErrPosting, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: twitter APPEND: %v", faults.ErrPosting, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: twitter APPEND status %d: %s", faults.ErrPosting, resp.StatusCode, string(rb))
	}
	return nil
}

func (t *Twitter) uploadFinalize(ctx context.Context, token, mediaID string) error {
	form := url.Values{}
	form.Set("command", "FINALIZE")
	form.Set("media_id", mediaID)

	var out struct {
		ProcessingInfo *struct {
			State          string `json:"state"`
			CheckAfterSecs int    `json:"check_after_secs"`
			Error          *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"processing_info"`
	}
	if err := t.doForm(ctx, token, form, &out); err != nil {
		return fmt.Errorf("%w: twitter FINALIZE: %v", faults.ErrPosting, err)
	}

	// Video uploads process asynchronously; poll STATUS until done.
	for out.ProcessingInfo != nil {
		switch out.ProcessingInfo.State {
		case "succeeded":
			return nil
		case "failed":
			msg := "unknown"
			if out.ProcessingInfo.Error != nil {
				msg = out.ProcessingInfo.Error.Message
			}
			return fmt.Errorf("%w: twitter media processing failed: %s", faults.ErrPosting, msg)
		}

		wait := time.Duration(out.ProcessingInfo.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = 2 * time.Second
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: twitter FINALIZE: %v", faults.ErrPosting, ctx.Err())
		case <-time.After(wait):
		}

		status := url.Values{}
		status.Set("command", "STATUS")
		status.Set("media_id", mediaID)
		out.ProcessingInfo = nil
		if err := t.doStatus(ctx, token, status, &out); err != nil {
			return fmt.Errorf("%w: twitter STATUS: %v", faults.ErrPosting, err)
		}
	}
	return nil
}

func (t *Twitter) createTweet(ctx context.Context, token, caption, mediaID string) (string, error) {
	payload := map[string]any{
		"text": caption,
		"media": map[string]any{
			"media_ids": []string{mediaID},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: twitter tweet: %v", faults.ErrPosting, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: twitter tweet: %v", faults.ErrPosting, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: twitter tweet: %v", faults.ErrPosting, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%w: twitter tweet status %d: %s", faults.ErrPosting, resp.StatusCode, string(rb))
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: twitter tweet: decode: %v", faults.ErrPosting, err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: twitter tweet returned no id", faults.ErrPosting)
	}
	return out.Data.ID, nil
}

func (t *Twitter) doForm(ctx context.Context, token string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req, out)
}

func (t *Twitter) doStatus(ctx context.Context, token string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.uploadURL+"?"+form.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return t.do(req, out)
}

func (t *Twitter) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
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

var _ ports.Poster = (*Twitter)(nil)
