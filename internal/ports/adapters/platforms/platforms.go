package platforms

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clipforge/clipforge/internal/creds"
	"github.com/clipforge/clipforge/internal/model"
	"github.com/clipforge/clipforge/internal/ports"
)

// Platform posters share a single per-account pacing rule: at most one post
// per hour. Platform specific daily quotas live in the scheduler.
const minPostInterval = time.Hour

// Registry is the closed set of poster adapters, one per platform variant.
type Registry struct {
	posters map[model.Platform]ports.Poster
}

func NewRegistry(keeper *creds.Keeper, client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	r := &Registry{posters: map[model.Platform]ports.Poster{}}
	for _, p := range []ports.Poster{
		NewTikTok(keeper, client),
		NewInstagram(keeper, client),
		NewTwitter(keeper, client),
		NewYouTube(keeper),
	} {
		r.posters[p.Platform()] = p
	}
	return r
}

func (r *Registry) For(p model.Platform) (ports.Poster, error) {
	poster, ok := r.posters[p]
	if !ok {
		return nil, fmt.Errorf("no poster registered for platform %q", p)
	}
	return poster, nil
}

func canPostNow(account *model.Account, now time.Time) bool {
	if account.LastPostedAt == nil {
		return true
	}
	return now.Sub(*account.LastPostedAt) >= minPostInterval
}

func credString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("credentials missing %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("credential %q is not a non-empty string", key)
	}
	return s, nil
}
