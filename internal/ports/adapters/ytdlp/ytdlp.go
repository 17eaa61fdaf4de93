package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/faults"
	"github.com/clipforge/clipforge/internal/ports"
)

// Adapter fetches source videos through yt-dlp. URLs are validated before
// any network traffic happens.
type Adapter struct {
	bin            string
	allowedDomains []string
	timeout        time.Duration
	lookupIP       func(host string) ([]net.IP, error)
}

func New(binPath string, allowedDomains []string, timeout time.Duration) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Adapter{
		bin:            binPath,
		allowedDomains: allowedDomains,
		timeout:        timeout,
		lookupIP:       net.LookupIP,
	}
}

// Resolve validates rawURL and returns the cleaned form. HTTPS only,
// hostname must match the allow list, and every resolved address must be
// publicly routable.
func (a *Adapter) Resolve(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", faults.ErrValidation, err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q not allowed, https only", faults.ErrValidation, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: url has no host", faults.ErrValidation)
	}
	if !a.domainAllowed(host) {
		return "", fmt.Errorf("%w: domain %q is not on the allow list", faults.ErrValidation, host)
	}
	ips, err := a.lookupIP(host)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %q: %v", faults.ErrValidation, host, err)
	}
	if err := checkAddrs(host, ips); err != nil {
		return "", err
	}
	return u.String(), nil
}

func (a *Adapter) domainAllowed(host string) bool {
	for _, d := range a.allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func checkAddrs(host string, ips []net.IP) error {
	if len(ips) == 0 {
		return fmt.Errorf("%w: %q resolved to no addresses", faults.ErrValidation, host)
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: %q resolves to non-public address %s", faults.ErrValidation, host, ip)
		}
	}
	return nil
}

func (a *Adapter) Download(ctx context.Context, rawURL, destDir string) (ports.DownloadResult, error) {
	validated, err := a.Resolve(rawURL)
	if err != nil {
		return ports.DownloadResult{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	outTmpl := filepath.Join(destDir, "%(id)s.%(ext)s")
	args := []string{
		"--no-playlist",
		"--restrict-filenames",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", outTmpl,
		"--print", "after_move:filepath",
		"--print", "title",
		"--print", "duration",
		"--no-simulate",
		validated,
	}
	cmd := exec.CommandContext(runCtx, a.bin, args...)
	b, err := cmd.Output()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ports.DownloadResult{}, fmt.Errorf("%w: yt-dlp timed out after %s", faults.ErrDownload, a.timeout)
		}
		return ports.DownloadResult{}, fmt.Errorf("%w: yt-dlp: %v", faults.ErrDownload, err)
	}

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) < 3 {
		return ports.DownloadResult{}, fmt.Errorf("%w: unexpected yt-dlp output: %q", faults.ErrDownload, string(b))
	}
	res := ports.DownloadResult{
		FilePath: strings.TrimSpace(lines[len(lines)-3]),
		Title:    strings.TrimSpace(lines[len(lines)-2]),
	}
	fmt.Sscanf(strings.TrimSpace(lines[len(lines)-1]), "%f", &res.DurationSec)
	if res.FilePath == "" {
		return ports.DownloadResult{}, fmt.Errorf("%w: yt-dlp reported no output file", faults.ErrDownload)
	}
	return res, nil
}

func (a *Adapter) Info(ctx context.Context, rawURL string) (ports.DownloadInfo, error) {
	validated, err := a.Resolve(rawURL)
	if err != nil {
		return ports.DownloadInfo{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.bin, "--no-playlist", "-J", validated)
	b, err := cmd.Output()
	if err != nil {
		return ports.DownloadInfo{}, fmt.Errorf("%w: yt-dlp info: %v", faults.ErrDownload, err)
	}

	var raw struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
		Uploader string  `json:"uploader"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return ports.DownloadInfo{}, fmt.Errorf("%w: parse yt-dlp info: %v", faults.ErrDownload, err)
	}
	return ports.DownloadInfo{
		ID:          raw.ID,
		Title:       raw.Title,
		DurationSec: raw.Duration,
		Uploader:    raw.Uploader,
	}, nil
}

var _ ports.Downloader = (*Adapter)(nil)
