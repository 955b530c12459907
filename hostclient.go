package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// FetchResult is the outcome of downloading a source tarball.
type FetchResult struct {
	Bytes       []byte
	ResolvedURL string
	Commit      string
}

// HostClient is the capability surface the Installer needs against a
// single Git host. One implementation exists per supported host
// ("github", "gitlab", "gitea"); all three share the retrying tarball
// transport in this file.
type HostClient interface {
	// ResolveRefToCommit returns the commit SHA ref currently points at.
	// For an already-40-hex commit ref it returns it unchanged without a
	// network call.
	ResolveRefToCommit(ctx context.Context, owner, repo, ref string) (string, error)
	// FetchTarball downloads the source tarball for ref.
	// pkg and bus drive package-progress events while the body is read; bus
	// may be nil, in which case no events are emitted.
	FetchTarball(ctx context.Context, owner, repo, ref, pkg string, bus *ProgressBus) (*FetchResult, error)
	// ListTags paginates the full tag list for a repository.
	ListTags(ctx context.Context, owner, repo string) ([]string, error)
}

// HostClientConfig tunes retry/backoff behavior, per Open Question (c).
type HostClientConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// RequestsPerSecond paces the tarball downloads made through one
	// HostClient value; ref resolution and tag listing through the host
	// SDKs are not paced by it.
	RequestsPerSecond float64
}

// DefaultHostClientConfig mirrors spec.md's defaults.
func DefaultHostClientConfig() HostClientConfig {
	return HostClientConfig{
		MaxRetries:        5,
		BaseDelay:         200 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		RequestsPerSecond: 10,
	}
}

// newRetryableClient builds a *retryablehttp.Client configured per cfg,
// silenced (no internal logging — the Progress Bus owns all user-visible
// output) and optionally authenticated via an oauth2-wrapped transport.
func newRetryableClient(cfg HostClientConfig, token string) *retryablehttp.Client {
	base := cleanhttp.DefaultPooledClient()
	if token != "" {
		base = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.BaseDelay
	rc.RetryWaitMax = cfg.MaxDelay
	rc.Logger = nil
	rc.CheckRetry = hostClientRetryPolicy
	return rc
}

// hostClientRetryPolicy retries connect errors, 5xx, and 429; any other 4xx
// fails immediately, per spec.md §4.D.
func hostClientRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// downloadTarball streams a tarball URL through the retrying transport,
// applying a rate limiter, and returns the full body plus the commit SHA
// observed in the response (ETag, else the final redirect URL's trailing
// segment). If bus is non-nil, a package-progress event is emitted for every
// chunk read off the wire.
func downloadTarball(ctx context.Context, rc *retryablehttp.Client, limiter *rate.Limiter, url, pkg string, bus *ProgressBus) (*FetchResult, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{URL: url, Err: err}
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	resp, err := rc.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{Host: req.URL.Host, Code: resp.StatusCode}
	case http.StatusNotFound:
		return nil, &NotFoundError{Ref: url}
	case http.StatusTooManyRequests:
		return nil, &RateLimitedError{Host: req.URL.Host, RetryAfter: parseRetryAfter(resp)}
	}
	if resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	var buf bytes.Buffer
	var dst io.Writer = &buf
	if bus != nil {
		dst = &progressCountingWriter{
			inner: &buf,
			pkg:   pkg,
			total: total,
			onWrite: func(pkg string, written, total int64) {
				bus.PackageProgress(pkg, written, total)
			},
		}
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	body := buf.Bytes()

	commit := resp.Header.Get("ETag")
	if commit == "" {
		commit = trailingCommitSegment(resp.Request.URL.String())
	}

	return &FetchResult{Bytes: body, ResolvedURL: resp.Request.URL.String(), Commit: commit}, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := time.ParseDuration(v + "s"); err == nil {
			return secs
		}
	}
	return 0
}

func trailingCommitSegment(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return ""
}

// NewHostClient constructs the HostClient implementation for host
// ("github", "gitlab", "gitea"), wiring credentials from provider.
func NewHostClient(host string, cfg HostClientConfig, provider *CredentialProvider) (HostClient, error) {
	token := provider.Token(host)
	switch host {
	case "github", "":
		return newGitHubHostClient(cfg, token), nil
	case "gitlab":
		return newGitLabHostClient(cfg, token)
	case "gitea":
		return newGiteaHostClient(cfg, token)
	default:
		return nil, fmt.Errorf("unsupported host %q", host)
	}
}
