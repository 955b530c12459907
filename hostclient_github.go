package main

import (
	"context"
	"net/http"

	"github.com/google/go-github/v74/github"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// githubHostClient resolves refs and lists tags via the GitHub REST API,
// but downloads the archive itself through the shared retrying transport
// since go-github's archive call only returns a redirect URL.
type githubHostClient struct {
	api     *github.Client
	rc      *retryablehttp.Client
	limiter *rate.Limiter
}

func newGitHubHostClient(cfg HostClientConfig, token string) *githubHostClient {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	api := github.NewClient(httpClient)

	return &githubHostClient{
		api:     api,
		rc:      newRetryableClient(cfg, token),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

func (c *githubHostClient) ResolveRefToCommit(ctx context.Context, owner, repo, ref string) (string, error) {
	if ClassifyRef(ref) == RefTypeCommit {
		return ref, nil
	}
	sha, resp, err := c.api.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	if err != nil {
		return "", classifyGitHubError(owner, repo, ref, resp, err)
	}
	return sha, nil
}

func (c *githubHostClient) FetchTarball(ctx context.Context, owner, repo, ref, pkg string, bus *ProgressBus) (*FetchResult, error) {
	url, _, err := c.api.Repositories.GetArchiveLink(ctx, owner, repo, github.Tarball, &github.RepositoryContentGetOptions{Ref: ref}, 0)
	if err != nil {
		return nil, classifyGitHubError(owner, repo, ref, nil, err)
	}
	result, err := downloadTarball(ctx, c.rc, c.limiter, url.String(), pkg, bus)
	if err != nil {
		return nil, err
	}
	if result.Commit == "" || ClassifyRef(result.Commit) != RefTypeCommit {
		if sha, resolveErr := c.ResolveRefToCommit(ctx, owner, repo, ref); resolveErr == nil {
			result.Commit = sha
		}
	}
	return result, nil
}

func (c *githubHostClient) ListTags(ctx context.Context, owner, repo string) ([]string, error) {
	var all []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		tags, resp, err := c.api.Repositories.ListTags(ctx, owner, repo, opts)
		if err != nil {
			return nil, classifyGitHubError(owner, repo, "", resp, err)
		}
		for _, t := range tags {
			all = append(all, t.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func classifyGitHubError(owner, repo, ref string, resp *github.Response, err error) error {
	if resp == nil {
		return &NetworkError{URL: owner + "/" + repo, Err: err}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{Owner: owner, Repo: repo, Ref: ref}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Host: "github.com", Code: resp.StatusCode}
	case http.StatusTooManyRequests:
		return &RateLimitedError{Host: "github.com"}
	default:
		return &NetworkError{URL: owner + "/" + repo, Err: err}
	}
}
