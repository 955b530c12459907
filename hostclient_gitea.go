package main

import (
	"context"
	"fmt"
	"net/http"

	"code.gitea.io/sdk/gitea"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// giteaBaseURL is the single Gitea/Forgejo origin every "gitea"-host
// dependency is resolved and fetched against. It is a fixed constant:
// neither the manifest's host field nor any workspace setting changes it.
const giteaBaseURL = "https://gitea.example.com"

// giteaHostClient mirrors githubHostClient against a Gitea/Forgejo
// instance reachable over HTTPS (spec.md §1's "Git hosts reachable over
// HTTPS").
type giteaHostClient struct {
	api     *gitea.Client
	rc      *retryablehttp.Client
	limiter *rate.Limiter
}

func newGiteaHostClient(cfg HostClientConfig, token string) (*giteaHostClient, error) {
	opts := []gitea.ClientOption{}
	if token != "" {
		opts = append(opts, gitea.SetToken(token))
	}
	api, err := gitea.NewClient(giteaBaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("constructing gitea client: %w", err)
	}
	return &giteaHostClient{
		api:     api,
		rc:      newRetryableClient(cfg, token),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

func (c *giteaHostClient) ResolveRefToCommit(ctx context.Context, owner, repo, ref string) (string, error) {
	if ClassifyRef(ref) == RefTypeCommit {
		return ref, nil
	}
	commit, resp, err := c.api.GetSingleCommit(owner, repo, ref)
	if err != nil {
		return "", classifyGiteaError(owner, repo, ref, resp, err)
	}
	return commit.SHA, nil
}

func (c *giteaHostClient) FetchTarball(ctx context.Context, owner, repo, ref, pkg string, bus *ProgressBus) (*FetchResult, error) {
	url := fmt.Sprintf("%s/%s/%s/archive/%s.tar.gz", giteaBaseURL, owner, repo, ref)

	result, err := downloadTarball(ctx, c.rc, c.limiter, url, pkg, bus)
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

func (c *giteaHostClient) ListTags(ctx context.Context, owner, repo string) ([]string, error) {
	var all []string
	page := 1
	for {
		tags, resp, err := c.api.ListRepoTags(owner, repo, gitea.ListRepoTagsOptions{
			ListOptions: gitea.ListOptions{Page: page, PageSize: 50},
		})
		if err != nil {
			return nil, classifyGiteaError(owner, repo, "", resp, err)
		}
		for _, t := range tags {
			all = append(all, t.Name)
		}
		if len(tags) < 50 {
			break
		}
		page++
	}
	return all, nil
}

func classifyGiteaError(owner, repo, ref string, resp *gitea.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return &NetworkError{URL: owner + "/" + repo, Err: err}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{Owner: owner, Repo: repo, Ref: ref}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Host: "gitea", Code: resp.StatusCode}
	case http.StatusTooManyRequests:
		return &RateLimitedError{Host: "gitea"}
	default:
		return &NetworkError{URL: owner + "/" + repo, Err: err}
	}
}
