package main

import (
	"context"
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// gitlabHostClient mirrors githubHostClient against the GitLab API.
type gitlabHostClient struct {
	api     *gitlab.Client
	rc      *retryablehttp.Client
	limiter *rate.Limiter
}

func newGitLabHostClient(cfg HostClientConfig, token string) (*gitlabHostClient, error) {
	api, err := gitlab.NewClient(token)
	if err != nil {
		return nil, fmt.Errorf("constructing gitlab client: %w", err)
	}
	return &gitlabHostClient{
		api:     api,
		rc:      newRetryableClient(cfg, token),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

func (c *gitlabHostClient) projectID(owner, repo string) string {
	return owner + "/" + repo
}

func (c *gitlabHostClient) ResolveRefToCommit(ctx context.Context, owner, repo, ref string) (string, error) {
	if ClassifyRef(ref) == RefTypeCommit {
		return ref, nil
	}
	commit, resp, err := c.api.Commits.GetCommit(c.projectID(owner, repo), ref, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", classifyGitLabError(owner, repo, ref, resp, err)
	}
	return commit.ID, nil
}

func (c *gitlabHostClient) FetchTarball(ctx context.Context, owner, repo, ref, pkg string, bus *ProgressBus) (*FetchResult, error) {
	// GitLab serves archives directly (no redirect hop): build the URL by
	// hand rather than streaming through the SDK, same rationale as the
	// GitHub backend's archive-link + shared-transport split.
	url := fmt.Sprintf("https://gitlab.com/api/v4/projects/%s/repository/archive.tar.gz?sha=%s",
		pathEscapeProjectID(owner, repo), ref)

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

func (c *gitlabHostClient) ListTags(ctx context.Context, owner, repo string) ([]string, error) {
	var all []string
	opts := &gitlab.ListTagsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		tags, resp, err := c.api.Tags.ListTags(c.projectID(owner, repo), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classifyGitLabError(owner, repo, "", resp, err)
		}
		for _, t := range tags {
			all = append(all, t.Name)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func pathEscapeProjectID(owner, repo string) string {
	return owner + "%2F" + repo
}

func classifyGitLabError(owner, repo, ref string, resp *gitlab.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return &NetworkError{URL: owner + "/" + repo, Err: err}
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{Owner: owner, Repo: repo, Ref: ref}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Host: "gitlab.com", Code: resp.StatusCode}
	case http.StatusTooManyRequests:
		return &RateLimitedError{Host: "gitlab.com"}
	default:
		return &NetworkError{URL: owner + "/" + repo, Err: err}
	}
}
