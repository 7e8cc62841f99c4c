package deploy

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// NewGitHubClient creates a GitHub API client. A non-empty token
// authenticates requests, which raises the rate limit.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// CommitResolver looks up branch heads through the GitHub API.
type CommitResolver struct {
	client *github.Client
}

// NewCommitResolver creates a resolver using client.
func NewCommitResolver(client *github.Client) *CommitResolver {
	return &CommitResolver{client: client}
}

// Resolve returns the SHA of the head commit of branch in repo (owner/name).
func (r *CommitResolver) Resolve(ctx context.Context, repo, branch string) (string, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return "", err
	}

	sha, resp, err := r.client.Repositories.GetCommitSHA1(ctx, owner, name, branch, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("branch %s not found in %s", branch, repo)
		}
		return "", fmt.Errorf("resolving %s@%s: %w", repo, branch, err)
	}
	return strings.TrimSpace(sha), nil
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", repo)
	}
	return owner, name, nil
}
