package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// NewClient creates a go-github client authenticated with token. apiURL is
// the runner's GITHUB_API_URL; empty or the public endpoint keeps the default.
func NewClient(ctx context.Context, token, apiURL string) (*gh.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := gh.NewClient(httpClient)

	apiURL = strings.TrimSuffix(apiURL, "/")
	if apiURL == "" || apiURL == defaultAPIURL {
		return client, nil
	}
	enterprise, err := client.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	return enterprise, nil
}

// ResolveToken returns token when set, otherwise exchanges the App credentials
// for an installation token scoped to repo.
func ResolveToken(ctx context.Context, token string, auth AuthProvider, repo string) (string, error) {
	if token != "" {
		return token, nil
	}
	if auth == nil {
		return "", fmt.Errorf("no github token or GitHub App credentials configured")
	}

	clog.FromContext(ctx).Infof("[GitHub] Requesting installation token for %s", repo)
	it, err := auth.GetInstallationToken(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("failed to get installation token: %w", err)
	}
	return it.Token, nil
}
