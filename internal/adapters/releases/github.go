package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultUserAgent = "release-stats"
)

// GitHubSource implements ReleaseSource against the GitHub REST API.
type GitHubSource struct {
	baseURL    string
	userAgent  string
	token      string
	httpClient *http.Client
}

// NewGitHubSource creates a release source. An empty token sends
// unauthenticated requests.
func NewGitHubSource(baseURL, userAgent, token string, timeout time.Duration) *GitHubSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &GitHubSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListReleases fetches GET /repos/{owner}/{repo}/releases.
func (g *GitHubSource) ListReleases(ctx context.Context, repo string) ([]models.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases", g.baseURL, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github: create releases request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", services.ErrSourceUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned %d: %s", services.ErrSourceUnavailable, url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var releases []models.Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", services.ErrMalformedResponse, url, err)
	}
	return releases, nil
}
