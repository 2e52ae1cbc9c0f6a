// Package github is the source-repository fetcher collaborator. It
// wraps the GitHub REST API: repository metadata, recursive tree
// listing and file contents. Metadata and trees are cached in Redis
// for a short TTL when a client is available; without Redis every
// call goes straight to the API.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const apiBase = "https://api.github.com"

// ErrRepoNotFound is returned when the target repository does not
// exist or is not visible with the configured token. Handlers map
// it to 404.
var ErrRepoNotFound = errors.New("repository not found")

// RepoInfo is the metadata slice the analysis prompt needs.
type RepoInfo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
	Language      string `json:"language"`
	DefaultBranch string `json:"defaultBranch"`
}

// FileContent is one fetched file.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Client calls the GitHub REST API with an optional bearer token
// (unauthenticated requests are heavily rate limited) and an
// optional Redis cache.
type Client struct {
	token    string
	http     *http.Client
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewClient builds a fetcher. rdb may be nil; caching is then
// disabled.
func NewClient(token string, rdb *redis.Client) *Client {
	return &Client{
		token:    token,
		http:     &http.Client{Timeout: 20 * time.Second},
		rdb:      rdb,
		cacheTTL: 10 * time.Minute,
	}
}

// ParseRepoURL extracts owner and repo from a GitHub repository URL
// such as https://github.com/owner/repo (optionally with .git or a
// trailing path).
func ParseRepoURL(raw string) (owner, repo string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Host), "github.com") {
		return "", "", fmt.Errorf("not a github repository url: %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("not a github repository url: %q", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Fetch returns repository metadata.
func (c *Client) Fetch(ctx context.Context, owner, repo string) (RepoInfo, error) {
	cacheKey := "gh:repo:" + owner + "/" + repo
	var info RepoInfo
	if c.cacheGet(ctx, cacheKey, &info) {
		return info, nil
	}

	var body struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		Stars         int    `json:"stargazers_count"`
		Forks         int    `json:"forks_count"`
		Language      string `json:"language"`
		DefaultBranch string `json:"default_branch"`
		Owner         struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", apiBase, owner, repo), &body); err != nil {
		return RepoInfo{}, err
	}
	info = RepoInfo{
		Owner:         body.Owner.Login,
		Name:          body.Name,
		Description:   body.Description,
		Stars:         body.Stars,
		Forks:         body.Forks,
		Language:      body.Language,
		DefaultBranch: body.DefaultBranch,
	}
	c.cacheSet(ctx, cacheKey, info)
	return info, nil
}

// ListFiles returns the paths of all blobs in the repository tree at
// the given branch.
func (c *Client) ListFiles(ctx context.Context, owner, repo, branch string) ([]string, error) {
	cacheKey := "gh:tree:" + owner + "/" + repo + "@" + branch
	var paths []string
	if c.cacheGet(ctx, cacheKey, &paths) {
		return paths, nil
	}

	var body struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", apiBase, owner, repo, url.PathEscape(branch))
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	for _, e := range body.Tree {
		if e.Type == "blob" {
			paths = append(paths, e.Path)
		}
	}
	if body.Truncated {
		log.Printf("WARN: github: tree for %s/%s@%s truncated at %d entries", owner, repo, branch, len(paths))
	}
	c.cacheSet(ctx, cacheKey, paths)
	return paths, nil
}

// ReadFiles fetches the contents of the given paths at branch. Files
// that fail to fetch or decode are skipped; analysis works with
// whatever survived.
func (c *Client) ReadFiles(ctx context.Context, owner, repo, branch string, paths []string) ([]FileContent, error) {
	files := make([]FileContent, 0, len(paths))
	for _, p := range paths {
		var body struct {
			Encoding string `json:"encoding"`
			Content  string `json:"content"`
		}
		u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", apiBase, owner, repo, escapePath(p), url.QueryEscape(branch))
		if err := c.getJSON(ctx, u, &body); err != nil {
			if errors.Is(err, ErrRepoNotFound) {
				continue // path missing on this branch
			}
			return files, err
		}
		content := body.Content
		if body.Encoding == "base64" {
			raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
			if err != nil {
				log.Printf("WARN: github: decode %s: %v", p, err)
				continue
			}
			content = string(raw)
		}
		files = append(files, FileContent{Path: p, Content: content})
	}
	return files, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRepoNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("github: unexpected status %d for %s", resp.StatusCode, u)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// escapePath escapes each path segment while keeping separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func (c *Client) cacheGet(ctx context.Context, key string, out any) bool {
	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *Client) cacheSet(ctx context.Context, key string, v any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
		log.Printf("WARN: github: cache set %s: %v", key, err)
	}
}
