// Package github implements the source client against the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

const (
	perPage  = 100
	maxPages = 50 // 5000 commits per directory and window
	apiVer   = "2022-11-28"
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements contract.SourceClient for GitHub.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPClient
	requests   atomic.Int64
}

var _ contract.SourceClient = &Client{} // Compile-time check

// NewClient creates a new GitHub client. An empty baseURL selects the public API.
func NewClient(baseURL, token string, httpClient HTTPClient) *Client {
	if baseURL == "" {
		baseURL = schema.DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: contract.DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Requests returns the number of HTTP requests issued so far.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// ListCommits retrieves the commits touching path within the window, following pagination.
func (c *Client) ListCommits(ctx context.Context, repo string, path string, window schema.PollWindow) ([]schema.CommitRef, error) {
	op := "list commits " + path
	q := url.Values{}
	q.Set("path", path)
	q.Set("since", window.Start.UTC().Format(time.RFC3339))
	q.Set("until", window.End.UTC().Format(time.RFC3339))
	q.Set("per_page", strconv.Itoa(perPage))
	next := fmt.Sprintf("%s/repos/%s/commits?%s", c.baseURL, repo, q.Encode())

	var refs []schema.CommitRef
	for page := 0; next != "" && page < maxPages; page++ {
		var ghCommits []githubCommit
		link, err := c.doRequest(ctx, op, next, &ghCommits)
		if err != nil {
			return nil, err
		}
		for _, gc := range ghCommits {
			ref, err := gc.toRef()
			if err != nil {
				return nil, contract.NewMalformedResponseError(op, err)
			}
			refs = append(refs, ref)
		}
		next = nextPageURL(link)
	}
	if next != "" {
		return nil, errTooManyPages(op)
	}
	return refs, nil
}

// GetCommit retrieves a single commit with its changed files. Large commits paginate their file list.
func (c *Client) GetCommit(ctx context.Context, repo string, sha string) (*schema.Commit, error) {
	op := "get commit " + shortSHA(sha)
	next := fmt.Sprintf("%s/repos/%s/commits/%s?per_page=%d", c.baseURL, repo, url.PathEscape(sha), perPage)

	var commit *schema.Commit
	for page := 0; next != "" && page < maxPages; page++ {
		var detail githubCommitDetail
		link, err := c.doRequest(ctx, op, next, &detail)
		if err != nil {
			return nil, err
		}
		if commit == nil {
			if commit, err = detail.toCommit(); err != nil {
				return nil, contract.NewMalformedResponseError(op, err)
			}
		}
		for _, f := range detail.Files {
			if f.Filename == "" {
				return nil, contract.NewMalformedResponseError(op, errors.New("file entry without filename"))
			}
			commit.Files = append(commit.Files, schema.CommitFile{
				Filename:         f.Filename,
				Status:           f.Status,
				BlobURL:          f.BlobURL,
				RawURL:           f.RawURL,
				PreviousFilename: f.PreviousFilename,
			})
		}
		next = nextPageURL(link)
	}
	if next != "" {
		return nil, errTooManyPages(op)
	}
	return commit, nil
}

// doRequest performs a GET against the API, decodes the body into result and returns the Link header.
func (c *Client) doRequest(ctx context.Context, op, reqURL string, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVer)

	c.requests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", contract.NewNetworkError(op, ctxErr)
		}
		return "", contract.NewNetworkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(op, resp); err != nil {
		return "", err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return "", contract.NewMalformedResponseError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return resp.Header.Get("Link"), nil
}

// classifyStatus maps a non-2xx response to a typed error.
func classifyStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	cause := apiMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return contract.NewAuthenticationError(op, cause)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && isRateLimited(resp.Header, cause):
		return contract.NewRateLimitError(op, resetTime(resp.Header), cause)
	case resp.StatusCode == http.StatusForbidden:
		return contract.NewAuthenticationError(op, cause)
	case resp.StatusCode >= 500:
		return contract.NewNetworkError(op, fmt.Errorf("server returned status %d: %w", resp.StatusCode, cause))
	default:
		return contract.NewUpstreamError(op, resp.StatusCode, cause)
	}
}

// isRateLimited detects the primary quota (remaining is zero) and the secondary limit,
// which GitHub signals with Retry-After or its message while quota remains.
func isRateLimited(h http.Header, cause error) bool {
	if h.Get("X-RateLimit-Remaining") == "0" || h.Get("Retry-After") != "" {
		return true
	}
	return cause != nil && strings.Contains(strings.ToLower(cause.Error()), "secondary rate limit")
}

// errTooManyPages reports a listing that still had pages left after maxPages.
func errTooManyPages(op string) error {
	return contract.NewMalformedResponseError(op, fmt.Errorf("pagination did not end after %d pages", maxPages))
}

// apiMessage extracts the "message" field GitHub puts in error bodies.
func apiMessage(body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return errors.New(payload.Message)
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return errors.New(text)
	}
	return nil
}

// resetTime reads the quota reset from X-RateLimit-Reset (epoch seconds) or Retry-After (seconds).
func resetTime(h http.Header) time.Time {
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC()
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Now().UTC().Add(time.Duration(secs) * time.Second)
		}
	}
	return time.Time{}
}

// nextPageURL returns the rel="next" target of a Link header, or "".
func nextPageURL(link string) string {
	for part := range strings.SplitSeq(link, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
