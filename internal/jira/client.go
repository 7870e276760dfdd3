// Package jira files change records as issues through the Jira REST API (v2).
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements contract.IssueTracker for Jira.
type Client struct {
	baseURL    string
	email      string
	token      string
	httpClient HTTPClient
}

var _ contract.IssueTracker = &Client{} // Compile-time check

// NewClient creates a Jira client authenticating with email and API token.
func NewClient(cfg contract.JiraConfig, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: contract.DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

type namedField struct {
	Name string `json:"name"`
}

type keyedField struct {
	Key string `json:"key"`
}

type issueFields struct {
	Project     keyedField  `json:"project"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	IssueType   namedField  `json:"issuetype"`
	Priority    *namedField `json:"priority,omitempty"`
	Labels      []string    `json:"labels,omitempty"`
}

type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type createIssueResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type searchResponse struct {
	Total  int          `json:"total"`
	Issues []keyedField `json:"issues"`
}

// FindIssue returns the key of the first issue carrying label, or "" when none exists.
func (c *Client) FindIssue(ctx context.Context, label string) (string, error) {
	op := "search issues " + label
	q := url.Values{}
	q.Set("jql", fmt.Sprintf("labels = %q", label))
	q.Set("maxResults", "1")
	q.Set("fields", "key")

	var result searchResponse
	if err := c.do(ctx, op, http.MethodGet, c.baseURL+"/rest/api/2/search?"+q.Encode(), nil, &result); err != nil {
		return "", err
	}
	if len(result.Issues) == 0 {
		return "", nil
	}
	return result.Issues[0].Key, nil
}

// CreateIssue creates an issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, issue schema.IssueRequest) (string, error) {
	op := "create issue " + issue.Summary
	body := createIssueRequest{Fields: issueFields{
		Project:     keyedField{Key: issue.Project},
		Summary:     issue.Summary,
		Description: issue.Description,
		IssueType:   namedField{Name: issue.IssueType},
		Labels:      issue.Labels,
	}}
	if issue.Priority != "" {
		body.Fields.Priority = &namedField{Name: issue.Priority}
	}

	var result createIssueResponse
	if err := c.do(ctx, op, http.MethodPost, c.baseURL+"/rest/api/2/issue", body, &result); err != nil {
		return "", err
	}
	if result.Key == "" {
		return "", contract.NewTrackerError(op, errors.New("response without issue key"))
	}
	return result.Key, nil
}

// do sends a JSON request with basic auth and decodes the JSON response.
func (c *Client) do(ctx context.Context, op, method, reqURL string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contract.NewTrackerError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return contract.NewTrackerError(op, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessages(resp.Body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return contract.NewTrackerError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// errorMessages flattens the errorMessages/errors fields of a Jira error body.
func errorMessages(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}
	msgs := append([]string{}, payload.ErrorMessages...)
	for field, msg := range payload.Errors {
		msgs = append(msgs, field+": "+msg)
	}
	if len(msgs) == 0 {
		return strings.TrimSpace(string(raw))
	}
	return strings.Join(msgs, "; ")
}
