// Package github provides functionality for interacting with the GitHub issues API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielolaszy/ticketrelay/internal/config"
	"github.com/danielolaszy/ticketrelay/internal/logging"
	"github.com/danielolaszy/ticketrelay/internal/tracker"
	"github.com/danielolaszy/ticketrelay/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

const (
	// ServiceName is used in error messages returned to callers.
	ServiceName = "GitHub"

	// mediaType selects the structured JSON representation.
	mediaType = "application/vnd.github+json"

	// maxPageSize is the largest per_page value accepted by the API.
	maxPageSize = 100
)

// Client encapsulates the GitHub API client for a single repository.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// issuePayload is the JSON body sent on create and update.
type issuePayload struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels"`
	Assignees []string `json:"assignees"`
	State     string   `json:"state,omitempty"`
	TicketID  string   `json:"ticket_id,omitempty"`
}

// NewClient creates a GitHub API client for the configured repository.
// Requests are authenticated with the configured token and bounded by timeout.
func NewClient(cfg config.GitHubConfig, timeout time.Duration) (*Client, error) {
	if err := config.ValidateGitHubConfig(cfg); err != nil {
		return nil, err
	}

	apiURL := cfg.APIBaseURL()
	parsedURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}

	logging.Info("github configuration",
		"api_url", apiURL,
		"owner", cfg.Owner,
		"repo", cfg.Repo,
		"token", logging.MaskSensitive(cfg.Token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = timeout

	client := github.NewClient(tc)
	client.BaseURL = parsedURL
	client.UploadURL = parsedURL

	return &Client{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
}

// Name returns the service name used in error messages.
func (c *Client) Name() string {
	return ServiceName
}

// ListIssues returns up to limit issues, open and closed, in the order the API
// returns them (newest first). Pull requests come back from this endpoint too
// and are kept, since their titles are matched the same way.
func (c *Client) ListIssues(ctx context.Context, limit int) ([]models.RemoteIssue, error) {
	if limit <= 0 {
		return nil, nil
	}

	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: min(limit, maxPageSize),
		},
	}

	var result []models.RemoteIssue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "error", err)
			return nil, classify("list issues", resp, err)
		}

		for _, issue := range issues {
			result = append(result, toRemoteIssue(issue))
		}

		if len(result) >= limit {
			if len(result) > limit || resp.NextPage != 0 {
				logging.Debug("issue scan truncated", "limit", limit)
			}
			return result[:min(len(result), limit)], nil
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// UpdateIssue applies draft to an existing issue with a partial update and
// returns the updated issue as sent by GitHub.
func (c *Client) UpdateIssue(ctx context.Context, issue models.RemoteIssue, draft models.IssueDraft) (json.RawMessage, error) {
	path := fmt.Sprintf("repos/%v/%v/issues/%d", c.owner, c.repo, issue.Number)

	logging.Debug("updating issue", "issue_number", issue.Number, "state", draft.State)

	return c.write(ctx, "update issue", http.MethodPatch, path, draft, http.StatusOK)
}

// CreateIssue creates a new issue from draft and returns it as sent by GitHub.
func (c *Client) CreateIssue(ctx context.Context, draft models.IssueDraft) (json.RawMessage, error) {
	path := fmt.Sprintf("repos/%v/%v/issues", c.owner, c.repo)

	logging.Debug("creating issue", "title", draft.Title)

	return c.write(ctx, "create issue", http.MethodPost, path, draft, http.StatusCreated)
}

// Ping verifies the token by fetching the authenticated user.
func (c *Client) Ping(ctx context.Context) error {
	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return classify("get user", resp, err)
	}

	logging.Debug("github authentication verified", "username", user.GetLogin())
	return nil
}

// write sends a create or update and requires want as the response status.
// The response body is decoded into a raw message so that fields unknown to
// go-github survive.
func (c *Client) write(ctx context.Context, op, method, path string, draft models.IssueDraft, want int) (json.RawMessage, error) {
	req, err := c.client.NewRequest(method, path, issuePayload{
		Title:     draft.Title,
		Body:      draft.Body,
		Labels:    nonNil(draft.Labels),
		Assignees: nonNil(draft.Assignees),
		State:     string(draft.State),
		TicketID:  draft.TicketID,
	})
	if err != nil {
		return nil, tracker.Unexpectedf(ServiceName, op, "building request: %v", err)
	}
	req.Header.Set("Accept", mediaType)

	var raw json.RawMessage
	resp, err := c.client.Do(ctx, req, &raw)
	if err != nil {
		logging.Error("github write failed", "operation", op, "error", err)
		return nil, classify(op, resp, err)
	}

	if resp.StatusCode != want {
		return nil, &tracker.Error{
			Kind:       tracker.KindRejected,
			Service:    ServiceName,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       raw,
		}
	}

	return raw, nil
}

// classify maps a go-github failure to a tracker error. go-github keeps the
// error response body readable on the returned response.
func classify(op string, resp *github.Response, err error) error {
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}
	return tracker.Classify(ServiceName, op, httpResp, err)
}

func toRemoteIssue(issue *github.Issue) models.RemoteIssue {
	state := models.StateOpen
	if strings.EqualFold(issue.GetState(), string(models.StateClosed)) {
		state = models.StateClosed
	}

	return models.RemoteIssue{
		ID:     strconv.Itoa(issue.GetNumber()),
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		State:  state,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
