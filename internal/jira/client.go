// Package jira provides a Jira backend for relaying tickets.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/ticketrelay/internal/config"
	"github.com/danielolaszy/ticketrelay/internal/logging"
	"github.com/danielolaszy/ticketrelay/internal/tracker"
	"github.com/danielolaszy/ticketrelay/pkg/models"
)

const (
	// ServiceName is used in error messages returned to callers.
	ServiceName = "Jira"

	// maxPageSize is the largest maxResults Jira Cloud honours on search.
	maxPageSize = 100
)

// Client handles interactions with the JIRA API for a single project.
type Client struct {
	client         *jira.Client
	project        string
	doneTransition string
	assigneeField  string
}

// searchResult is one page of rest/api/2/search.
type searchResult struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Issues     []jira.Issue `json:"issues"`
}

// NewClient creates a JIRA client authenticated with basic auth.
func NewClient(cfg config.JiraConfig, timeout time.Duration) (*Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}
	httpClient := tp.Client()
	httpClient.Timeout = timeout

	client, err := jira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating jira client: %w", err)
	}

	logging.Info("jira configuration",
		"url", cfg.URL,
		"project", cfg.Project,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	doneTransition := cfg.DoneTransition
	if doneTransition == "" {
		doneTransition = "Done"
	}

	assigneeField := cfg.AssigneeField
	if assigneeField == "" {
		assigneeField = config.AssigneeByName
	}

	return &Client{
		client:         client,
		project:        cfg.Project,
		doneTransition: doneTransition,
		assigneeField:  assigneeField,
	}, nil
}

// Name returns the service name used in error messages.
func (c *Client) Name() string {
	return ServiceName
}

// ListIssues returns up to limit issues of the project, newest first. Jira
// may return fewer results per page than asked for, so pages are followed by
// startAt until the limit or the last issue is reached.
//
// The search is a raw request rather than Issue.SearchWithContext because the
// typed service drains the body of a rejected response, and a rejection body
// is passed back to the caller verbatim.
func (c *Client) ListIssues(ctx context.Context, limit int) ([]models.RemoteIssue, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("jql", fmt.Sprintf("project = '%s' ORDER BY created DESC", c.project))
	query.Set("fields", "summary,status")

	var issues []models.RemoteIssue
	for {
		query.Set("startAt", strconv.Itoa(len(issues)))
		query.Set("maxResults", strconv.Itoa(min(limit-len(issues), maxPageSize)))

		var page searchResult
		if err := c.call(ctx, "list issues", http.MethodGet, "rest/api/2/search?"+query.Encode(), nil, &page); err != nil {
			return nil, err
		}

		for _, issue := range page.Issues {
			issues = append(issues, toRemoteIssue(issue))
		}

		if len(issues) >= limit {
			if len(issues) > limit || page.Total > limit {
				logging.Debug("issue scan truncated", "limit", limit, "total", page.Total)
			}
			return issues[:limit], nil
		}
		if len(page.Issues) == 0 || len(issues) >= page.Total {
			return issues, nil
		}
	}
}

// UpdateIssue edits the issue fields and, when draft asks for it, moves the
// issue through the configured done transition. It returns the issue as Jira
// represents it after both writes.
func (c *Client) UpdateIssue(ctx context.Context, issue models.RemoteIssue, draft models.IssueDraft) (json.RawMessage, error) {
	path := "rest/api/2/issue/" + issue.ID

	body := map[string]interface{}{"fields": c.fields(draft, false)}
	if err := c.call(ctx, "update issue", http.MethodPut, path, body, nil); err != nil {
		return nil, err
	}

	if draft.State == models.StateClosed && issue.State != models.StateClosed {
		if err := c.close(ctx, issue.ID); err != nil {
			return nil, err
		}
	}

	var raw json.RawMessage
	if err := c.call(ctx, "get issue", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateIssue creates a new issue in the project. Jira has no free-form
// payload field, so a ticket id travels as a "ticket-id:<id>" label.
func (c *Client) CreateIssue(ctx context.Context, draft models.IssueDraft) (json.RawMessage, error) {
	body := map[string]interface{}{"fields": c.fields(draft, true)}

	var raw json.RawMessage
	if err := c.call(ctx, "create issue", http.MethodPost, "rest/api/2/issue", body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Ping verifies the credentials by fetching the current user.
func (c *Client) Ping(ctx context.Context) error {
	var user jira.User
	if err := c.call(ctx, "get user", http.MethodGet, "rest/api/2/myself", nil, &user); err != nil {
		return err
	}

	logging.Debug("jira authentication verified", "username", user.Name)
	return nil
}

// close finds the configured done transition and applies it.
func (c *Client) close(ctx context.Context, key string) error {
	transitions, resp, err := c.client.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return classifyTyped("list transitions", resp, err)
	}

	for _, transition := range transitions {
		if strings.EqualFold(transition.Name, c.doneTransition) {
			resp, err := c.client.Issue.DoTransitionWithContext(ctx, key, transition.ID)
			if err != nil {
				return classifyTyped("close issue", resp, err)
			}
			resp.Body.Close() // nolint:errcheck
			return nil
		}
	}

	return tracker.Unexpectedf(ServiceName, "close issue", "transition %q not available for %s", c.doneTransition, key)
}

func (c *Client) fields(draft models.IssueDraft, create bool) map[string]interface{} {
	labels := append([]string{}, draft.Labels...)
	if draft.TicketID != "" {
		labels = append(labels, "ticket-id:"+draft.TicketID)
	}

	fields := map[string]interface{}{
		"summary":     draft.Title,
		"description": draft.Body,
		"labels":      labels,
	}
	if create {
		fields["project"] = map[string]string{"key": c.project}
		fields["issuetype"] = map[string]string{"name": "Task"}
	}
	// Jira issues carry a single assignee.
	if len(draft.Assignees) > 0 {
		fields["assignee"] = map[string]string{c.assigneeField: draft.Assignees[0]}
	}

	return fields
}

// call sends one request and decodes a 2xx response into v when v is non-nil.
// Non-2xx responses keep their body for the caller.
func (c *Client) call(ctx context.Context, op, method, path string, body, v interface{}) error {
	req, err := c.client.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return tracker.Unexpectedf(ServiceName, op, "building request: %v", err)
	}

	resp, err := c.client.Do(req, v)
	if err != nil {
		return classify(op, resp, err)
	}
	if v == nil {
		resp.Body.Close() // nolint:errcheck
	}

	return nil
}

func classify(op string, resp *jira.Response, err error) *tracker.Error {
	logging.Error("jira request failed", "operation", op, "error", err)
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}
	return tracker.Classify(ServiceName, op, httpResp, err)
}

// classifyTyped classifies errors from go-jira's typed services, which have
// already consumed a rejected body into err.
func classifyTyped(op string, resp *jira.Response, err error) *tracker.Error {
	trackerErr := classify(op, resp, err)
	if trackerErr.Kind == tracker.KindRejected && len(trackerErr.Body) == 0 {
		trackerErr.Body = []byte(err.Error())
	}
	return trackerErr
}

func toRemoteIssue(issue jira.Issue) models.RemoteIssue {
	remote := models.RemoteIssue{ID: issue.Key, State: models.StateOpen}
	if number, err := strconv.Atoi(issue.ID); err == nil {
		remote.Number = number
	}
	if issue.Fields != nil {
		remote.Title = issue.Fields.Summary
		if issue.Fields.Status != nil && issue.Fields.Status.StatusCategory.Key == "done" {
			remote.State = models.StateClosed
		}
	}
	return remote
}
