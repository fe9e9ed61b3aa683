package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielolaszy/ticketrelay/internal/tracker"
	"github.com/danielolaszy/ticketrelay/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTracker implements Tracker for testing and records the calls it receives.
type MockTracker struct {
	ListIssuesFunc  func(ctx context.Context, limit int) ([]models.RemoteIssue, error)
	UpdateIssueFunc func(ctx context.Context, issue models.RemoteIssue, draft models.IssueDraft) (json.RawMessage, error)
	CreateIssueFunc func(ctx context.Context, draft models.IssueDraft) (json.RawMessage, error)

	ListCalls   []int
	UpdateCalls []models.RemoteIssue
	UpdateDraft []models.IssueDraft
	CreateCalls []models.IssueDraft
}

func (m *MockTracker) Name() string {
	return "GitHub"
}

func (m *MockTracker) ListIssues(ctx context.Context, limit int) ([]models.RemoteIssue, error) {
	m.ListCalls = append(m.ListCalls, limit)
	if m.ListIssuesFunc != nil {
		return m.ListIssuesFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockTracker) UpdateIssue(ctx context.Context, issue models.RemoteIssue, draft models.IssueDraft) (json.RawMessage, error) {
	m.UpdateCalls = append(m.UpdateCalls, issue)
	m.UpdateDraft = append(m.UpdateDraft, draft)
	if m.UpdateIssueFunc != nil {
		return m.UpdateIssueFunc(ctx, issue, draft)
	}
	return nil, errors.New("UpdateIssue not implemented")
}

func (m *MockTracker) CreateIssue(ctx context.Context, draft models.IssueDraft) (json.RawMessage, error) {
	m.CreateCalls = append(m.CreateCalls, draft)
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(ctx, draft)
	}
	return nil, errors.New("CreateIssue not implemented")
}

func issuesFunc(issues ...models.RemoteIssue) func(context.Context, int) ([]models.RemoteIssue, error) {
	return func(context.Context, int) ([]models.RemoteIssue, error) {
		return issues, nil
	}
}

func rawFunc(raw string) func(context.Context, models.IssueDraft) (json.RawMessage, error) {
	return func(context.Context, models.IssueDraft) (json.RawMessage, error) {
		return json.RawMessage(raw), nil
	}
}

func TestSubmitTicketCreatesWhenNothingMatches(t *testing.T) {
	created := `{"number":7,"title":"Bug-100","state":"open","node_id":"I_kw","unknown_field":true}`
	mock := &MockTracker{
		ListIssuesFunc: issuesFunc(
			models.RemoteIssue{ID: "3", Number: 3, Title: "Bug-99: crash"},
			models.RemoteIssue{ID: "2", Number: 2, Title: "Feature request"},
		),
		CreateIssueFunc: rawFunc(created),
	}
	svc := NewService(mock, ModeUpsert, 0)

	result, err := svc.SubmitTicket(context.Background(), models.Ticket{
		Title:       "Bug-100",
		Description: "desc",
	})
	require.NoError(t, err)

	assert.Equal(t, MessageCreated, result.Message)
	assert.Equal(t, created, string(result.Issue), "issue must be returned unmodified")
	assert.Equal(t, []int{DefaultMaxIssues}, mock.ListCalls)
	assert.Empty(t, mock.UpdateCalls)
	require.Len(t, mock.CreateCalls, 1)

	draft := mock.CreateCalls[0]
	assert.Equal(t, "Bug-100", draft.Title)
	assert.Equal(t, "desc", draft.Body)
	assert.Equal(t, []string{}, draft.Labels)
	assert.Equal(t, []string{}, draft.Assignees)
	assert.Empty(t, draft.State)
	assert.Empty(t, draft.TicketID)
}

func TestSubmitTicketUpdatesFirstMatch(t *testing.T) {
	mock := &MockTracker{
		ListIssuesFunc: issuesFunc(
			models.RemoteIssue{ID: "50", Number: 50, Title: "Unrelated"},
			models.RemoteIssue{ID: "42", Number: 42, Title: "Bug-100: login fails", State: models.StateOpen},
			models.RemoteIssue{ID: "12", Number: 12, Title: "Bug-100: older duplicate", State: models.StateOpen},
		),
		UpdateIssueFunc: func(_ context.Context, issue models.RemoteIssue, _ models.IssueDraft) (json.RawMessage, error) {
			return json.RawMessage(`{"number":42,"state":"closed"}`), nil
		},
	}
	svc := NewService(mock, ModeUpsert, 100)

	result, err := svc.SubmitTicket(context.Background(), models.Ticket{
		Title:       "Bug-100",
		Description: "desc",
		Labels:      []string{"bug"},
		Assignees:   []string{"octocat"},
	})
	require.NoError(t, err)

	assert.Equal(t, MessageUpdated, result.Message)
	assert.JSONEq(t, `{"number":42,"state":"closed"}`, string(result.Issue))
	assert.Empty(t, mock.CreateCalls)
	require.Len(t, mock.UpdateCalls, 1)
	assert.Equal(t, 42, mock.UpdateCalls[0].Number)

	draft := mock.UpdateDraft[0]
	assert.Equal(t, models.StateClosed, draft.State)
	assert.Equal(t, "Bug-100", draft.Title)
	assert.Equal(t, "desc", draft.Body)
	assert.Equal(t, []string{"bug"}, draft.Labels)
	assert.Equal(t, []string{"octocat"}, draft.Assignees)
}

func TestSubmitTicketReadRejectionSkipsWrite(t *testing.T) {
	rejection := &tracker.Error{
		Kind:       tracker.KindRejected,
		Service:    "GitHub",
		Op:         "list issues",
		StatusCode: http.StatusForbidden,
		Body:       []byte(`{"message":"Resource not accessible by integration"}`),
	}
	mock := &MockTracker{
		ListIssuesFunc: func(context.Context, int) ([]models.RemoteIssue, error) {
			return nil, rejection
		},
	}
	svc := NewService(mock, ModeUpsert, 100)

	_, err := svc.SubmitTicket(context.Background(), models.Ticket{Title: "Bug-100", Description: "desc"})

	var trackerErr *tracker.Error
	require.ErrorAs(t, err, &trackerErr)
	assert.Equal(t, tracker.KindRejected, trackerErr.Kind)
	assert.Equal(t, http.StatusForbidden, trackerErr.StatusCode)
	assert.Empty(t, mock.UpdateCalls)
	assert.Empty(t, mock.CreateCalls)
}

func TestSubmitTicketWriteErrorsKeepKindInUpsertMode(t *testing.T) {
	for _, kind := range []tracker.Kind{tracker.KindTimeout, tracker.KindUnreachable, tracker.KindRejected} {
		t.Run(kind.String(), func(t *testing.T) {
			mock := &MockTracker{
				CreateIssueFunc: func(context.Context, models.IssueDraft) (json.RawMessage, error) {
					return nil, &tracker.Error{Kind: kind, Service: "GitHub", Op: "create issue"}
				},
			}
			svc := NewService(mock, ModeUpsert, 100)

			_, err := svc.SubmitTicket(context.Background(), models.Ticket{Title: "Bug-100", Description: "desc"})

			var trackerErr *tracker.Error
			require.ErrorAs(t, err, &trackerErr)
			assert.Equal(t, kind, trackerErr.Kind)
		})
	}
}

func TestSubmitTicketCreateMode(t *testing.T) {
	t.Run("Creates without searching", func(t *testing.T) {
		mock := &MockTracker{
			ListIssuesFunc:  issuesFunc(models.RemoteIssue{ID: "42", Number: 42, Title: "Bug-100: login fails"}),
			CreateIssueFunc: rawFunc(`{"number":43}`),
		}
		svc := NewService(mock, ModeCreate, 100)

		result, err := svc.SubmitTicket(context.Background(), models.Ticket{
			Title:       "Bug-100",
			Description: "desc",
			TicketID:    "TMS-1",
		})
		require.NoError(t, err)

		assert.Equal(t, MessageCreated, result.Message)
		assert.Empty(t, mock.ListCalls)
		assert.Empty(t, mock.UpdateCalls)
		require.Len(t, mock.CreateCalls, 1)
		assert.Equal(t, "TMS-1", mock.CreateCalls[0].TicketID)
	})

	t.Run("Transport failures are unexpected", func(t *testing.T) {
		mock := &MockTracker{
			CreateIssueFunc: func(context.Context, models.IssueDraft) (json.RawMessage, error) {
				return nil, &tracker.Error{Kind: tracker.KindTimeout, Service: "GitHub", Op: "create issue"}
			},
		}
		svc := NewService(mock, ModeCreate, 100)

		_, err := svc.SubmitTicket(context.Background(), models.Ticket{Title: "Bug-100", Description: "desc", TicketID: "TMS-1"})

		var trackerErr *tracker.Error
		require.ErrorAs(t, err, &trackerErr)
		assert.Equal(t, tracker.KindUnexpected, trackerErr.Kind)
	})

	t.Run("Rejections pass through", func(t *testing.T) {
		mock := &MockTracker{
			CreateIssueFunc: func(context.Context, models.IssueDraft) (json.RawMessage, error) {
				return nil, &tracker.Error{Kind: tracker.KindRejected, StatusCode: http.StatusGone}
			},
		}
		svc := NewService(mock, ModeCreate, 100)

		_, err := svc.SubmitTicket(context.Background(), models.Ticket{Title: "Bug-100", Description: "desc", TicketID: "TMS-1"})

		var trackerErr *tracker.Error
		require.ErrorAs(t, err, &trackerErr)
		assert.Equal(t, tracker.KindRejected, trackerErr.Kind)
		assert.Equal(t, http.StatusGone, trackerErr.StatusCode)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		ticket  models.Ticket
		mode    Mode
		wantErr bool
	}{
		{name: "Valid upsert ticket", ticket: models.Ticket{Title: "t", Description: "d"}, mode: ModeUpsert},
		{name: "Missing title", ticket: models.Ticket{Description: "d"}, mode: ModeUpsert, wantErr: true},
		{name: "Missing description", ticket: models.Ticket{Title: "t"}, mode: ModeUpsert, wantErr: true},
		{name: "Ticket id not needed for upsert", ticket: models.Ticket{Title: "t", Description: "d"}, mode: ModeUpsert},
		{name: "Missing ticket id in create mode", ticket: models.Ticket{Title: "t", Description: "d"}, mode: ModeCreate, wantErr: true},
		{name: "Valid create ticket", ticket: models.Ticket{Title: "t", Description: "d", TicketID: "TMS-1"}, mode: ModeCreate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.ticket, tc.mode)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTicket)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmitTicketInvalidTicketMakesNoCalls(t *testing.T) {
	mock := &MockTracker{}
	svc := NewService(mock, ModeUpsert, 100)

	_, err := svc.SubmitTicket(context.Background(), models.Ticket{Title: "Bug-100"})

	assert.ErrorIs(t, err, ErrInvalidTicket)
	assert.Empty(t, mock.ListCalls)
	assert.Empty(t, mock.CreateCalls)
}

func TestFindMatch(t *testing.T) {
	issues := []models.RemoteIssue{
		{Number: 3, Title: "[TMS-7] Printer on fire"},
		{Number: 2, Title: "Bug-100"},
		{Number: 1, Title: "Bug-100: login fails"},
	}

	match, found := FindMatch(issues, "Bug-100")
	assert.True(t, found)
	assert.Equal(t, 2, match.Number)

	match, found = FindMatch(issues, "TMS-7")
	assert.True(t, found)
	assert.Equal(t, 3, match.Number)

	_, found = FindMatch(issues, "bug-100")
	assert.False(t, found, "matching is case sensitive")

	_, found = FindMatch(nil, "Bug-100")
	assert.False(t, found)
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{input: "upsert", expected: ModeUpsert},
		{input: "search-and-upsert", expected: ModeUpsert},
		{input: "CREATE", expected: ModeCreate},
		{input: "always-create", expected: ModeCreate},
		{input: "merge", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, mode)
		})
	}
}
