// Package relay forwards tickets to a remote issue tracker.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/ticketrelay/internal/logging"
	"github.com/danielolaszy/ticketrelay/internal/tracker"
	"github.com/danielolaszy/ticketrelay/pkg/models"
)

// Result messages.
const (
	MessageCreated = "Issue created"
	MessageUpdated = "Issue updated & closed"
)

// DefaultMaxIssues is the number of existing issues scanned for a match when
// no bound is configured.
const DefaultMaxIssues = 100

// ErrInvalidTicket is wrapped by every validation failure.
var ErrInvalidTicket = errors.New("invalid ticket")

// Mode selects how a ticket is written to the tracker.
type Mode string

const (
	// ModeUpsert searches for an issue whose title contains the ticket title,
	// updating and closing it when found and creating one otherwise.
	ModeUpsert Mode = "upsert"
	// ModeCreate always creates a new issue carrying the ticket id.
	ModeCreate Mode = "create"
)

// ParseMode validates a configured mode name.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(name)) {
	case ModeUpsert, "search-and-upsert":
		return ModeUpsert, nil
	case ModeCreate, "always-create":
		return ModeCreate, nil
	default:
		return "", fmt.Errorf("unknown relay mode %q, expected %q or %q", name, ModeUpsert, ModeCreate)
	}
}

// Tracker is the remote issue tracker the relay writes to.
type Tracker interface {
	// Name is the platform name used in messages (e.g., "GitHub").
	Name() string
	// ListIssues returns up to limit issues, open and closed, in tracker order.
	ListIssues(ctx context.Context, limit int) ([]models.RemoteIssue, error)
	// UpdateIssue partially updates issue and returns its new representation.
	UpdateIssue(ctx context.Context, issue models.RemoteIssue, draft models.IssueDraft) (json.RawMessage, error)
	// CreateIssue creates an issue and returns its representation.
	CreateIssue(ctx context.Context, draft models.IssueDraft) (json.RawMessage, error)
}

// Service relays tickets to a Tracker. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	tracker   Tracker
	mode      Mode
	maxIssues int
}

// NewService creates a relay for t. A non-positive maxIssues falls back to
// DefaultMaxIssues.
func NewService(t Tracker, mode Mode, maxIssues int) *Service {
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}
	return &Service{tracker: t, mode: mode, maxIssues: maxIssues}
}

// Mode returns the configured relay mode.
func (s *Service) Mode() Mode {
	return s.mode
}

// TrackerName returns the name of the remote platform.
func (s *Service) TrackerName() string {
	return s.tracker.Name()
}

// SubmitTicket validates ticket and performs exactly one write against the
// tracker according to the relay mode. Tracker failures are returned as
// *tracker.Error.
func (s *Service) SubmitTicket(ctx context.Context, ticket models.Ticket) (*models.RelayResult, error) {
	if err := Validate(ticket, s.mode); err != nil {
		return nil, err
	}

	if s.mode == ModeCreate {
		return s.create(ctx, ticket)
	}
	return s.upsert(ctx, ticket)
}

// Validate checks the fields required by mode.
func Validate(ticket models.Ticket, mode Mode) error {
	var missing []string
	if ticket.Title == "" {
		missing = append(missing, "title")
	}
	if ticket.Description == "" {
		missing = append(missing, "description")
	}
	if mode == ModeCreate && ticket.TicketID == "" {
		missing = append(missing, "ticket_id")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %v", ErrInvalidTicket, missing)
	}
	return nil
}

// FindMatch returns the first issue whose title contains title.
func FindMatch(issues []models.RemoteIssue, title string) (models.RemoteIssue, bool) {
	for _, issue := range issues {
		if strings.Contains(issue.Title, title) {
			return issue, true
		}
	}
	return models.RemoteIssue{}, false
}

func (s *Service) upsert(ctx context.Context, ticket models.Ticket) (*models.RelayResult, error) {
	issues, err := s.tracker.ListIssues(ctx, s.maxIssues)
	if err != nil {
		return nil, err
	}

	draft := newDraft(ticket)

	existing, found := FindMatch(issues, ticket.Title)
	if found {
		logging.Info("matched existing issue",
			"title", ticket.Title,
			"issue", existing.ID,
			"scanned", len(issues))

		draft.State = models.StateClosed
		issue, err := s.tracker.UpdateIssue(ctx, existing, draft)
		if err != nil {
			return nil, err
		}
		return &models.RelayResult{Message: MessageUpdated, Issue: issue}, nil
	}

	logging.Info("no existing issue matched, creating",
		"title", ticket.Title,
		"scanned", len(issues))

	issue, err := s.tracker.CreateIssue(ctx, draft)
	if err != nil {
		return nil, err
	}
	return &models.RelayResult{Message: MessageCreated, Issue: issue}, nil
}

// create writes unconditionally. Only tracker rejections keep their kind;
// transport failures are not told apart in this mode.
func (s *Service) create(ctx context.Context, ticket models.Ticket) (*models.RelayResult, error) {
	draft := newDraft(ticket)
	draft.TicketID = ticket.TicketID

	logging.Info("creating issue", "title", ticket.Title, "ticket_id", ticket.TicketID)

	issue, err := s.tracker.CreateIssue(ctx, draft)
	if err != nil {
		var trackerErr *tracker.Error
		if errors.As(err, &trackerErr) && trackerErr.Kind != tracker.KindRejected {
			flattened := *trackerErr
			flattened.Kind = tracker.KindUnexpected
			return nil, &flattened
		}
		return nil, err
	}
	return &models.RelayResult{Message: MessageCreated, Issue: issue}, nil
}

func newDraft(ticket models.Ticket) models.IssueDraft {
	labels := ticket.Labels
	if labels == nil {
		labels = []string{}
	}
	assignees := ticket.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	return models.IssueDraft{
		Title:     ticket.Title,
		Body:      ticket.Description,
		Labels:    labels,
		Assignees: assignees,
	}
}
