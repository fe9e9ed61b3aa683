// Package models defines data structures shared across the application.
package models

import (
	"encoding/json"
)

// IssueState is the lifecycle state of a remote issue.
type IssueState string

const (
	// StateOpen marks an issue that is still being worked on.
	StateOpen IssueState = "open"
	// StateClosed marks a resolved issue.
	StateClosed IssueState = "closed"
)

// Ticket is the inbound payload accepted by the relay.
type Ticket struct {
	// Title is matched as a substring against remote issue titles
	Title string `json:"title"`

	// Description becomes the body of the remote issue
	Description string `json:"description"`

	// Labels is the ordered list of label names to apply
	Labels []string `json:"labels"`

	// Assignees is the ordered list of user logins to assign
	Assignees []string `json:"assignees"`

	// TicketID is the external tracking identifier, only used when always creating
	TicketID string `json:"ticket_id,omitempty"`
}

// RemoteIssue represents an issue read from the remote tracker.
// Only the fields needed for matching are kept.
type RemoteIssue struct {
	// ID identifies the issue in the tracker's resource paths (e.g., "42" or "PROJ-42")
	ID string

	// Number is the numeric identifier of the issue
	Number int

	// Title is the issue's title or summary
	Title string

	// State is the current state of the issue
	State IssueState
}

// IssueDraft is the payload of an outbound create or update.
type IssueDraft struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string

	// State is set only when the write must transition the issue
	State IssueState

	// TicketID is embedded in create payloads when always creating
	TicketID string
}

// RelayResult is the response returned to the caller of the relay endpoint.
type RelayResult struct {
	// Message describes which write was performed
	Message string `json:"message"`

	// Issue is the tracker's representation of the written issue, unmodified
	Issue json.RawMessage `json:"issue"`
}
