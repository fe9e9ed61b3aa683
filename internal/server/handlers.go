package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/danielolaszy/ticketrelay/internal/logging"
	"github.com/danielolaszy/ticketrelay/internal/relay"
	"github.com/danielolaszy/ticketrelay/internal/tracker"
	"github.com/danielolaszy/ticketrelay/pkg/models"
)

// maxBodyBytes bounds the size of an inbound ticket.
const maxBodyBytes = 1 << 20

// Submitter relays one ticket.
type Submitter interface {
	SubmitTicket(ctx context.Context, ticket models.Ticket) (*models.RelayResult, error)
}

// Pinger verifies that the tracker is reachable with the configured credentials.
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail any `json:"detail"`
}

// Home answers the root path with a greeting.
func Home() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "Hello")
	}
}

// Healthz handles the /healthz endpoint.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) // nolint:errcheck
	}
}

// Readyz reports whether the tracker accepts the configured credentials.
func Readyz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			logging.Warn("readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) // nolint:errcheck
	}
}

// CreateIssue decodes a ticket and relays it to the tracker.
func CreateIssue(s Submitter, service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusUnprocessableEntity, "error reading request body")
			return
		}

		var ticket models.Ticket
		if err := json.Unmarshal(body, &ticket); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid ticket payload: %v", err))
			return
		}

		result, err := s.SubmitTicket(r.Context(), ticket)
		if err != nil {
			status, detail := errorResponse(err, service)
			logging.Error("ticket relay failed",
				"title", ticket.Title,
				"status", status,
				"error", err)
			writeError(w, status, detail)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// errorResponse maps a relay failure to a status code and detail value.
func errorResponse(err error, service string) (int, any) {
	if errors.Is(err, relay.ErrInvalidTicket) {
		return http.StatusUnprocessableEntity, err.Error()
	}

	var trackerErr *tracker.Error
	if !errors.As(err, &trackerErr) {
		return http.StatusInternalServerError, fmt.Sprintf("Unexpected error: %v", err)
	}

	if trackerErr.Service != "" {
		service = trackerErr.Service
	}

	switch trackerErr.Kind {
	case tracker.KindRejected:
		status := trackerErr.StatusCode
		if status < 100 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, rawDetail(trackerErr.Body)
	case tracker.KindTimeout:
		return http.StatusGatewayTimeout, fmt.Sprintf("%s API request timed out", service)
	case tracker.KindUnreachable:
		return http.StatusBadGateway, fmt.Sprintf("Failed to connect to %s API", service)
	default:
		cause := error(trackerErr)
		if trackerErr.Err != nil {
			cause = trackerErr.Err
		}
		return http.StatusInternalServerError, fmt.Sprintf("Unexpected error: %v", cause)
	}
}

// rawDetail embeds a JSON body as-is and anything else as a string.
func rawDetail(body []byte) any {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func writeError(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to write response", "error", err)
	}
}
