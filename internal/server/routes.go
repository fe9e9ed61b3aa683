package server

import (
	"net/http"

	"github.com/danielolaszy/ticketrelay/internal/config"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Submitter Submitter
	Pinger    Pinger
	// Service names the tracker in error details (e.g., "GitHub").
	Service string
}

// NewRouter creates the HTTP router.
func NewRouter(cfg config.ServerConfig, deps Deps) http.Handler {
	mux := http.NewServeMux()

	// Health checks
	mux.Handle("GET /healthz", Healthz())
	if deps.Pinger != nil {
		mux.Handle("GET /readyz", Readyz(deps.Pinger))
	}

	mux.Handle("GET /{$}", Home())
	mux.Handle("POST /create-issue", CreateIssue(deps.Submitter, deps.Service))

	return Chain(mux,
		LoggingMiddleware(),
		SecurityHeadersMiddleware(),
		CORSMiddleware(cfg.AllowedOrigins),
	)
}
