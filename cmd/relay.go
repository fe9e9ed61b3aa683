package cmd

import (
	"fmt"

	"github.com/danielolaszy/ticketrelay/internal/config"
	"github.com/danielolaszy/ticketrelay/internal/github"
	"github.com/danielolaszy/ticketrelay/internal/jira"
	"github.com/danielolaszy/ticketrelay/internal/relay"
	"github.com/danielolaszy/ticketrelay/internal/server"
)

// trackerClient is what every backend provides.
type trackerClient interface {
	relay.Tracker
	server.Pinger
}

// newTracker builds the backend selected by the configuration.
func newTracker(cfg *config.Config) (trackerClient, error) {
	switch cfg.Relay.Tracker {
	case config.TrackerJira:
		client, err := jira.NewClient(cfg.Jira, cfg.Relay.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize jira client: %w", err)
		}
		return client, nil
	default:
		client, err := github.NewClient(cfg.GitHub, cfg.Relay.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize github client: %w", err)
		}
		return client, nil
	}
}

// newRelay builds the relay service and the tracker behind it.
func newRelay(cfg *config.Config) (*relay.Service, trackerClient, error) {
	mode, err := relay.ParseMode(cfg.Relay.Mode)
	if err != nil {
		return nil, nil, err
	}

	client, err := newTracker(cfg)
	if err != nil {
		return nil, nil, err
	}

	return relay.NewService(client, mode, cfg.Relay.MaxIssues), client, nil
}
