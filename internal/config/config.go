// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tracker backends.
const (
	TrackerGitHub = "github"
	TrackerJira   = "jira"
)

// Jira assignee fields. Server and Data Center identify users by name; Cloud
// only accepts an account id.
const (
	AssigneeByName      = "name"
	AssigneeByAccountID = "accountId"
)

// projectKeyPattern matches Jira project keys.
var projectKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// DefaultEnvFile is read when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

// Config holds all configuration parameters for the application.
type Config struct {
	Server  ServerConfig
	Relay   RelayConfig
	GitHub  GitHubConfig
	Jira    JiraConfig
	Logging LoggingConfig
}

// ServerConfig holds the inbound HTTP settings.
type ServerConfig struct {
	ListenAddr     string
	AllowedOrigins []string
}

// RelayConfig controls how tickets are relayed.
type RelayConfig struct {
	// Tracker selects the backend ("github" or "jira").
	Tracker string
	// Mode is "upsert" or "create".
	Mode string
	// MaxIssues bounds how many existing issues are scanned for a match.
	MaxIssues int
	// Timeout applies to every outbound call.
	Timeout time.Duration
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Owner  string
	Repo   string
	Domain string
	// APIURL overrides the URL derived from Domain.
	APIURL string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL            string
	Username       string
	Token          string
	Project        string
	DoneTransition string
	// AssigneeField is AssigneeByName or AssigneeByAccountID.
	AssigneeField  string
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// envBindings maps viper keys to environment variables. Keys match the
// lowercased variable names so dotenv files resolve to the same keys.
var envBindings = map[string]string{
	"github_token":         "GITHUB_TOKEN",
	"github_owner":         "GITHUB_OWNER",
	"github_repo":          "GITHUB_REPO",
	"github_domain":        "GITHUB_DOMAIN",
	"github_api_url":       "GITHUB_API_URL",
	"jira_url":             "JIRA_URL",
	"jira_username":        "JIRA_USERNAME",
	"jira_token":           "JIRA_TOKEN",
	"jira_project":         "JIRA_PROJECT",
	"jira_done_transition": "JIRA_DONE_TRANSITION",
	"jira_assignee_field":  "JIRA_ASSIGNEE_FIELD",
	"relay_tracker":        "RELAY_TRACKER",
	"relay_mode":           "RELAY_MODE",
	"relay_max_issues":     "RELAY_MAX_ISSUES",
	"relay_timeout":        "RELAY_TIMEOUT",
	"listen_addr":          "LISTEN_ADDR",
	"cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"log_level":            "LOG_LEVEL",
	"log_format":           "LOG_FORMAT",
}

// NewViper returns a viper instance with defaults and environment bindings set.
// Callers may bind flags on it before passing it to Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		v.BindEnv(key, env) // nolint:errcheck
	}

	v.SetDefault("github_domain", "github.com")
	v.SetDefault("jira_done_transition", "Done")
	v.SetDefault("jira_assignee_field", AssigneeByName)
	v.SetDefault("relay_tracker", TrackerGitHub)
	v.SetDefault("relay_mode", "upsert")
	v.SetDefault("relay_max_issues", 100)
	v.SetDefault("relay_timeout", 30*time.Second)
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	return v
}

// LoadConfig initializes and loads configuration from environment variables
// and the default dotenv file.
func LoadConfig() (*Config, error) {
	return Load(NewViper(), DefaultEnvFile)
}

// Load reads envFile into v (if it exists) and builds the configuration.
// Environment variables take precedence over the file. A missing file is only
// an error when it is not the default one.
func Load(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || envFile != DefaultEnvFile {
				return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		}
	}

	config := &Config{
		Server: ServerConfig{
			ListenAddr:     v.GetString("listen_addr"),
			AllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		},
		Relay: RelayConfig{
			Tracker:   strings.ToLower(v.GetString("relay_tracker")),
			Mode:      strings.ToLower(v.GetString("relay_mode")),
			MaxIssues: v.GetInt("relay_max_issues"),
			Timeout:   v.GetDuration("relay_timeout"),
		},
		GitHub: GitHubConfig{
			Token:  v.GetString("github_token"),
			Owner:  v.GetString("github_owner"),
			Repo:   v.GetString("github_repo"),
			Domain: v.GetString("github_domain"),
			APIURL: v.GetString("github_api_url"),
		},
		Jira: JiraConfig{
			URL:            v.GetString("jira_url"),
			Username:       v.GetString("jira_username"),
			Token:          v.GetString("jira_token"),
			Project:        v.GetString("jira_project"),
			DoneTransition: v.GetString("jira_done_transition"),
			AssigneeField:  v.GetString("jira_assignee_field"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig checks the settings every command depends on. Backend
// credentials are validated when the backend client is built.
func validateConfig(config *Config) error {
	switch config.Relay.Tracker {
	case TrackerGitHub, TrackerJira:
	default:
		return fmt.Errorf("unknown tracker %q, expected %q or %q", config.Relay.Tracker, TrackerGitHub, TrackerJira)
	}

	if config.Relay.MaxIssues < 1 {
		return fmt.Errorf("RELAY_MAX_ISSUES must be at least 1, got %d", config.Relay.MaxIssues)
	}

	if config.Relay.Timeout < 0 {
		return fmt.Errorf("RELAY_TIMEOUT must not be negative, got %s", config.Relay.Timeout)
	}

	return nil
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config GitHubConfig) error {
	var missingVars []string

	if config.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}
	if config.Owner == "" {
		missingVars = append(missingVars, "GITHUB_OWNER")
	}
	if config.Repo == "" {
		missingVars = append(missingVars, "GITHUB_REPO")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config JiraConfig) error {
	var missingVars []string

	if config.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	if config.Project == "" {
		missingVars = append(missingVars, "JIRA_PROJECT")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	// The key is quoted into JQL.
	if !projectKeyPattern.MatchString(config.Project) {
		return fmt.Errorf("invalid JIRA_PROJECT %q: expected a project key such as OPS", config.Project)
	}

	switch config.AssigneeField {
	case "", AssigneeByName, AssigneeByAccountID:
	default:
		return fmt.Errorf("invalid JIRA_ASSIGNEE_FIELD %q, expected %q or %q", config.AssigneeField, AssigneeByName, AssigneeByAccountID)
	}

	return nil
}

// APIBaseURL returns the REST API root for the configured GitHub instance,
// always with a trailing slash.
func (c GitHubConfig) APIBaseURL() string {
	if c.APIURL != "" {
		if !strings.HasSuffix(c.APIURL, "/") {
			return c.APIURL + "/"
		}
		return c.APIURL
	}

	domain := c.Domain
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
