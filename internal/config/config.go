// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pmatias/rt2gh/internal/logging"
)

// DefaultRTURL is the RT instance tickets are migrated from unless RT_URL
// overrides it.
const DefaultRTURL = "https://rt.cpan.org"

// DefaultCommentRetryInterval is the initial backoff interval before the
// first comment on a freshly created issue. GitHub does not guarantee that
// a created issue is immediately visible to write paths, so the first
// comment is retried with backoff starting at this interval.
const DefaultCommentRetryInterval = 5 * time.Second

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub GitHubConfig
	RT     RTConfig

	// CommentRetryInterval is the initial interval for the first-comment
	// retry backoff after issue creation.
	CommentRetryInterval time.Duration
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
}

// RTConfig holds RT (Request Tracker) specific configuration.
type RTConfig struct {
	URL      string
	Username string
	Password string
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("rt.url", "RT_URL")
	v.BindEnv("rt.username", "RT_USER")
	v.BindEnv("rt.password", "RT_PASSWORD")
	v.BindEnv("comment.retry.interval", "RT2GH_COMMENT_RETRY_INTERVAL")

	v.SetDefault("github.domain", "github.com")
	v.SetDefault("rt.url", DefaultRTURL)
	v.SetDefault("comment.retry.interval", int(DefaultCommentRetryInterval/time.Second))

	config := &Config{
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		RT: RTConfig{
			URL:      strings.TrimRight(v.GetString("rt.url"), "/"),
			Username: v.GetString("rt.username"),
			Password: v.GetString("rt.password"),
		},
		CommentRetryInterval: time.Duration(v.GetInt("comment.retry.interval")) * time.Second,
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	logging.Debug("loaded configuration",
		"github_domain", config.GitHub.Domain,
		"github_token", logging.MaskSensitive(config.GitHub.Token),
		"rt_url", config.RT.URL,
		"rt_user", config.RT.Username,
		"rt_password", logging.MaskSensitive(config.RT.Password))

	return config, nil
}

// validateConfig ensures that all required configuration values are provided.
func validateConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateRTConfig validates RT-specific configuration. It must pass before
// any contact with the RT server.
func ValidateRTConfig(config *Config) error {
	var missingVars []string

	if config.RT.URL == "" {
		missingVars = append(missingVars, "RT_URL")
	}
	if config.RT.Username == "" {
		missingVars = append(missingVars, "RT_USER")
	}
	if config.RT.Password == "" {
		missingVars = append(missingVars, "RT_PASSWORD")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ResolveRTPassword fills in the RT password, prompting on the terminal when
// it is not set. In non-interactive mode a missing password is a fatal
// configuration error, reported by ValidateRTConfig.
func ResolveRTPassword(config *Config, nonInteractive bool) error {
	if config.RT.Password != "" || nonInteractive {
		return nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("RT_PASSWORD not set and stdin is not a terminal")
	}

	fmt.Fprintf(os.Stderr, "RT password for %s: ", config.RT.Username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read RT password: %w", err)
	}

	config.RT.Password = string(password)
	return nil
}
