// Package config loads and validates the bouncer configuration.
//
// Loading order: YAML file → ${VAR} expansion → BOUNCER_* environment
// overrides → CUE schema validation → semantic validation. Every
// configuration error is fatal at startup; nothing here surfaces at
// event time.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/notify"
)

// Config is the root configuration document. Marshal tags carry
// omitempty so `bouncer init` writes only meaningful values; the closed
// schema would otherwise reject the zero-valued enum fields it emits.
type Config struct {
	WatchDir       string   `yaml:"watch_dir,omitempty"`
	Recursive      bool     `yaml:"recursive,omitempty"`
	DebounceDelay  float64  `yaml:"debounce_delay,omitempty"` // seconds
	CheckTimeout   float64  `yaml:"check_timeout,omitempty"`  // seconds
	MaxConcurrent  int64    `yaml:"max_concurrent,omitempty"`
	MaxFileSize    int64    `yaml:"max_file_size,omitempty"` // bytes
	ReportOnly     bool     `yaml:"report_only,omitempty"`
	LogLevel       string   `yaml:"log_level,omitempty"`
	Database       string   `yaml:"database,omitempty"`
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	Checks        map[string]CheckConfig `yaml:"checks,omitempty"`
	Notifications Notifications          `yaml:"notifications,omitempty"`
	Agent         Agent                  `yaml:"agent,omitempty"`
	Actions       Actions                `yaml:"actions,omitempty"`
}

// CheckConfig configures one check instance. Keys of Config.Checks name
// the check; names without a built-in implementation are treated as
// custom agent-backed reviewers and require an instruction.
type CheckConfig struct {
	Enabled           *bool    `yaml:"enabled,omitempty"`
	FileTypes         []string `yaml:"file_types,omitempty"`
	Globs             []string `yaml:"globs,omitempty"`
	Kinds             []string `yaml:"kinds,omitempty"`
	AutoFix           bool     `yaml:"auto_fix,omitempty"`
	Instruction       string   `yaml:"instruction,omitempty"`
	SeverityThreshold string   `yaml:"severity_threshold,omitempty"`
	LicenseMarker     string   `yaml:"license_marker,omitempty"`
	TrackFixedErrors  *bool    `yaml:"track_fixed_errors,omitempty"`
}

// On reports the effective enabled flag (default true).
func (c CheckConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// Track reports the effective track_fixed_errors flag (default true).
func (c CheckConfig) Track() bool {
	return c.TrackFixedErrors == nil || *c.TrackFixedErrors
}

// Notifications configures the sinks.
type Notifications struct {
	Slack   SlackConfig   `yaml:"slack,omitempty"`
	Webhook WebhookConfig `yaml:"webhook,omitempty"`
	FileLog FileLogConfig `yaml:"file_log,omitempty"`
}

// SlackConfig configures the Slack webhook sink.
type SlackConfig struct {
	Enabled     bool   `yaml:"enabled,omitempty"`
	WebhookURL  string `yaml:"webhook_url,omitempty"`
	Channel     string `yaml:"channel,omitempty"`
	MinSeverity string `yaml:"min_severity,omitempty"`
	DetailLevel string `yaml:"detail_level,omitempty"`
}

// WebhookConfig configures the generic webhook sink.
type WebhookConfig struct {
	Enabled     bool              `yaml:"enabled,omitempty"`
	URL         string            `yaml:"url,omitempty"`
	Method      string            `yaml:"method,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	DetailLevel string            `yaml:"detail_level,omitempty"`
}

// FileLogConfig configures the JSON-lines file sink.
type FileLogConfig struct {
	Enabled     *bool  `yaml:"enabled,omitempty"`
	LogDir      string `yaml:"log_dir,omitempty"`
	DetailLevel string `yaml:"detail_level,omitempty"`
}

// On reports the effective enabled flag (default true: the file log is
// the one sink that is always safe).
func (c FileLogConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// Agent configures the reasoning-service client.
type Agent struct {
	Endpoint    string  `yaml:"endpoint,omitempty"`
	Token       string  `yaml:"token,omitempty"`
	CallTimeout float64 `yaml:"call_timeout,omitempty"` // seconds per attempt
	MaxElapsed  float64 `yaml:"max_elapsed,omitempty"`  // seconds across retries
}

// Actions configures external side effects.
type Actions struct {
	Tickets []TicketRule `yaml:"tickets,omitempty"`
}

// TicketRule configures one ticket-creation rule.
type TicketRule struct {
	Enabled  bool     `yaml:"enabled,omitempty"`
	Tracker  string   `yaml:"tracker,omitempty"`
	Project  string   `yaml:"project,omitempty"`
	Statuses []string `yaml:"statuses,omitempty"`
}

// Delay returns the debounce delay as a duration.
func (c *Config) Delay() time.Duration {
	if c.DebounceDelay <= 0 {
		return 0
	}
	return time.Duration(c.DebounceDelay * float64(time.Second))
}

// Timeout returns the per-check timeout as a duration.
func (c *Config) Timeout() time.Duration {
	if c.CheckTimeout <= 0 {
		return 0
	}
	return time.Duration(c.CheckTimeout * float64(time.Second))
}

// Validate performs the semantic checks the CUE schema cannot express.
func (c *Config) Validate() error {
	if c.WatchDir == "" {
		return fmt.Errorf("watch_dir is required")
	}
	info, err := os.Stat(c.WatchDir)
	if err != nil {
		return fmt.Errorf("watch_dir %q: %w", c.WatchDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch_dir %q is not a directory", c.WatchDir)
	}

	for name, cc := range c.Checks {
		if cc.SeverityThreshold != "" {
			if check.Severity(cc.SeverityThreshold).Rank() == 0 {
				return fmt.Errorf("check %q: invalid severity_threshold %q", name, cc.SeverityThreshold)
			}
		}
	}

	if c.Notifications.Slack.Enabled && c.Notifications.Slack.WebhookURL == "" {
		return fmt.Errorf("notifications.slack enabled without webhook_url")
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("notifications.webhook enabled without url")
	}
	for _, lvl := range []string{
		c.Notifications.Slack.DetailLevel,
		c.Notifications.Webhook.DetailLevel,
		c.Notifications.FileLog.DetailLevel,
	} {
		if _, err := notify.ParseDetailLevel(lvl); err != nil {
			return err
		}
	}

	for _, t := range c.Actions.Tickets {
		if !t.Enabled {
			continue
		}
		if t.Tracker == "" {
			return fmt.Errorf("actions.tickets: tracker is required")
		}
		for _, s := range t.Statuses {
			if !check.Status(s).Valid() {
				return fmt.Errorf("actions.tickets: invalid status %q", s)
			}
		}
		if c.Agent.Endpoint == "" {
			return fmt.Errorf("actions.tickets enabled without agent.endpoint")
		}
	}

	return nil
}

// Default returns the configuration `bouncer init` writes out.
func Default() *Config {
	on := true
	off := false
	return &Config{
		WatchDir:      ".",
		Recursive:     true,
		DebounceDelay: 2,
		CheckTimeout:  90,
		MaxConcurrent: 8,
		MaxFileSize:   1 << 20,
		LogLevel:      "info",
		Database:      ".bouncer/bouncer.db",
		IgnorePatterns: []string{
			".git", "node_modules", "__pycache__", "venv", ".env", ".bouncer",
		},
		Checks: map[string]CheckConfig{
			"code_quality": {
				Enabled:   &on,
				FileTypes: []string{".go", ".py", ".js", ".ts"},
				AutoFix:   true,
			},
			"security": {
				Enabled:           &on,
				FileTypes:         []string{".go", ".py", ".js", ".ts", ".java"},
				SeverityThreshold: "high",
			},
			"documentation": {
				Enabled:   &on,
				FileTypes: []string{".md", ".rst", ".txt"},
			},
			"data_validation": {
				Enabled:   &on,
				FileTypes: []string{".json", ".yaml", ".yml"},
			},
			"newline": {
				Enabled:   &on,
				FileTypes: []string{".go", ".py", ".md", ".txt"},
				AutoFix:   true,
			},
			"license": {
				Enabled:   &off,
				FileTypes: []string{".go"},
			},
			"log_investigator": {
				Enabled:   &off,
				FileTypes: []string{".log"},
			},
		},
		Notifications: Notifications{
			Slack: SlackConfig{
				Enabled:     false,
				WebhookURL:  "${SLACK_WEBHOOK_URL}",
				Channel:     "#bouncer",
				MinSeverity: "medium",
				DetailLevel: "summary",
			},
			FileLog: FileLogConfig{
				Enabled:     &on,
				LogDir:      ".bouncer/logs",
				DetailLevel: "detailed",
			},
		},
		Agent: Agent{
			Endpoint:    "",
			Token:       "${BOUNCER_AGENT_TOKEN}",
			CallTimeout: 60,
			MaxElapsed:  120,
		},
	}
}
