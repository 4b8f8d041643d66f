package cli

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/bouncer/internal/actions"
	"github.com/roach88/bouncer/internal/agent"
	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/checks"
	"github.com/roach88/bouncer/internal/config"
	"github.com/roach88/bouncer/internal/dispatch"
	"github.com/roach88/bouncer/internal/event"
	"github.com/roach88/bouncer/internal/notify"
	"github.com/roach88/bouncer/internal/store"
)

// Instructions for the built-in agent-backed reviewers. A custom check
// (any other name) must bring its own instruction.
var reviewInstructions = map[string]string{
	"code_quality":  "Review this code change for readability, correctness, and maintainability. Flag dead code, confusing names, and obvious bugs.",
	"security":      "Review this change for security problems: injection, hardcoded credentials, unsafe deserialization, path traversal, weak crypto.",
	"documentation": "Review this document for clarity, broken structure, and statements contradicting the code it describes.",
	"performance":   "Review this change for performance problems: accidental quadratic work, unbounded allocations, blocking calls on hot paths.",
	"accessibility": "Review this markup or UI code for accessibility problems: missing alt text, poor contrast hints, keyboard traps.",
}

// registrationOrder pins the order checks run in. Side-effecting checks
// apply fixes sequentially in this order, so it must not depend on map
// iteration. Built-ins first, then custom checks sorted by name.
var builtinOrder = []string{
	"newline",
	"code_quality",
	"security",
	"documentation",
	"performance",
	"accessibility",
	"data_validation",
	"license",
	"log_investigator",
}

func registrationOrder(cfg *config.Config) []string {
	seen := map[string]bool{}
	var order []string
	for _, name := range builtinOrder {
		if _, ok := cfg.Checks[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var custom []string
	for name := range cfg.Checks {
		if !seen[name] {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	return append(order, custom...)
}

// buildAgent constructs the shared reasoning-service client, or nil when
// no endpoint is configured.
func buildAgent(cfg *config.Config) agent.Client {
	if cfg.Agent.Endpoint == "" {
		return nil
	}
	var opts []agent.HTTPOption
	if cfg.Agent.Token != "" {
		opts = append(opts, agent.WithToken(cfg.Agent.Token))
	}
	if cfg.Agent.CallTimeout > 0 {
		opts = append(opts, agent.WithCallTimeout(time.Duration(cfg.Agent.CallTimeout*float64(time.Second))))
	}
	if cfg.Agent.MaxElapsed > 0 {
		opts = append(opts, agent.WithMaxElapsed(time.Duration(cfg.Agent.MaxElapsed*float64(time.Second))))
	}
	return agent.NewHTTPClient(cfg.Agent.Endpoint, opts...)
}

// buildRegistry constructs every enabled check in deterministic order.
// Unknown names without an instruction, invalid globs, and agent-backed
// checks without an agent endpoint are all startup errors.
func buildRegistry(cfg *config.Config, client agent.Client, st *store.Store) (*check.Registry, error) {
	registry := check.NewRegistry()

	for _, name := range registrationOrder(cfg) {
		cc := cfg.Checks[name]
		if !cc.On() {
			continue
		}

		kinds, err := parseKinds(cc.Kinds)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", name, err)
		}
		spec, err := check.NewSpec(true, cc.FileTypes, cc.Globs, kinds)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", name, err)
		}

		var c check.Check
		switch name {
		case "newline":
			c = checks.NewNewline(spec)
		case "license":
			c = checks.NewLicense(spec, cc.LicenseMarker)
		case "data_validation":
			c = checks.NewData(spec)
		case "log_investigator":
			if client == nil {
				return nil, fmt.Errorf("check %q requires agent.endpoint", name)
			}
			c = checks.NewLogInvestigator(spec, client, st, cc.Track())
		default:
			instruction := cc.Instruction
			if instruction == "" {
				instruction = reviewInstructions[name]
			}
			if instruction == "" {
				return nil, fmt.Errorf("unknown check %q: custom checks need an instruction", name)
			}
			if client == nil {
				return nil, fmt.Errorf("check %q requires agent.endpoint", name)
			}
			mode := check.ModeReportOnly
			if cc.AutoFix {
				mode = check.ModeSideEffecting
			}
			c = checks.NewReview(name, instruction, mode, check.Severity(cc.SeverityThreshold), spec, client)
		}

		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func parseKinds(raw []string) ([]event.Kind, error) {
	kinds := make([]event.Kind, 0, len(raw))
	for _, s := range raw {
		k := event.Kind(s)
		if !k.Valid() {
			return nil, fmt.Errorf("invalid event kind %q", s)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// buildNotifiers constructs the enabled sinks.
func buildNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	var sinks []notify.Notifier

	if nc := cfg.Notifications.Slack; nc.Enabled {
		level, err := notify.ParseDetailLevel(nc.DetailLevel)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewSlack(nc.WebhookURL, nc.Channel, check.Severity(nc.MinSeverity), level))
	}
	if nc := cfg.Notifications.Webhook; nc.Enabled {
		level, err := notify.ParseDetailLevel(nc.DetailLevel)
		if err != nil {
			return nil, err
		}
		wh, err := notify.NewWebhook(nc.URL, nc.Method, nc.Headers, level)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, wh)
	}
	if nc := cfg.Notifications.FileLog; nc.On() && nc.LogDir != "" {
		level, err := notify.ParseDetailLevel(nc.DetailLevel)
		if err != nil {
			return nil, err
		}
		fl, err := notify.NewFileLog(nc.LogDir, level)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fl)
	}
	return sinks, nil
}

// buildRules constructs the external-action rules.
func buildRules(cfg *config.Config, client agent.Client) ([]dispatch.Rule, error) {
	var rules []dispatch.Rule
	for _, t := range cfg.Actions.Tickets {
		if !t.Enabled {
			continue
		}
		if client == nil {
			return nil, fmt.Errorf("actions.tickets requires agent.endpoint")
		}
		statuses := make([]check.Status, 0, len(t.Statuses))
		for _, s := range t.Statuses {
			statuses = append(statuses, check.Status(s))
		}
		if len(statuses) == 0 {
			statuses = []check.Status{check.StatusDenied}
		}
		rules = append(rules, dispatch.Rule{
			Name:     "ticket:" + t.Tracker,
			Statuses: statuses,
			Action:   actions.NewTicket(client, t.Tracker, t.Project),
		})
	}
	return rules, nil
}

// loadConfig reads, validates, and logs the configuration for a command.
func loadConfig(opts *RootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogging(opts.Verbose, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
