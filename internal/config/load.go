package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRef matches a value that is exactly one ${VAR} reference. Partial
// interpolation is deliberately unsupported: a secret either comes whole
// from the environment or it lives in the file.
var envRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Load reads path, expands ${VAR} references, applies BOUNCER_* overrides,
// validates against the embedded CUE schema, and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read; tests use it directly.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	expanded := expand(raw).(map[string]any)

	if err := validateSchema(expanded); err != nil {
		return nil, err
	}

	// Round-trip through YAML so the expanded tree lands in the struct.
	buf, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("re-encode config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expand walks the decoded tree replacing values that are exactly one
// ${VAR} reference with the variable's value. Unset variables expand to
// the empty string so a disabled sink with a placeholder URL stays inert.
func expand(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = expand(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = expand(val)
		}
		return t
	case string:
		if m := envRef.FindStringSubmatch(t); m != nil {
			return os.Getenv(m[1])
		}
		return t
	default:
		return v
	}
}

// applyEnvOverrides lets operators override the file without editing it.
// BOUNCER_ENABLED_CHECKS is a comma-separated allowlist: named checks are
// enabled, every other configured check is disabled.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BOUNCER_WATCH_DIR"); v != "" {
		cfg.WatchDir = v
	}
	if v := os.Getenv("BOUNCER_RECURSIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOUNCER_RECURSIVE: %w", err)
		}
		cfg.Recursive = b
	}
	if v := os.Getenv("BOUNCER_DEBOUNCE_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("BOUNCER_DEBOUNCE_DELAY: invalid value %q", v)
		}
		cfg.DebounceDelay = f
	}
	if v := os.Getenv("BOUNCER_REPORT_ONLY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOUNCER_REPORT_ONLY: %w", err)
		}
		cfg.ReportOnly = b
	}
	if v := os.Getenv("BOUNCER_AUTO_FIX"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOUNCER_AUTO_FIX: %w", err)
		}
		for name, cc := range cfg.Checks {
			cc.AutoFix = b
			cfg.Checks[name] = cc
		}
	}
	if v := os.Getenv("BOUNCER_LOG_LEVEL"); v != "" {
		switch v {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = v
		default:
			return fmt.Errorf("BOUNCER_LOG_LEVEL: invalid value %q", v)
		}
	}
	if v := os.Getenv("BOUNCER_MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("BOUNCER_MAX_FILE_SIZE: invalid value %q", v)
		}
		cfg.MaxFileSize = n
	}
	if v := os.Getenv("BOUNCER_ENABLED_CHECKS"); v != "" {
		allow := map[string]bool{}
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				allow[name] = true
			}
		}
		for name, cc := range cfg.Checks {
			on := allow[name]
			cc.Enabled = &on
			cfg.Checks[name] = cc
		}
	}
	return nil
}
