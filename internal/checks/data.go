package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
)

// Data validates the structure of data files (JSON and YAML).
// Report-only. Malformed input is a warning outcome for this check only,
// never an error - an unparseable file is a finding, not a failure.
type Data struct {
	spec *check.Spec
}

// NewData creates the check.
func NewData(spec *check.Spec) *Data {
	return &Data{spec: spec}
}

func (d *Data) Name() string                         { return "data_validation" }
func (d *Data) Mode() check.Mode                     { return check.ModeReportOnly }
func (d *Data) Applicable(ev event.ChangeEvent) bool { return d.spec.Match(ev) }

func (d *Data) Run(ctx context.Context, in check.Input) (*check.Outcome, error) {
	var parseErr error
	switch strings.ToLower(filepath.Ext(in.Event.Path)) {
	case ".json":
		var v any
		parseErr = json.Unmarshal(in.Content, &v)
	case ".yaml", ".yml":
		var v any
		parseErr = yaml.Unmarshal(in.Content, &v)
	default:
		return &check.Outcome{Status: check.StatusApproved}, nil
	}

	if parseErr == nil {
		return &check.Outcome{Status: check.StatusApproved}, nil
	}

	return &check.Outcome{
		Status: check.StatusWarning,
		Issues: []check.Issue{{
			Description: fmt.Sprintf("malformed data file: %v", parseErr),
			Severity:    check.SeverityMedium,
			Path:        in.Event.Path,
		}},
	}, nil
}
