package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/engine"
)

// Payload is the wire-agnostic rendering of one aggregate result at a
// chosen detail level. Notifiers serialize it as JSON or render Text().
type Payload struct {
	Format     string         `json:"format"`
	Path       string         `json:"path"`
	Kind       string         `json:"kind"`
	Overall    string         `json:"overall"`
	IssueCount int            `json:"issue_count"`
	FixCount   int            `json:"fix_count"`
	Timestamp  string         `json:"timestamp"`
	TopIssues  []PayloadIssue `json:"top_issues,omitempty"`
	Checks     []PayloadCheck `json:"checks,omitempty"`
}

// PayloadIssue is one issue as rendered for a notification.
type PayloadIssue struct {
	Check       string `json:"check"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Line        int    `json:"line,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// PayloadCheck is one check's outcome as rendered for a notification.
type PayloadCheck struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Failure    string         `json:"failure,omitempty"`
	Issues     []PayloadIssue `json:"issues,omitempty"`
	Fixes      []string       `json:"fixes,omitempty"`
}

// Formatter renders aggregate results at a fixed detail level.
//
//   - summary: counts plus the three most severe issues
//   - detailed: every issue and fix, per check
//   - full: detailed plus per-check durations and failure markers
type Formatter struct {
	level DetailLevel
	title cases.Caser
}

// NewFormatter creates a formatter for the given detail level.
func NewFormatter(level DetailLevel) *Formatter {
	return &Formatter{level: level, title: cases.Title(language.English)}
}

// Format renders one result.
func (f *Formatter) Format(res *engine.AggregateResult) Payload {
	p := Payload{
		Format:     string(f.level),
		Path:       res.Event.Path,
		Kind:       string(res.Event.Kind),
		Overall:    string(res.Overall),
		IssueCount: res.IssueCount(),
		FixCount:   res.FixCount(),
		Timestamp:  res.CreatedAt.UTC().Format(time.RFC3339),
	}

	switch f.level {
	case DetailSummary:
		p.TopIssues = f.topIssues(res, 3)
	case DetailDetailed, DetailFull:
		for _, o := range res.Outcomes {
			pc := PayloadCheck{
				Name:   f.DisplayName(o.Check),
				Status: string(o.Status),
				Fixes:  fixDescriptions(o),
			}
			for _, is := range o.Issues {
				pc.Issues = append(pc.Issues, PayloadIssue{
					Check:       f.DisplayName(o.Check),
					Severity:    string(is.Severity),
					Description: is.Description,
					Line:        is.Line,
					Suggestion:  is.Suggestion,
				})
			}
			if f.level == DetailFull {
				pc.DurationMS = o.Duration.Milliseconds()
				if o.Err != nil {
					pc.Failure = o.Err.Error()
				}
			}
			p.Checks = append(p.Checks, pc)
		}
	}
	return p
}

// topIssues returns the n most severe issues across all outcomes.
// Ties keep registration order, so the rendering is deterministic.
func (f *Formatter) topIssues(res *engine.AggregateResult, n int) []PayloadIssue {
	var all []PayloadIssue
	var ranks []int
	for _, o := range res.Outcomes {
		for _, is := range o.Issues {
			all = append(all, PayloadIssue{
				Check:       f.DisplayName(o.Check),
				Severity:    string(is.Severity),
				Description: is.Description,
				Line:        is.Line,
			})
			ranks = append(ranks, is.Severity.Rank())
		}
	}
	idx := make([]int, len(all))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ranks[idx[a]] > ranks[idx[b]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]PayloadIssue, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i])
	}
	return out
}

// DisplayName renders a check name for humans: "code_quality" becomes
// "Code Quality".
func (f *Formatter) DisplayName(name string) string {
	return f.title.String(strings.ReplaceAll(name, "_", " "))
}

// Text renders the payload as a plain-text message for chat sinks.
func (p Payload) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s): %s", statusMark(p.Overall), p.Path, p.Kind, p.Overall)
	fmt.Fprintf(&b, " | %d issue(s), %d fix(es)", p.IssueCount, p.FixCount)
	for _, is := range p.TopIssues {
		fmt.Fprintf(&b, "\n• [%s] %s: %s", is.Severity, is.Check, is.Description)
	}
	for _, c := range p.Checks {
		fmt.Fprintf(&b, "\n%s: %s", c.Name, c.Status)
		for _, is := range c.Issues {
			fmt.Fprintf(&b, "\n  • [%s] %s", is.Severity, is.Description)
		}
		for _, fx := range c.Fixes {
			fmt.Fprintf(&b, "\n  ✔ %s", fx)
		}
		if c.Failure != "" {
			fmt.Fprintf(&b, "\n  ! %s", c.Failure)
		}
	}
	return b.String()
}

func statusMark(overall string) string {
	switch check.Status(overall) {
	case check.StatusApproved:
		return "✅"
	case check.StatusDenied:
		return "❌"
	case check.StatusFixed:
		return "🔧"
	default:
		return "⚠️"
	}
}

func fixDescriptions(o check.Outcome) []string {
	var out []string
	for _, fx := range o.Fixes {
		out = append(out, fx.Description)
	}
	return out
}
