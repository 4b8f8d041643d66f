package check

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/bouncer/internal/event"
)

// Spec is a declarative applicability predicate shared by check
// implementations. It answers "should this check look at this event"
// from file extension, path glob, change kind, and the enabled flag,
// never from anything that requires reading the file.
//
// Globs use doublestar syntax ("src/**/*.go"). Invalid globs are a
// construction error so misconfiguration is fatal at startup, never a
// surprise at event time.
type Spec struct {
	enabled    bool
	extensions map[string]struct{}
	globs      []string
	kinds      map[event.Kind]struct{}
}

// NewSpec validates and compiles an applicability predicate.
//
// Empty extensions/globs/kinds mean "match everything" for that
// dimension. Kinds defaults to created+modified: deleted and renamed
// files have no content to check, so checks must opt in to them.
func NewSpec(enabled bool, extensions, globs []string, kinds []event.Kind) (*Spec, error) {
	s := &Spec{
		enabled:    enabled,
		extensions: make(map[string]struct{}, len(extensions)),
		kinds:      make(map[event.Kind]struct{}),
	}

	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extensions[strings.ToLower(ext)] = struct{}{}
	}

	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid glob pattern %q", g)
		}
		s.globs = append(s.globs, g)
	}

	if len(kinds) == 0 {
		kinds = []event.Kind{event.KindCreated, event.KindModified}
	}
	for _, k := range kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("invalid change kind %q", k)
		}
		s.kinds[k] = struct{}{}
	}

	return s, nil
}

// Enabled reports whether the owning check is switched on at all.
func (s *Spec) Enabled() bool { return s.enabled }

// Match reports whether an event passes every dimension of the predicate.
func (s *Spec) Match(ev event.ChangeEvent) bool {
	if !s.enabled {
		return false
	}
	if _, ok := s.kinds[ev.Kind]; !ok {
		return false
	}
	if len(s.extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(ev.Path))
		if _, ok := s.extensions[ext]; !ok {
			return false
		}
	}
	if len(s.globs) > 0 {
		matched := false
		path := filepath.ToSlash(ev.Path)
		for _, g := range s.globs {
			if ok, _ := doublestar.Match(g, path); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
