package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bouncer/internal/event"
)

type stubCheck struct {
	name    string
	matches bool
}

func (s *stubCheck) Name() string                         { return s.name }
func (s *stubCheck) Mode() Mode                           { return ModeReportOnly }
func (s *stubCheck) Applicable(ev event.ChangeEvent) bool { return s.matches }
func (s *stubCheck) Run(ctx context.Context, in Input) (*Outcome, error) {
	return &Outcome{Status: StatusApproved}, nil
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		require.NoError(t, r.Register(&stubCheck{name: n, matches: true}))
	}

	var got []string
	for _, c := range r.Applicable(event.ChangeEvent{Path: "f", Kind: event.KindModified}) {
		got = append(got, c.Name())
	}
	assert.Equal(t, names, got)

	var all []string
	for _, c := range r.All() {
		all = append(all, c.Name())
	}
	assert.Equal(t, names, all)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubCheck{name: "dup"}))
	assert.Error(t, r.Register(&stubCheck{name: "dup"}))
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&stubCheck{name: ""}))
}

func TestRegistryApplicableFilters(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubCheck{name: "yes", matches: true}))
	require.NoError(t, r.Register(&stubCheck{name: "no", matches: false}))

	applicable := r.Applicable(event.ChangeEvent{Path: "f", Kind: event.KindModified})
	require.Len(t, applicable, 1)
	assert.Equal(t, "yes", applicable[0].Name())
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubCheck{name: "known"}))

	_, ok := r.Lookup("known")
	assert.True(t, ok)
	_, ok = r.Lookup("unknown")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}
