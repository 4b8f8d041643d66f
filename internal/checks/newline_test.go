package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
)

func mustSpec(t *testing.T, extensions, globs []string) *check.Spec {
	t.Helper()
	spec, err := check.NewSpec(true, extensions, globs, nil)
	require.NoError(t, err)
	return spec
}

func inputFor(path, content string) check.Input {
	return check.Input{
		Event: event.ChangeEvent{
			Path:        path,
			Kind:        event.KindModified,
			Fingerprint: event.FingerprintBytes([]byte(content)),
		},
		Content: []byte(content),
	}
}

func TestNewlineApprovesWellFormedFiles(t *testing.T) {
	n := NewNewline(mustSpec(t, nil, nil))

	for _, content := range []string{"", "package main\n", "a\nb\n"} {
		out, err := n.Run(context.Background(), inputFor("main.go", content))
		require.NoError(t, err)
		assert.Equal(t, check.StatusApproved, out.Status, "content %q", content)
		assert.Empty(t, out.Fixes)
	}
}

func TestNewlineFixesMissingTrailingNewline(t *testing.T) {
	n := NewNewline(mustSpec(t, nil, nil))

	out, err := n.Run(context.Background(), inputFor("main.go", "package main"))
	require.NoError(t, err)
	assert.Equal(t, check.StatusFixed, out.Status)
	require.Len(t, out.Fixes, 1)
	assert.Equal(t, "package main\n", out.Fixes[0].Content)
}

func TestNewlineFixesExtraTrailingNewlines(t *testing.T) {
	n := NewNewline(mustSpec(t, nil, nil))

	out, err := n.Run(context.Background(), inputFor("main.go", "package main\n\n\n"))
	require.NoError(t, err)
	assert.Equal(t, check.StatusFixed, out.Status)
	require.Len(t, out.Fixes, 1)
	assert.Equal(t, "package main\n", out.Fixes[0].Content)
}

func TestNewlineModeAndApplicability(t *testing.T) {
	n := NewNewline(mustSpec(t, []string{".go"}, nil))

	assert.Equal(t, check.ModeSideEffecting, n.Mode())
	assert.True(t, n.Applicable(event.ChangeEvent{Path: "a.go", Kind: event.KindModified}))
	assert.False(t, n.Applicable(event.ChangeEvent{Path: "a.png", Kind: event.KindModified}))
}
