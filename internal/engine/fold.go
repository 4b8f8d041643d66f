package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
)

// applyFix writes one check's proposed fix to disk and returns the new
// content. A fix with multiple entries folds internally the same way the
// cross-check fold does: each entry is a full replacement, so the last
// one is the surviving content.
//
// Returns ok=false when nothing was written: the write guard refused the
// fix or the write failed. In both cases the outcome is downgraded to a
// warning in place, the file is untouched, and later checks observe the
// previous content.
//
// The write itself is atomic (temp file + rename), so an interrupted
// process never leaves a corrupt file; this is why fix application needs
// no broader critical section.
func (e *Engine) applyFix(c check.Check, dev event.DebouncedEvent, out *check.Outcome) ([]byte, bool) {
	content := []byte(out.Fixes[len(out.Fixes)-1].Content)

	if err := e.guard.Validate(dev.Path, content); err != nil {
		e.logger.Warn("fix refused", "check", c.Name(), "path", dev.Path, "error", err)
		out.Status = check.StatusWarning
		out.Err = err
		out.Issues = append(out.Issues, check.Issue{
			Description: fmt.Sprintf("proposed fix refused: %v", err),
			Severity:    check.SeverityMedium,
			Path:        dev.Path,
		})
		out.Fixes = nil
		return nil, false
	}

	if err := atomicWrite(dev.Path, content); err != nil {
		e.logger.Warn("fix write failed", "check", c.Name(), "path", dev.Path, "error", err)
		out.Status = check.StatusWarning
		out.Err = &RunError{
			Code:    ErrCodeFixWrite,
			Message: "fix write failed",
			Path:    dev.Path,
			Check:   c.Name(),
			Err:     err,
		}
		out.Fixes = nil
		return nil, false
	}

	e.logger.Info("fix applied", "check", c.Name(), "path", dev.Path, "fixes", len(out.Fixes))
	return content, true
}

// atomicWrite replaces path's content via a temp file in the same
// directory and a rename, preserving the original mode when the file
// already exists.
func atomicWrite(path string, content []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bouncer-fix-*")
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	return nil
}
