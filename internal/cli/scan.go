package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/config"
	"github.com/roach88/bouncer/internal/engine"
	"github.com/roach88/bouncer/internal/event"
	"github.com/roach88/bouncer/internal/store"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Fix     bool
	GitDiff bool
	Since   string
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Run all checks once over existing files",
		Long: `Run every applicable check over the files under path (default: the
configured watch_dir) without starting the watch loop. Results are
appended to the audit log. Exits 1 when any check reports issues.

Fixes are not applied unless --fix is given. With --git-diff only files
changed per git are checked; --since widens that to commits inside the
given window (e.g. "1 hour ago").`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runScan(opts, root, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "apply fixes from side-effecting checks")
	cmd.Flags().BoolVar(&opts.GitDiff, "git-diff", false, "only scan files in git diff (incremental mode)")
	cmd.Flags().StringVar(&opts.Since, "since", "", `time window for git diff (e.g. "1 hour ago")`)

	return cmd
}

type scanSummary struct {
	Files    int `json:"files"`
	Checked  int `json:"checked"`
	Issues   int `json:"issues"`
	Fixes    int `json:"fixes"`
	Denied   int `json:"denied"`
	Warnings int `json:"warnings"`
}

func runScan(opts *ScanOptions, root string, cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if root == "" {
		root = cfg.WatchDir
	}
	if !opts.Fix {
		cfg.ReportOnly = true
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := buildScanEngine(ctx, cfg, st, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	var sum scanSummary
	handleFile := func(path string) error {
		sum.Files++

		fp, err := event.FingerprintFile(path)
		if err != nil {
			logger.Debug("fingerprint failed", "path", path, "error", err)
		}
		now := time.Now()
		res, err := eng.Handle(ctx, event.DebouncedEvent{
			ChangeEvent: event.ChangeEvent{
				Path:        path,
				Kind:        event.KindModified,
				ObservedAt:  now,
				Fingerprint: fp,
			},
			CoalescedCount: 1,
			EmittedAt:      now,
		})
		if err != nil {
			return err
		}
		if res == nil {
			return nil
		}

		sum.Checked++
		sum.Issues += res.IssueCount()
		sum.Fixes += res.FixCount()
		switch res.Overall {
		case check.StatusDenied:
			sum.Denied++
		case check.StatusWarning:
			sum.Warnings++
		}
		return nil
	}

	if opts.GitDiff || opts.Since != "" {
		if err := scanGitDiff(ctx, root, opts.Since, cfg.IgnorePatterns, handleFile); err != nil {
			return WrapExitError(ExitCommandError, "scan failed", err)
		}
	} else if err := scanWalk(root, cfg.Recursive, cfg.IgnorePatterns, handleFile); err != nil {
		return WrapExitError(ExitCommandError, "scan failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	text := fmt.Sprintf("scanned %d files (%d checked): %d issues, %d fixes, %d denied, %d warnings",
		sum.Files, sum.Checked, sum.Issues, sum.Fixes, sum.Denied, sum.Warnings)
	if err := formatter.Success(text, sum); err != nil {
		return err
	}

	if sum.Issues > 0 || sum.Denied > 0 {
		return &ExitError{Code: ExitFailure, Message: "checks reported issues"}
	}
	return nil
}

// scanWalk runs handleFile over every non-ignored file under root.
func scanWalk(root string, recursive bool, patterns []string, handleFile func(string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && scanIgnored(root, path, patterns) {
				return filepath.SkipDir
			}
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if scanIgnored(root, path, patterns) {
			return nil
		}
		return handleFile(path)
	})
}

// scanGitDiff runs handleFile over the files git reports as changed:
// the working tree diff against HEAD, plus - when since is given -
// anything touched by commits inside that window.
func scanGitDiff(ctx context.Context, root, since string, patterns []string, handleFile func(string) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	files, err := gitChangedFiles(ctx, root, since)
	if err != nil {
		return err
	}
	for _, path := range files {
		if !underDir(absRoot, path) || scanIgnored(absRoot, path, patterns) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Deleted files still appear in the diff output.
			continue
		}
		if err := handleFile(path); err != nil {
			return err
		}
	}
	return nil
}

// gitChangedFiles lists changed files as absolute paths, deduplicated
// and sorted. git prints paths relative to the repository top level, so
// that is resolved first.
func gitChangedFiles(ctx context.Context, dir, since string) ([]string, error) {
	top, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	topDir := strings.TrimSpace(string(top))

	out, err := gitOutput(ctx, dir, "diff", "--name-only", "HEAD")
	if err != nil {
		return nil, err
	}
	names := parseNameOnly(out)

	if since != "" {
		out, err := gitOutput(ctx, dir, "log", "--since="+since, "--name-only", "--pretty=format:")
		if err != nil {
			return nil, err
		}
		names = append(names, parseNameOnly(out)...)
	}

	return uniquePaths(topDir, names), nil
}

func gitOutput(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}

// parseNameOnly splits git's --name-only output into non-empty lines.
func parseNameOnly(out []byte) []string {
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

// uniquePaths joins repo-relative names onto top, deduplicated and sorted.
func uniquePaths(top string, names []string) []string {
	seen := make(map[string]bool, len(names))
	var files []string
	for _, rel := range names {
		abs := filepath.Join(top, filepath.FromSlash(rel))
		if seen[abs] {
			continue
		}
		seen[abs] = true
		files = append(files, abs)
	}
	sort.Strings(files)
	return files
}

func underDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// buildScanEngine is buildEngine without notification sinks or action
// rules: a scan writes the audit log but stays quiet.
func buildScanEngine(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*engine.Engine, error) {
	client := buildAgent(cfg)
	registry, err := buildRegistry(cfg, client, st)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no checks enabled")
	}

	lastSeq, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume audit clock: %w", err)
	}

	return engine.New(registry, st, nil, logger,
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithCheckTimeout(cfg.Timeout()),
		engine.WithMaxConcurrent(cfg.MaxConcurrent),
		engine.WithMaxFileSize(cfg.MaxFileSize),
		engine.WithReportOnly(cfg.ReportOnly),
		engine.WithWriteGuard(engine.NewWriteGuard(cfg.MaxFileSize)),
	), nil
}

// scanIgnored mirrors the watch loop's ignore rules for one-shot walks:
// a pattern matches a path segment exactly or the relative path as a
// doublestar glob.
func scanIgnored(root, path string, patterns []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	segments := strings.Split(rel, "/")
	for _, pat := range patterns {
		for _, seg := range segments {
			if seg == pat {
				return true
			}
		}
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
