// Package git lists repository branches by shelling out to the git binary.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/types"
)

// DefaultBranchPattern matches feature branches named after a spec.
const DefaultBranchPattern = `feature/(SPEC-[A-Z0-9-]+)`

const fetchMaxElapsed = 20 * time.Second

// run executes git in dir and returns trimmed stdout. Stderr is folded into
// the error.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// TopLevel returns the working tree root containing dir.
func TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return out, nil
}

// Fetch runs "git fetch --prune", retrying transient failures with
// exponential backoff.
func Fetch(ctx context.Context, dir string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = fetchMaxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		_, err := run(ctx, dir, "fetch", "--prune")
		if err == nil {
			return nil
		}
		if !isRetryableFetchError(err) {
			return backoff.Permanent(err)
		}
		debug.Logf("git: fetch attempt %d failed: %v\n", attempt, err)
		return err
	}, backoff.WithContext(bo, ctx))
}

// isRetryableFetchError matches network-level failures. Missing remotes and
// authentication problems are permanent.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"could not resolve host",
		"connection timed out",
		"connection reset",
		"operation timed out",
		"early eof",
		"the remote end hung up",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ListBranches returns local and remote-tracking branch short names. When
// fetch is set it first runs Fetch; a fetch failure is reported through warn
// and the local view is used.
func ListBranches(ctx context.Context, dir string, fetch bool, warn func(string, ...interface{})) ([]string, error) {
	if fetch {
		if err := Fetch(ctx, dir); err != nil && warn != nil {
			warn("git fetch failed, using local branches: %v", err)
		}
	}
	out, err := run(ctx, dir, "branch", "-a", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// BranchMatch links a branch to the spec id it names.
type BranchMatch struct {
	Branch string `json:"branch"`
	SpecID string `json:"spec_id"`
}

// CompileBranchPattern validates a branch pattern. It must have exactly one
// capture group for the spec id.
func CompileBranchPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultBranchPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid branch pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("branch pattern %q must have exactly one capture group", pattern)
	}
	return re, nil
}

// SpecIDsFromBranches extracts spec ids from branch names in input order.
// Each id is reported once, for the first branch that names it.
func SpecIDsFromBranches(branches []string, re *regexp.Regexp) []BranchMatch {
	var out []BranchMatch
	seen := make(map[string]bool)
	for _, b := range branches {
		m := re.FindStringSubmatch(b)
		if m == nil {
			continue
		}
		id := types.NormalizeID(m[1])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, BranchMatch{Branch: b, SpecID: id})
	}
	return out
}
