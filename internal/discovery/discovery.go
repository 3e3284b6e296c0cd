// Package discovery finds spec directories on disk and reads their declared
// dependencies.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/types"
)

// SpecFileName is the document inside each spec directory that carries frontmatter.
const SpecFileName = "spec.md"

// DirPrefix marks a directory as a spec.
const DirPrefix = "SPEC-"

// ErrSpecsDirNotFound is returned when the specs directory does not exist.
var ErrSpecsDirNotFound = errors.New("specs directory not found")

// Found is one discovered spec.
type Found struct {
	ID           string   `json:"id"`
	Path         string   `json:"path"` // relative to the project root, slash-separated
	Dir          string   `json:"-"`    // absolute directory
	Dependencies []string `json:"dependencies"`
}

// Scan walks specsDir (relative to root unless absolute) for directories named
// SPEC-*, at any depth, and parses each one's spec.md. Results are sorted by
// path. When two directories normalize to the same id the first path wins.
func Scan(ctx context.Context, root, specsDir string) ([]Found, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root dir: %w", err)
	}
	scanPath := specsDir
	if !filepath.IsAbs(scanPath) {
		scanPath = filepath.Join(absRoot, scanPath)
	}

	info, err := os.Stat(scanPath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSpecsDirNotFound, scanPath)
	}

	var dirs []string
	err = filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() || path == scanPath {
			return nil
		}
		if name := d.Name(); name == ".git" {
			return filepath.SkipDir
		}
		if strings.HasPrefix(strings.ToUpper(d.Name()), DirPrefix) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", scanPath, err)
	}
	sort.Strings(dirs)

	found := make([]Found, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(absRoot, dir)
			if err != nil {
				return fmt.Errorf("relative path: %w", err)
			}
			found[i] = Found{
				ID:           types.NormalizeID(filepath.Base(dir)),
				Path:         filepath.ToSlash(rel),
				Dir:          dir,
				Dependencies: readDependencies(filepath.Join(dir, SpecFileName)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := found[:0]
	seen := make(map[string]string, len(found))
	for _, f := range found {
		if first, dup := seen[f.ID]; dup {
			debug.Logf("discovery: %s at %s duplicates %s, skipping\n", f.ID, f.Path, first)
			continue
		}
		seen[f.ID] = f.Path
		out = append(out, f)
	}
	return out, nil
}

// readDependencies returns the normalized dependency ids declared in path.
// A missing or unreadable file declares none.
func readDependencies(path string) []string {
	// #nosec G304 -- path is inside the project spec tree
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			debug.Logf("discovery: reading %s: %v\n", path, err)
		}
		return []string{}
	}
	return ParseDependencies(data)
}
