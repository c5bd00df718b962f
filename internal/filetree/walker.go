package filetree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/qaforge/pkg/types"
)

const (
	// DefaultMaxFileSize skips files larger than 5 MiB
	DefaultMaxFileSize = 5 * 1024 * 1024
)

// DefaultExtensions lists the source extensions visited when none are configured
var DefaultExtensions = []string{
	".go", ".py", ".js", ".ts", ".tsx", ".jsx", ".java", ".kt", ".c", ".h",
	".cc", ".cpp", ".hpp", ".cs", ".rs", ".rb", ".php", ".swift", ".scala",
	".sh", ".sql", ".md", ".yaml", ".yml", ".toml",
}

// DefaultSkipDirs lists directories that are never descended into
var DefaultSkipDirs = []string{"vendor", "node_modules", "__pycache__", "build", "dist", "target"}

// Options controls which files a Walker yields
type Options struct {
	Extensions    []string // lower-case, with leading dot; empty means all
	MaxFileSize   int64    // 0 means unlimited
	SkipDirs      []string
	IncludeHidden bool
}

// DefaultOptions returns the stock filter set
func DefaultOptions() Options {
	return Options{
		Extensions:  DefaultExtensions,
		MaxFileSize: DefaultMaxFileSize,
		SkipDirs:    DefaultSkipDirs,
	}
}

// Stats describes what a walk skipped
type Stats struct {
	Visited         int
	SkippedSize     int
	SkippedBinary   int
	SkippedFiltered int
}

// Walker enumerates FileUnits under a root directory
type Walker struct {
	root  string
	opts  Options
	exts  map[string]bool
	skips map[string]bool
}

// New creates a Walker rooted at root
func New(root string, opts Options) *Walker {
	w := &Walker{
		root:  root,
		opts:  opts,
		exts:  make(map[string]bool, len(opts.Extensions)),
		skips: make(map[string]bool, len(opts.SkipDirs)),
	}
	for _, ext := range opts.Extensions {
		w.exts[strings.ToLower(ext)] = true
	}
	for _, dir := range opts.SkipDirs {
		w.skips[dir] = true
	}
	return w
}

// Root returns the directory the walker enumerates
func (w *Walker) Root() string {
	return w.root
}

// Walk returns every eligible file under the root, sorted by path
func (w *Walker) Walk(ctx context.Context) ([]types.FileUnit, *Stats, error) {
	stats := &Stats{}
	var units []types.FileUnit

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path == w.root {
				return nil
			}
			name := d.Name()
			if w.skips[name] || (!w.opts.IncludeHidden && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks, sockets and devices are not content
		if !d.Type().IsRegular() {
			return nil
		}

		stats.Visited++
		if !w.matches(path) {
			stats.SkippedFiltered++
			return nil
		}

		unit, err := w.load(path)
		switch {
		case errors.Is(err, errTooLarge):
			stats.SkippedSize++
			return nil
		case errors.Is(err, ErrBinary):
			stats.SkippedBinary++
			return nil
		case err != nil:
			return err
		}

		units = append(units, unit)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", w.root, err)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	return units, stats, nil
}

// Load reads the named root-relative paths. Paths that no longer exist or no
// longer pass the filters are omitted.
func (w *Walker) Load(ctx context.Context, paths []string) ([]types.FileUnit, error) {
	units := make([]types.FileUnit, 0, len(paths))
	for _, rel := range paths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		full := filepath.Join(w.root, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if !info.Mode().IsRegular() || !w.matches(full) {
			continue
		}

		unit, err := w.load(full)
		if errors.Is(err, errTooLarge) || errors.Is(err, ErrBinary) {
			continue
		}
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

var errTooLarge = errors.New("file too large")

func (w *Walker) matches(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

func (w *Walker) load(path string) (types.FileUnit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.FileUnit{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		return types.FileUnit{}, errTooLarge
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return types.FileUnit{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if IsBinary(content) {
		return types.FileUnit{}, ErrBinary
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return types.FileUnit{}, fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	return types.NewFileUnit(rel, content, DetectEncoding(content)), nil
}
