package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes keeps the index itself and VCS metadata out of ingestion.
var DefaultExcludes = []string{".docqa/**", ".git/**"}

type Walker struct {
	excludes []string
}

func NewWalker(excludes []string) *Walker {
	if excludes == nil {
		excludes = DefaultExcludes
	}
	return &Walker{excludes: excludes}
}

type FileInfo struct {
	Path    string
	RelPath string // slash-separated, relative to the walk root
	ModTime int64
	Size    int64
}

// Expand resolves files, directories and doublestar patterns against root.
// A directory expands to every file beneath it. Results are unique and
// sorted by RelPath.
func (w *Walker) Expand(root string, patterns []string) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []FileInfo

	add := func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if w.shouldExclude(rel) {
			return nil
		}
		files = append(files, FileInfo{
			Path:    path,
			RelPath: rel,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
		return nil
	}

	for _, pattern := range patterns {
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, pattern)
		}

		if info, err := os.Stat(abs); err == nil {
			if !info.IsDir() {
				if err := add(abs); err != nil {
					return nil, err
				}
				continue
			}
			abs = filepath.Join(abs, "**", "*")
		}

		base, pat := doublestar.SplitPattern(filepath.ToSlash(abs))
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid pattern: %s", pattern)
		}
		matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", pattern, err)
		}
		for _, m := range matches {
			if err := add(filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
