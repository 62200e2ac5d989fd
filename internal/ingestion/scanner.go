package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scan returns the files under root whose extension appears in include,
// skipping the named directories at any depth. When root itself is a
// regular file it is returned as the single candidate regardless of
// filters. Paths come back sorted so ingestion order, and therefore batch
// composition, is stable across runs.
func Scan(root string, include []string, excludeDirs []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ingestion: cannot read source %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{filepath.Clean(root)}, nil
	}

	included := make(map[string]bool, len(include))
	for _, ext := range include {
		included[strings.ToLower(ext)] = true
	}
	excluded := make(map[string]bool, len(excludeDirs))
	for _, dir := range excludeDirs {
		excluded[dir] = true
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if included[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walking %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}
