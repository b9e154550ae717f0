package application

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CollectPDFs expands directories to the .pdf files directly inside them and drops duplicates.
// Explicit files are kept whatever their extension.
func CollectPDFs(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, p)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") || isCompressedOutput(name) {
				continue
			}
			found = append(found, filepath.Join(p, name))
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// isCompressedOutput skips files a previous run wrote next to their input.
func isCompressedOutput(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, "_compressed")
}
