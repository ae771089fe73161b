// Package agents embeds the stock system-tier profile documents installed
// by `agentpm setup`. Project and user tiers always shadow these.
package agents

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed *.md
var stock embed.FS

// Stock returns the embedded profile documents.
func Stock() fs.FS {
	return stock
}

// Names lists the embedded profile filenames.
func Names() ([]string, error) {
	entries, err := stock.ReadDir(".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// Install writes the stock profiles into dir. Existing files are left
// alone unless overwrite is set, so locally edited system profiles
// survive re-running setup.
func Install(dir string, overwrite bool) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating system agents dir: %w", err)
	}

	names, err := Names()
	if err != nil {
		return 0, err
	}

	installed := 0
	for _, name := range names {
		target := filepath.Join(dir, name)
		if !overwrite {
			if _, err := os.Stat(target); err == nil {
				continue
			}
		}
		data, err := stock.ReadFile(name)
		if err != nil {
			return installed, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return installed, fmt.Errorf("installing %s: %w", name, err)
		}
		installed++
	}
	return installed, nil
}
