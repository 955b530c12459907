package main

import (
	"os"
	"path/filepath"
)

// FindWorkspaceRoot walks upward from start looking for model.yaml, the
// marker of a DomainLang workspace. Returns start unchanged if no manifest
// is found anywhere above it (callers that require a manifest then surface
// ManifestNotFoundError from LoadManifest).
func FindWorkspaceRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ManifestFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// CurrentWorkspaceRoot returns the workspace root containing the current
// working directory.
func CurrentWorkspaceRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindWorkspaceRoot(cwd), nil
}
