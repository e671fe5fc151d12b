// Package util holds small helpers shared by the CLI and configuration.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ to the user's home directory, expands
// $VAR and ${VAR}, and cleans the result. Empty stays empty.
//
// Examples:
//   - "~/graphs/team.yaml" -> "/home/user/graphs/team.yaml"
//   - "${HOME}/linkbrain.yaml" -> "/home/user/linkbrain.yaml"
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		if path == "~" {
			return homeDir, nil
		}
		path = filepath.Join(homeDir, path[2:])
	}

	path = os.ExpandEnv(path)
	return filepath.Clean(path), nil
}

// ResolvePath expands path and joins it to baseDir when it is still
// relative. Files named in a config file are resolved against the
// directory of that file this way.
func ResolvePath(path, baseDir string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if filepath.IsAbs(expanded) || baseDir == "" {
		return expanded, nil
	}
	return filepath.Join(baseDir, expanded), nil
}
