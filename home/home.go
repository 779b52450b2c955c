package home

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// Expand replaces a leading ~ (current user) or ~name (user name) with that
// user's home directory. Paths not starting with ~ are returned unchanged.
func Expand(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	first, rest, _ := strings.Cut(filepath.ToSlash(path), "/")

	var dir string
	if first == "~" {
		d, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand tilde: %w", err)
		}
		dir = d
	} else {
		u, err := user.Lookup(first[1:])
		if err != nil {
			return "", fmt.Errorf("expand tilde: %w", err)
		}
		dir = u.HomeDir
	}

	if rest == "" {
		return dir, nil
	}
	return filepath.Join(dir, filepath.FromSlash(rest)), nil
}

// ConfigDir is the per-user configuration directory: %LOCALAPPDATA% on
// Windows, $XDG_CONFIG_HOME or ~/.config elsewhere.
func ConfigDir() (string, error) {
	env := "XDG_CONFIG_HOME"
	fallback := ".config"
	if runtime.GOOS == "windows" {
		env = "LOCALAPPDATA"
		fallback = filepath.Join("AppData", "Local")
	}
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}

	h, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find config dir: %w", err)
	}
	return filepath.Join(h, fallback), nil
}
