// Package fsutil contains utilities for working with the file system: existence checks, home directory expansion
// and cache directory resolution.
package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %q", path)
}

// ReplaceTildeInDir by the user's home directory. Returns dir if it doesn't start with "~".
//
// It returns an error if `dir` names an unknown user (e.g: `~unknown/...`).
func ReplaceTildeInDir(dir string) (string, error) {
	if dir == "" || dir[0] != '~' {
		return dir, nil
	}
	var userName string
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		if sepIdx := strings.IndexRune(dir, '/'); sepIdx == -1 {
			userName = dir[1:]
		} else {
			userName = dir[1:sepIdx]
		}
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to lookup home directory for user in path %q", dir)
	}
	return filepath.Join(usr.HomeDir, dir[1+len(userName):]), nil
}

// CacheDir resolves a cache directory: the value of the environment variable envVar if set, otherwise
// defaultDir. A leading "~" is expanded and the directory is created if missing.
func CacheDir(envVar, defaultDir string) (string, error) {
	dir := defaultDir
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			dir = v
		}
	}
	dir, err := ReplaceTildeInDir(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create cache directory %q", dir)
	}
	return dir, nil
}

// TempPathFor returns a unique temporary path next to path, to be renamed over it once a write completes.
// Concurrent writers of the same path never share a temporary file.
func TempPathFor(path string) string {
	return path + "." + uuid.NewString() + ".downloading"
}

// CommitTemp renames tmpPath to path, creating path's directory if needed. On failure tmpPath is removed.
func CommitTemp(tmpPath, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to create directory for %q", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to move %q to %q", tmpPath, path)
	}
	return nil
}
