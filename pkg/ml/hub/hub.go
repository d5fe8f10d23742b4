// Package hub fetches model files (weights and configuration) from remote repositories into a local cache.
//
// A Fetcher is bound to one repository (a HuggingFace Hub repo, a plain HTTP mirror or a MinIO/S3 bucket) and
// returns the local path of a requested file, downloading it only if it is not cached yet.
package hub

import (
	"context"

	"github.com/nkiyohara/srvpfd/pkg/support/fsutil"
)

const (
	// DefaultRepoID is the HuggingFace Hub repository mirroring the pretrained SRVP weights.
	DefaultRepoID = "nkiyohara/SRVP-weights-mirror"

	// CacheDirEnv is the environment variable that overrides the default cache directory.
	CacheDirEnv = "SRVPFD_CACHE_DIR"

	// TokenEnv is the environment variable holding an optional HuggingFace authentication token.
	TokenEnv = "HF_TOKEN"

	defaultCacheDir = "~/.cache/srvp-mmnist-fd"
)

// Fetcher returns the local path of a file of a remote repository, downloading it if needed.
//
// filename is relative to the repository root, e.g.: "mmnist/stochastic/model.pt".
type Fetcher interface {
	Fetch(ctx context.Context, filename string) (string, error)
}

// DefaultCacheDir returns the cache directory for downloaded files: $SRVPFD_CACHE_DIR if set, otherwise
// "~/.cache/srvp-mmnist-fd". The directory is created if missing.
func DefaultCacheDir() (string, error) {
	return fsutil.CacheDir(CacheDirEnv, defaultCacheDir)
}
