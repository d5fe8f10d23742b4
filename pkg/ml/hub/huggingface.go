package hub

import (
	"context"
	"os"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// HuggingFace fetches files from a HuggingFace Hub repository, using the Hub's own cache layout under the
// cache directory.
type HuggingFace struct {
	repo   *hub.Repo
	repoID string
}

// NewHuggingFace creates a Fetcher for the HuggingFace Hub repository repoID.
//
// If cacheDir is empty, DefaultCacheDir is used. The authentication token is read from $HF_TOKEN, if set.
func NewHuggingFace(repoID, cacheDir string) (*HuggingFace, error) {
	if cacheDir == "" {
		var err error
		cacheDir, err = DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}
	repo := hub.New(repoID).WithCacheDir(cacheDir).WithProgressBar(klog.V(1).Enabled())
	if token := os.Getenv(TokenEnv); token != "" {
		repo = repo.WithAuth(token)
	}
	return &HuggingFace{repo: repo, repoID: repoID}, nil
}

// Fetch implements Fetcher.
//
// The download itself is not interruptible: ctx is only checked before it starts.
func (h *HuggingFace) Fetch(ctx context.Context, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := h.repo.DownloadFile(filename)
	if err != nil {
		return "", errors.Wrapf(err, "failed to download %q from HuggingFace repository %q", filename, h.repoID)
	}
	klog.V(1).Infof("%s/%s -> %s", h.repoID, filename, path)
	return path, nil
}
