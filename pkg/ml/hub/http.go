package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nkiyohara/srvpfd/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// HTTP fetches files from a plain HTTP(S) mirror: a file is downloaded from BaseURL + "/" + filename.
type HTTP struct {
	// BaseURL of the mirror, e.g.: "https://huggingface.co/nkiyohara/SRVP-weights-mirror/resolve/main".
	BaseURL string

	// CacheDir where files are stored, under the same relative path as in the mirror.
	CacheDir string

	// Checksums optionally maps filenames to their expected hex-encoded SHA256.
	Checksums map[string]string

	// ShowProgressBar while downloading.
	ShowProgressBar bool

	Client *http.Client
}

// NewHTTP creates a Fetcher for the mirror at baseURL. If cacheDir is empty, DefaultCacheDir is used.
func NewHTTP(baseURL, cacheDir string) (*HTTP, error) {
	if cacheDir == "" {
		var err error
		cacheDir, err = DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}
	return &HTTP{
		BaseURL:         strings.TrimSuffix(baseURL, "/"),
		CacheDir:        cacheDir,
		ShowProgressBar: true,
		Client:          http.DefaultClient,
	}, nil
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, filename string) (string, error) {
	path := filepath.Join(h.CacheDir, filepath.FromSlash(filename))
	exists, err := fsutil.FileExists(path)
	if err != nil {
		return "", err
	}
	if !exists {
		url := h.BaseURL + "/" + filename
		if err := h.download(ctx, url, path); err != nil {
			return "", err
		}
	}
	if checkHash, found := h.Checksums[filename]; found {
		if err := ValidateChecksum(path, checkHash); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (h *HTTP) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create the directory for the path %q", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "invalid URL %q", url)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed downloading %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("failed downloading %q: %s", url, resp.Status)
	}

	tmpPath := fsutil.TempPathFor(path)
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed creating file %q", tmpPath)
	}
	var size int64
	if h.ShowProgressBar && resp.ContentLength > 0 {
		bar := progressbar.DefaultBytes(resp.ContentLength, fmt.Sprintf("downloading %s", filepath.Base(path)))
		size, err = io.Copy(io.MultiWriter(file, bar), resp.Body)
		_ = bar.Close()
	} else {
		size, err = io.Copy(file, resp.Body)
	}
	if err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "downloading %q to %q", url, path)
	}
	if err = file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed closing %q", tmpPath)
	}
	if err = fsutil.CommitTemp(tmpPath, path); err != nil {
		return err
	}
	klog.V(1).Infof("downloaded %s (%s) to %s", url, humanize.IBytes(uint64(size)), path)
	return nil
}

// ValidateChecksum verifies that the SHA256 checksum of the file in the given path matches the checksum
// given. If it fails, it removes the file (!) and returns an error.
func ValidateChecksum(path, checkHash string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q", path)
	}
	hasher := sha256.New()
	_, err = io.Copy(hasher, f)
	_ = f.Close()
	if err != nil {
		return errors.Wrapf(err, "failed to read %q", path)
	}
	fileHash := hex.EncodeToString(hasher.Sum(nil))
	if fileHash != strings.ToLower(checkHash) {
		err = errors.Errorf("file %q sha256 hash is %q, but expected %q, deleting file", path, fileHash, checkHash)
		if e2 := os.Remove(path); e2 != nil {
			klog.Errorf("Failed to remove %q, which failed checksum test. Please remove it. %+v", path, e2)
		}
		return err
	}
	return nil
}
