package hub

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nkiyohara/srvpfd/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MinIOConfig configures the connection to a MinIO (or any S3 compatible) object store holding a mirror of the
// weights repository.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool

	// Bucket holding the mirror.
	Bucket string

	// Prefix of the objects in the bucket, prepended (with a "/") to the requested filenames.
	Prefix string
}

// objectGetter is the subset of *minio.Client used by MinIO.
type objectGetter interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// MinIO fetches files from a bucket of an S3 compatible object store.
type MinIO struct {
	client   objectGetter
	bucket   string
	prefix   string
	cacheDir string
}

// NewMinIO connects to the object store. If cacheDir is empty, DefaultCacheDir is used.
func NewMinIO(cfg MinIOConfig, cacheDir string) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("MinIO fetcher requires an endpoint and a bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create MinIO client for %q", cfg.Endpoint)
	}
	return newMinIO(client, cfg, cacheDir)
}

func newMinIO(client objectGetter, cfg MinIOConfig, cacheDir string) (*MinIO, error) {
	if cacheDir == "" {
		var err error
		cacheDir, err = DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}
	return &MinIO{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, cacheDir: cacheDir}, nil
}

// Fetch implements Fetcher. Files are cached under <cacheDir>/<bucket>/<prefix>/<filename>.
func (m *MinIO) Fetch(ctx context.Context, filename string) (string, error) {
	object := filename
	if m.prefix != "" {
		object = path.Join(m.prefix, filename)
	}
	localPath := filepath.Join(m.cacheDir, m.bucket, filepath.FromSlash(object))
	exists, err := fsutil.FileExists(localPath)
	if err != nil {
		return "", err
	}
	if exists {
		return localPath, nil
	}
	if err = os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create cache directory for %q", localPath)
	}
	tmpPath := fsutil.TempPathFor(localPath)
	if err = m.client.FGetObject(ctx, m.bucket, object, tmpPath, minio.GetObjectOptions{}); err != nil {
		return "", errors.Wrapf(err, "failed to get s3://%s/%s", m.bucket, object)
	}
	if err = fsutil.CommitTemp(tmpPath, localPath); err != nil {
		return "", err
	}
	if info, err := os.Stat(localPath); err == nil {
		klog.V(1).Infof("downloaded s3://%s/%s (%s)", m.bucket, object, humanize.IBytes(uint64(info.Size())))
	}
	return localPath, nil
}
