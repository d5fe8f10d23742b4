// srvpfd computes the Fréchet distance between two sets of video frames, using the features of a pretrained SRVP
// encoder.
//
// Usage:
//
//	srvpfd distance [flags] <frames1> <frames2>
//	srvpfd fetch [flags] [dataset...]
//	srvpfd convert <model.pt> <model.safetensors>
//
// Frames are given either as a directory of image files or as a ".safetensors" file holding a tensor shaped
// `[batch, channels, 64, 64]`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/nkiyohara/srvpfd/pkg/ml/hub"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var commands = map[string]func(ctx context.Context, args []string) error{
	"distance": runDistance,
	"fetch":    runFetch,
	"convert":  runConvert,
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "Usage: %s [global flags] <command> [flags] [args]\n\n", os.Args[0])
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  distance  Fréchet distance between two sets of frames.")
	_, _ = fmt.Fprintln(out, "  fetch     Download the pretrained models into the cache.")
	_, _ = fmt.Fprintln(out, "  convert   Convert a PyTorch checkpoint to safetensors.")
	_, _ = fmt.Fprintln(out, "\nGlobal flags:")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing command. See '%s -help'.", os.Args[0])
		os.Exit(1)
	}
	cmd, found := commands[args[0]]
	if !found {
		klog.Errorf("Unknown command %q. See '%s -help'.", args[0], os.Args[0])
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := cmd(ctx, args[1:]); err != nil {
		klog.Errorf("%s: %+v", args[0], err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

// fetcherFlags selects where the pretrained models are downloaded from.
type fetcherFlags struct {
	source   *string
	repoID   *string
	baseURL  *string
	cacheDir *string
	minio    hub.MinIOConfig
}

func registerFetcherFlags(fs *flag.FlagSet) *fetcherFlags {
	ff := &fetcherFlags{
		source: fs.String("source", "huggingface", "Where to download pretrained models from: "+
			"\"huggingface\", \"http\" or \"minio\"."),
		repoID:   fs.String("repo", hub.DefaultRepoID, "HuggingFace Hub repository, for -source=huggingface."),
		baseURL:  fs.String("base_url", "", "Base URL of the mirror, for -source=http."),
		cacheDir: fs.String("cache_dir", "", "Cache directory for downloaded files. Defaults to $"+hub.CacheDirEnv+" or ~/.cache/srvp-mmnist-fd."),
	}
	fs.StringVar(&ff.minio.Endpoint, "minio_endpoint", "", "MinIO/S3 endpoint, for -source=minio.")
	fs.StringVar(&ff.minio.Bucket, "minio_bucket", "", "Bucket holding the mirror, for -source=minio.")
	fs.StringVar(&ff.minio.Prefix, "minio_prefix", "", "Prefix of the mirror in the bucket, for -source=minio.")
	fs.BoolVar(&ff.minio.UseSSL, "minio_ssl", true, "Use TLS to connect to MinIO.")
	return ff
}

// newFetcher creates the Fetcher configured by the flags. MinIO credentials are read from $MINIO_ACCESS_KEY and
// $MINIO_SECRET_KEY.
func (ff *fetcherFlags) newFetcher() (hub.Fetcher, error) {
	switch *ff.source {
	case "huggingface", "hf":
		return hub.NewHuggingFace(*ff.repoID, *ff.cacheDir)
	case "http":
		if *ff.baseURL == "" {
			return nil, errors.New("-source=http requires -base_url")
		}
		return hub.NewHTTP(*ff.baseURL, *ff.cacheDir)
	case "minio":
		cfg := ff.minio
		cfg.AccessKeyID = os.Getenv("MINIO_ACCESS_KEY")
		cfg.SecretAccessKey = os.Getenv("MINIO_SECRET_KEY")
		return hub.NewMinIO(cfg, *ff.cacheDir)
	default:
		return nil, errors.Errorf("unknown -source=%q, valid values are \"huggingface\", \"http\" or \"minio\"", *ff.source)
	}
}
