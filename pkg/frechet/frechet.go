// Package frechet computes the Fréchet distance between two sets of video frames, using the features extracted by
// the encoder of a pretrained SRVP model. It is the video prediction analogue of the FID score for images: lower
// is more similar.
//
// Example:
//
//	d, err := frechet.New(generated, reference).WithDataset(srvp.MMNISTStochastic).Done()
//
// Or, equivalently:
//
//	d, err := frechet.Distance(generated, reference, srvp.MMNISTStochastic, "", "")
package frechet

import (
	"context"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/ml/hub"
	"github.com/nkiyohara/srvpfd/pkg/srvp"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Encoder extracts features shaped [N, D] from images shaped [batch, channels, height, width].
// *srvp.Encoder implements it.
type Encoder interface {
	Encode(images *tensors.Tensor) (*tensors.Tensor, error)
}

// Config of a distance computation, created with New. Configure it with the With* methods, and call Done to
// compute the distance.
type Config struct {
	ctx              context.Context
	images1, images2 *tensors.Tensor
	dataset          srvp.Dataset
	modelPath        string
	device           srvp.Device
	cacheDir         string
	fetcher          hub.Fetcher
	encoder          Encoder
}

// New configures the distance between the two image batches, each shaped [batch, channels, height, width] with
// values in [0, 1]. The batch sizes may differ.
//
// By default it uses the model pretrained on the stochastic Moving MNIST dataset.
func New(images1, images2 *tensors.Tensor) *Config {
	return &Config{
		ctx:     context.Background(),
		images1: images1,
		images2: images2,
		dataset: srvp.MMNISTStochastic,
	}
}

// WithContext sets the context used while downloading model files.
func (c *Config) WithContext(ctx context.Context) *Config {
	c.ctx = ctx
	return c
}

// WithDataset selects the pretrained model. An empty dataset, without a model path, selects an untrained default
// encoder, and a warning is logged.
func (c *Config) WithDataset(dataset srvp.Dataset) *Config {
	c.dataset = dataset
	return c
}

// WithModelPath uses the model weights in path, with its "config.json" in the same directory. It takes precedence
// over the dataset.
func (c *Config) WithModelPath(path string) *Config {
	c.modelPath = path
	return c
}

// WithDevice selects the device, see srvp.ResolveDevice.
func (c *Config) WithDevice(device srvp.Device) *Config {
	c.device = device
	return c
}

// WithCacheDir sets the directory where downloaded model files are cached.
func (c *Config) WithCacheDir(dir string) *Config {
	c.cacheDir = dir
	return c
}

// WithFetcher sets how the dataset's model files are downloaded.
func (c *Config) WithFetcher(fetcher hub.Fetcher) *Config {
	c.fetcher = fetcher
	return c
}

// WithEncoder uses the given encoder, instead of loading one. Dataset, model path, cache and fetcher are then
// ignored.
func (c *Config) WithEncoder(encoder Encoder) *Config {
	c.encoder = encoder
	return c
}

// Statistics validates the images, encodes them and returns the statistics of the features of each batch.
func (c *Config) Statistics() (stats1, stats2 *Statistics, err error) {
	if err = ValidateInputShapes(c.images1, c.images2); err != nil {
		return
	}
	device, err := srvp.ResolveDevice(c.device)
	if err != nil {
		return
	}
	encoder := c.encoder
	if encoder == nil {
		encoder, err = srvp.LoadEncoder(c.ctx, srvp.Options{
			ModelPath: c.modelPath,
			Dataset:   c.dataset,
			CacheDir:  c.cacheDir,
			Fetcher:   c.fetcher,
			Device:    device,
		})
		if err != nil {
			return
		}
	}
	for ii, images := range []*tensors.Tensor{c.images1, c.images2} {
		var features *tensors.Tensor
		features, err = encoder.Encode(images)
		if err != nil {
			err = errors.WithMessagef(err, "encoding images%d", ii+1)
			return
		}
		var stats *Statistics
		stats, err = ComputeStatistics(features)
		if err != nil {
			err = errors.WithMessagef(err, "features of images%d", ii+1)
			return
		}
		if ii == 0 {
			stats1 = stats
		} else {
			stats2 = stats
		}
	}
	klog.V(1).Infof("features: %d and %d vectors of dimension %d", c.images1.Dim(0), c.images2.Dim(0), stats1.Dim())
	return
}

// Done computes the Fréchet distance.
func (c *Config) Done() (float64, error) {
	stats1, stats2, err := c.Statistics()
	if err != nil {
		return 0, err
	}
	return stats1.Distance(stats2)
}

// Distance computes the Fréchet distance between two image batches, see New.
//
// If modelPath is set, the model is loaded from it. Otherwise, the pretrained model of dataset is downloaded. If
// both are empty, an untrained default encoder is used. An empty device selects the default one.
func Distance(images1, images2 *tensors.Tensor, dataset srvp.Dataset, modelPath string, device srvp.Device) (float64, error) {
	return New(images1, images2).WithDataset(dataset).WithModelPath(modelPath).WithDevice(device).Done()
}
