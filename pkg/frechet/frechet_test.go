package frechet

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/srvp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputShapes(t *testing.T) {
	testCases := []struct {
		name           string
		dims1, dims2   []int
		wantInvalid    bool
		wantErrContain string
	}{
		{"same shapes", []int{8, 1, 64, 64}, []int{8, 1, 64, 64}, false, ""},
		{"different batch sizes", []int{8, 1, 64, 64}, []int{12, 1, 64, 64}, false, ""},
		{"rank 2", []int{10, 1}, []int{10, 1, 64, 64}, true, "4D"},
		{"rank 3", []int{8, 64, 64}, []int{8, 1, 64, 64}, true, "4D"},
		{"rank 5", []int{8, 1, 64, 64}, []int{2, 8, 1, 64, 64}, true, "4D"},
		{"channels", []int{8, 1, 64, 64}, []int{8, 3, 64, 64}, true, "channel"},
		{"height", []int{8, 1, 64, 64}, []int{8, 1, 32, 64}, true, "spatial"},
		{"width", []int{8, 1, 64, 64}, []int{8, 1, 64, 32}, true, "spatial"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInputShapes(tensors.FromShape(tc.dims1...), tensors.FromShape(tc.dims2...))
			if !tc.wantInvalid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorContains(t, err, tc.wantErrContain)
		})
	}
}

// pixelEncoder uses the first pixels of each image as its features.
type pixelEncoder struct {
	numFeatures int
	calls       int
}

func (e *pixelEncoder) Encode(images *tensors.Tensor) (*tensors.Tensor, error) {
	e.calls++
	batch := images.Dim(0)
	imageSize := images.Size() / batch
	features := tensors.FromShape(batch, e.numFeatures)
	images.ConstFlatData(func(in []float32) {
		features.MutableFlatData(func(out []float32) {
			for ii := range batch {
				copy(out[ii*e.numFeatures:(ii+1)*e.numFeatures], in[ii*imageSize:ii*imageSize+e.numFeatures])
			}
		})
	})
	return features, nil
}

func uniformImages(seed uint64, batch int, low, high float32) *tensors.Tensor {
	rng := rand.New(rand.NewPCG(seed, 2))
	images := tensors.FromShape(batch, 1, 8, 8)
	images.MutableFlatData(func(flat []float32) {
		for ii := range flat {
			flat[ii] = low + (high-low)*rng.Float32()
		}
	})
	return images
}

func TestDoneWithEncoder(t *testing.T) {
	t.Setenv(srvp.DeviceEnv, "")
	images1 := uniformImages(1, 64, 0, 1)
	images2 := uniformImages(2, 48, 0.5, 1)
	encoder := &pixelEncoder{numFeatures: 4}

	same, err := New(images1, images1).WithEncoder(encoder).Done()
	require.NoError(t, err)
	assert.InDelta(t, 0, same, 1e-6)
	assert.Equal(t, 2, encoder.calls)

	d12, err := New(images1, images2).WithEncoder(encoder).Done()
	require.NoError(t, err)
	d21, err := New(images2, images1).WithEncoder(encoder).Done()
	require.NoError(t, err)
	assert.Greater(t, d12, 0.0)
	assert.InDelta(t, d12, d21, 1e-6)

	_, err = New(images1, tensors.FromShape(4, 3, 8, 8)).WithEncoder(encoder).Done()
	require.ErrorIs(t, err, ErrInvalidInput)

	// A single image can't have a covariance.
	_, err = New(images1, uniformImages(3, 1, 0, 1)).WithEncoder(encoder).Done()
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(images1, images2).WithEncoder(encoder).WithDevice("tpu").Done()
	require.ErrorIs(t, err, ErrInvalidInput)
}

type failingFetcher struct{ calls int }

func (f *failingFetcher) Fetch(_ context.Context, filename string) (string, error) {
	f.calls++
	return "", errors.Errorf("no network for %s", filename)
}

func TestDoneWithDataset(t *testing.T) {
	t.Setenv(srvp.DeviceEnv, "")
	images := uniformImages(1, 4, 0, 1)
	fetcher := &failingFetcher{}
	_, err := New(images, images).WithFetcher(fetcher).WithCacheDir(t.TempDir()).Done()
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, fetcher.calls)

	_, err = New(images, images).WithDataset("ucf101").WithFetcher(fetcher).Done()
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDistanceWithDefaultEncoder(t *testing.T) {
	t.Setenv(srvp.DeviceEnv, "")
	rng := rand.New(rand.NewPCG(7, 7))
	images1 := tensors.FromShape(6, 1, 64, 64)
	images1.MutableFlatData(func(flat []float32) {
		for ii := range flat {
			flat[ii] = rng.Float32()
		}
	})
	images2 := tensors.FromShape(5, 1, 64, 64)

	d, err := Distance(images1, images2, "", "", srvp.CPU)
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)

	_, err = Distance(images1, tensors.FromShape(5, 3, 64, 64), "", "", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}
