// Package images provides several functions to transform images (video frames) into
// tensors.
package images

import (
	"fmt"
	"image"

	"github.com/gomlx/exceptions"
	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"k8s.io/klog/v2"
)

// ChannelsAxisConfig indicates if a tensor with an image has the channel axis
// coming last (last axis) or first (first axis after batch axis).
type ChannelsAxisConfig uint8

const (
	ChannelsFirst ChannelsAxisConfig = iota
	ChannelsLast
)

// String implements fmt.Stringer.
func (c ChannelsAxisConfig) String() string {
	switch c {
	case ChannelsFirst:
		return "ChannelsFirst"
	case ChannelsLast:
		return "ChannelsLast"
	default:
		return fmt.Sprintf("ChannelsAxisConfig(%d)", int(c))
	}
}

// GetChannelsAxis from a given image tensor and configuration. It assumes the
// leading axis is for the batch dimension. So it either returns 1 or
// `image.Rank()-1`.
func GetChannelsAxis(image *tensors.Tensor, config ChannelsAxisConfig) int {
	switch config {
	case ChannelsFirst:
		return 1
	case ChannelsLast:
		return image.Rank() - 1
	default:
		klog.Errorf("GetChannelsAxis(image, %s): invalid ChannelsAxisConfig!?", config)
		return -1
	}
}

// GetSpatialAxes from a given image tensor and configuration. It assumes the
// leading axis is for the batch dimension.
//
// Example: if image has shape `[batch_dim, channels, height, width]` and ChannelsFirst, it will
// return `[]int{2, 3}`.
func GetSpatialAxes(image *tensors.Tensor, config ChannelsAxisConfig) (spatialAxes []int) {
	numSpatialDims := image.Rank() - 2
	if numSpatialDims <= 0 {
		return
	}
	first := 1
	switch config {
	case ChannelsFirst:
		first = 2
	case ChannelsLast:
	default:
		klog.Errorf("GetSpatialAxes(image, %v): invalid ChannelsAxisConfig!?", config)
		return
	}
	spatialAxes = make([]int, numSpatialDims)
	for ii := range spatialAxes {
		spatialAxes[ii] = first + ii
	}
	return
}

// ToTensorConfig holds the configuration returned by the ToTensor function. Once
// configured, use Batch to actually convert.
type ToTensorConfig struct {
	channels       int
	maxValue       float64
	channelsConfig ChannelsAxisConfig
}

// ToTensor returns a configuration to convert images to a float32 tensor.
// By default, it produces 3 channels (RGB), channels first, with values in [0, 1].
func ToTensor() *ToTensorConfig {
	return &ToTensorConfig{
		channels:       3,
		maxValue:       1.0,
		channelsConfig: ChannelsFirst,
	}
}

// Grayscale configures the conversion to produce a single channel with the luminance of the image.
//
// It returns the ToTensorConfig object, so configuration calls can be cascaded.
func (tt *ToTensorConfig) Grayscale() *ToTensorConfig {
	tt.channels = 1
	return tt
}

// MaxValue sets the MaxValue of each channel. It defaults to 1.0.
//
// It returns the ToTensorConfig object, so configuration calls can be cascaded.
func (tt *ToTensorConfig) MaxValue(v float64) *ToTensorConfig {
	tt.maxValue = v
	return tt
}

// ChannelsAxis configures where to place the channels axis. Default is ChannelsFirst, the
// layout expected by the encoders.
//
// It returns the ToTensorConfig object, so configuration calls can be cascaded.
func (tt *ToTensorConfig) ChannelsAxis(config ChannelsAxisConfig) *ToTensorConfig {
	tt.channelsConfig = config
	return tt
}

// Batch converts the given images to a tensor, using the ToTensorConfig.
//
// It returns a 4D tensor, shaped as `[batch_size, channels, height, width]` for ChannelsFirst or
// `[batch_size, height, width, channels]` for ChannelsLast.
//
// It panics if the images don't all have the same size.
func (tt *ToTensorConfig) Batch(images []image.Image) *tensors.Tensor {
	if len(images) == 0 {
		exceptions.Panicf("images.ToTensor().Batch() requires at least one image")
	}
	imgSize := images[0].Bounds().Size()
	var t *tensors.Tensor
	if tt.channelsConfig == ChannelsFirst {
		t = tensors.FromShape(len(images), tt.channels, imgSize.Y, imgSize.X)
	} else {
		t = tensors.FromShape(len(images), imgSize.Y, imgSize.X, tt.channels)
	}
	planeSize := imgSize.X * imgSize.Y
	imageSize := planeSize * tt.channels

	// convert RGBA channel value to float32: color.RGBA() returns 16 bits values packaged in uint32.
	convert := func(val uint32) float32 {
		return float32(float64(val) * tt.maxValue / float64(0xFFFF))
	}

	t.MutableFlatData(func(flat []float32) {
		for imgIdx, img := range images {
			if !img.Bounds().Size().Eq(imgSize) {
				exceptions.Panicf("image[%d] has size %s, but image[0] has size %s -- they must all be the same",
					imgIdx, img.Bounds().Size(), imgSize)
			}
			minPt := img.Bounds().Min
			base := imgIdx * imageSize
			for y := 0; y < imgSize.Y; y++ {
				for x := 0; x < imgSize.X; x++ {
					r, g, b, _ := img.At(minPt.X+x, minPt.Y+y).RGBA()
					var values [3]float32
					if tt.channels == 1 {
						// ITU-R 601-2 luma transform, the same used by PIL's "L" mode.
						values[0] = convert((299*r + 587*g + 114*b + 500) / 1000)
					} else {
						values = [3]float32{convert(r), convert(g), convert(b)}
					}
					pixel := y*imgSize.X + x
					for c := 0; c < tt.channels; c++ {
						if tt.channelsConfig == ChannelsFirst {
							flat[base+c*planeSize+pixel] = values[c]
						} else {
							flat[base+pixel*tt.channels+c] = values[c]
						}
					}
				}
			}
		}
	})
	return t
}
