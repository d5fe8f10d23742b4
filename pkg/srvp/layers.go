package srvp

import (
	"math"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/nkiyohara/srvpfd/pkg/support/sets"
	"gonum.org/v1/gonum/mat"
)

// batchNormEpsilon matches the default of PyTorch's BatchNorm2d.
const batchNormEpsilon = 1e-5

// leakyReLUSlope of the DCGAN and VGG encoders.
const leakyReLUSlope = 0.2

// featureMap is a batch of activations, shaped [batch, channels, height, width], in row-major order.
type featureMap struct {
	batch, channels, height, width int
	data                           []float64
}

func newFeatureMap(batch, channels, height, width int) *featureMap {
	return &featureMap{batch: batch, channels: channels, height: height, width: width,
		data: make([]float64, batch*channels*height*width)}
}

func featureMapFromTensor(t *tensors.Tensor) *featureMap {
	if t.Rank() != 4 {
		exceptions.Panicf("encoder requires images shaped [batch, channels, height, width], got %s", t)
	}
	dims := t.Dimensions()
	return &featureMap{batch: dims[0], channels: dims[1], height: dims[2], width: dims[3], data: t.Float64s()}
}

func (fm *featureMap) toTensor() *tensors.Tensor {
	return tensors.FromAnyFlatData(fm.data, fm.batch, fm.channels, fm.height, fm.width)
}

// plane returns the values of one channel of one example.
func (fm *featureMap) plane(example, channel int) []float64 {
	size := fm.height * fm.width
	start := (example*fm.channels + channel) * size
	return fm.data[start : start+size]
}

// module is one step of the encoder forward pass.
type module interface {
	forward(x *featureMap) *featureMap
}

// paramModule is a module with parameters loaded from a state dict.
type paramModule interface {
	module

	// scope is the prefix of the module's parameters, e.g.: "conv.1.0".
	scope() string

	// bind the module's parameters from the state dict, marking the used names in used.
	bind(sd *weights.StateDict, prefix string, used sets.Set[string])

	// params returns the module's current parameters, with names relative to the encoder.
	params(yield func(name string, t *tensors.Tensor))
}

// lookupParam returns the values of a parameter checking its dimensions, or nil if the parameter is absent
// and optional. It panics with ErrIncompatibleWeights if the parameter is mis-shaped or missing and required.
func lookupParam(sd *weights.StateDict, name string, required bool, used sets.Set[string], dims ...int) []float64 {
	t, found := sd.Get(name)
	if !found {
		if required {
			panic(errorf(ErrIncompatibleWeights, "missing parameter %q", name))
		}
		return nil
	}
	got := t.Dimensions()
	if len(got) != len(dims) {
		panic(errorf(ErrIncompatibleWeights, "parameter %q has shape %v, expected %v", name, got, dims))
	}
	for axis := range got {
		if got[axis] != dims[axis] {
			panic(errorf(ErrIncompatibleWeights, "parameter %q has shape %v, expected %v", name, got, dims))
		}
	}
	used.Insert(name)
	return t.Float64s()
}

// conv2D is a 2D convolution (cross-correlation, as in PyTorch) computed as a matrix multiplication over the
// unfolded input patches.
type conv2D struct {
	name                    string
	inChannels, outChannels int
	kernel, stride, padding int
	weight                  []float64 // [outChannels, inChannels*kernel*kernel]
	bias                    []float64 // [outChannels], or nil
}

func (c *conv2D) scope() string { return c.name }

func (c *conv2D) bind(sd *weights.StateDict, prefix string, used sets.Set[string]) {
	c.weight = lookupParam(sd, prefix+c.name+".weight", true, used, c.outChannels, c.inChannels, c.kernel, c.kernel)
	c.bias = lookupParam(sd, prefix+c.name+".bias", false, used, c.outChannels)
}

func (c *conv2D) params(yield func(name string, t *tensors.Tensor)) {
	yield(c.name+".weight", tensors.FromAnyFlatData(c.weight, c.outChannels, c.inChannels, c.kernel, c.kernel))
	if c.bias != nil {
		yield(c.name+".bias", tensors.FromAnyFlatData(c.bias, c.outChannels))
	}
}

// outputSize of a spatial axis.
func (c *conv2D) outputSize(inputSize int) int {
	return (inputSize+2*c.padding-c.kernel)/c.stride + 1
}

func (c *conv2D) forward(x *featureMap) *featureMap {
	if x.channels != c.inChannels {
		exceptions.Panicf("%s: expected %d input channels, got %d", c.name, c.inChannels, x.channels)
	}
	outH, outW := c.outputSize(x.height), c.outputSize(x.width)
	if x.height+2*c.padding < c.kernel || x.width+2*c.padding < c.kernel {
		exceptions.Panicf("%s: input of %dx%d is too small for a %dx%d kernel with padding %d",
			c.name, x.height, x.width, c.kernel, c.kernel, c.padding)
	}
	y := newFeatureMap(x.batch, c.outChannels, outH, outW)
	patchSize := c.inChannels * c.kernel * c.kernel
	kernels := mat.NewDense(c.outChannels, patchSize, c.weight)
	cols := mat.NewDense(patchSize, outH*outW, nil)
	for example := range x.batch {
		c.unfold(x, example, cols)
		out := mat.NewDense(c.outChannels, outH*outW, y.data[example*c.outChannels*outH*outW:(example+1)*c.outChannels*outH*outW])
		out.Mul(kernels, cols)
		if c.bias != nil {
			for oc, b := range c.bias {
				plane := y.plane(example, oc)
				for ii := range plane {
					plane[ii] += b
				}
			}
		}
	}
	return y
}

// unfold writes the input patches of one example as columns of cols (im2col), zero-padding the borders.
func (c *conv2D) unfold(x *featureMap, example int, cols *mat.Dense) {
	outH, outW := c.outputSize(x.height), c.outputSize(x.width)
	raw := cols.RawMatrix()
	row := 0
	for ic := range c.inChannels {
		plane := x.plane(example, ic)
		for ky := range c.kernel {
			for kx := range c.kernel {
				dst := raw.Data[row*raw.Stride : row*raw.Stride+outH*outW]
				for oy := range outH {
					iy := oy*c.stride - c.padding + ky
					for ox := range outW {
						ix := ox*c.stride - c.padding + kx
						if iy < 0 || iy >= x.height || ix < 0 || ix >= x.width {
							dst[oy*outW+ox] = 0
						} else {
							dst[oy*outW+ox] = plane[iy*x.width+ix]
						}
					}
				}
				row++
			}
		}
	}
}

// batchNorm2D in inference mode: normalizes each channel with its running statistics.
//
// If the state dict has no parameters for it, it is dropped from the forward pass.
type batchNorm2D struct {
	name                        string
	channels                    int
	disabled                    bool
	gamma, beta, mean, variance []float64
}

func newBatchNorm2D(name string, channels int) *batchNorm2D {
	bn := &batchNorm2D{name: name, channels: channels}
	bn.gamma = make([]float64, channels)
	bn.beta = make([]float64, channels)
	bn.mean = make([]float64, channels)
	bn.variance = make([]float64, channels)
	for ii := range channels {
		bn.gamma[ii] = 1
		bn.variance[ii] = 1
	}
	return bn
}

func (bn *batchNorm2D) scope() string { return bn.name }

func (bn *batchNorm2D) bind(sd *weights.StateDict, prefix string, used sets.Set[string]) {
	scope := prefix + bn.name + "."
	present := slices.ContainsFunc(sd.Names(), func(name string) bool { return strings.HasPrefix(name, scope) })
	if !present {
		bn.disabled = true
		return
	}
	bn.disabled = false
	bn.gamma = lookupParam(sd, scope+"weight", true, used, bn.channels)
	bn.beta = lookupParam(sd, scope+"bias", true, used, bn.channels)
	bn.mean = lookupParam(sd, scope+"running_mean", true, used, bn.channels)
	bn.variance = lookupParam(sd, scope+"running_var", true, used, bn.channels)
	// Training counter, not used in inference.
	if _, found := sd.Get(scope + "num_batches_tracked"); found {
		used.Insert(scope + "num_batches_tracked")
	}
}

func (bn *batchNorm2D) params(yield func(name string, t *tensors.Tensor)) {
	if bn.disabled {
		return
	}
	yield(bn.name+".weight", tensors.FromAnyFlatData(bn.gamma, bn.channels))
	yield(bn.name+".bias", tensors.FromAnyFlatData(bn.beta, bn.channels))
	yield(bn.name+".running_mean", tensors.FromAnyFlatData(bn.mean, bn.channels))
	yield(bn.name+".running_var", tensors.FromAnyFlatData(bn.variance, bn.channels))
}

func (bn *batchNorm2D) forward(x *featureMap) *featureMap {
	if bn.disabled {
		return x
	}
	if x.channels != bn.channels {
		exceptions.Panicf("%s: expected %d channels, got %d", bn.name, bn.channels, x.channels)
	}
	for example := range x.batch {
		for ch := range x.channels {
			scale := bn.gamma[ch] / math.Sqrt(bn.variance[ch]+batchNormEpsilon)
			shift := bn.beta[ch] - bn.mean[ch]*scale
			plane := x.plane(example, ch)
			for ii, v := range plane {
				plane[ii] = v*scale + shift
			}
		}
	}
	return x
}

type activation int

const (
	leakyReLU activation = iota
	tanh
)

func (a activation) forward(x *featureMap) *featureMap {
	switch a {
	case leakyReLU:
		for ii, v := range x.data {
			if v < 0 {
				x.data[ii] = v * leakyReLUSlope
			}
		}
	case tanh:
		for ii, v := range x.data {
			x.data[ii] = math.Tanh(v)
		}
	}
	return x
}

// maxPool2D with a 2x2 window and stride 2, no padding: odd trailing rows and columns are dropped.
type maxPool2D struct{}

func (maxPool2D) forward(x *featureMap) *featureMap {
	outH, outW := x.height/2, x.width/2
	if outH == 0 || outW == 0 {
		exceptions.Panicf("max-pooling: input of %dx%d is too small", x.height, x.width)
	}
	y := newFeatureMap(x.batch, x.channels, outH, outW)
	for example := range x.batch {
		for ch := range x.channels {
			in, out := x.plane(example, ch), y.plane(example, ch)
			for oy := range outH {
				for ox := range outW {
					iy, ix := 2*oy, 2*ox
					m := in[iy*x.width+ix]
					m = max(m, in[iy*x.width+ix+1], in[(iy+1)*x.width+ix], in[(iy+1)*x.width+ix+1])
					out[oy*outW+ox] = m
				}
			}
		}
	}
	return y
}
