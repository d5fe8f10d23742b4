// Package srvp implements the frame encoder of the Stochastic Latent Residual Video Prediction (SRVP) model, and
// the provisioning of its pretrained weights.
//
// The encoder maps 64x64 video frames, shaped [batch, channels, 64, 64], to feature vectors shaped
// [batch, nhx]. Two layouts exist, following the original PyTorch modules (and their parameter names):
//
//   - DCGAN: four stride-2 4x4 convolutions followed by a 4x4 convolution to the feature width.
//   - VGG: four stages of 3x3 convolutions separated by 2x2 max-pooling, and a final 4x4 convolution.
//
// The forward pass runs on the host, using gonum matrix multiplications, always in inference mode.
package srvp

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/nkiyohara/srvpfd/pkg/support/sets"
)

// Architecture of the encoder, as named by the "archi" key of the model configuration.
type Architecture string

const (
	DCGAN Architecture = "dcgan"
	VGG   Architecture = "vgg"
)

// Architectures returns the supported encoder architectures.
func Architectures() []Architecture {
	return []Architecture{DCGAN, VGG}
}

// EncoderPrefix is the scope of the encoder parameters in the state dict of a full SRVP model.
const EncoderPrefix = "encoder."

// Default hyperparameters of the untrained encoder used when no model is given, matching the Moving MNIST models.
const (
	DefaultChannels     = 1
	DefaultFeatures     = 128
	DefaultBaseFilters  = 32
	defaultInitSeed     = 42
	defaultInitStreamID = 0x5f3759df
)

// Encoder maps image batches to feature vectors. It is safe for concurrent use: Encode doesn't change the
// Encoder.
type Encoder struct {
	archi      Architecture
	nc, nh, nf int
	device     Device
	modules    []module
}

// NewEncoder creates an encoder with the given architecture, number of input channels (nc), feature width (nh)
// and base number of filters (nf).
//
// Parameters are initialized as PyTorch does (uniform in ±1/sqrt(fan_in) for convolutions, identity for
// batch normalization), from a fixed seed: two encoders created with the same arguments are identical.
func NewEncoder(archi Architecture, nc, nh, nf int) (*Encoder, error) {
	if !slices.Contains(Architectures(), archi) {
		return nil, errorf(ErrInvalidInput, "unknown encoder architecture %q, expected one of %v", archi, Architectures())
	}
	if nc <= 0 || nh <= 0 || nf <= 0 {
		return nil, errorf(ErrInvalidInput, "encoder dimensions must be positive, got nc=%d, nh=%d, nf=%d", nc, nh, nf)
	}
	e := &Encoder{archi: archi, nc: nc, nh: nh, nf: nf, device: CPU}
	e.modules = e.build()
	e.initialize(rand.New(rand.NewPCG(defaultInitSeed, defaultInitStreamID)))
	return e, nil
}

// NewEncoderFromConfig creates an (untrained) encoder for the model configuration.
func NewEncoderFromConfig(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewEncoder(Architecture(cfg.Archi), cfg.NC, cfg.NHX, cfg.NF)
}

// NewDefaultEncoder returns the untrained DCGAN encoder for grayscale frames (nc=1, nh=128, nf=32).
// Features it extracts are only weakly informative.
func NewDefaultEncoder() *Encoder {
	e, err := NewEncoder(DCGAN, DefaultChannels, DefaultFeatures, DefaultBaseFilters)
	if err != nil {
		panic(err)
	}
	return e
}

// Architecture of the encoder.
func (e *Encoder) Architecture() Architecture { return e.archi }

// Channels returns the number of channels of the input images.
func (e *Encoder) Channels() int { return e.nc }

// FeatureDim returns the width of the output feature vectors.
func (e *Encoder) FeatureDim() int { return e.nh }

// Device where the encoder runs.
func (e *Encoder) Device() Device { return e.device }

// String implements fmt.Stringer.
func (e *Encoder) String() string {
	return fmt.Sprintf("%s64Encoder(nc=%d, nh=%d, nf=%d)", strings.ToUpper(string(e.archi)), e.nc, e.nh, e.nf)
}

// build creates the modules of the forward pass, named after the PyTorch parameters.
func (e *Encoder) build() []module {
	switch e.archi {
	case VGG:
		return vgg64Modules(e.nc, e.nh, e.nf)
	default:
		return dcgan64Modules(e.nc, e.nh, e.nf)
	}
}

func dcgan64Modules(nc, nh, nf int) []module {
	modules := []module{
		&conv2D{name: "conv.0.0", inChannels: nc, outChannels: nf, kernel: 4, stride: 2, padding: 1},
		leakyReLU,
	}
	in := nf
	for block := 1; block < 4; block++ {
		out := nf << block
		modules = append(modules,
			&conv2D{name: fmt.Sprintf("conv.%d.0", block), inChannels: in, outChannels: out, kernel: 4, stride: 2, padding: 1},
			newBatchNorm2D(fmt.Sprintf("conv.%d.1", block), out),
			leakyReLU)
		in = out
	}
	return append(modules,
		&conv2D{name: "last_conv.0", inChannels: in, outChannels: nh, kernel: 4, stride: 1, padding: 0},
		newBatchNorm2D("last_conv.1", nh),
		tanh)
}

func vgg64Modules(nc, nh, nf int) []module {
	var modules []module
	convBlock := func(scope string, in, out int) {
		modules = append(modules,
			&conv2D{name: scope + ".0", inChannels: in, outChannels: out, kernel: 3, stride: 1, padding: 1},
			newBatchNorm2D(scope+".1", out),
			leakyReLU)
	}
	convBlock("conv.0.0", nc, nf)
	convBlock("conv.0.1", nf, nf)
	in := nf
	for stage, numConvs := range []int{2, 3, 3} {
		out := nf << (stage + 1)
		modules = append(modules, maxPool2D{})
		for ii := range numConvs {
			// Index 0 of each stage is the max-pooling.
			convBlock(fmt.Sprintf("conv.%d.%d", stage+1, ii+1), in, out)
			in = out
		}
	}
	modules = append(modules, maxPool2D{})
	modules = append(modules,
		&conv2D{name: "last_conv.1.0", inChannels: in, outChannels: nh, kernel: 4, stride: 1, padding: 0},
		newBatchNorm2D("last_conv.1.1", nh),
		tanh)
	return modules
}

func (e *Encoder) initialize(rng *rand.Rand) {
	for _, m := range e.modules {
		c, ok := m.(*conv2D)
		if !ok {
			continue
		}
		fanIn := c.inChannels * c.kernel * c.kernel
		bound := 1 / math.Sqrt(float64(fanIn))
		c.weight = make([]float64, c.outChannels*fanIn)
		for ii := range c.weight {
			c.weight[ii] = float64(float32((2*rng.Float64() - 1) * bound))
		}
	}
}

// LoadStateDict binds the encoder parameters from sd, where they are named with the given prefix (usually
// EncoderPrefix). Parameters outside the prefix are ignored.
//
// Every parameter the encoder needs must be present with the right shape, and every parameter under the prefix
// must be used, otherwise an ErrIncompatibleWeights is returned and the encoder is left unchanged.
// Batch normalization layers without parameters are dropped.
func (e *Encoder) LoadStateDict(sd *weights.StateDict, prefix string) error {
	modules := e.build()
	used := sets.Make[string]()
	err := exceptions.TryCatch[error](func() {
		for _, m := range modules {
			if pm, ok := m.(paramModule); ok {
				pm.bind(sd, prefix, used)
			}
		}
	})
	if err != nil {
		return err
	}
	var unexpected []string
	for _, name := range sd.Names() {
		if strings.HasPrefix(name, prefix) && !used.Has(name) {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		return errorf(ErrIncompatibleWeights, "%s: unexpected parameters %v", e, unexpected)
	}
	e.modules = modules
	return nil
}

// StateDict returns the encoder parameters, named with the given prefix.
func (e *Encoder) StateDict(prefix string) *weights.StateDict {
	sd := weights.NewStateDict()
	for _, m := range e.modules {
		if pm, ok := m.(paramModule); ok {
			pm.params(func(name string, t *tensors.Tensor) {
				sd.Set(prefix+name, t)
			})
		}
	}
	return sd
}

// Encode images shaped [batch, channels, height, width] into features.
//
// Features are shaped [-1, nh]: for 64x64 frames that is [batch, nh]. Larger frames produce several feature
// rows per image, read from the flattened output the way PyTorch's view(-1, nh) does.
func (e *Encoder) Encode(images *tensors.Tensor) (*tensors.Tensor, error) {
	if images.Rank() != 4 {
		return nil, errorf(ErrInvalidInput, "%s requires images shaped [batch, channels, height, width], got %s", e, images)
	}
	if images.Dim(1) != e.nc {
		return nil, errorf(ErrInvalidInput, "%s requires %d channels, got images shaped %v", e, e.nc, images.Dimensions())
	}
	var output *tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		x := featureMapFromTensor(images)
		for _, m := range e.modules {
			x = m.forward(x)
		}
		output = x.toTensor()
	})
	if err != nil {
		return nil, errorf(ErrInvalidInput, "%s failed on images shaped %v: %v", e, images.Dimensions(), err)
	}
	features, err := output.Reshape(-1, e.nh)
	if err != nil {
		return nil, errorf(ErrInvalidInput, "%s: %v", e, err)
	}
	return features, nil
}
