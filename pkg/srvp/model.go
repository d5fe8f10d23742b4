package srvp

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nkiyohara/srvpfd/pkg/ml/hub"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// warnf reports non-fatal conditions the user should know about. Tests replace it.
var warnf = klog.Warningf

// Options selects the model to load. If ModelPath is set it takes precedence over Dataset.
type Options struct {
	// ModelPath is a local weights file (".pt", ".pth" or ".safetensors"), with a "config.json" in the same
	// directory.
	ModelPath string

	// Dataset selects a pretrained model from the weights repository.
	Dataset Dataset

	// CacheDir for downloaded files. Defaults to hub.DefaultCacheDir(). Ignored if Fetcher is set.
	CacheDir string

	// Fetcher used to download the dataset's files. Defaults to the HuggingFace repository hub.DefaultRepoID.
	Fetcher hub.Fetcher

	// Device to run the encoder on. Empty selects the default, see ResolveDevice.
	Device Device
}

// Model is a loaded SRVP model: its configuration and its encoder with trained weights.
type Model struct {
	Config  Config
	Encoder *Encoder

	// Source describes where the model was loaded from: a local path or a dataset identifier.
	Source string
}

// LoadModel loads the configuration and the encoder weights selected by opts.
//
// Errors:
//   - ErrInvalidInput: neither ModelPath nor Dataset set, unknown dataset or device, or invalid configuration.
//   - ErrNotFound: a local "config.json" is missing, or anything fails while downloading or loading a dataset's
//     model.
//   - ErrIncompatibleWeights: local weights don't match the encoder described by the configuration.
func LoadModel(ctx context.Context, opts Options) (*Model, error) {
	device, err := ResolveDevice(opts.Device)
	if err != nil {
		return nil, err
	}
	var model *Model
	switch {
	case opts.ModelPath != "":
		model, err = loadLocalModel(opts.ModelPath)
	case opts.Dataset != "":
		model, err = loadDatasetModel(ctx, opts)
	default:
		return nil, errorf(ErrInvalidInput, "a dataset is required when no model path is given, choose from: %s",
			datasetList())
	}
	if err != nil {
		return nil, err
	}
	model.Encoder.device = device
	if device != CPU {
		klog.V(1).Infof("%s computes on the host, device %q is only recorded", model.Encoder, device)
	}
	klog.V(1).Infof("loaded %s from %s", model.Encoder, model.Source)
	return model, nil
}

// LoadEncoder returns the encoder selected by opts. If neither ModelPath nor Dataset is set, it returns
// NewDefaultEncoder, with a warning that its features are of low quality.
func LoadEncoder(ctx context.Context, opts Options) (*Encoder, error) {
	if opts.ModelPath == "" && opts.Dataset == "" {
		device, err := ResolveDevice(opts.Device)
		if err != nil {
			return nil, err
		}
		e := NewDefaultEncoder()
		warnf("No model path or dataset specified: using an untrained default encoder for Moving MNIST (%s). "+
			"For better results, specify a dataset or a model path.", e)
		e.device = device
		return e, nil
	}
	model, err := LoadModel(ctx, opts)
	if err != nil {
		return nil, err
	}
	return model.Encoder, nil
}

func warnSkipConnections(cfg Config, source string) {
	if cfg.SkipCo {
		warnf("The model %s uses skip connections (skipco=true). This may affect the quality of the Fréchet "+
			"distance, as skip connections can bypass the encoder's feature extraction. Consider using a model "+
			"without skip connections for more accurate results.", source)
	}
}

// buildModel instantiates the encoder of cfg and binds the weights in weightsPath.
func buildModel(cfg Config, weightsPath, source string) (*Model, error) {
	encoder, err := NewEncoderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	sd, err := weights.Load(weightsPath)
	if err != nil {
		return nil, errorf(ErrIncompatibleWeights, "failed to load weights from %q: %v", weightsPath, err)
	}
	if err = bindWeights(encoder, sd); err != nil {
		return nil, errors.WithMessagef(err, "weights %q", weightsPath)
	}
	return &Model{Config: cfg, Encoder: encoder, Source: source}, nil
}

// bindWeights binds the encoder parameters after repairing legacy names with FixStateDictKeys. The repair also
// renames the parameters of the third block of current state dicts ("encoder.conv.2."), so if the repaired names
// don't fit the encoder, the names as saved are tried. The error of the repaired attempt is returned if both fail.
func bindWeights(encoder *Encoder, sd *weights.StateDict) error {
	err := encoder.LoadStateDict(FixStateDictKeys(sd), EncoderPrefix)
	if err == nil || !errors.Is(err, ErrIncompatibleWeights) {
		return err
	}
	if rawErr := encoder.LoadStateDict(sd, EncoderPrefix); rawErr != nil {
		return err
	}
	klog.V(1).Infof("%s: parameter names used as saved", encoder)
	return nil
}

func loadLocalModel(modelPath string) (*Model, error) {
	configPath := filepath.Join(filepath.Dir(modelPath), "config.json")
	if _, err := os.Stat(configPath); err != nil {
		return nil, errorf(ErrNotFound, "config file not found at %s, please ensure config.json is in the same "+
			"directory as the model", configPath)
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	warnSkipConnections(cfg, modelPath)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errorf(ErrNotFound, "model file not found at %s", modelPath)
	}
	return buildModel(cfg, modelPath, modelPath)
}

func loadDatasetModel(ctx context.Context, opts Options) (*Model, error) {
	configFile, err := opts.Dataset.ConfigFile()
	if err != nil {
		return nil, err
	}
	weightsFile, _ := opts.Dataset.WeightsFile()
	model, err := fetchDatasetModel(ctx, opts, configFile, weightsFile)
	if err != nil {
		return nil, &notFoundError{
			msg: "could not download or load the model for dataset " + string(opts.Dataset) +
				" from " + hub.DefaultRepoID + ", please check your internet connection or provide a local model path",
			cause: err,
		}
	}
	return model, nil
}

func fetchDatasetModel(ctx context.Context, opts Options, configFile, weightsFile string) (*Model, error) {
	fetcher := opts.Fetcher
	if fetcher == nil {
		hf, err := hub.NewHuggingFace(hub.DefaultRepoID, opts.CacheDir)
		if err != nil {
			return nil, err
		}
		fetcher = hf
	}
	configPath, err := fetcher.Fetch(ctx, configFile)
	if err != nil {
		return nil, err
	}
	klog.Infof("Fetched config %s", configFile)
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	source := "dataset " + string(opts.Dataset)
	warnSkipConnections(cfg, source)
	weightsPath, err := fetcher.Fetch(ctx, weightsFile)
	if err != nil {
		return nil, err
	}
	klog.Infof("Fetched model %s", weightsFile)
	return buildModel(cfg, weightsPath, source)
}
