package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nkiyohara/srvpfd/pkg/core/tensors/images"
	"github.com/nkiyohara/srvpfd/pkg/frechet"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/nkiyohara/srvpfd/pkg/srvp"
	"github.com/nkiyohara/srvpfd/ui/commandline"
	"github.com/nkiyohara/srvpfd/ui/plots"
	"github.com/pkg/errors"
)

// imagesTensorName is the preferred tensor name when reading frames from a safetensors file.
const imagesTensorName = "images"

func runDistance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("distance", flag.ContinueOnError)
	dataset := fs.String("dataset", string(srvp.MMNISTStochastic), fmt.Sprintf("Pretrained model to use, one of %v.", srvp.Datasets()))
	modelPath := fs.String("model", "", "Path to a local model file (.pt or .safetensors), with its config.json in the same directory. Takes precedence over -dataset.")
	device := fs.String("device", "", "Device to run the encoder on. Defaults to $"+srvp.DeviceEnv+" or \"cpu\".")
	channels := fs.Int("channels", 1, "Number of channels (1 or 3) when loading frames from a directory.")
	maxFrames := fs.Int("max_frames", 0, "Maximum number of frames loaded from each directory. 0 for no limit.")
	spectrum := fs.String("spectrum", "", "If set, save a plot of the covariance spectra of the features to this file (.png, .svg, .pdf).")
	ff := registerFetcherFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.Errorf("distance requires 2 arguments (frames1 and frames2), got %d", fs.NArg())
	}

	loadConfig := images.NewLoadDirConfig()
	loadConfig.Channels = *channels
	loadConfig.MaxFrames = *maxFrames
	images1, err := loadFrames(fs.Arg(0), loadConfig)
	if err != nil {
		return err
	}
	images2, err := loadFrames(fs.Arg(1), loadConfig)
	if err != nil {
		return err
	}

	config := frechet.New(images1, images2).
		WithContext(ctx).
		WithDataset(srvp.Dataset(*dataset)).
		WithModelPath(*modelPath).
		WithDevice(srvp.Device(*device)).
		WithCacheDir(*ff.cacheDir)
	if *modelPath == "" {
		fetcher, err := ff.newFetcher()
		if err != nil {
			return err
		}
		config = config.WithFetcher(fetcher)
	}

	start := time.Now()
	stats1, stats2, err := config.Statistics()
	if err != nil {
		return err
	}
	distance, err := stats1.Distance(stats2)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	model := *dataset
	if *modelPath != "" {
		model = *modelPath
	}
	report := commandline.NewReport("Fréchet distance").
		Add("frames1", fmt.Sprintf("%s %v", fs.Arg(0), images1.Dimensions())).
		Add("frames2", fmt.Sprintf("%s %v", fs.Arg(1), images2.Dimensions())).
		Add("model", model).
		Add("features", stats1.Dim()).
		Add("distance", distance).
		Add("elapsed", elapsed)
	fmt.Println(report.Render())

	if *spectrum != "" {
		if err := saveSpectra(*spectrum, stats1, stats2); err != nil {
			return err
		}
		fmt.Printf("Spectra saved to %q\n", *spectrum)
	}
	return nil
}

// loadFrames reads a batch of frames from a directory of images or from a ".safetensors" file.
func loadFrames(path string, config images.LoadDirConfig) (*tensors.Tensor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frames from %q", path)
	}
	if info.IsDir() {
		return images.LoadDir(path, config)
	}
	if !strings.EqualFold(filepath.Ext(path), ".safetensors") {
		return nil, errors.Errorf("frames must be a directory of images or a .safetensors file, got %q", path)
	}
	sd, err := weights.ReadSafetensorsFile(path)
	if err != nil {
		return nil, err
	}
	if t, found := sd.Get(imagesTensorName); found {
		return t, nil
	}
	if sd.Len() != 1 {
		return nil, errors.Errorf("%q holds %d tensors and none is named %q", path, sd.Len(), imagesTensorName)
	}
	t, _ := sd.Get(sd.Names()[0])
	return t, nil
}

func saveSpectra(path string, stats ...*frechet.Statistics) error {
	series := make([]plots.Series, 0, len(stats))
	for ii, s := range stats {
		values, err := s.Spectrum()
		if err != nil {
			return err
		}
		series = append(series, plots.Series{Name: fmt.Sprintf("frames%d", ii+1), Values: values})
	}
	return plots.SaveSpectrum(path, "Covariance spectrum of the encoder features", series...)
}
