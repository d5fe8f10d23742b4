package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/nkiyohara/srvpfd/pkg/srvp"
	"github.com/nkiyohara/srvpfd/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// runFetch downloads the configuration and weights of the given datasets (all of them if none is given) into the
// cache, so later runs work offline.
func runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	ff := registerFetcherFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	datasets := srvp.Datasets()
	if fs.NArg() > 0 {
		datasets = nil
		for _, arg := range fs.Args() {
			datasets = append(datasets, srvp.Dataset(arg))
		}
	}
	fetcher, err := ff.newFetcher()
	if err != nil {
		return err
	}

	report := commandline.NewReport("Fetched files")
	for _, dataset := range datasets {
		configFile, err := dataset.ConfigFile()
		if err != nil {
			return err
		}
		weightsFile, err := dataset.WeightsFile()
		if err != nil {
			return err
		}
		for _, file := range []string{configFile, weightsFile} {
			klog.V(1).Infof("fetching %s", file)
			path, err := fetcher.Fetch(ctx, file)
			if err != nil {
				return errors.WithMessagef(err, "dataset %q", dataset)
			}
			info, err := os.Stat(path)
			if err != nil {
				return errors.Wrapf(err, "fetched file %q", path)
			}
			report.Add(file, fmt.Sprintf("%s (%s)", path, humanize.IBytes(uint64(info.Size()))))
		}
	}
	fmt.Println(report.Render())
	return nil
}
