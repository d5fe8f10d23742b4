package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
	"github.com/nkiyohara/srvpfd/ui/commandline"
	"github.com/pkg/errors"
)

// runConvert converts a PyTorch checkpoint (or another safetensors file) to a float32 safetensors file.
func runConvert(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.Errorf("convert requires 2 arguments (input and output paths), got %d", fs.NArg())
	}
	sd, err := convert(fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	var numParams int
	for _, t := range sd.All() {
		numParams += t.Size()
	}
	report := commandline.NewReport("Converted").
		Add("input", fs.Arg(0)).
		Add("output", fs.Arg(1)).
		Add("# tensors", humanize.Comma(int64(sd.Len()))).
		Add("# parameters", humanize.Comma(int64(numParams)))
	fmt.Println(report.Render())
	return nil
}

func convert(input, output string) (*weights.StateDict, error) {
	sd, err := weights.Load(input)
	if err != nil {
		return nil, err
	}
	if err := weights.WriteSafetensorsFile(output, sd); err != nil {
		return nil, err
	}
	return sd, nil
}
