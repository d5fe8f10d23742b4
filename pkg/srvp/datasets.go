package srvp

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Dataset identifies one of the pretrained SRVP models.
type Dataset string

const (
	MMNISTStochastic    Dataset = "mmnist_stochastic"
	MMNISTDeterministic Dataset = "mmnist_deterministic"
	BAIR                Dataset = "bair"
	KTH                 Dataset = "kth"
	Human               Dataset = "human"
)

// datasetPrefixes maps each Dataset to the directory holding its files in the weights repository.
var datasetPrefixes = map[Dataset]string{
	MMNISTStochastic:    "mmnist/stochastic",
	MMNISTDeterministic: "mmnist/deterministic",
	BAIR:                "bair",
	KTH:                 "kth",
	Human:               "human",
}

// Datasets returns all known dataset identifiers, sorted.
func Datasets() []Dataset {
	datasets := make([]Dataset, 0, len(datasetPrefixes))
	for d := range datasetPrefixes {
		datasets = append(datasets, d)
	}
	slices.Sort(datasets)
	return datasets
}

func datasetList() string {
	names := make([]string, 0, len(datasetPrefixes))
	for _, d := range Datasets() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}

// Prefix returns the path of the dataset's directory in the weights repository.
func (d Dataset) Prefix() (string, error) {
	prefix, found := datasetPrefixes[d]
	if !found {
		return "", errors.Wrapf(ErrInvalidInput, "unknown dataset %q, choose from: %s", d, datasetList())
	}
	return prefix, nil
}

// ConfigFile returns the path of the dataset's "config.json" in the weights repository.
func (d Dataset) ConfigFile() (string, error) {
	prefix, err := d.Prefix()
	if err != nil {
		return "", err
	}
	return prefix + "/config.json", nil
}

// WeightsFile returns the path of the dataset's "model.pt" in the weights repository.
func (d Dataset) WeightsFile() (string, error) {
	prefix, err := d.Prefix()
	if err != nil {
		return "", err
	}
	return prefix + "/model.pt", nil
}
