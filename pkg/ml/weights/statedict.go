// Package weights holds named model parameters (a "state dict") and reads and writes them in the formats used to
// distribute PyTorch models: ".safetensors" files and pickled PyTorch checkpoints (".pt", ".pth").
package weights

import (
	"iter"
	"slices"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
)

// StateDict is an ordered mapping from parameter names (e.g.: "encoder.conv.0.0.weight") to tensors.
//
// The order of insertion is preserved. Setting an existing name replaces its tensor, but keeps its position.
type StateDict struct {
	names   []string
	tensors map[string]*tensors.Tensor
}

// NewStateDict creates an empty StateDict.
func NewStateDict() *StateDict {
	return &StateDict{tensors: make(map[string]*tensors.Tensor)}
}

// Set the tensor for name.
func (sd *StateDict) Set(name string, t *tensors.Tensor) {
	if _, found := sd.tensors[name]; !found {
		sd.names = append(sd.names, name)
	}
	sd.tensors[name] = t
}

// Get returns the tensor for name, and whether it was found.
func (sd *StateDict) Get(name string) (*tensors.Tensor, bool) {
	t, found := sd.tensors[name]
	return t, found
}

// Len returns the number of entries.
func (sd *StateDict) Len() int {
	return len(sd.names)
}

// Names returns the parameter names in order.
func (sd *StateDict) Names() []string {
	return slices.Clone(sd.names)
}

// All iterates over the entries in order.
func (sd *StateDict) All() iter.Seq2[string, *tensors.Tensor] {
	return func(yield func(string, *tensors.Tensor) bool) {
		for _, name := range sd.names {
			if !yield(name, sd.tensors[name]) {
				return
			}
		}
	}
}
