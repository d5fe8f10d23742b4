package srvp

import (
	"strings"

	"github.com/nkiyohara/srvpfd/pkg/ml/weights"
)

// FixStateDictKeys renames the parameters of state dicts saved by older versions of the SRVP code, where
// encoder batch normalization layers were at index 2 of their block instead of index 1.
//
// Every name containing both "encoder" and ".2." has all its occurrences of ".2." replaced by ".1.". Other names
// are kept. The order is preserved; if two names map to the same new name, the tensor of the later one is kept,
// at the position of the first one.
//
// It returns a new StateDict, sd is not modified.
func FixStateDictKeys(sd *weights.StateDict) *weights.StateDict {
	fixed := weights.NewStateDict()
	for name, t := range sd.All() {
		if strings.Contains(name, "encoder") && strings.Contains(name, ".2.") {
			name = strings.ReplaceAll(name, ".2.", ".1.")
		}
		fixed.Set(name, t)
	}
	return fixed
}
