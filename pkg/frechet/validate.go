package frechet

import (
	"slices"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
)

// ValidateInputShapes checks that both image batches are shaped [batch, channels, height, width], with the same
// channels, height and width. Batch sizes may differ.
func ValidateInputShapes(images1, images2 *tensors.Tensor) error {
	if images1 == nil || images2 == nil {
		return errorf("image batches must not be nil")
	}
	if images1.Rank() != 4 || images2.Rank() != 4 {
		return errorf("input tensors must be 4D (batch, channels, height, width), got shapes %v and %v",
			images1.Dimensions(), images2.Dimensions())
	}
	if images1.Dim(1) != images2.Dim(1) {
		return errorf("channel dimensions must match, got %d and %d", images1.Dim(1), images2.Dim(1))
	}
	spatial1, spatial2 := images1.Dimensions()[2:], images2.Dimensions()[2:]
	if !slices.Equal(spatial1, spatial2) {
		return errorf("spatial dimensions must match, got %v and %v", spatial1, spatial2)
	}
	return nil
}
