package weights

import (
	"fmt"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/pkg/errors"
)

// LoadPyTorch loads a pickled PyTorch state dict (as saved by `torch.save(model.state_dict(), path)`).
//
// If the file holds a dictionary with a "state_dict" entry (a training checkpoint), that entry is used.
// Entries that are not tensors are ignored.
func LoadPyTorch(path string) (*StateDict, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpickle PyTorch file %q", path)
	}
	od, ok := obj.(*types.OrderedDict)
	if !ok {
		return nil, errors.Errorf("PyTorch file %q holds a %T, expected an OrderedDict state dict", path, obj)
	}
	if nested, found := od.Get("state_dict"); found {
		if nestedOD, ok := nested.(*types.OrderedDict); ok {
			od = nestedOD
		}
	}
	sd, err := stateDictFromOrderedDict(od)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading %q", path)
	}
	return sd, nil
}

func stateDictFromOrderedDict(od *types.OrderedDict) (*StateDict, error) {
	sd := NewStateDict()
	for elem := od.List.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*types.OrderedDictEntry)
		pt, ok := entry.Value.(*pytorch.Tensor)
		if !ok {
			continue
		}
		name := fmt.Sprint(entry.Key)
		t, err := fromPyTorchTensor(pt)
		if err != nil {
			return nil, errors.WithMessagef(err, "parameter %q", name)
		}
		sd.Set(name, t)
	}
	return sd, nil
}

// storageValues returns the storage of a PyTorch tensor converted to float32.
func storageValues(source pytorch.StorageInterface) ([]float32, error) {
	switch s := source.(type) {
	case *pytorch.FloatStorage:
		return s.Data, nil
	case *pytorch.HalfStorage:
		return s.Data, nil
	case *pytorch.DoubleStorage:
		values := make([]float32, len(s.Data))
		for ii, v := range s.Data {
			values[ii] = float32(v)
		}
		return values, nil
	case *pytorch.LongStorage:
		values := make([]float32, len(s.Data))
		for ii, v := range s.Data {
			values[ii] = float32(v)
		}
		return values, nil
	case *pytorch.IntStorage:
		values := make([]float32, len(s.Data))
		for ii, v := range s.Data {
			values[ii] = float32(v)
		}
		return values, nil
	default:
		return nil, errors.Errorf("unsupported PyTorch storage type %T", source)
	}
}

// fromPyTorchTensor gathers the (possibly strided) view of a PyTorch tensor into a dense tensor.
func fromPyTorchTensor(pt *pytorch.Tensor) (*tensors.Tensor, error) {
	storage, err := storageValues(pt.Source)
	if err != nil {
		return nil, err
	}
	if len(pt.Stride) != len(pt.Size) {
		return nil, errors.Errorf("tensor has size %v but strides %v", pt.Size, pt.Stride)
	}
	t := tensors.FromShape(pt.Size...)
	var gatherErr error
	t.MutableFlatData(func(flat []float32) {
		index := make([]int, len(pt.Size))
		for ii := range flat {
			offset := pt.StorageOffset
			for axis, idx := range index {
				offset += idx * pt.Stride[axis]
			}
			if offset < 0 || offset >= len(storage) {
				gatherErr = errors.Errorf("tensor with size %v, strides %v and offset %d reads outside its "+
					"storage of %d elements", pt.Size, pt.Stride, pt.StorageOffset, len(storage))
				return
			}
			flat[ii] = storage[offset]
			// Increment the row-major multi-index.
			for axis := len(index) - 1; axis >= 0; axis-- {
				index[axis]++
				if index[axis] < pt.Size[axis] {
					break
				}
				index[axis] = 0
			}
		}
	})
	if gatherErr != nil {
		return nil, gatherErr
	}
	return t, nil
}
