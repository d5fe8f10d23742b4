package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

const safetensorsMetadataKey = "__metadata__"

type tensorMetadata struct {
	// Format is only present for the safetensorsMetadataKey ("__metadata__").
	Format string `json:"format,omitempty"`

	DTypeName  string   `json:"dtype,omitempty"`
	Dimensions []int    `json:"shape"`
	Offsets    []uint64 `json:"data_offsets,omitempty"`

	// Name is filled later, with the key to the tensor.
	Name string `json:"-"`
}

// dtypeOf parses the safetensors dtype name.
func dtypeOf(name string) dtypes.DType {
	switch name {
	case "F32":
		return dtypes.Float32
	case "F64":
		return dtypes.Float64
	case "F16":
		return dtypes.Float16
	case "BF16":
		return dtypes.BFloat16
	case "I32":
		return dtypes.Int32
	case "I64":
		return dtypes.Int64
	default:
		return dtypes.InvalidDType
	}
}

// decodeValues converts the little-endian raw bytes of a tensor to float32 values.
func decodeValues(dtype dtypes.DType, raw []byte) []float32 {
	elementSize := dtype.Size()
	values := make([]float32, len(raw)/elementSize)
	for ii := range values {
		b := raw[ii*elementSize : (ii+1)*elementSize]
		switch dtype {
		case dtypes.Float32:
			values[ii] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case dtypes.Float64:
			values[ii] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		case dtypes.Float16:
			values[ii] = float16.Frombits(binary.LittleEndian.Uint16(b)).Float32()
		case dtypes.BFloat16:
			values[ii] = bfloat16.BFloat16(binary.LittleEndian.Uint16(b)).Float32()
		case dtypes.Int32:
			values[ii] = float32(int32(binary.LittleEndian.Uint32(b)))
		case dtypes.Int64:
			values[ii] = float32(int64(binary.LittleEndian.Uint64(b)))
		}
	}
	return values
}

// ReadSafetensorsFile reads all tensors of a ".safetensors" file, converted to float32.
// Entries are ordered by their position in the file.
func ReadSafetensorsFile(path string) (*StateDict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	sd, err := ReadSafetensors(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", path)
	}
	return sd, nil
}

// ReadSafetensors reads all tensors from r, in the safetensors format, converted to float32.
func ReadSafetensors(r io.Reader) (*StateDict, error) {
	var metadataLen uint64
	if err := binary.Read(r, binary.LittleEndian, &metadataLen); err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata length")
	}
	const maxMetadataLen = 100 << 20
	if metadataLen > maxMetadataLen {
		return nil, errors.Errorf("invalid metadata length %d", metadataLen)
	}
	metadataBuf := make([]byte, metadataLen)
	if _, err := io.ReadFull(r, metadataBuf); err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata")
	}
	var metadata map[string]*tensorMetadata
	if err := json.Unmarshal(metadataBuf, &metadata); err != nil {
		return nil, errors.Wrapf(err, "failed to parse json from metadata")
	}
	if global, found := metadata[safetensorsMetadataKey]; found && global.Format != "" && global.Format != "pt" {
		return nil, errors.Errorf("unsupported tensor format %q set in metadata[%q][\"format\"], only "+
			"supported format is \"pt\" (PyTorch)", global.Format, safetensorsMetadataKey)
	}

	sorted := make([]*tensorMetadata, 0, len(metadata))
	for name, tm := range metadata {
		if name == safetensorsMetadataKey {
			continue
		}
		tm.Name = name
		if len(tm.Offsets) != 2 || tm.Offsets[1] < tm.Offsets[0] {
			return nil, errors.Errorf("offset metadata[%q][\"data_offsets\"] invalid, "+
				"expected [start, end] but got %v instead", name, tm.Offsets)
		}
		dtype := dtypeOf(tm.DTypeName)
		if dtype == dtypes.InvalidDType {
			return nil, errors.Errorf("unsupported dtype %q in metadata[%q][\"dtype\"]", tm.DTypeName, name)
		}
		numElements := 1
		for _, dim := range tm.Dimensions {
			numElements *= dim
		}
		if want := uint64(numElements * dtype.Size()); tm.Offsets[1]-tm.Offsets[0] != want {
			return nil, errors.Errorf("tensor %q with dtype %s and shape %v requires %d bytes, but "+
				"\"data_offsets\" reserves %d bytes", name, tm.DTypeName, tm.Dimensions, want, tm.Offsets[1]-tm.Offsets[0])
		}
		sorted = append(sorted, tm)
	}
	slices.SortFunc(sorted, func(a, b *tensorMetadata) int {
		switch {
		case a.Offsets[0] < b.Offsets[0]:
			return -1
		case a.Offsets[0] > b.Offsets[0]:
			return 1
		}
		return 0
	})

	sd := NewStateDict()
	var pos uint64
	for _, tm := range sorted {
		if tm.Offsets[0] < pos {
			return nil, errors.Errorf("tensor %q overlaps the previous tensor", tm.Name)
		}
		if skip := tm.Offsets[0] - pos; skip > 0 {
			if _, err := io.CopyN(io.Discard, r, int64(skip)); err != nil {
				return nil, errors.Wrapf(err, "failed to skip to tensor %q", tm.Name)
			}
		}
		raw := make([]byte, tm.Offsets[1]-tm.Offsets[0])
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, errors.Wrapf(err, "failed to read tensor %q", tm.Name)
		}
		pos = tm.Offsets[1]
		sd.Set(tm.Name, tensors.FromFlatDataAndDimensions(decodeValues(dtypeOf(tm.DTypeName), raw), tm.Dimensions...))
	}
	return sd, nil
}

// WriteSafetensors writes the state dict to w in the safetensors format, with float32 values, in the order of sd.
func WriteSafetensors(w io.Writer, sd *StateDict) error {
	header := make(map[string]any, sd.Len()+1)
	header[safetensorsMetadataKey] = map[string]string{"format": "pt"}
	var offset uint64
	for name, t := range sd.All() {
		size := uint64(t.Size() * dtypes.Float32.Size())
		header[name] = &tensorMetadata{DTypeName: "F32", Dimensions: t.Dimensions(), Offsets: []uint64{offset, offset + size}}
		offset += size
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return errors.Wrapf(err, "failed to encode safetensors header")
	}
	// Data section is aligned to 8 bytes, padding the header with spaces.
	if rem := len(headerBytes) % 8; rem != 0 {
		headerBytes = append(headerBytes, bytes.Repeat([]byte{' '}, 8-rem)...)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return errors.Wrapf(err, "failed to write safetensors header length")
	}
	if _, err := w.Write(headerBytes); err != nil {
		return errors.Wrapf(err, "failed to write safetensors header")
	}
	for name, t := range sd.All() {
		var writeErr error
		t.ConstFlatData(func(flat []float32) {
			writeErr = binary.Write(w, binary.LittleEndian, flat)
		})
		if writeErr != nil {
			return errors.Wrapf(writeErr, "failed to write tensor %q", name)
		}
	}
	return nil
}

// WriteSafetensorsFile writes the state dict to a ".safetensors" file.
func WriteSafetensorsFile(path string, sd *StateDict) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	if err = WriteSafetensors(f, sd); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "writing %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", path)
}
