package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestSafetensorsFile(t *testing.T) {
	sd := NewStateDict()
	sd.Set("encoder.conv.0.0.weight", tensors.FromFlatDataAndDimensions([]float32{1, -2, 3, 4.5, 5, 6}, 2, 1, 3))
	sd.Set("encoder.conv.0.0.bias", tensors.FromFlatDataAndDimensions([]float32{0.25, -0.25}, 2))
	sd.Set("encoder.conv.1.1.num_batches_tracked", tensors.FromFlatDataAndDimensions([]float32{7}))

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, WriteSafetensorsFile(path, sd))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, sd.Names(), got.Names())
	for name, want := range sd.All() {
		gotT, found := got.Get(name)
		require.True(t, found, name)
		assert.Equal(t, want.Dimensions(), gotT.Dimensions(), name)
		assert.Equal(t, want.CopyFlatData(), gotT.CopyFlatData(), name)
	}
}

// rawSafetensors builds a safetensors buffer with a single tensor with the given dtype and raw data.
func rawSafetensors(t *testing.T, dtype string, dims []int, data []byte) []byte {
	header := map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"x":            map[string]any{"dtype": dtype, "shape": dims, "data_offsets": []int{0, len(data)}},
	}
	headerBytes, err := json.Marshal(header)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(headerBytes))))
	buf.Write(headerBytes)
	buf.Write(data)
	return buf.Bytes()
}

func TestReadSafetensorsDTypes(t *testing.T) {
	var f64 bytes.Buffer
	require.NoError(t, binary.Write(&f64, binary.LittleEndian, []float64{1.5, -3}))
	sd, err := ReadSafetensors(bytes.NewReader(rawSafetensors(t, "F64", []int{2}, f64.Bytes())))
	require.NoError(t, err)
	x, _ := sd.Get("x")
	assert.Equal(t, []float32{1.5, -3}, x.CopyFlatData())

	var f16 bytes.Buffer
	require.NoError(t, binary.Write(&f16, binary.LittleEndian,
		[]uint16{float16.Fromfloat32(0.5).Bits(), float16.Fromfloat32(-2).Bits()}))
	sd, err = ReadSafetensors(bytes.NewReader(rawSafetensors(t, "F16", []int{1, 2}, f16.Bytes())))
	require.NoError(t, err)
	x, _ = sd.Get("x")
	assert.Equal(t, []float32{0.5, -2}, x.CopyFlatData())
	assert.Equal(t, []int{1, 2}, x.Dimensions())

	// bfloat16 is the upper half of a float32: 1.0 is 0x3F80.
	var bf16 bytes.Buffer
	require.NoError(t, binary.Write(&bf16, binary.LittleEndian, []uint16{0x3F80, 0xC000}))
	sd, err = ReadSafetensors(bytes.NewReader(rawSafetensors(t, "BF16", []int{2}, bf16.Bytes())))
	require.NoError(t, err)
	x, _ = sd.Get("x")
	assert.Equal(t, []float32{1, -2}, x.CopyFlatData())

	var i64 bytes.Buffer
	require.NoError(t, binary.Write(&i64, binary.LittleEndian, []int64{42}))
	sd, err = ReadSafetensors(bytes.NewReader(rawSafetensors(t, "I64", []int{}, i64.Bytes())))
	require.NoError(t, err)
	x, _ = sd.Get("x")
	assert.Equal(t, []float32{42}, x.CopyFlatData())
}

func TestReadSafetensorsErrors(t *testing.T) {
	_, err := ReadSafetensors(bytes.NewReader(rawSafetensors(t, "U8", []int{1}, []byte{1})))
	assert.ErrorContains(t, err, "unsupported dtype")

	// Size mismatch: 2 float32 need 8 bytes.
	_, err = ReadSafetensors(bytes.NewReader(rawSafetensors(t, "F32", []int{2}, []byte{0, 0, 0, 0})))
	assert.Error(t, err)

	_, err = ReadSafetensors(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}
