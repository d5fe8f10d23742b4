package weights

import (
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// Load a state dict from path, choosing the format by the file extension: ".safetensors" files are read with
// ReadSafetensorsFile, anything else (".pt", ".pth", ".bin", ...) is treated as a pickled PyTorch file.
func Load(path string) (*StateDict, error) {
	var sd *StateDict
	var err error
	if strings.EqualFold(filepath.Ext(path), ".safetensors") {
		sd, err = ReadSafetensorsFile(path)
	} else {
		sd, err = LoadPyTorch(path)
	}
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("loaded %d parameters from %q", sd.Len(), path)
	return sd, nil
}
