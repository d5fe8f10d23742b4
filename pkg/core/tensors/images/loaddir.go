package images

import (
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"github.com/nkiyohara/srvpfd/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// frameExtensions lists the file extensions recognized as video frames by LoadDir.
var frameExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff"}

// LoadDirConfig configures LoadDir. The zero value is not valid, use NewLoadDirConfig.
type LoadDirConfig struct {
	// Size of the square frames after resizing. If 0, frames are not resized, but they must all have the same size.
	Size int

	// Channels is either 1 (grayscale) or 3 (RGB).
	Channels int

	// MaxFrames limits the number of frames loaded (in lexicographic order of file names). 0 means no limit.
	MaxFrames int
}

// NewLoadDirConfig returns the configuration for 64x64 grayscale frames, as used by the Moving MNIST models.
func NewLoadDirConfig() LoadDirConfig {
	return LoadDirConfig{Size: 64, Channels: 1}
}

// ListFrames returns the sorted paths of the image files in dir.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list frames in %q", dir)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if slices.Contains(frameExtensions, ext) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadDir loads the frames (image files) in dir into a tensor shaped `[num_frames, channels, size, size]`, with values
// in [0, 1].
func LoadDir(dir string, config LoadDirConfig) (*tensors.Tensor, error) {
	if config.Channels != 1 && config.Channels != 3 {
		return nil, errors.Errorf("LoadDir(%q): channels must be 1 or 3, got %d", dir, config.Channels)
	}
	paths, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("LoadDir(%q): no image files found", dir)
	}
	if config.MaxFrames > 0 && len(paths) > config.MaxFrames {
		paths = paths[:config.MaxFrames]
	}
	frames := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := imaging.Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read frame %q", p)
		}
		if config.Size > 0 {
			size := img.Bounds().Size()
			if size.X != config.Size || size.Y != config.Size {
				img = imaging.Resize(img, config.Size, config.Size, imaging.Lanczos)
			}
		}
		frames = append(frames, img)
	}
	klog.V(1).Infof("loaded %d frames from %q", len(frames), dir)

	tt := ToTensor()
	if config.Channels == 1 {
		tt = tt.Grayscale()
	}
	var t *tensors.Tensor
	err = exceptions.TryCatch[error](func() { t = tt.Batch(frames) })
	if err != nil {
		return nil, errors.WithMessagef(err, "LoadDir(%q)", dir)
	}
	return t, nil
}
