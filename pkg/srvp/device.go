package srvp

import (
	"os"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Device where the encoder runs.
type Device string

const (
	// CPU is always registered and available.
	CPU Device = "cpu"

	// CUDA is not registered by default: it is only the conventional name to pass to RegisterDevice.
	CUDA Device = "cuda"
)

// DeviceEnv is the environment variable with the default device, used when none is requested.
const DeviceEnv = "SRVPFD_DEVICE"

type deviceEntry struct {
	device Device
	probe  func() bool
}

var (
	muDevices sync.Mutex
	devices   = []deviceEntry{{device: CPU, probe: func() bool { return true }}}
)

// RegisterDevice makes a device known to ResolveDevice. probe reports whether the device is usable on this host.
// Registering an existing name replaces its probe.
//
// It is safe to call from init functions.
func RegisterDevice(device Device, probe func() bool) {
	muDevices.Lock()
	defer muDevices.Unlock()
	idx := slices.IndexFunc(devices, func(e deviceEntry) bool { return e.device == device })
	if idx >= 0 {
		devices[idx].probe = probe
		return
	}
	devices = append(devices, deviceEntry{device: device, probe: probe})
}

// AvailableDevices returns the registered devices whose probe succeeds, in order of registration.
func AvailableDevices() []Device {
	muDevices.Lock()
	entries := slices.Clone(devices)
	muDevices.Unlock()
	var available []Device
	for _, e := range entries {
		if e.probe() {
			available = append(available, e.device)
		}
	}
	return available
}

// ResolveDevice returns the device to use.
//
// If requested is empty, $SRVPFD_DEVICE is used. If that is also empty, the first available accelerator is
// returned, or CPU if there is none. A requested device that is not registered or not available is an
// ErrInvalidInput.
func ResolveDevice(requested Device) (Device, error) {
	if requested == "" {
		requested = Device(os.Getenv(DeviceEnv))
	}
	available := AvailableDevices()
	if requested != "" {
		if !slices.Contains(available, requested) {
			return "", errors.Wrapf(ErrInvalidInput, "device %q is not available, available devices: %v",
				requested, available)
		}
		return requested, nil
	}
	for _, d := range available {
		if d != CPU {
			klog.V(1).Infof("using accelerator %q", d)
			return d, nil
		}
	}
	return CPU, nil
}
