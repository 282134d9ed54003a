// Package device selects the compute device and weight precision used by the
// model runtime. Detection runs once at startup and yields an explicit
// Capability that the load phase consumes.
package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Device is the compute device a model is pinned to.
type Device string

const (
	CPU  Device = "cpu"
	CUDA Device = "cuda"
)

// Precision is the floating point width used for weights and caches.
type Precision string

const (
	Float16 Precision = "float16"
	Float32 Precision = "float32"
)

// Capability is the result of detection.
type Capability struct {
	Device    Device
	Precision Precision
}

func (c Capability) String() string { return string(c.Device) + "/" + string(c.Precision) }

// For returns the capability for a device: half precision on an
// accelerator, full precision otherwise.
func For(d Device) Capability {
	if d == CUDA {
		return Capability{Device: CUDA, Precision: Float16}
	}
	return Capability{Device: CPU, Precision: Float32}
}

// Parse maps a user supplied device name. Empty means auto.
func Parse(s string) (Device, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", false, nil
	case "cpu":
		return CPU, true, nil
	case "cuda", "gpu":
		return CUDA, true, nil
	default:
		return "", false, fmt.Errorf("unknown device %q (want auto|cpu|cuda)", s)
	}
}

// Probe reports whether a CUDA device is usable on this host.
type Probe func(ctx context.Context) bool

// Detector resolves the Capability for this process.
type Detector struct {
	// Override forces a device (cpu|cuda); empty or "auto" probes.
	Override string
	// Probe defaults to NvidiaProbe.
	Probe Probe
}

// Detect resolves the capability, honoring Override first.
func (d Detector) Detect(ctx context.Context) (Capability, error) {
	dev, forced, err := Parse(d.Override)
	if err != nil {
		return Capability{}, err
	}
	if forced {
		return For(dev), nil
	}
	probe := d.Probe
	if probe == nil {
		probe = NvidiaProbe
	}
	if probe(ctx) {
		return For(CUDA), nil
	}
	return For(CPU), nil
}

// NvidiaProbe checks for the NVIDIA driver and at least one listed GPU.
func NvidiaProbe(ctx context.Context) bool {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err != nil {
		if _, err := exec.LookPath("nvidia-smi"); err != nil {
			return false
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "GPU ")
}
