// Package gpu owns the process-wide WebGPU context and the compute-layer
// plumbing built on it: float32 storage buffers, staged readback, and the
// convolution kernel the network offloads when a device is available.
package gpu

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// Context holds the single WebGPU context for the process.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	once     sync.Once
}

var ctx Context

// GetContext returns the singleton GPU context, initializing it on first
// call. Adapter selection tries high-performance first, then low-power,
// then whatever the runtime offers.
func GetContext() (*Context, error) {
	var initErr error
	ctx.once.Do(func() {
		ctx.Instance = wgpu.CreateInstance(nil)
		if ctx.Instance == nil {
			initErr = fmt.Errorf("failed to create WebGPU instance")
			return
		}

		tryInit := func(opts *wgpu.RequestAdapterOptions) error {
			if ctx.Adapter != nil {
				return nil
			}
			var err error
			ctx.Adapter, err = ctx.Instance.RequestAdapter(opts)
			return err
		}

		initErr = tryInit(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})

		if initErr != nil && ctx.Adapter == nil {
			fmt.Printf("High performance adapter failed: %v. Falling back...\n", initErr)
			initErr = tryInit(&wgpu.RequestAdapterOptions{
				PowerPreference: wgpu.PowerPreferenceLowPower,
			})
		}

		if initErr != nil && ctx.Adapter == nil {
			fmt.Printf("Low power adapter failed: %v. Trying default...\n", initErr)
			initErr = tryInit(nil)
		}

		if ctx.Adapter == nil {
			initErr = fmt.Errorf("all adapter attempts failed: %v", initErr)
			return
		}

		info := ctx.Adapter.GetInfo()
		fmt.Printf("Using GPU Adapter: %s (Vendor: %s)\n", info.Name, info.VendorName)

		var err error
		ctx.Device, err = ctx.Adapter.RequestDevice(nil)
		if err != nil {
			initErr = err
			return
		}

		ctx.Queue = ctx.Device.GetQueue()
	})

	if initErr != nil {
		return nil, initErr
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("WebGPU device or queue not initialized")
	}

	return &ctx, nil
}
