package nn

import (
	"fmt"

	"github.com/openglyph/glyphnet/detector"
	"github.com/openglyph/glyphnet/gpu"
)

// InitGPU probes the adapter and attaches the shared GPU context to the
// model. After a successful call, Conv2D forward passes run on the GPU with
// a CPU fallback; everything else stays on the CPU.
func (m *Model) InitGPU() error {
	rep, err := detector.Detect()
	if err != nil {
		return fmt.Errorf("failed to probe adapter: %w", err)
	}

	ctx, err := gpu.GetContext()
	if err != nil {
		return fmt.Errorf("failed to initialize gpu context: %w", err)
	}

	wgx := rep.Recommended.WorkgroupX
	if wgx == 0 {
		wgx = 64
	}
	if wgx > rep.Limits.MaxComputeWorkgroupSizeX {
		wgx = rep.Limits.MaxComputeWorkgroupSizeX
	}

	// The context is process-wide, so the model does not own a release.
	m.deviceInfo = &GPUDeviceInfo{
		Device:     ctx.Device,
		Queue:      ctx.Queue,
		WorkgroupX: wgx,
	}

	return nil
}

// conv2DForwardGPU runs one Conv2D layer on the GPU. Resources are created
// per call and destroyed before returning.
func conv2DForwardGPU(input []float32, config *LayerConfig, batchSize int, dev *GPUDeviceInfo) ([]float32, error) {
	ctx, err := gpu.GetContext()
	if err != nil {
		return nil, err
	}

	layer := &gpu.Conv2DLayer{Spec: gpu.Conv2DSpec{
		BatchSize:   batchSize,
		InChannels:  config.InputChannels,
		OutChannels: config.Filters,
		KernelSize:  config.KernelSize,
		Stride:      config.Stride,
		Padding:     config.Padding,
		InputHeight: config.InputHeight,
		InputWidth:  config.InputWidth,
		WorkgroupX:  dev.WorkgroupX,
		Weights:     config.Kernel,
		Bias:        config.Bias,
	}}
	defer layer.Cleanup()

	if err := layer.AllocateBuffers(ctx, config.Name); err != nil {
		return nil, fmt.Errorf("failed to allocate buffers: %w", err)
	}
	if err := layer.Compile(ctx, config.Name); err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	if err := layer.CreateBindGroup(ctx, config.Name); err != nil {
		return nil, fmt.Errorf("failed to create bind group: %w", err)
	}

	return layer.Run(ctx, input)
}
