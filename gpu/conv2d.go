package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// Conv2DSpec describes one batched NCHW convolution. Weights are laid out
// [OutChannels][InChannels][K][K], matching the CPU path.
type Conv2DSpec struct {
	BatchSize   int
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int
	Padding     int
	InputHeight int
	InputWidth  int
	WorkgroupX  uint32    // 0 means 64
	Weights     []float32 // [OutChannels * InChannels * KernelSize * KernelSize]
	Bias        []float32 // [OutChannels]
}

// Conv2DLayer holds the GPU resources for a convolution dispatch. The
// convolution is linear; normalization and activations stay on the CPU.
type Conv2DLayer struct {
	Spec Conv2DSpec

	pipeline  *wgpu.ComputePipeline
	bindGroup *wgpu.BindGroup

	InputBuffer  *wgpu.Buffer
	OutputBuffer *wgpu.Buffer
	WeightBuffer *wgpu.Buffer
	BiasBuffer   *wgpu.Buffer

	outputH, outputW int
}

func (l *Conv2DLayer) computeOutputSize() (int, int) {
	stride := l.Spec.Stride
	if stride < 1 {
		stride = 1
	}
	h := (l.Spec.InputHeight+2*l.Spec.Padding-l.Spec.KernelSize)/stride + 1
	w := (l.Spec.InputWidth+2*l.Spec.Padding-l.Spec.KernelSize)/stride + 1
	return h, w
}

func (l *Conv2DLayer) workgroupX() uint32 {
	if l.Spec.WorkgroupX == 0 {
		return 64
	}
	return l.Spec.WorkgroupX
}

func (l *Conv2DLayer) inputLen() int {
	return l.Spec.BatchSize * l.Spec.InChannels * l.Spec.InputHeight * l.Spec.InputWidth
}

func (l *Conv2DLayer) outputLen() int {
	return l.Spec.BatchSize * l.Spec.OutChannels * l.outputH * l.outputW
}

// AllocateBuffers creates the input/output/weight/bias buffers. Weights and
// bias are uploaded from Spec; the input buffer is filled by Run.
func (l *Conv2DLayer) AllocateBuffers(ctx *Context, labelPrefix string) error {
	var err error

	l.outputH, l.outputW = l.computeOutputSize()

	l.InputBuffer, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_In",
		Size:  uint64(l.inputLen() * 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}

	l.OutputBuffer, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: labelPrefix + "_Out",
		Size:  uint64(l.outputLen() * 4),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}

	weights := l.Spec.Weights
	if len(weights) == 0 {
		weights = make([]float32, l.Spec.OutChannels*l.Spec.InChannels*l.Spec.KernelSize*l.Spec.KernelSize)
	}
	l.WeightBuffer, err = NewFloatBuffer(weights, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	bias := l.Spec.Bias
	if len(bias) == 0 {
		bias = make([]float32, l.Spec.OutChannels)
	}
	l.BiasBuffer, err = NewFloatBuffer(bias, wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	return err
}

// GenerateShader emits the WGSL convolution kernel with the layer geometry
// baked in as constants, one invocation per output element.
func (l *Conv2DLayer) GenerateShader() string {
	stride := l.Spec.Stride
	if stride < 1 {
		stride = 1
	}
	outH, outW := l.computeOutputSize()

	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> input : array<f32>;
		@group(0) @binding(1) var<storage, read> weights : array<f32>;
		@group(0) @binding(2) var<storage, read> bias : array<f32>;
		@group(0) @binding(3) var<storage, read_write> output : array<f32>;

		const BATCH: u32 = %du;
		const IN_H: u32 = %du;
		const IN_W: u32 = %du;
		const IN_CH: u32 = %du;
		const OUT_CH: u32 = %du;
		const K: u32 = %du;
		const STRIDE: u32 = %du;
		const PADDING: u32 = %du;
		const OUT_H: u32 = %du;
		const OUT_W: u32 = %du;

		@compute @workgroup_size(%d, 1, 1)
		fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
			let idx = gid.x;
			let total = BATCH * OUT_CH * OUT_H * OUT_W;
			if (idx >= total) { return; }

			// Output layout: [N, C, H, W]
			let out_w = idx %% OUT_W;
			let out_h = (idx / OUT_W) %% OUT_H;
			let out_c = (idx / (OUT_W * OUT_H)) %% OUT_CH;
			let n = idx / (OUT_W * OUT_H * OUT_CH);

			var sum: f32 = bias[out_c];

			for (var kh: u32 = 0u; kh < K; kh++) {
				for (var kw: u32 = 0u; kw < K; kw++) {
					let in_h_signed = i32(out_h * STRIDE + kh) - i32(PADDING);
					let in_w_signed = i32(out_w * STRIDE + kw) - i32(PADDING);

					if (in_h_signed >= 0 && u32(in_h_signed) < IN_H &&
					    in_w_signed >= 0 && u32(in_w_signed) < IN_W) {
						let in_h = u32(in_h_signed);
						let in_w = u32(in_w_signed);

						for (var in_c: u32 = 0u; in_c < IN_CH; in_c++) {
							let i_idx = n * IN_CH * IN_H * IN_W + in_c * IN_H * IN_W + in_h * IN_W + in_w;
							let w_idx = out_c * IN_CH * K * K + in_c * K * K + kh * K + kw;
							sum += input[i_idx] * weights[w_idx];
						}
					}
				}
			}

			output[idx] = sum;
		}
	`, l.Spec.BatchSize, l.Spec.InputHeight, l.Spec.InputWidth, l.Spec.InChannels,
		l.Spec.OutChannels, l.Spec.KernelSize, stride, l.Spec.Padding, outH, outW,
		l.workgroupX())
}

// Compile builds the compute pipeline from the generated shader.
func (l *Conv2DLayer) Compile(ctx *Context, labelPrefix string) error {
	mod, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          labelPrefix + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: l.GenerateShader()},
	})
	if err != nil {
		return err
	}
	l.pipeline, err = ctx.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   labelPrefix + "_Pipe",
		Compute: wgpu.ProgrammableStageDescriptor{Module: mod, EntryPoint: "main"},
	})
	return err
}

// CreateBindGroup binds the four buffers to the pipeline layout.
func (l *Conv2DLayer) CreateBindGroup(ctx *Context, labelPrefix string) error {
	var err error
	l.bindGroup, err = ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  labelPrefix + "_Bind",
		Layout: l.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: l.InputBuffer, Size: l.InputBuffer.GetSize()},
			{Binding: 1, Buffer: l.WeightBuffer, Size: l.WeightBuffer.GetSize()},
			{Binding: 2, Buffer: l.BiasBuffer, Size: l.BiasBuffer.GetSize()},
			{Binding: 3, Buffer: l.OutputBuffer, Size: l.OutputBuffer.GetSize()},
		},
	})
	return err
}

// UploadInput writes the input tensor into the input buffer.
func (l *Conv2DLayer) UploadInput(ctx *Context, input []float32) {
	ctx.Queue.WriteBuffer(l.InputBuffer, 0, wgpu.ToBytes(input))
}

// Dispatch records the convolution into an open compute pass.
func (l *Conv2DLayer) Dispatch(pass *wgpu.ComputePassEncoder) {
	pass.SetPipeline(l.pipeline)
	pass.SetBindGroup(0, l.bindGroup, nil)
	wgx := l.workgroupX()
	pass.DispatchWorkgroups((uint32(l.outputLen())+wgx-1)/wgx, 1, 1)
}

// ReadOutput reads the output tensor back to the host.
func (l *Conv2DLayer) ReadOutput() ([]float32, error) {
	return ReadFloatBuffer(l.OutputBuffer, l.outputLen())
}

// Run uploads the input, dispatches the convolution and reads back the
// result. This is the one-shot path the network's forward pass uses.
func (l *Conv2DLayer) Run(ctx *Context, input []float32) ([]float32, error) {
	if len(input) != l.inputLen() {
		return nil, fmt.Errorf("input length %d, want %d", len(input), l.inputLen())
	}

	l.UploadInput(ctx, input)

	encoder, err := ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %v", err)
	}
	pass := encoder.BeginComputePass(nil)
	l.Dispatch(pass)
	pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish command: %v", err)
	}
	ctx.Queue.Submit(cmd)

	return l.ReadOutput()
}

// Cleanup destroys the buffers and releases the pipeline objects.
func (l *Conv2DLayer) Cleanup() {
	bufs := []*wgpu.Buffer{l.InputBuffer, l.OutputBuffer, l.WeightBuffer, l.BiasBuffer}
	for _, b := range bufs {
		if b != nil {
			b.Destroy()
		}
	}
	if l.pipeline != nil {
		l.pipeline.Release()
	}
	if l.bindGroup != nil {
		l.bindGroup.Release()
	}
}
