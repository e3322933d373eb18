package nn

import (
	"math"
	"math/rand"
)

// InitDeconv2DLayer initializes a transposed-convolution layer. With "same"
// padding (= (kernelSize-1)/2) the output spatial size is exactly
// inputSize * stride, so kernel 3 / stride 2 doubles the feature map.
// Kernel layout matches Conv2D: [filters][inChannels][k][k].
func InitDeconv2DLayer(
	inputHeight, inputWidth, inputChannels int,
	kernelSize, stride, padding, filters int,
) LayerConfig {
	outputHeight := inputHeight * stride
	outputWidth := inputWidth * stride

	kernel := make([]float32, filters*inputChannels*kernelSize*kernelSize)
	stddev := float32(math.Sqrt(2.0 / float64(inputChannels*kernelSize*kernelSize)))
	for i := range kernel {
		kernel[i] = float32(rand.NormFloat64()) * stddev
	}

	bias := make([]float32, filters)

	return LayerConfig{
		Type:          LayerDeconv2D,
		KernelSize:    kernelSize,
		Stride:        stride,
		Padding:       padding,
		Filters:       filters,
		Kernel:        kernel,
		Bias:          bias,
		InputHeight:   inputHeight,
		InputWidth:    inputWidth,
		InputChannels: inputChannels,
		OutputHeight:  outputHeight,
		OutputWidth:   outputWidth,
	}
}

// deconv2DForwardCPU performs transposed convolution on CPU in scatter form:
// every input element distributes its kernel window into the output at
// oh = ih*stride + kh - padding. This is the adjoint of the Conv2D input
// gradient, which is what makes the pair exact duals.
func deconv2DForwardCPU(input []float32, config *LayerConfig, batchSize int) []float32 {
	inH := config.InputHeight
	inW := config.InputWidth
	inC := config.InputChannels
	kSize := config.KernelSize
	stride := config.Stride
	padding := config.Padding
	filters := config.Filters
	outH := config.OutputHeight
	outW := config.OutputWidth

	output := make([]float32, batchSize*filters*outH*outW)

	for b := 0; b < batchSize; b++ {
		for f := 0; f < filters; f++ {
			base := b*filters*outH*outW + f*outH*outW

			// Bias first, contributions accumulate on top
			for i := 0; i < outH*outW; i++ {
				output[base+i] = config.Bias[f]
			}

			for ic := 0; ic < inC; ic++ {
				for ih := 0; ih < inH; ih++ {
					for iw := 0; iw < inW; iw++ {
						v := input[b*inC*inH*inW+ic*inH*inW+ih*inW+iw]

						for kh := 0; kh < kSize; kh++ {
							for kw := 0; kw < kSize; kw++ {
								oh := ih*stride + kh - padding
								ow := iw*stride + kw - padding

								if oh >= 0 && oh < outH && ow >= 0 && ow < outW {
									kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
									output[base+oh*outW+ow] += v * config.Kernel[kernelIdx]
								}
							}
						}
					}
				}
			}
		}
	}

	return output
}

// deconv2DBackwardCPU computes gradients for the transposed convolution.
// The input gradient is the gather form (a plain convolution with the same
// kernel); the kernel gradient pairs each input element with the output
// positions it scattered into.
func deconv2DBackwardCPU(
	gradOutput []float32,
	input []float32,
	config *LayerConfig,
	batchSize int,
) (gradInput []float32, gradKernel []float32, gradBias []float32) {
	inH := config.InputHeight
	inW := config.InputWidth
	inC := config.InputChannels
	kSize := config.KernelSize
	stride := config.Stride
	padding := config.Padding
	filters := config.Filters
	outH := config.OutputHeight
	outW := config.OutputWidth

	gradInput = make([]float32, batchSize*inC*inH*inW)
	gradKernel = make([]float32, filters*inC*kSize*kSize)
	gradBias = make([]float32, filters)

	for b := 0; b < batchSize; b++ {
		for f := 0; f < filters; f++ {
			base := b*filters*outH*outW + f*outH*outW

			for i := 0; i < outH*outW; i++ {
				gradBias[f] += gradOutput[base+i]
			}

			for ic := 0; ic < inC; ic++ {
				for ih := 0; ih < inH; ih++ {
					for iw := 0; iw < inW; iw++ {
						inputIdx := b*inC*inH*inW + ic*inH*inW + ih*inW + iw

						for kh := 0; kh < kSize; kh++ {
							for kw := 0; kw < kSize; kw++ {
								oh := ih*stride + kh - padding
								ow := iw*stride + kw - padding

								if oh >= 0 && oh < outH && ow >= 0 && ow < outW {
									kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
									gradOut := gradOutput[base+oh*outW+ow]

									gradInput[inputIdx] += gradOut * config.Kernel[kernelIdx]
									gradKernel[kernelIdx] += gradOut * input[inputIdx]
								}
							}
						}
					}
				}
			}
		}
	}

	return gradInput, gradKernel, gradBias
}
