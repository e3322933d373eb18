package nn

import (
	"math"
	"math/rand"
)

// InitConv2DLayer initializes a Conv2D layer with He-initialized weights.
// The layer is linear; batch normalization and the activation follow as
// separate layers in every block, so no activation is fused here.
func InitConv2DLayer(
	inputHeight, inputWidth, inputChannels int,
	kernelSize, stride, padding, filters int,
) LayerConfig {
	outputHeight := (inputHeight+2*padding-kernelSize)/stride + 1
	outputWidth := (inputWidth+2*padding-kernelSize)/stride + 1

	// He initialization
	kernel := make([]float32, filters*inputChannels*kernelSize*kernelSize)
	stddev := float32(math.Sqrt(2.0 / float64(inputChannels*kernelSize*kernelSize)))
	for i := range kernel {
		kernel[i] = float32(rand.NormFloat64()) * stddev
	}

	bias := make([]float32, filters)

	return LayerConfig{
		Type:          LayerConv2D,
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

// conv2DForwardCPU performs 2D convolution on CPU.
// input shape: [batch][inChannels][height][width] (flattened)
// output shape: [batch][filters][outHeight][outWidth] (flattened)
func conv2DForwardCPU(input []float32, config *LayerConfig, batchSize int) []float32 {
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
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := config.Bias[f]

					for ic := 0; ic < inC; ic++ {
						for kh := 0; kh < kSize; kh++ {
							for kw := 0; kw < kSize; kw++ {
								ih := oh*stride + kh - padding
								iw := ow*stride + kw - padding

								if ih >= 0 && ih < inH && iw >= 0 && iw < inW {
									inputIdx := b*inC*inH*inW + ic*inH*inW + ih*inW + iw
									kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw
									sum += input[inputIdx] * config.Kernel[kernelIdx]
								}
							}
						}
					}

					output[b*filters*outH*outW+f*outH*outW+oh*outW+ow] = sum
				}
			}
		}
	}

	return output
}

// conv2DBackwardCPU computes gradients for 2D convolution on CPU.
// gradOutput: gradient flowing back from the next layer
// input: input from the forward pass
// Returns: gradInput, gradKernel, gradBias
func conv2DBackwardCPU(
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
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					gradOut := gradOutput[b*filters*outH*outW+f*outH*outW+oh*outW+ow]
					gradBias[f] += gradOut

					for ic := 0; ic < inC; ic++ {
						for kh := 0; kh < kSize; kh++ {
							for kw := 0; kw < kSize; kw++ {
								ih := oh*stride + kh - padding
								iw := ow*stride + kw - padding

								if ih >= 0 && ih < inH && iw >= 0 && iw < inW {
									inputIdx := b*inC*inH*inW + ic*inH*inW + ih*inW + iw
									kernelIdx := f*inC*kSize*kSize + ic*kSize*kSize + kh*kSize + kw

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
