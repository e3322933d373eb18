package nn

import (
	"math"
	"math/rand"
)

// InitDenseLayer initializes a dense (fully-connected) layer.
// Weight matrix layout is [inputSize * outputSize], indexed i*outputSize+o.
func InitDenseLayer(inputSize, outputSize int, activation ActivationType) LayerConfig {
	// He initialization
	stddev := float32(math.Sqrt(2.0 / float64(inputSize)))

	weights := make([]float32, inputSize*outputSize)
	for i := range weights {
		weights[i] = float32(rand.NormFloat64()) * stddev
	}

	bias := make([]float32, outputSize)

	return LayerConfig{
		Type:       LayerDense,
		Activation: activation,
		InputSize:  inputSize,
		OutputSize: outputSize,
		Kernel:     weights,
		Bias:       bias,
	}
}

// denseForwardCPU performs the forward pass for a dense layer.
// input: [batchSize * inputSize], output: [batchSize * outputSize]
// Returns pre-activation and post-activation values.
func denseForwardCPU(input []float32, config *LayerConfig, batchSize int) ([]float32, []float32) {
	inputSize := config.InputSize
	outputSize := config.OutputSize
	weights := config.Kernel
	bias := config.Bias

	preAct := make([]float32, batchSize*outputSize)
	postAct := make([]float32, batchSize*outputSize)

	for b := 0; b < batchSize; b++ {
		for o := 0; o < outputSize; o++ {
			sum := bias[o]
			for i := 0; i < inputSize; i++ {
				sum += input[b*inputSize+i] * weights[i*outputSize+o]
			}

			outIdx := b*outputSize + o
			preAct[outIdx] = sum
			postAct[outIdx] = activateCPU(sum, config.Activation)
		}
	}

	return preAct, postAct
}

// denseBackwardCPU performs the backward pass for a dense layer.
func denseBackwardCPU(gradOutput, input, preAct []float32, config *LayerConfig, batchSize int) ([]float32, []float32, []float32) {
	inputSize := config.InputSize
	outputSize := config.OutputSize
	weights := config.Kernel

	gradInput := make([]float32, batchSize*inputSize)
	gradWeights := make([]float32, inputSize*outputSize)
	gradBias := make([]float32, outputSize)

	for b := 0; b < batchSize; b++ {
		for o := 0; o < outputSize; o++ {
			outIdx := b*outputSize + o
			grad := gradOutput[outIdx] * activateDerivativeCPU(preAct[outIdx], config.Activation)

			gradBias[o] += grad

			for i := 0; i < inputSize; i++ {
				inputIdx := b*inputSize + i
				weightIdx := i*outputSize + o

				gradWeights[weightIdx] += input[inputIdx] * grad
				gradInput[inputIdx] += weights[weightIdx] * grad
			}
		}
	}

	return gradInput, gradWeights, gradBias
}
