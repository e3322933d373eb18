package nn

import (
	"math"
)

// sigmoidCPU is the logistic function used by both the sigmoid and swish
// activations and by the loss helpers.
func sigmoidCPU(v float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-v))))
}

// activateCPU applies the activation function on CPU
func activateCPU(v float32, activation ActivationType) float32 {
	switch activation {
	case ActivationSwish:
		// x * sigmoid(x), the self-gated activation used throughout both models
		return v * sigmoidCPU(v)
	case ActivationSigmoid:
		return sigmoidCPU(v)
	default:
		return v
	}
}

// activateDerivativeCPU computes the derivative of the activation function
// with respect to the PRE-activation value.
func activateDerivativeCPU(preActivation float32, activation ActivationType) float32 {
	switch activation {
	case ActivationSwish:
		// d/dv (v * sigmoid(v)) = sigmoid(v) * (1 + v * (1 - sigmoid(v)))
		sig := sigmoidCPU(preActivation)
		return sig * (1.0 + preActivation*(1.0-sig))
	case ActivationSigmoid:
		// d/dv (1/(1+e^-v)) = sigmoid(v) * (1 - sigmoid(v))
		sig := sigmoidCPU(preActivation)
		return sig * (1.0 - sig)
	default:
		return 1.0
	}
}

// InitActivationLayer initializes an element-wise activation layer over a
// feature map of the given geometry.
func InitActivationLayer(height, width, channels int, activation ActivationType) LayerConfig {
	return LayerConfig{
		Type:          LayerActivation,
		Activation:    activation,
		InputHeight:   height,
		InputWidth:    width,
		InputChannels: channels,
		OutputHeight:  height,
		OutputWidth:   width,
		Filters:       channels,
	}
}

// activationForwardCPU applies the activation element-wise.
func activationForwardCPU(input []float32, config *LayerConfig) []float32 {
	output := make([]float32, len(input))
	for i, v := range input {
		output[i] = activateCPU(v, config.Activation)
	}
	return output
}

// activationBackwardCPU routes the gradient through the activation. The
// layer's stored input is its pre-activation, so the derivative is taken
// there.
func activationBackwardCPU(gradOutput, input []float32, config *LayerConfig) []float32 {
	gradInput := make([]float32, len(gradOutput))
	for i := range gradOutput {
		gradInput[i] = gradOutput[i] * activateDerivativeCPU(input[i], config.Activation)
	}
	return gradInput
}
