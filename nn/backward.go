package nn

import (
	"fmt"
	"math"
)

// Backward propagates gradOutput back through the model, filling the
// per-layer parameter gradient slots and returning the gradient with respect
// to the model input. Forward must have been called first.
//
// Gradients w.r.t. each stored activation are accumulated in a slot per
// activation so that residual joins can deposit into both of their branches;
// walking the layers in reverse guarantees every slot is complete before the
// layer that consumes it runs.
func (m *Model) Backward(gradOutput []float32) ([]float32, error) {
	if m.activations[0] == nil {
		return nil, fmt.Errorf("no stored activations, call Forward first")
	}
	if len(gradOutput) != len(m.activations[len(m.Layers)]) {
		return nil, fmt.Errorf("gradient length %d does not match output length %d",
			len(gradOutput), len(m.activations[len(m.Layers)]))
	}

	batchSize := m.BatchSize

	// grads[i] accumulates dL/d(activations[i])
	grads := make([][]float32, len(m.Layers)+1)
	grads[len(m.Layers)] = gradOutput

	for i := len(m.Layers) - 1; i >= 0; i-- {
		config := &m.Layers[i]
		g := grads[i+1]
		layerInput := m.activations[i]

		var gradIn []float32

		switch config.Type {
		case LayerReshape:
			gradIn = g

		case LayerConv2D:
			var gradKernel, gradBias []float32
			gradIn, gradKernel, gradBias = conv2DBackwardCPU(g, layerInput, config, batchSize)
			m.kernelGradients[i] = gradKernel
			m.biasGradients[i] = gradBias

		case LayerDeconv2D:
			var gradKernel, gradBias []float32
			gradIn, gradKernel, gradBias = deconv2DBackwardCPU(g, layerInput, config, batchSize)
			m.kernelGradients[i] = gradKernel
			m.biasGradients[i] = gradBias

		case LayerBatchNorm:
			var gradGamma, gradBeta []float32
			gradIn, gradGamma, gradBeta = batchNormBackwardCPU(
				g, layerInput, m.preActivations[i], config, batchSize, m.Training)
			m.gammaGradients[i] = gradGamma
			m.betaGradients[i] = gradBeta

		case LayerActivation:
			gradIn = activationBackwardCPU(g, m.preActivations[i], config)

		case LayerGlobalAvgPool:
			gradIn = globalAvgPoolBackwardCPU(g, config, batchSize)

		case LayerDense:
			var gradWeights, gradBias []float32
			gradIn, gradWeights, gradBias = denseBackwardCPU(
				g, layerInput, m.preActivations[i], config, batchSize)
			m.kernelGradients[i] = gradWeights
			m.biasGradients[i] = gradBias

		case LayerAdd:
			// The sum passes gradients through unchanged to both addends
			gradIn = g
			grads[config.SkipFrom+1] = accumulateGrad(grads[config.SkipFrom+1], g)

		default:
			return nil, fmt.Errorf("layer %d (%s): unsupported type %d", i, config.Name, config.Type)
		}

		grads[i] = accumulateGrad(grads[i], gradIn)

		if config.Observer != nil {
			notifyObserver(config, i, "backward", gradIn)
		}
	}

	return grads[0], nil
}

// accumulateGrad adds src into dst, allocating dst on first use.
func accumulateGrad(dst, src []float32) []float32 {
	if dst == nil {
		dst = make([]float32, len(src))
		copy(dst, src)
		return dst
	}
	for i := range src {
		dst[i] += src[i]
	}
	return dst
}

// ClipGradients rescales all parameter gradients so their joint L2 norm does
// not exceed maxNorm. Returns the norm measured before clipping. A maxNorm
// of zero or less disables clipping.
func (m *Model) ClipGradients(maxNorm float32) float32 {
	slots := [][][]float32{
		m.kernelGradients,
		m.biasGradients,
		m.gammaGradients,
		m.betaGradients,
	}

	sumSq := float64(0)
	for _, group := range slots {
		for _, grad := range group {
			for _, v := range grad {
				sumSq += float64(v) * float64(v)
			}
		}
	}

	norm := float32(math.Sqrt(sumSq))
	if maxNorm <= 0 || norm <= maxNorm || norm == 0 {
		return norm
	}

	scale := maxNorm / norm
	for _, group := range slots {
		for _, grad := range group {
			for i := range grad {
				grad[i] *= scale
			}
		}
	}

	return norm
}
