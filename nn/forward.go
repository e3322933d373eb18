package nn

import (
	"fmt"
)

// Forward executes the model on a batch of flattened samples and stores the
// intermediate activations needed for backprop. Input and output are flat
// NCHW tensors of batchSize * InputSize and batchSize * OutputSize floats.
func (m *Model) Forward(input []float32, batchSize int) ([]float32, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if len(input) != batchSize*m.InputSize {
		return nil, fmt.Errorf("input length %d does not match batch size %d x input size %d",
			len(input), batchSize, m.InputSize)
	}
	m.BatchSize = batchSize

	// Store input
	m.activations[0] = make([]float32, len(input))
	copy(m.activations[0], input)

	data := m.activations[0]

	for i := range m.Layers {
		config := &m.Layers[i]

		switch config.Type {
		case LayerReshape:
			// Vector-to-feature-map: flat NCHW data is unchanged, only the
			// shape bookkeeping moves
			out := make([]float32, len(data))
			copy(out, data)
			data = out

		case LayerConv2D:
			data = m.convForward(data, config, batchSize)

		case LayerDeconv2D:
			data = deconv2DForwardCPU(data, config, batchSize)

		case LayerBatchNorm:
			output, stats := batchNormForwardCPU(data, config, batchSize, m.Training)

			// Stash the batch statistics used in this pass for backprop
			m.preActivations[i] = stats
			data = output

		case LayerActivation:
			// Store pre-activation values (before activation function)
			m.preActivations[i] = make([]float32, len(data))
			copy(m.preActivations[i], data)

			data = activationForwardCPU(data, config)

		case LayerGlobalAvgPool:
			data = globalAvgPoolForwardCPU(data, config, batchSize)

		case LayerDense:
			preAct, postAct := denseForwardCPU(data, config, batchSize)
			m.preActivations[i] = preAct
			data = postAct

		case LayerAdd:
			data = addForwardCPU(data, m.activations[config.SkipFrom+1])

		default:
			return nil, fmt.Errorf("layer %d (%s): unsupported type %d", i, config.Name, config.Type)
		}

		// Store post-activation values
		m.activations[i+1] = data

		if config.Observer != nil {
			notifyObserver(config, i, "forward", data)
		}
	}

	return data, nil
}

// convForward routes a convolution through the GPU when a device is attached,
// falling back to CPU on any GPU-side failure.
func (m *Model) convForward(input []float32, config *LayerConfig, batchSize int) []float32 {
	if m.deviceInfo != nil {
		out, err := conv2DForwardGPU(input, config, batchSize, m.deviceInfo)
		if err == nil {
			return out
		}
		if !m.gpuWarned {
			m.gpuWarned = true
			fmt.Printf("[WARNING] GPU conv2d failed (%v), falling back to CPU\n", err)
		}
	}
	return conv2DForwardCPU(input, config, batchSize)
}
