package nn

import (
	"math"
)

const (
	batchNormMomentum = 0.99
	batchNormEpsilon  = 1e-3
)

// InitBatchNormLayer initializes a batch-normalization layer over the
// channel axis of an NCHW feature map. Gamma starts at 1, Beta at 0, moving
// mean at 0 and moving variance at 1.
func InitBatchNormLayer(height, width, channels int) LayerConfig {
	gamma := make([]float32, channels)
	beta := make([]float32, channels)
	movingMean := make([]float32, channels)
	movingVariance := make([]float32, channels)
	for c := 0; c < channels; c++ {
		gamma[c] = 1.0
		movingVariance[c] = 1.0
	}

	return LayerConfig{
		Type:           LayerBatchNorm,
		InputHeight:    height,
		InputWidth:     width,
		InputChannels:  channels,
		OutputHeight:   height,
		OutputWidth:    width,
		Filters:        channels,
		Gamma:          gamma,
		Beta:           beta,
		MovingMean:     movingMean,
		MovingVariance: movingVariance,
		Momentum:       batchNormMomentum,
		Epsilon:        batchNormEpsilon,
	}
}

// batchNormForwardCPU normalizes each channel over batch x height x width.
// In training mode it uses batch statistics and updates the moving averages;
// in inference mode it uses the moving statistics. The statistics actually
// used are returned as [mean | variance] (2*channels values) so the backward
// pass can reuse them.
func batchNormForwardCPU(input []float32, config *LayerConfig, batchSize int, training bool) ([]float32, []float32) {
	h := config.InputHeight
	w := config.InputWidth
	channels := config.InputChannels
	plane := h * w
	m := batchSize * plane // elements per channel

	output := make([]float32, len(input))
	stats := make([]float32, 2*channels)

	for c := 0; c < channels; c++ {
		var mean, variance float32

		if training {
			sum := float32(0)
			for b := 0; b < batchSize; b++ {
				base := b*channels*plane + c*plane
				for i := 0; i < plane; i++ {
					sum += input[base+i]
				}
			}
			mean = sum / float32(m)

			sqSum := float32(0)
			for b := 0; b < batchSize; b++ {
				base := b*channels*plane + c*plane
				for i := 0; i < plane; i++ {
					d := input[base+i] - mean
					sqSum += d * d
				}
			}
			variance = sqSum / float32(m)

			// moving = momentum*moving + (1-momentum)*batch
			config.MovingMean[c] = config.Momentum*config.MovingMean[c] + (1-config.Momentum)*mean
			config.MovingVariance[c] = config.Momentum*config.MovingVariance[c] + (1-config.Momentum)*variance
		} else {
			mean = config.MovingMean[c]
			variance = config.MovingVariance[c]
		}

		stats[c] = mean
		stats[channels+c] = variance

		invStd := float32(1.0 / math.Sqrt(float64(variance)+float64(config.Epsilon)))
		gamma := config.Gamma[c]
		beta := config.Beta[c]

		for b := 0; b < batchSize; b++ {
			base := b*channels*plane + c*plane
			for i := 0; i < plane; i++ {
				output[base+i] = gamma*(input[base+i]-mean)*invStd + beta
			}
		}
	}

	return output, stats
}

// batchNormBackwardCPU computes gradients for batch normalization.
// stats is the [mean | variance] stash from the forward pass. When the
// forward ran in training mode the batch statistics depend on the input, so
// the full three-term gradient applies; in inference mode the statistics are
// constants and only the scale term survives.
func batchNormBackwardCPU(
	gradOutput []float32,
	input []float32,
	stats []float32,
	config *LayerConfig,
	batchSize int,
	training bool,
) (gradInput []float32, gradGamma []float32, gradBeta []float32) {
	h := config.InputHeight
	w := config.InputWidth
	channels := config.InputChannels
	plane := h * w
	m := batchSize * plane

	gradInput = make([]float32, len(gradOutput))
	gradGamma = make([]float32, channels)
	gradBeta = make([]float32, channels)

	for c := 0; c < channels; c++ {
		mean := stats[c]
		variance := stats[channels+c]
		invStd := float32(1.0 / math.Sqrt(float64(variance)+float64(config.Epsilon)))
		gamma := config.Gamma[c]

		// Reductions over the channel: sum of dY and sum of dY*xhat
		var sumGrad, sumGradXhat float32
		for b := 0; b < batchSize; b++ {
			base := b*channels*plane + c*plane
			for i := 0; i < plane; i++ {
				g := gradOutput[base+i]
				xhat := (input[base+i] - mean) * invStd
				sumGrad += g
				sumGradXhat += g * xhat
			}
		}

		gradBeta[c] = sumGrad
		gradGamma[c] = sumGradXhat

		if !training {
			for b := 0; b < batchSize; b++ {
				base := b*channels*plane + c*plane
				for i := 0; i < plane; i++ {
					gradInput[base+i] = gradOutput[base+i] * gamma * invStd
				}
			}
			continue
		}

		// dX = gamma*invStd/m * (m*dY - sum(dY) - xhat*sum(dY*xhat))
		scale := gamma * invStd / float32(m)
		for b := 0; b < batchSize; b++ {
			base := b*channels*plane + c*plane
			for i := 0; i < plane; i++ {
				xhat := (input[base+i] - mean) * invStd
				gradInput[base+i] = scale * (float32(m)*gradOutput[base+i] - sumGrad - xhat*sumGradXhat)
			}
		}
	}

	return gradInput, gradGamma, gradBeta
}
