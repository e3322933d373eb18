package nn

// InitGlobalAvgPoolLayer initializes a global average pooling layer that
// collapses an NCHW feature map to one value per channel: [N,C,H,W] -> [N,C].
func InitGlobalAvgPoolLayer(height, width, channels int) LayerConfig {
	return LayerConfig{
		Type:          LayerGlobalAvgPool,
		InputHeight:   height,
		InputWidth:    width,
		InputChannels: channels,
		OutputSize:    channels,
	}
}

// globalAvgPoolForwardCPU averages each channel plane.
func globalAvgPoolForwardCPU(input []float32, config *LayerConfig, batchSize int) []float32 {
	channels := config.InputChannels
	plane := config.InputHeight * config.InputWidth

	output := make([]float32, batchSize*channels)

	for b := 0; b < batchSize; b++ {
		for c := 0; c < channels; c++ {
			base := b*channels*plane + c*plane
			sum := float32(0)
			for i := 0; i < plane; i++ {
				sum += input[base+i]
			}
			output[b*channels+c] = sum / float32(plane)
		}
	}

	return output
}

// globalAvgPoolBackwardCPU spreads each channel gradient evenly across the
// plane it was averaged from.
func globalAvgPoolBackwardCPU(gradOutput []float32, config *LayerConfig, batchSize int) []float32 {
	channels := config.InputChannels
	plane := config.InputHeight * config.InputWidth

	gradInput := make([]float32, batchSize*channels*plane)

	for b := 0; b < batchSize; b++ {
		for c := 0; c < channels; c++ {
			g := gradOutput[b*channels+c] / float32(plane)
			base := b*channels*plane + c*plane
			for i := 0; i < plane; i++ {
				gradInput[base+i] = g
			}
		}
	}

	return gradInput
}

// InitReshapeLayer initializes the vector-to-feature-map adapter that treats
// a length-V vector as V channels on a 1x1 spatial grid. In NCHW layout the
// flat data is unchanged, so forward and backward are copies.
func InitReshapeLayer(vectorDim int) LayerConfig {
	return LayerConfig{
		Type:         LayerReshape,
		InputSize:    vectorDim,
		OutputSize:   vectorDim,
		OutputHeight: 1,
		OutputWidth:  1,
		Filters:      vectorDim,
	}
}

// InitAddLayer initializes a residual join that sums the previous layer's
// output with the output of layer index skipFrom. Both must share the given
// feature-map geometry.
func InitAddLayer(height, width, channels, skipFrom int) LayerConfig {
	return LayerConfig{
		Type:          LayerAdd,
		InputHeight:   height,
		InputWidth:    width,
		InputChannels: channels,
		OutputHeight:  height,
		OutputWidth:   width,
		Filters:       channels,
		SkipFrom:      skipFrom,
	}
}

// addForwardCPU sums the two residual branches element-wise.
func addForwardCPU(main, skip []float32) []float32 {
	output := make([]float32, len(main))
	for i := range main {
		output[i] = main[i] + skip[i]
	}
	return output
}
