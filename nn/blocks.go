package nn

import "fmt"

// LayerName builds the canonical name of a layer from its block name, layer
// role and stage index. An index of zero or less marks an unstaged block and
// is omitted: ("stem", "conv", 0) -> "stem_conv", ("deconv_block", "bn", 2)
// -> "deconv_block_bn_2".
func LayerName(blockName, layerName string, index int) string {
	if index <= 0 {
		return fmt.Sprintf("%s_%s", blockName, layerName)
	}
	return fmt.Sprintf("%s_%s_%d", blockName, layerName, index)
}

// convBlockOpts selects the variants of the standard convolution block.
type convBlockOpts struct {
	pooling  bool // stride 2 instead of 1, halving the feature map scale
	oneByOne bool // 1x1 kernel instead of 3x3
	sigmoid  bool // sigmoid output activation instead of swish
}

// addConvBlock appends the standard convolution triple Conv2D -> BatchNorm ->
// Activation and returns the index of its last layer. The activation layer is
// always named <block>_swish, sigmoid variant included.
func (m *Model) addConvBlock(filters int, blockName string, index int, opts convBlockOpts) int {
	h, w, c := m.tailShape()

	kernel := 3
	if opts.oneByOne {
		kernel = 1
	}
	stride := 1
	if opts.pooling {
		stride = 2
	}
	activation := ActivationSwish
	if opts.sigmoid {
		activation = ActivationSigmoid
	}

	conv := InitConv2DLayer(h, w, c, kernel, stride, (kernel-1)/2, filters)
	conv.Name = LayerName(blockName, "conv", index)
	m.addLayer(conv)

	bn := InitBatchNormLayer(conv.OutputHeight, conv.OutputWidth, filters)
	bn.Name = LayerName(blockName, "bn", index)
	m.addLayer(bn)

	act := InitActivationLayer(conv.OutputHeight, conv.OutputWidth, filters, activation)
	act.Name = LayerName(blockName, "swish", index)
	return m.addLayer(act)
}

// addDeconvBlock appends the transposed-convolution triple that doubles the
// feature map scale: Deconv2D -> BatchNorm -> Activation(swish). Returns the
// index of its last layer.
func (m *Model) addDeconvBlock(filters int, blockName string, index int) int {
	h, w, c := m.tailShape()

	deconv := InitDeconv2DLayer(h, w, c, 3, 2, 1, filters)
	deconv.Name = LayerName(blockName, "deconv", index)
	m.addLayer(deconv)

	bn := InitBatchNormLayer(deconv.OutputHeight, deconv.OutputWidth, filters)
	bn.Name = LayerName(blockName, "bn", index)
	m.addLayer(bn)

	act := InitActivationLayer(deconv.OutputHeight, deconv.OutputWidth, filters, ActivationSwish)
	act.Name = LayerName(blockName, "swish", index)
	return m.addLayer(act)
}

// addResidualJoin appends an Add layer summing the previous layer's output
// with the stored output of layer skipFrom.
func (m *Model) addResidualJoin(name string, skipFrom int) int {
	h, w, c := m.tailShape()
	add := InitAddLayer(h, w, c, skipFrom)
	add.Name = name
	return m.addLayer(add)
}

// addReshape appends the vector-to-1x1-feature-map adapter.
func (m *Model) addReshape(name string, vectorDim int) int {
	reshape := InitReshapeLayer(vectorDim)
	reshape.Name = name
	return m.addLayer(reshape)
}

// addGlobalAvgPool appends a global average pooling layer over the current
// feature map.
func (m *Model) addGlobalAvgPool(name string) int {
	h, w, c := m.tailShape()
	pool := InitGlobalAvgPoolLayer(h, w, c)
	pool.Name = name
	return m.addLayer(pool)
}

// addDense appends a fully-connected layer over the flattened tail.
func (m *Model) addDense(name string, outputSize int, activation ActivationType) int {
	last := &m.Layers[len(m.Layers)-1]
	dense := InitDenseLayer(layerOutputSize(last), outputSize, activation)
	dense.Name = name
	return m.addLayer(dense)
}

// tailShape returns the feature-map geometry produced by the last layer, or
// the model's input geometry when no layer has been added yet.
func (m *Model) tailShape() (height, width, channels int) {
	if len(m.Layers) == 0 {
		return m.InputHeight, m.InputWidth, m.InputChannels
	}
	last := &m.Layers[len(m.Layers)-1]
	return last.OutputHeight, last.OutputWidth, last.Filters
}
