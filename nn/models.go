package nn

import (
	"fmt"
)

// GeneratorConfig holds the construction parameters of a generator.
type GeneratorConfig struct {
	// VectorDim is the number of elements in the input message vector.
	VectorDim int `json:"vector_dim"`

	// R is the number of upsampling stages; the output image side is 2^R.
	R int `json:"r"`

	// LastChannels is the channel count of the last feature map before the
	// prediction block. Filter counts are derived from it because the filter
	// count halves after each upsampling stage.
	LastChannels int `json:"last_channels"`

	// Channels is the number of output image channels (1 grayscale, 3 color).
	Channels int `json:"channels"`
}

// DiscriminatorConfig holds the construction parameters of a discriminator.
type DiscriminatorConfig struct {
	// VectorDim is the number of message elements to decode; the output
	// vector has VectorDim+1 entries, the extra one scoring no-signal.
	VectorDim int `json:"vector_dim"`

	// R is the number of downsampling stages; the input image side is 2^R.
	R int `json:"r"`

	// FirstChannels is the filter count of the stem convolution. The stage
	// filter count doubles after each downsampling stage.
	FirstChannels int `json:"first_channels"`

	// Channels is the number of input image channels.
	Channels int `json:"channels"`
}

// DefaultGeneratorConfig returns the reference configuration: 32-element
// messages rendered as 16x16 grayscale images.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{VectorDim: 32, R: 4, LastChannels: 8, Channels: 1}
}

// DefaultDiscriminatorConfig returns the dual of DefaultGeneratorConfig.
func DefaultDiscriminatorConfig() DiscriminatorConfig {
	return DiscriminatorConfig{VectorDim: 32, R: 4, FirstChannels: 8, Channels: 1}
}

func (c GeneratorConfig) validate() error {
	if c.VectorDim < 1 {
		return fmt.Errorf("vector dim must be at least 1, got %d", c.VectorDim)
	}
	if c.R < 1 {
		return fmt.Errorf("R must be at least 1, got %d", c.R)
	}
	if c.LastChannels < 1 {
		return fmt.Errorf("last channels must be at least 1, got %d", c.LastChannels)
	}
	if c.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", c.Channels)
	}
	return nil
}

func (c DiscriminatorConfig) validate() error {
	if c.VectorDim < 1 {
		return fmt.Errorf("vector dim must be at least 1, got %d", c.VectorDim)
	}
	if c.R < 1 {
		return fmt.Errorf("R must be at least 1, got %d", c.R)
	}
	if c.FirstChannels < 1 {
		return fmt.Errorf("first channels must be at least 1, got %d", c.FirstChannels)
	}
	if c.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", c.Channels)
	}
	return nil
}

// NewGenerator builds a generator model. It takes a length-VectorDim message
// vector and constructs a (2^R, 2^R, Channels) image with values in [0,1].
//
// The vector is reshaped into a 1x1 feature map with VectorDim channels and
// projected by a one-by-one stem block to LastChannels*2^R filters. Each of
// the R stages then halves the filter count: a deconv block doubles the
// spatial scale, a parallel one-by-one block projects its output, and the two
// branches are summed. A final sigmoid block with Channels filters produces
// the image.
func NewGenerator(cfg GeneratorConfig) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("generator config: %w", err)
	}

	side := 1 << cfg.R

	m := NewModel("generator", cfg.VectorDim)
	m.OutputSize = cfg.Channels * side * side

	// 1-d feature map with VectorDim channels
	m.addReshape("reshape", cfg.VectorDim)

	filters := cfg.LastChannels << cfg.R
	m.addConvBlock(filters, "stem", 0, convBlockOpts{oneByOne: true})
	m.TrunkFilters = append(m.TrunkFilters, filters)

	filters /= 2
	for r := 1; r <= cfg.R; r++ {
		pre := m.addDeconvBlock(filters, "deconv_block", r)
		m.addConvBlock(filters, "conv_1by1", r, convBlockOpts{oneByOne: true})
		m.addResidualJoin(fmt.Sprintf("add_%d", r), pre)
		m.TrunkFilters = append(m.TrunkFilters, filters)
		filters /= 2
	}

	m.addConvBlock(cfg.Channels, "prediction_conv", 0, convBlockOpts{sigmoid: true})

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	return m, nil
}

// NewDiscriminator builds a discriminator model. It takes a (2^R, 2^R,
// Channels) image and forms a VectorDim+1 prediction vector.
//
// A stem block projects the image to FirstChannels filters. Each of the R
// stages then doubles the filter count: a stride-2 block downsamples the
// feature map, a one-by-one block projects its output, and the two are
// summed. Global average pooling collapses the spatial grid and a dense
// layer projects to VectorDim+1 raw scores.
//
// The prediction has no activation function, and the final element of the
// vector represents noise (no signal).
func NewDiscriminator(cfg DiscriminatorConfig) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("discriminator config: %w", err)
	}

	side := 1 << cfg.R

	m := NewModel("discriminator", cfg.Channels*side*side)
	m.OutputSize = cfg.VectorDim + 1
	m.InputHeight = side
	m.InputWidth = side
	m.InputChannels = cfg.Channels

	m.addConvBlock(cfg.FirstChannels, "stem", 0, convBlockOpts{})
	m.TrunkFilters = append(m.TrunkFilters, cfg.FirstChannels)

	filters := cfg.FirstChannels * 2
	for r := 1; r <= cfg.R; r++ {
		pre := m.addConvBlock(filters, "conv_block", r, convBlockOpts{pooling: true})
		m.addConvBlock(filters, "conv_1by1", r, convBlockOpts{oneByOne: true})
		m.addResidualJoin(fmt.Sprintf("add_%d", r), pre)
		m.TrunkFilters = append(m.TrunkFilters, filters)
		filters *= 2
	}

	m.addGlobalAvgPool("prediction_GAP")
	m.addDense("prediction", cfg.VectorDim+1, ActivationLinear)

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("discriminator: %w", err)
	}
	return m, nil
}

// Options carries the shared model settings of a command-line driver, with a
// single filter width applied to both models.
type Options struct {
	VectorDim  int
	R          int
	NumFilters int
	Channels   int
}

// NewGeneratorFromOptions builds a generator from driver options, using
// NumFilters as the last-stage channel count.
func NewGeneratorFromOptions(opt Options) (*Model, error) {
	return NewGenerator(GeneratorConfig{
		VectorDim:    opt.VectorDim,
		R:            opt.R,
		LastChannels: opt.NumFilters,
		Channels:     opt.Channels,
	})
}

// NewDiscriminatorFromOptions builds a discriminator from driver options,
// using NumFilters as the stem filter count.
func NewDiscriminatorFromOptions(opt Options) (*Model, error) {
	return NewDiscriminator(DiscriminatorConfig{
		VectorDim:     opt.VectorDim,
		R:             opt.R,
		FirstChannels: opt.NumFilters,
		Channels:      opt.Channels,
	})
}

// validate checks the assembled layer graph: unique layer names, a
// consistent shape chain from model input to model output, and resolvable
// residual joins. Construction either fully succeeds or fails outright.
func (m *Model) validate() error {
	names := make(map[string]int, len(m.Layers))
	for i := range m.Layers {
		name := m.Layers[i].Name
		if name == "" {
			return fmt.Errorf("layer %d has no name", i)
		}
		if prev, ok := names[name]; ok {
			return fmt.Errorf("duplicate layer name %q at layers %d and %d", name, prev, i)
		}
		names[name] = i
	}

	if len(m.Layers) == 0 {
		return fmt.Errorf("model has no layers")
	}

	for i := range m.Layers {
		cfg := &m.Layers[i]

		want := m.InputSize
		if i > 0 {
			want = layerOutputSize(&m.Layers[i-1])
		}
		if got := layerInputSize(cfg); got != want {
			return fmt.Errorf("layer %d (%s): input size %d does not match previous output size %d",
				i, cfg.Name, got, want)
		}

		if cfg.Type == LayerAdd {
			if cfg.SkipFrom < 0 || cfg.SkipFrom >= i {
				return fmt.Errorf("layer %d (%s): skip source %d out of range", i, cfg.Name, cfg.SkipFrom)
			}
			skipSize := layerOutputSize(&m.Layers[cfg.SkipFrom])
			mainSize := layerOutputSize(&m.Layers[i-1])
			if skipSize != mainSize {
				return fmt.Errorf("layer %d (%s): branch sizes %d and %d do not match",
					i, cfg.Name, mainSize, skipSize)
			}
		}
	}

	if got := layerOutputSize(&m.Layers[len(m.Layers)-1]); got != m.OutputSize {
		return fmt.Errorf("final layer output size %d does not match model output size %d",
			got, m.OutputSize)
	}

	return nil
}
