package nn

import (
	"github.com/openfluke/webgpu/wgpu"
)

// ============================================================================
// Core Types
// ============================================================================

// ActivationType identifies the nonlinearity applied by an activation layer.
type ActivationType int

const (
	ActivationLinear ActivationType = iota // identity (prediction heads)
	ActivationSwish                        // x * sigmoid(x)
	ActivationSigmoid
)

// LayerType identifies the kind of computation a layer performs.
type LayerType int

const (
	LayerReshape LayerType = iota
	LayerConv2D
	LayerDeconv2D
	LayerBatchNorm
	LayerActivation
	LayerGlobalAvgPool
	LayerDense
	LayerAdd
)

// LayerConfig describes a single node of a model graph. Weights live directly
// on the config as flat float32 slices; feature maps are NCHW throughout.
type LayerConfig struct {
	Type       LayerType
	Name       string
	Activation ActivationType

	// Feature-map geometry (conv/deconv/batchnorm/activation/pool/add)
	InputHeight   int
	InputWidth    int
	InputChannels int
	OutputHeight  int
	OutputWidth   int
	Filters       int // output channels for conv/deconv

	// Convolution parameters
	KernelSize int
	Stride     int
	Padding    int

	// Flat geometry (reshape/dense/pool output)
	InputSize  int
	OutputSize int

	// Learnable parameters
	Kernel []float32 // conv/deconv: [filters][inC][k][k]; dense: [in*out]
	Bias   []float32
	Gamma  []float32 // batchnorm scale
	Beta   []float32 // batchnorm shift

	// BatchNorm running statistics (non-trainable) and constants
	MovingMean     []float32
	MovingVariance []float32
	Momentum       float32
	Epsilon        float32

	// Residual join: the output of layer index SkipFrom is the second addend
	SkipFrom int

	// Optional per-layer observer for forward/backward events
	Observer LayerObserver
}

// layerInputSize returns the flattened per-sample input length of a layer.
func layerInputSize(cfg *LayerConfig) int {
	switch cfg.Type {
	case LayerReshape, LayerDense:
		return cfg.InputSize
	default:
		return cfg.InputChannels * cfg.InputHeight * cfg.InputWidth
	}
}

// layerOutputSize returns the flattened per-sample output length of a layer.
func layerOutputSize(cfg *LayerConfig) int {
	switch cfg.Type {
	case LayerReshape, LayerDense, LayerGlobalAvgPool:
		return cfg.OutputSize
	case LayerConv2D, LayerDeconv2D:
		return cfg.Filters * cfg.OutputHeight * cfg.OutputWidth
	default:
		// BatchNorm, Activation, Add preserve their input shape
		return cfg.InputChannels * cfg.InputHeight * cfg.InputWidth
	}
}

// layerTypeString converts a LayerType to its canonical string form, used by
// the observer events, the summary table and the bundle format.
func layerTypeString(lt LayerType) string {
	switch lt {
	case LayerReshape:
		return "reshape"
	case LayerConv2D:
		return "conv2d"
	case LayerDeconv2D:
		return "deconv2d"
	case LayerBatchNorm:
		return "batchnorm"
	case LayerActivation:
		return "activation"
	case LayerGlobalAvgPool:
		return "global_avg_pool"
	case LayerDense:
		return "dense"
	case LayerAdd:
		return "add"
	default:
		return "unknown"
	}
}

// activationString converts an ActivationType to its canonical string form.
func activationString(a ActivationType) string {
	switch a {
	case ActivationSwish:
		return "swish"
	case ActivationSigmoid:
		return "sigmoid"
	default:
		return "linear"
	}
}

// Model is a sequential layer stack with optional residual joins.
// Data flows through Layers in order; an Add layer additionally pulls the
// stored output of an earlier layer (SkipFrom) as its second operand.
type Model struct {
	Name       string
	InputSize  int // flattened per-sample input length
	OutputSize int // flattened per-sample output length
	BatchSize  int
	Training   bool // batchnorm layers use batch statistics when true

	// Input feature-map geometry for models whose first layer is a
	// convolution; zero for models taking flat vectors
	InputHeight   int
	InputWidth    int
	InputChannels int

	// TrunkFilters records the channel count after the stem and after each
	// resolution stage, in network order. A generator/discriminator pair built
	// from mirrored settings produces sequences that are exact reverses of
	// one another.
	TrunkFilters []int

	Layers     []LayerConfig
	deviceInfo *GPUDeviceInfo
	gpuWarned  bool

	// Storage for intermediate activations (needed for backward pass)
	// activations[0] = input, activations[i] = output of layer i-1
	activations [][]float32

	// Pre-activation values per layer: the linear output for dense layers,
	// the raw input for activation layers, the [mean|variance] pair used in
	// the forward pass for batchnorm layers.
	preActivations [][]float32

	// Parameter gradient storage, filled by Backward, consumed by optimizers
	kernelGradients [][]float32
	biasGradients   [][]float32
	gammaGradients  [][]float32
	betaGradients   [][]float32
}

// GPUDeviceInfo holds WebGPU resources for GPU execution
type GPUDeviceInfo struct {
	Device     *wgpu.Device
	Queue      *wgpu.Queue
	WorkgroupX uint32
	release    func()
}

// NewModel creates an empty model. Layers are appended through the block
// builders; call validate before use.
func NewModel(name string, inputSize int) *Model {
	return &Model{
		Name:      name,
		InputSize: inputSize,
		BatchSize: 1,
		Training:  true,
		// One slot per layer plus this one for the model input
		activations: make([][]float32, 1),
	}
}

// addLayer appends a layer and grows the per-layer storage alongside it.
func (m *Model) addLayer(cfg LayerConfig) int {
	m.Layers = append(m.Layers, cfg)
	m.activations = append(m.activations, nil)
	m.preActivations = append(m.preActivations, nil)
	m.kernelGradients = append(m.kernelGradients, nil)
	m.biasGradients = append(m.biasGradients, nil)
	m.gammaGradients = append(m.gammaGradients, nil)
	m.betaGradients = append(m.betaGradients, nil)
	return len(m.Layers) - 1
}

// TotalLayers returns the number of layers in the model.
func (m *Model) TotalLayers() int {
	return len(m.Layers)
}

// Layer returns the layer with the given name, or nil if absent.
func (m *Model) Layer(name string) *LayerConfig {
	for i := range m.Layers {
		if m.Layers[i].Name == name {
			return &m.Layers[i]
		}
	}
	return nil
}

// LayerIndex returns the index of the named layer, or -1 if absent.
func (m *Model) LayerIndex(name string) int {
	for i := range m.Layers {
		if m.Layers[i].Name == name {
			return i
		}
	}
	return -1
}

// SetTraining switches batchnorm layers between batch statistics (true) and
// moving statistics (false).
func (m *Model) SetTraining(training bool) {
	m.Training = training
}

// KernelGradients returns the kernel gradients for all layers
func (m *Model) KernelGradients() [][]float32 {
	return m.kernelGradients
}

// BiasGradients returns the bias gradients for all layers
func (m *Model) BiasGradients() [][]float32 {
	return m.biasGradients
}

// GammaGradients returns the batchnorm scale gradients for all layers
func (m *Model) GammaGradients() [][]float32 {
	return m.gammaGradients
}

// BetaGradients returns the batchnorm shift gradients for all layers
func (m *Model) BetaGradients() [][]float32 {
	return m.betaGradients
}

// ReleaseGPU releases GPU resources
func (m *Model) ReleaseGPU() {
	if m.deviceInfo != nil {
		if m.deviceInfo.release != nil {
			m.deviceInfo.release()
		}
		m.deviceInfo = nil
	}
}
