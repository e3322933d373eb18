package nn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// bundleType identifies glyphnet bundle files. LoadBundle rejects anything
// else so unrelated JSON is not silently misread as a model.
const bundleType = "glyphnet/bundle"

// weightsFormat names the weight encoding inside a bundle: the WeightsData
// struct marshalled to JSON, then base64-encoded.
const weightsFormat = "jsonModelB64"

// ModelBundle is the on-disk container. One file can hold several models, so
// a generator/discriminator pair trained together ships as a single artifact.
type ModelBundle struct {
	Type    string       `json:"type"`
	Version int          `json:"version"`
	Models  []SavedModel `json:"models"`
}

// SavedModel pairs a model's architecture with its encoded weights.
type SavedModel struct {
	ID      string         `json:"id"`
	Config  ModelConfig    `json:"cfg"`
	Weights EncodedWeights `json:"weights"`
}

// ModelConfig describes an architecture without weights. It is also the
// format BuildModelFromJSON accepts, so new variants can be defined as plain
// JSON and built with fresh weights.
type ModelConfig struct {
	Name          string            `json:"name"`
	InputSize     int               `json:"input_size"`
	OutputSize    int               `json:"output_size"`
	BatchSize     int               `json:"batch_size,omitempty"`
	InputHeight   int               `json:"input_height,omitempty"`
	InputWidth    int               `json:"input_width,omitempty"`
	InputChannels int               `json:"input_channels,omitempty"`
	TrunkFilters  []int             `json:"trunk_filters,omitempty"`
	Layers        []LayerDefinition `json:"layers"`
}

// LayerDefinition describes one layer in a ModelConfig. Only the fields
// relevant to the layer's type are set; the rest are omitted from the JSON.
type LayerDefinition struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Activation string `json:"activation,omitempty"`

	InputChannels int `json:"input_channels,omitempty"`
	Filters       int `json:"filters,omitempty"`
	KernelSize    int `json:"kernel_size,omitempty"`
	Stride        int `json:"stride,omitempty"`
	Padding       int `json:"padding,omitempty"`
	InputHeight   int `json:"input_height,omitempty"`
	InputWidth    int `json:"input_width,omitempty"`
	OutputHeight  int `json:"output_height,omitempty"`
	OutputWidth   int `json:"output_width,omitempty"`

	InputSize  int `json:"input_size,omitempty"`
	OutputSize int `json:"output_size,omitempty"`

	Momentum float32 `json:"momentum,omitempty"`
	Epsilon  float32 `json:"epsilon,omitempty"`

	SkipFrom int `json:"skip_from,omitempty"`
}

// EncodedWeights carries all layer weights as one base64 blob so the bundle
// stays a single JSON file whose config half is still human-readable.
type EncodedWeights struct {
	Format string `json:"fmt"`
	Data   string `json:"data"`
}

// WeightsData is the decoded form of EncodedWeights.Data.
type WeightsData struct {
	Type   string         `json:"type"`
	Layers []LayerWeights `json:"layers"`
}

// LayerWeights holds the tensors of one layer, parallel to the config's
// Layers slice. Parameter-free layers serialize as empty objects.
type LayerWeights struct {
	Kernel         []float32 `json:"kernel,omitempty"`
	Bias           []float32 `json:"bias,omitempty"`
	Gamma          []float32 `json:"gamma,omitempty"`
	Beta           []float32 `json:"beta,omitempty"`
	MovingMean     []float32 `json:"moving_mean,omitempty"`
	MovingVariance []float32 `json:"moving_variance,omitempty"`
}

// SaveModel saves a single model to a bundle file under the given ID.
func (m *Model) SaveModel(filename string, modelID string) error {
	bundle := ModelBundle{
		Type:    bundleType,
		Version: 1,
		Models:  []SavedModel{},
	}

	savedModel, err := m.SerializeModel(modelID)
	if err != nil {
		return fmt.Errorf("failed to serialize model %s: %w", modelID, err)
	}
	bundle.Models = append(bundle.Models, savedModel)

	return bundle.SaveToFile(filename)
}

// SaveBundle saves several models into one bundle file, keyed by ID. Models
// are written in ID order so the output is deterministic.
func SaveBundle(filename string, models map[string]*Model) error {
	bundle, err := bundleModels(models)
	if err != nil {
		return err
	}
	return bundle.SaveToFile(filename)
}

// SaveBundleToString renders a bundle as a JSON string, for embedders that
// manage their own storage.
func SaveBundleToString(models map[string]*Model) (string, error) {
	bundle, err := bundleModels(models)
	if err != nil {
		return "", err
	}
	return bundle.SaveToString()
}

func bundleModels(models map[string]*Model) (*ModelBundle, error) {
	bundle := &ModelBundle{
		Type:    bundleType,
		Version: 1,
		Models:  []SavedModel{},
	}

	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		savedModel, err := models[id].SerializeModel(id)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize model %s: %w", id, err)
		}
		bundle.Models = append(bundle.Models, savedModel)
	}

	return bundle, nil
}

// SerializeModel converts the model to a SavedModel with base64-encoded
// weights.
func (m *Model) SerializeModel(modelID string) (SavedModel, error) {
	config := ModelConfig{
		Name:          m.Name,
		InputSize:     m.InputSize,
		OutputSize:    m.OutputSize,
		BatchSize:     m.BatchSize,
		InputHeight:   m.InputHeight,
		InputWidth:    m.InputWidth,
		InputChannels: m.InputChannels,
		TrunkFilters:  append([]int(nil), m.TrunkFilters...),
		Layers:        []LayerDefinition{},
	}

	weightsData := WeightsData{
		Type:   "float32",
		Layers: []LayerWeights{},
	}

	for i := range m.Layers {
		layerConfig := &m.Layers[i]

		layerDef := LayerDefinition{
			Name: layerConfig.Name,
			Type: layerTypeString(layerConfig.Type),
		}
		layerWeights := LayerWeights{}

		switch layerConfig.Type {
		case LayerReshape:
			layerDef.InputSize = layerConfig.InputSize
			layerDef.OutputSize = layerConfig.OutputSize

		case LayerConv2D, LayerDeconv2D:
			layerDef.InputChannels = layerConfig.InputChannels
			layerDef.Filters = layerConfig.Filters
			layerDef.KernelSize = layerConfig.KernelSize
			layerDef.Stride = layerConfig.Stride
			layerDef.Padding = layerConfig.Padding
			layerDef.InputHeight = layerConfig.InputHeight
			layerDef.InputWidth = layerConfig.InputWidth
			layerDef.OutputHeight = layerConfig.OutputHeight
			layerDef.OutputWidth = layerConfig.OutputWidth
			layerWeights.Kernel = layerConfig.Kernel
			layerWeights.Bias = layerConfig.Bias

		case LayerBatchNorm:
			layerDef.InputChannels = layerConfig.InputChannels
			layerDef.InputHeight = layerConfig.InputHeight
			layerDef.InputWidth = layerConfig.InputWidth
			layerDef.Momentum = layerConfig.Momentum
			layerDef.Epsilon = layerConfig.Epsilon
			layerWeights.Gamma = layerConfig.Gamma
			layerWeights.Beta = layerConfig.Beta
			layerWeights.MovingMean = layerConfig.MovingMean
			layerWeights.MovingVariance = layerConfig.MovingVariance

		case LayerActivation:
			layerDef.Activation = activationString(layerConfig.Activation)
			layerDef.InputChannels = layerConfig.InputChannels
			layerDef.InputHeight = layerConfig.InputHeight
			layerDef.InputWidth = layerConfig.InputWidth

		case LayerGlobalAvgPool:
			layerDef.InputChannels = layerConfig.InputChannels
			layerDef.InputHeight = layerConfig.InputHeight
			layerDef.InputWidth = layerConfig.InputWidth
			layerDef.OutputSize = layerConfig.OutputSize

		case LayerDense:
			layerDef.Activation = activationString(layerConfig.Activation)
			layerDef.InputSize = layerConfig.InputSize
			layerDef.OutputSize = layerConfig.OutputSize
			layerWeights.Kernel = layerConfig.Kernel
			layerWeights.Bias = layerConfig.Bias

		case LayerAdd:
			layerDef.InputChannels = layerConfig.InputChannels
			layerDef.InputHeight = layerConfig.InputHeight
			layerDef.InputWidth = layerConfig.InputWidth
			layerDef.SkipFrom = layerConfig.SkipFrom

		default:
			return SavedModel{}, fmt.Errorf("unknown layer type: %v", layerConfig.Type)
		}

		config.Layers = append(config.Layers, layerDef)
		weightsData.Layers = append(weightsData.Layers, layerWeights)
	}

	weightsJSON, err := json.Marshal(weightsData)
	if err != nil {
		return SavedModel{}, fmt.Errorf("failed to marshal weights: %w", err)
	}

	encodedWeights := EncodedWeights{
		Format: weightsFormat,
		Data:   base64.StdEncoding.EncodeToString(weightsJSON),
	}

	return SavedModel{
		ID:      modelID,
		Config:  config,
		Weights: encodedWeights,
	}, nil
}

// LoadModel loads a single model from a bundle file by ID.
func LoadModel(filename string, modelID string) (*Model, error) {
	bundle, err := LoadBundle(filename)
	if err != nil {
		return nil, err
	}

	for _, savedModel := range bundle.Models {
		if savedModel.ID == modelID {
			return DeserializeModel(savedModel)
		}
	}

	return nil, fmt.Errorf("model %s not found in bundle", modelID)
}

// LoadBundle loads a model bundle from a file.
func LoadBundle(filename string) (*ModelBundle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return LoadBundleFromString(string(data))
}

// LoadBundleFromString loads a model bundle from a JSON string. Useful when
// a bundle is embedded in code or fetched over the network.
func LoadBundleFromString(jsonString string) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := json.Unmarshal([]byte(jsonString), &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundle: %w", err)
	}

	if bundle.Type != bundleType {
		return nil, fmt.Errorf("invalid bundle type: %s", bundle.Type)
	}

	return &bundle, nil
}

// LoadModelFromString loads a single model from a bundle JSON string by ID.
func LoadModelFromString(jsonString string, modelID string) (*Model, error) {
	bundle, err := LoadBundleFromString(jsonString)
	if err != nil {
		return nil, err
	}

	for _, savedModel := range bundle.Models {
		if savedModel.ID == modelID {
			return DeserializeModel(savedModel)
		}
	}

	return nil, fmt.Errorf("model %s not found in bundle", modelID)
}

// SaveToString converts the bundle to an indented JSON string.
func (b *ModelBundle) SaveToString() (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return string(data), nil
}

// SaveToFile writes the bundle to disk as indented JSON.
func (b *ModelBundle) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// DeserializeModel rebuilds a Model from a SavedModel, restoring weights and
// running statistics exactly. The restored model forwards identically to the
// one that was saved.
func DeserializeModel(saved SavedModel) (*Model, error) {
	config := saved.Config

	model := NewModel(config.Name, config.InputSize)
	model.OutputSize = config.OutputSize
	if config.BatchSize > 0 {
		model.BatchSize = config.BatchSize
	}
	model.InputHeight = config.InputHeight
	model.InputWidth = config.InputWidth
	model.InputChannels = config.InputChannels
	model.TrunkFilters = append([]int(nil), config.TrunkFilters...)

	weightsJSON, err := base64.StdEncoding.DecodeString(saved.Weights.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}

	var weightsData WeightsData
	if err := json.Unmarshal(weightsJSON, &weightsData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}

	if len(config.Layers) != len(weightsData.Layers) {
		return nil, fmt.Errorf("layer count mismatch: config=%d, weights=%d",
			len(config.Layers), len(weightsData.Layers))
	}

	for i, layerDef := range config.Layers {
		layerWeights := weightsData.Layers[i]

		var layerConfig LayerConfig

		switch layerDef.Type {
		case "reshape":
			layerConfig = LayerConfig{
				Type:         LayerReshape,
				InputSize:    layerDef.InputSize,
				OutputSize:   layerDef.OutputSize,
				OutputHeight: 1,
				OutputWidth:  1,
				Filters:      layerDef.OutputSize,
			}

		case "conv2d", "deconv2d":
			layerType := LayerConv2D
			if layerDef.Type == "deconv2d" {
				layerType = LayerDeconv2D
			}
			layerConfig = LayerConfig{
				Type:          layerType,
				InputChannels: layerDef.InputChannels,
				Filters:       layerDef.Filters,
				KernelSize:    layerDef.KernelSize,
				Stride:        layerDef.Stride,
				Padding:       layerDef.Padding,
				InputHeight:   layerDef.InputHeight,
				InputWidth:    layerDef.InputWidth,
				OutputHeight:  layerDef.OutputHeight,
				OutputWidth:   layerDef.OutputWidth,
				Kernel:        layerWeights.Kernel,
				Bias:          layerWeights.Bias,
			}
			wantKernel := layerDef.Filters * layerDef.InputChannels * layerDef.KernelSize * layerDef.KernelSize
			if len(layerWeights.Kernel) != wantKernel {
				return nil, fmt.Errorf("layer %s: kernel length %d, want %d",
					layerDef.Name, len(layerWeights.Kernel), wantKernel)
			}

		case "batchnorm":
			layerConfig = LayerConfig{
				Type:           LayerBatchNorm,
				InputChannels:  layerDef.InputChannels,
				InputHeight:    layerDef.InputHeight,
				InputWidth:     layerDef.InputWidth,
				OutputHeight:   layerDef.InputHeight,
				OutputWidth:    layerDef.InputWidth,
				Filters:        layerDef.InputChannels,
				Momentum:       layerDef.Momentum,
				Epsilon:        layerDef.Epsilon,
				Gamma:          layerWeights.Gamma,
				Beta:           layerWeights.Beta,
				MovingMean:     layerWeights.MovingMean,
				MovingVariance: layerWeights.MovingVariance,
			}
			if len(layerWeights.Gamma) != layerDef.InputChannels {
				return nil, fmt.Errorf("layer %s: gamma length %d, want %d",
					layerDef.Name, len(layerWeights.Gamma), layerDef.InputChannels)
			}

		case "activation":
			layerConfig = LayerConfig{
				Type:          LayerActivation,
				Activation:    stringToActivation(layerDef.Activation),
				InputChannels: layerDef.InputChannels,
				InputHeight:   layerDef.InputHeight,
				InputWidth:    layerDef.InputWidth,
				OutputHeight:  layerDef.InputHeight,
				OutputWidth:   layerDef.InputWidth,
				Filters:       layerDef.InputChannels,
			}

		case "global_avg_pool":
			layerConfig = LayerConfig{
				Type:          LayerGlobalAvgPool,
				InputChannels: layerDef.InputChannels,
				InputHeight:   layerDef.InputHeight,
				InputWidth:    layerDef.InputWidth,
				OutputSize:    layerDef.OutputSize,
			}

		case "dense":
			layerConfig = LayerConfig{
				Type:       LayerDense,
				Activation: stringToActivation(layerDef.Activation),
				InputSize:  layerDef.InputSize,
				OutputSize: layerDef.OutputSize,
				Kernel:     layerWeights.Kernel,
				Bias:       layerWeights.Bias,
			}
			if len(layerWeights.Kernel) != layerDef.InputSize*layerDef.OutputSize {
				return nil, fmt.Errorf("layer %s: kernel length %d, want %d",
					layerDef.Name, len(layerWeights.Kernel), layerDef.InputSize*layerDef.OutputSize)
			}

		case "add":
			layerConfig = LayerConfig{
				Type:          LayerAdd,
				InputChannels: layerDef.InputChannels,
				InputHeight:   layerDef.InputHeight,
				InputWidth:    layerDef.InputWidth,
				OutputHeight:  layerDef.InputHeight,
				OutputWidth:   layerDef.InputWidth,
				Filters:       layerDef.InputChannels,
				SkipFrom:      layerDef.SkipFrom,
			}

		default:
			return nil, fmt.Errorf("unknown layer type: %s", layerDef.Type)
		}

		layerConfig.Name = layerDef.Name
		model.addLayer(layerConfig)
	}

	if err := model.validate(); err != nil {
		return nil, fmt.Errorf("restored model is inconsistent: %w", err)
	}

	// Restored models start in inference mode so batchnorm uses the saved
	// moving statistics and a reload forwards identically to the original.
	model.SetTraining(false)

	return model, nil
}

// BuildModelFromJSON creates a model with freshly initialized weights from a
// JSON architecture description. The JSON structure matches ModelConfig, so
// a saved bundle's cfg block doubles as a buildable architecture file.
func BuildModelFromJSON(jsonConfig string) (*Model, error) {
	var config ModelConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	model := NewModel(config.Name, config.InputSize)
	model.OutputSize = config.OutputSize
	if config.BatchSize > 0 {
		model.BatchSize = config.BatchSize
	}
	model.InputHeight = config.InputHeight
	model.InputWidth = config.InputWidth
	model.InputChannels = config.InputChannels
	model.TrunkFilters = append([]int(nil), config.TrunkFilters...)

	for i, layerDef := range config.Layers {
		layerConfig, err := buildLayerConfig(layerDef)
		if err != nil {
			return nil, fmt.Errorf("failed to build layer %d (%s): %w", i, layerDef.Name, err)
		}
		model.addLayer(layerConfig)
	}

	if err := model.validate(); err != nil {
		return nil, err
	}

	return model, nil
}

// BuildModelFromFile creates a model from a JSON architecture file.
func BuildModelFromFile(filename string) (*Model, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return BuildModelFromJSON(string(data))
}

// buildLayerConfig constructs a freshly initialized LayerConfig from a
// LayerDefinition.
func buildLayerConfig(def LayerDefinition) (LayerConfig, error) {
	var config LayerConfig

	switch def.Type {
	case "reshape":
		size := def.OutputSize
		if size == 0 {
			size = def.InputSize
		}
		config = InitReshapeLayer(size)

	case "conv2d":
		config = InitConv2DLayer(
			def.InputHeight, def.InputWidth, def.InputChannels,
			def.KernelSize, def.Stride, def.Padding, def.Filters,
		)

	case "deconv2d":
		config = InitDeconv2DLayer(
			def.InputHeight, def.InputWidth, def.InputChannels,
			def.KernelSize, def.Stride, def.Padding, def.Filters,
		)

	case "batchnorm":
		config = InitBatchNormLayer(def.InputHeight, def.InputWidth, def.InputChannels)
		if def.Momentum != 0 {
			config.Momentum = def.Momentum
		}
		if def.Epsilon != 0 {
			config.Epsilon = def.Epsilon
		}

	case "activation":
		config = InitActivationLayer(def.InputHeight, def.InputWidth, def.InputChannels,
			stringToActivation(def.Activation))

	case "global_avg_pool":
		config = InitGlobalAvgPoolLayer(def.InputHeight, def.InputWidth, def.InputChannels)

	case "dense":
		config = InitDenseLayer(def.InputSize, def.OutputSize, stringToActivation(def.Activation))

	case "add":
		config = InitAddLayer(def.InputHeight, def.InputWidth, def.InputChannels, def.SkipFrom)

	default:
		return LayerConfig{}, fmt.Errorf("unknown layer type: %s", def.Type)
	}

	config.Name = def.Name
	return config, nil
}

// stringToActivation parses the canonical activation names written by
// activationString. Unknown names fall back to linear.
func stringToActivation(s string) ActivationType {
	switch s {
	case "swish":
		return ActivationSwish
	case "sigmoid":
		return ActivationSigmoid
	default:
		return ActivationLinear
	}
}
