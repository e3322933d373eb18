package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTinyPair(t *testing.T) (*Model, *Model) {
	t.Helper()
	g, err := NewGenerator(GeneratorConfig{VectorDim: 4, R: 1, LastChannels: 2, Channels: 1})
	require.NoError(t, err)
	d, err := NewDiscriminator(DiscriminatorConfig{VectorDim: 4, R: 1, FirstChannels: 2, Channels: 1})
	require.NoError(t, err)
	return g, d
}

func TestDefaultTrainerConfig(t *testing.T) {
	cfg := DefaultTrainerConfig()

	require.Equal(t, 200, cfg.Steps)
	require.Equal(t, 16, cfg.BatchSize)
	require.Equal(t, float32(0.01), cfg.LearningRate)
	require.Equal(t, "adamw", cfg.Optimizer)
	require.Equal(t, float32(0.9), cfg.Beta1)
	require.Equal(t, float32(0.999), cfg.Beta2)
	require.Equal(t, float32(0.01), cfg.WeightDecay)
	require.Equal(t, float32(5.0), cfg.GradientClip)
	require.Equal(t, float32(0.5), cfg.NoiseRatio)
	require.Equal(t, "one-hot", cfg.Encoding)
	require.Equal(t, uint64(42), cfg.Seed)
}

func TestNewTrainerValidation(t *testing.T) {
	g, d := newTinyPair(t)
	okCfg := &TrainerConfig{Steps: 1, BatchSize: 1, Encoding: "one-hot"}

	_, err := NewTrainer(nil, d, okCfg)
	require.ErrorContains(t, err, "trainer needs both models")

	bigG, err := NewGenerator(GeneratorConfig{VectorDim: 4, R: 2, LastChannels: 2, Channels: 1})
	require.NoError(t, err)
	_, err = NewTrainer(bigG, d, okCfg)
	require.ErrorContains(t, err, "generator output size")

	wideD, err := NewDiscriminator(DiscriminatorConfig{VectorDim: 5, R: 1, FirstChannels: 2, Channels: 1})
	require.NoError(t, err)
	_, err = NewTrainer(g, wideD, okCfg)
	require.ErrorContains(t, err, "discriminator output size")

	_, err = NewTrainer(g, d, &TrainerConfig{Steps: 0, BatchSize: 1, Encoding: "one-hot"})
	require.ErrorContains(t, err, "steps must be at least 1")

	_, err = NewTrainer(g, d, &TrainerConfig{Steps: 1, BatchSize: 0, Encoding: "one-hot"})
	require.ErrorContains(t, err, "batch size must be at least 1")

	_, err = NewTrainer(g, d, &TrainerConfig{Steps: 1, BatchSize: 1, Encoding: "hex"})
	require.ErrorContains(t, err, `encoding "hex" not understood`)

	_, err = NewTrainer(g, d, &TrainerConfig{Steps: 1, BatchSize: 1, Encoding: "one-hot", Optimizer: "rmsprop"})
	require.ErrorContains(t, err, "unknown optimizer")
}

func TestNewTrainerNilConfigUsesDefaults(t *testing.T) {
	g, d := newTinyPair(t)

	tr, err := NewTrainer(g, d, nil)
	require.NoError(t, err)
	require.Equal(t, 200, tr.cfg.Steps)
}

func TestTrainTinyPair(t *testing.T) {
	g, d := newTinyPair(t)

	head := d.Layer("prediction")
	require.NotNil(t, head)
	before := append([]float32(nil), head.Kernel...)

	cfg := &TrainerConfig{
		Steps:        3,
		BatchSize:    4,
		LearningRate: 0.01,
		Optimizer:    "sgd",
		GradientClip: 5.0,
		NoiseRatio:   0.5,
		Encoding:     "one-hot",
		Seed:         7,
		Verbose:      false,
	}
	tr, err := NewTrainer(g, d, cfg)
	require.NoError(t, err)

	result, err := tr.Train()
	require.NoError(t, err)

	require.Equal(t, 3, result.Steps)
	require.Len(t, result.LossHistory, 3)
	require.Equal(t, result.LossHistory[2], result.FinalLoss)

	for i, loss := range result.LossHistory {
		require.Falsef(t, math.IsNaN(loss) || math.IsInf(loss, 0), "step %d loss %f", i, loss)
		require.GreaterOrEqualf(t, loss, 0.0, "step %d", i)
		require.LessOrEqual(t, result.BestLoss, loss)
	}

	// Training leaves both models in inference mode
	require.False(t, g.Training)
	require.False(t, d.Training)

	// The discriminator head must have moved
	changed := false
	for i := range before {
		if head.Kernel[i] != before[i] {
			changed = true
			break
		}
	}
	require.True(t, changed, "head weights unchanged after 3 steps")

	require.Greater(t, result.StepsPerSecond, 0.0)
}

func TestTrainWithoutNoisePass(t *testing.T) {
	g, d := newTinyPair(t)

	cfg := &TrainerConfig{
		Steps:        2,
		BatchSize:    2,
		LearningRate: 0.01,
		Optimizer:    "adamw",
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		NoiseRatio:   0,
		Encoding:     "binary",
		Seed:         11,
		Verbose:      false,
	}
	tr, err := NewTrainer(g, d, cfg)
	require.NoError(t, err)

	result, err := tr.Train()
	require.NoError(t, err)
	require.Len(t, result.LossHistory, 2)
}
