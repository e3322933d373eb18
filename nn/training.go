package nn

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
)

// TrainerConfig holds configuration for cooperative codec training
type TrainerConfig struct {
	Steps        int     // training steps, one fresh batch per step
	BatchSize    int     // messages per step
	LearningRate float32
	Optimizer    string  // "sgd" or "adamw"
	Momentum     float32 // SGD momentum (0 = plain SGD)
	Beta1        float32 // AdamW first-moment decay
	Beta2        float32 // AdamW second-moment decay
	WeightDecay  float32 // AdamW decoupled weight decay
	Epsilon      float32 // AdamW denominator epsilon
	GradientClip float32 // max global gradient norm (0 = no clipping)
	NoiseRatio   float32 // noise images per step as a fraction of BatchSize
	Encoding     string  // message scheme: "one-hot" or "binary"
	Seed         uint64  // sampling seed
	Verbose      bool
	LogEvery     int // print progress every N steps when verbose
}

// DefaultTrainerConfig returns sensible defaults
func DefaultTrainerConfig() *TrainerConfig {
	return &TrainerConfig{
		Steps:        200,
		BatchSize:    16,
		LearningRate: 0.01,
		Optimizer:    "adamw",
		Beta1:        0.9,
		Beta2:        0.999,
		WeightDecay:  0.01,
		Epsilon:      1e-8,
		GradientClip: 5.0,
		NoiseRatio:   0.5,
		Encoding:     "one-hot",
		Seed:         42,
		Verbose:      true,
		LogEvery:     20,
	}
}

// TrainingResult contains training statistics
type TrainingResult struct {
	Steps          int
	FinalLoss      float64
	BestLoss       float64
	LossHistory    []float64 // loss per step
	TotalTime      time.Duration
	StepsPerSecond float64
}

// Trainer optimizes a generator/discriminator pair cooperatively: the
// discriminator learns to decode the generator's glyphs on its first V
// channels and to raise the trailing no-signal flag on pure-noise images,
// while the generator learns, through the discriminator's input gradient, to
// paint glyphs the discriminator can decode.
type Trainer struct {
	G   *Model
	D   *Model
	cfg *TrainerConfig

	gOpt Optimizer
	dOpt Optimizer
	src  rand.Source

	vectorDim int
	side      int
	channels  int
}

// NewTrainer wires a generator/discriminator pair to a config, checking that
// the two models actually form a codec: the generator's image must fit the
// discriminator's input, and the discriminator must emit one score more than
// the generator consumes message elements.
func NewTrainer(g, d *Model, cfg *TrainerConfig) (*Trainer, error) {
	if cfg == nil {
		cfg = DefaultTrainerConfig()
	}

	if g == nil || d == nil {
		return nil, fmt.Errorf("trainer needs both models")
	}
	if g.OutputSize != d.InputSize {
		return nil, fmt.Errorf("generator output size %d does not match discriminator input size %d",
			g.OutputSize, d.InputSize)
	}
	if d.OutputSize != g.InputSize+1 {
		return nil, fmt.Errorf("discriminator output size %d is not vector dim %d + 1",
			d.OutputSize, g.InputSize)
	}
	if cfg.Steps < 1 {
		return nil, fmt.Errorf("steps must be at least 1, got %d", cfg.Steps)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	switch cfg.Encoding {
	case "one-hot", "binary":
	default:
		return nil, fmt.Errorf("encoding %q not understood", cfg.Encoding)
	}

	gOpt, err := newOptimizer(*cfg)
	if err != nil {
		return nil, err
	}
	dOpt, err := newOptimizer(*cfg)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		G:         g,
		D:         d,
		cfg:       cfg,
		gOpt:      gOpt,
		dOpt:      dOpt,
		src:       rand.NewSource(cfg.Seed),
		vectorDim: g.InputSize,
		side:      d.InputHeight,
		channels:  d.InputChannels,
	}, nil
}

// Train runs the cooperative loop. Each step samples a fresh message batch,
// renders it, decodes it, and updates both models; when NoiseRatio is set a
// second discriminator pass teaches the trailing channel to flag noise.
func (t *Trainer) Train() (*TrainingResult, error) {
	cfg := t.cfg

	t.G.SetTraining(true)
	t.D.SetTraining(true)

	result := &TrainingResult{
		BestLoss:    math.MaxFloat64,
		LossHistory: make([]float64, 0, cfg.Steps),
	}

	if cfg.Verbose {
		fmt.Printf("\n=== Training Configuration ===\n")
		fmt.Printf("Steps: %d\n", cfg.Steps)
		fmt.Printf("Batch Size: %d\n", cfg.BatchSize)
		fmt.Printf("Learning Rate: %.6f\n", cfg.LearningRate)
		fmt.Printf("Optimizer: %s\n", t.dOpt.Name())
		fmt.Printf("Encoding: %s\n", cfg.Encoding)
		fmt.Printf("Noise Ratio: %.2f\n", cfg.NoiseRatio)
		fmt.Println()
	}

	startTime := time.Now()

	for step := 0; step < cfg.Steps; step++ {
		stepLoss, err := t.trainStep()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}

		result.LossHistory = append(result.LossHistory, stepLoss)
		if stepLoss < result.BestLoss {
			result.BestLoss = stepLoss
		}

		if cfg.Verbose && cfg.LogEvery > 0 && (step+1)%cfg.LogEvery == 0 {
			fmt.Printf("  Step %d/%d - Loss: %.4f\n", step+1, cfg.Steps, stepLoss)
		}
	}

	result.Steps = cfg.Steps
	result.FinalLoss = result.LossHistory[len(result.LossHistory)-1]
	result.TotalTime = time.Since(startTime)
	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.StepsPerSecond = float64(cfg.Steps) / secs
	}

	t.G.SetTraining(false)
	t.D.SetTraining(false)

	if cfg.Verbose {
		fmt.Printf("\n✓ Training complete - Final Loss: %.4f, Best: %.4f (%.1f steps/s)\n",
			result.FinalLoss, result.BestLoss, result.StepsPerSecond)
	}

	return result, nil
}

// trainStep runs one glyph pass (updates both models) and, when configured,
// one noise pass (updates the discriminator only). Returns the combined loss.
func (t *Trainer) trainStep() (float64, error) {
	cfg := t.cfg
	batch := cfg.BatchSize
	v := t.vectorDim
	width := v + 1

	// Glyph pass: messages -> images -> scores
	msgs, err := Messages(cfg.Encoding, batch, v, t.src)
	if err != nil {
		return 0, err
	}

	glyphs, err := t.G.Forward(msgs, batch)
	if err != nil {
		return 0, fmt.Errorf("generator forward: %w", err)
	}

	scores, err := t.D.Forward(glyphs, batch)
	if err != nil {
		return 0, fmt.Errorf("discriminator forward: %w", err)
	}

	// Loss and output gradient: MSE over the V message channels plus
	// sigmoid cross-entropy on the trailing flag, target 0 (signal present).
	// Gradient convention: (O - T) / N per element, sigma(z) - y over N for
	// the flag logit.
	totalLoss := float32(0)
	dScores := make([]float32, len(scores))
	for i := 0; i < batch; i++ {
		for j := 0; j < v; j++ {
			diff := scores[i*width+j] - msgs[i*v+j]
			totalLoss += diff * diff
			dScores[i*width+j] = diff / float32(batch)
		}

		z := scores[i*width+v]
		p := sigmoidCPU(z)
		totalLoss += bce(0, p)
		dScores[i*width+v] = p / float32(batch)
	}

	gradGlyphs, err := t.D.Backward(dScores)
	if err != nil {
		return 0, fmt.Errorf("discriminator backward: %w", err)
	}
	if cfg.GradientClip > 0 {
		t.D.ClipGradients(cfg.GradientClip)
	}
	t.dOpt.Step(t.D, cfg.LearningRate)

	// The discriminator's input gradient is the generator's output gradient
	if _, err := t.G.Backward(gradGlyphs); err != nil {
		return 0, fmt.Errorf("generator backward: %w", err)
	}
	if cfg.GradientClip > 0 {
		t.G.ClipGradients(cfg.GradientClip)
	}
	t.gOpt.Step(t.G, cfg.LearningRate)

	stepLoss := float64(totalLoss) / float64(batch)

	// Noise pass: pure-noise images, flag target 1, message channels free
	noiseCount := int(float32(batch) * cfg.NoiseRatio)
	if noiseCount > 0 {
		noise := NoiseImages(noiseCount, t.channels, t.side, t.src)

		noiseScores, err := t.D.Forward(noise, noiseCount)
		if err != nil {
			return 0, fmt.Errorf("discriminator noise forward: %w", err)
		}

		noiseLoss := float32(0)
		dNoise := make([]float32, len(noiseScores))
		for i := 0; i < noiseCount; i++ {
			z := noiseScores[i*width+v]
			p := sigmoidCPU(z)
			noiseLoss += bce(1, p)
			dNoise[i*width+v] = (p - 1) / float32(noiseCount)
		}

		if _, err := t.D.Backward(dNoise); err != nil {
			return 0, fmt.Errorf("discriminator noise backward: %w", err)
		}
		if cfg.GradientClip > 0 {
			t.D.ClipGradients(cfg.GradientClip)
		}
		t.dOpt.Step(t.D, cfg.LearningRate)

		stepLoss += float64(noiseLoss) / float64(noiseCount)
	}

	return stepLoss, nil
}
