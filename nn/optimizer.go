package nn

import (
	"fmt"
	"math"
)

// Optimizer interface defines the contract for all optimizers
type Optimizer interface {
	// Step applies the model's cached gradients to its weights
	Step(model *Model, learningRate float32)

	// Reset clears optimizer state (momentum, etc.)
	Reset()

	// Name returns the optimizer name
	Name() string
}

// paramGroup is one updatable parameter slice of a layer plus its gradient.
type paramGroup struct {
	key    string
	params []float32
	grads  []float32
	decay  bool // weight decay applies to this group (kernels only)
}

// paramGroups collects the updatable parameter groups of layer i: kernel,
// bias, and for batchnorm layers gamma and beta. Groups without a matching
// gradient are skipped.
func paramGroups(m *Model, i int) []paramGroup {
	layer := &m.Layers[i]
	candidates := []paramGroup{
		{fmt.Sprintf("kernel_%d", i), layer.Kernel, m.kernelGradients[i], true},
		{fmt.Sprintf("bias_%d", i), layer.Bias, m.biasGradients[i], false},
		{fmt.Sprintf("gamma_%d", i), layer.Gamma, m.gammaGradients[i], false},
		{fmt.Sprintf("beta_%d", i), layer.Beta, m.betaGradients[i], false},
	}

	groups := make([]paramGroup, 0, len(candidates))
	for _, g := range candidates {
		if len(g.params) > 0 && len(g.grads) == len(g.params) {
			groups = append(groups, g)
		}
	}
	return groups
}

// ============================================================================
// SGD Optimizer (Stochastic Gradient Descent with optional momentum)
// ============================================================================

type SGDOptimizer struct {
	momentum   float32
	dampening  float32
	nesterov   bool
	velocities map[string][]float32 // Momentum buffers
}

func NewSGDOptimizer() *SGDOptimizer {
	return &SGDOptimizer{
		momentum:   0.0,
		dampening:  0.0,
		nesterov:   false,
		velocities: make(map[string][]float32),
	}
}

func NewSGDOptimizerWithMomentum(momentum, dampening float32, nesterov bool) *SGDOptimizer {
	return &SGDOptimizer{
		momentum:   momentum,
		dampening:  dampening,
		nesterov:   nesterov,
		velocities: make(map[string][]float32),
	}
}

func (opt *SGDOptimizer) Step(model *Model, learningRate float32) {
	for i := 0; i < model.TotalLayers(); i++ {
		for _, g := range paramGroups(model, i) {
			// Simple SGD without momentum: w = w - lr * grad
			if opt.momentum == 0 {
				for j := range g.params {
					g.params[j] -= learningRate * g.grads[j]
				}
				continue
			}

			v := opt.velocities[g.key]
			if v == nil {
				v = make([]float32, len(g.params))
				opt.velocities[g.key] = v
			}

			// Update with momentum: v = momentum * v + (1 - dampening) * grad
			//                       w = w - lr * v (or w - lr * (grad + momentum * v) for Nesterov)
			for j := range g.params {
				grad := g.grads[j]
				v[j] = opt.momentum*v[j] + (1-opt.dampening)*grad

				if opt.nesterov {
					g.params[j] -= learningRate * (grad + opt.momentum*v[j])
				} else {
					g.params[j] -= learningRate * v[j]
				}
			}
		}
	}
}

func (opt *SGDOptimizer) Reset() {
	opt.velocities = make(map[string][]float32)
}

func (opt *SGDOptimizer) Name() string {
	if opt.momentum > 0 {
		if opt.nesterov {
			return "SGD (Nesterov momentum)"
		}
		return "SGD (momentum)"
	}
	return "SGD"
}

// ============================================================================
// AdamW Optimizer (Adam with decoupled weight decay)
// ============================================================================

type AdamWOptimizer struct {
	beta1       float32
	beta2       float32
	epsilon     float32
	weightDecay float32
	step        int

	// First moment estimates (momentum)
	m map[string][]float32

	// Second moment estimates (variance)
	v map[string][]float32
}

func NewAdamWOptimizer(beta1, beta2, epsilon, weightDecay float32) *AdamWOptimizer {
	return &AdamWOptimizer{
		beta1:       beta1,
		beta2:       beta2,
		epsilon:     epsilon,
		weightDecay: weightDecay,
		step:        0,
		m:           make(map[string][]float32),
		v:           make(map[string][]float32),
	}
}

func NewAdamWOptimizerDefault() *AdamWOptimizer {
	return NewAdamWOptimizer(0.9, 0.999, 1e-8, 0.01)
}

func (opt *AdamWOptimizer) Step(model *Model, learningRate float32) {
	opt.step++

	// Bias correction factors
	biasCorrection1 := 1.0 - float32(math.Pow(float64(opt.beta1), float64(opt.step)))
	biasCorrection2 := 1.0 - float32(math.Pow(float64(opt.beta2), float64(opt.step)))

	for i := 0; i < model.TotalLayers(); i++ {
		for _, g := range paramGroups(model, i) {
			if opt.m[g.key] == nil {
				opt.m[g.key] = make([]float32, len(g.params))
				opt.v[g.key] = make([]float32, len(g.params))
			}
			mBuf := opt.m[g.key]
			vBuf := opt.v[g.key]

			for j := range g.params {
				grad := g.grads[j]

				// Update biased first moment estimate
				mBuf[j] = opt.beta1*mBuf[j] + (1-opt.beta1)*grad

				// Update biased second moment estimate
				vBuf[j] = opt.beta2*vBuf[j] + (1-opt.beta2)*grad*grad

				// Compute bias-corrected moments
				mHat := mBuf[j] / biasCorrection1
				vHat := vBuf[j] / biasCorrection2

				update := mHat / (float32(math.Sqrt(float64(vHat))) + opt.epsilon)

				// Decoupled weight decay, kernels only
				if g.decay {
					update += opt.weightDecay * g.params[j]
				}

				g.params[j] -= learningRate * update
			}
		}
	}
}

func (opt *AdamWOptimizer) Reset() {
	opt.step = 0
	opt.m = make(map[string][]float32)
	opt.v = make(map[string][]float32)
}

func (opt *AdamWOptimizer) Name() string {
	return "AdamW"
}

// newOptimizer builds the optimizer a trainer config selects.
func newOptimizer(cfg TrainerConfig) (Optimizer, error) {
	switch cfg.Optimizer {
	case "sgd", "":
		if cfg.Momentum > 0 {
			return NewSGDOptimizerWithMomentum(cfg.Momentum, 0, false), nil
		}
		return NewSGDOptimizer(), nil
	case "adamw":
		return NewAdamWOptimizer(cfg.Beta1, cfg.Beta2, cfg.Epsilon, cfg.WeightDecay), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}
