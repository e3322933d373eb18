package nn

import (
	"math"
	"testing"
)

// TestSigmoidValues verifies the logistic function at known points
func TestSigmoidValues(t *testing.T) {
	if got := sigmoidCPU(0); math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("sigmoid(0): expected 0.5, got %f", got)
	}

	expected := float32(1.0 / (1.0 + math.Exp(-2.0)))
	if got := sigmoidCPU(2.0); math.Abs(float64(got-expected)) > 1e-6 {
		t.Errorf("sigmoid(2): expected %f, got %f", expected, got)
	}

	// Saturation at the tails
	if got := sigmoidCPU(20); got < 0.9999 {
		t.Errorf("sigmoid(20): expected ~1, got %f", got)
	}
	if got := sigmoidCPU(-20); got > 0.0001 {
		t.Errorf("sigmoid(-20): expected ~0, got %f", got)
	}

	// Symmetry: sigmoid(-v) = 1 - sigmoid(v)
	for _, v := range []float32{0.3, 1.7, 4.2} {
		if diff := sigmoidCPU(-v) - (1 - sigmoidCPU(v)); math.Abs(float64(diff)) > 1e-6 {
			t.Errorf("sigmoid symmetry broken at %f: diff %e", v, diff)
		}
	}
}

// TestActivateValues verifies each activation against its closed form
func TestActivateValues(t *testing.T) {
	inputs := []float32{-2.0, -0.5, 0.0, 0.5, 2.0}

	for _, v := range inputs {
		sig := 1.0 / (1.0 + math.Exp(-float64(v)))

		swish := activateCPU(v, ActivationSwish)
		if expected := float32(float64(v) * sig); math.Abs(float64(swish-expected)) > 1e-6 {
			t.Errorf("swish(%f): expected %f, got %f", v, expected, swish)
		}

		sigmoid := activateCPU(v, ActivationSigmoid)
		if expected := float32(sig); math.Abs(float64(sigmoid-expected)) > 1e-6 {
			t.Errorf("sigmoid(%f): expected %f, got %f", v, expected, sigmoid)
		}

		if linear := activateCPU(v, ActivationLinear); linear != v {
			t.Errorf("linear(%f): expected identity, got %f", v, linear)
		}
	}
}

// TestActivateDerivativeMatchesNumerical checks each analytic derivative
// against a central finite difference of the forward function.
func TestActivateDerivativeMatchesNumerical(t *testing.T) {
	activations := []ActivationType{ActivationLinear, ActivationSwish, ActivationSigmoid}
	points := []float32{-2.0, -0.5, 0.0, 0.5, 2.0}
	h := float32(0.01)

	for _, act := range activations {
		for _, v := range points {
			numerical := (activateCPU(v+h, act) - activateCPU(v-h, act)) / (2 * h)
			analytic := activateDerivativeCPU(v, act)

			if math.Abs(float64(numerical-analytic)) > 1e-3 {
				t.Errorf("activation %d at %f: analytic %f, numerical %f",
					act, v, analytic, numerical)
			}
		}
	}
}

// TestSwishDerivativeAtZero pins the value sigma(0)*(1+0) = 0.5
func TestSwishDerivativeAtZero(t *testing.T) {
	if got := activateDerivativeCPU(0, ActivationSwish); math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("swish'(0): expected 0.5, got %f", got)
	}
}

// TestActivationLayerForwardBackward runs a full activation layer pass
func TestActivationLayerForwardBackward(t *testing.T) {
	config := InitActivationLayer(2, 2, 1, ActivationSwish)
	if config.Type != LayerActivation {
		t.Fatalf("Expected activation layer type, got %d", config.Type)
	}
	if config.OutputHeight != 2 || config.OutputWidth != 2 || config.Filters != 1 {
		t.Errorf("Activation layer should preserve geometry, got %dx%dx%d",
			config.Filters, config.OutputHeight, config.OutputWidth)
	}

	input := []float32{-1.0, 0.0, 1.0, 2.0}
	output := activationForwardCPU(input, &config)

	if len(output) != len(input) {
		t.Fatalf("Expected %d outputs, got %d", len(input), len(output))
	}
	for i, v := range input {
		expected := activateCPU(v, ActivationSwish)
		if math.Abs(float64(output[i]-expected)) > 1e-6 {
			t.Errorf("output[%d]: expected %f, got %f", i, expected, output[i])
		}
	}

	// With a gradient of ones, the input gradient is the derivative itself
	gradOutput := []float32{1, 1, 1, 1}
	gradInput := activationBackwardCPU(gradOutput, input, &config)
	for i, v := range input {
		expected := activateDerivativeCPU(v, ActivationSwish)
		if math.Abs(float64(gradInput[i]-expected)) > 1e-6 {
			t.Errorf("gradInput[%d]: expected %f, got %f", i, expected, gradInput[i])
		}
	}
}
