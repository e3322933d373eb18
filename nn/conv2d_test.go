package nn

import (
	"math"
	"testing"
)

// TestConv2DKnownValues checks a 3x3 same-padding convolution with an
// all-ones kernel against hand-computed neighborhood sums.
func TestConv2DKnownValues(t *testing.T) {
	config := InitConv2DLayer(3, 3, 1, 3, 1, 1, 1)
	for i := range config.Kernel {
		config.Kernel[i] = 1
	}
	config.Bias[0] = 0.5

	input := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	output := conv2DForwardCPU(input, &config, 1)

	expected := []float32{
		12, 21, 16,
		27, 45, 33,
		24, 39, 28,
	}
	if len(output) != len(expected) {
		t.Fatalf("Expected %d outputs, got %d", len(expected), len(output))
	}
	for i := range expected {
		if math.Abs(float64(output[i]-(expected[i]+0.5))) > 1e-5 {
			t.Errorf("output[%d]: expected %f, got %f", i, expected[i]+0.5, output[i])
		}
	}
}

// TestConv2DStrideTwoHalvesFeatureMap verifies the downsampling geometry
func TestConv2DStrideTwoHalvesFeatureMap(t *testing.T) {
	config := InitConv2DLayer(4, 4, 1, 3, 2, 1, 2)

	if config.OutputHeight != 2 || config.OutputWidth != 2 {
		t.Errorf("Expected 2x2 output, got %dx%d", config.OutputHeight, config.OutputWidth)
	}

	input := make([]float32, 16)
	output := conv2DForwardCPU(input, &config, 1)
	if len(output) != 2*2*2 {
		t.Errorf("Expected output length 8, got %d", len(output))
	}
}

// TestConv2DOneByOne verifies that a 1x1 kernel mixes channels per pixel
func TestConv2DOneByOne(t *testing.T) {
	config := InitConv2DLayer(2, 2, 2, 1, 1, 0, 1)
	config.Kernel[0] = 2.0  // channel 0 weight
	config.Kernel[1] = -1.0 // channel 1 weight
	config.Bias[0] = 0.25

	input := []float32{
		// channel 0
		1, 2,
		3, 4,
		// channel 1
		5, 6,
		7, 8,
	}
	output := conv2DForwardCPU(input, &config, 1)

	for i := 0; i < 4; i++ {
		expected := 2.0*input[i] - input[4+i] + 0.25
		if math.Abs(float64(output[i]-expected)) > 1e-5 {
			t.Errorf("output[%d]: expected %f, got %f", i, expected, output[i])
		}
	}
}

// TestConv2DBatchIndependence verifies samples in a batch do not interact
func TestConv2DBatchIndependence(t *testing.T) {
	config := InitConv2DLayer(2, 2, 1, 3, 1, 1, 1)

	a := []float32{1, 2, 3, 4}
	b := []float32{-4, -3, -2, -1}
	batched := append(append([]float32{}, a...), b...)

	outA := conv2DForwardCPU(a, &config, 1)
	outB := conv2DForwardCPU(b, &config, 1)
	outBatched := conv2DForwardCPU(batched, &config, 2)

	for i := range outA {
		if outBatched[i] != outA[i] {
			t.Errorf("batch sample 0 element %d: expected %f, got %f", i, outA[i], outBatched[i])
		}
		if outBatched[len(outA)+i] != outB[i] {
			t.Errorf("batch sample 1 element %d: expected %f, got %f", i, outB[i], outBatched[len(outA)+i])
		}
	}
}

// weightedSum is the scalar test loss sum(w*out) whose gradient w.r.t. the
// output is exactly w.
func weightedSum(out, w []float32) float32 {
	sum := float32(0)
	for i := range out {
		sum += out[i] * w[i]
	}
	return sum
}

// TestConv2DBackwardFiniteDifference checks all three gradients against
// central differences. The layer is linear, so with exact binary test values
// the finite difference carries no truncation error.
func TestConv2DBackwardFiniteDifference(t *testing.T) {
	config := InitConv2DLayer(3, 3, 2, 3, 1, 1, 2)
	batchSize := 2

	input := make([]float32, batchSize*2*3*3)
	for i := range input {
		input[i] = float32(i%7)*0.125 - 0.375
	}
	for i := range config.Kernel {
		config.Kernel[i] = float32(i%5)*0.25 - 0.5
	}
	config.Bias[0] = 0.25
	config.Bias[1] = -0.125

	output := conv2DForwardCPU(input, &config, batchSize)
	upstream := make([]float32, len(output))
	for i := range upstream {
		upstream[i] = float32(i%3)*0.5 - 0.5
	}

	gradInput, gradKernel, gradBias := conv2DBackwardCPU(upstream, input, &config, batchSize)

	const h = 0.5
	const tol = 1e-3

	for i := range input {
		orig := input[i]
		input[i] = orig + h
		plus := weightedSum(conv2DForwardCPU(input, &config, batchSize), upstream)
		input[i] = orig - h
		minus := weightedSum(conv2DForwardCPU(input, &config, batchSize), upstream)
		input[i] = orig

		numerical := (plus - minus) / (2 * h)
		if math.Abs(float64(numerical-gradInput[i])) > tol {
			t.Errorf("gradInput[%d]: analytic %f, numerical %f", i, gradInput[i], numerical)
		}
	}

	for i := range config.Kernel {
		orig := config.Kernel[i]
		config.Kernel[i] = orig + h
		plus := weightedSum(conv2DForwardCPU(input, &config, batchSize), upstream)
		config.Kernel[i] = orig - h
		minus := weightedSum(conv2DForwardCPU(input, &config, batchSize), upstream)
		config.Kernel[i] = orig

		numerical := (plus - minus) / (2 * h)
		if math.Abs(float64(numerical-gradKernel[i])) > tol {
			t.Errorf("gradKernel[%d]: analytic %f, numerical %f", i, gradKernel[i], numerical)
		}
	}

	for i := range config.Bias {
		orig := config.Bias[i]
		config.Bias[i] = orig + h
		plus := weightedSum(conv2DForwardCPU(input, &config, batchSize), upstream)
		config.Bias[i] = orig - h
		minus := weightedSum(conv2DForwardCPU(input, &config, batchSize), upstream)
		config.Bias[i] = orig

		numerical := (plus - minus) / (2 * h)
		if math.Abs(float64(numerical-gradBias[i])) > tol {
			t.Errorf("gradBias[%d]: analytic %f, numerical %f", i, gradBias[i], numerical)
		}
	}
}
