package nn

import (
	"math"
	"testing"
)

// TestDeconv2DDoublesFeatureMap verifies the upsampling geometry
func TestDeconv2DDoublesFeatureMap(t *testing.T) {
	config := InitDeconv2DLayer(2, 2, 1, 3, 2, 1, 4)

	if config.OutputHeight != 4 || config.OutputWidth != 4 {
		t.Errorf("Expected 4x4 output, got %dx%d", config.OutputHeight, config.OutputWidth)
	}

	input := make([]float32, 4)
	output := deconv2DForwardCPU(input, &config, 1)
	if len(output) != 4*4*4 {
		t.Errorf("Expected output length 64, got %d", len(output))
	}
}

// TestDeconv2DSinglePixelScatter checks where a lone input pixel lands: with
// kernel 3, stride 2, padding 1 a 1x1 input scatters the lower-right 2x2
// quadrant of the kernel into the 2x2 output.
func TestDeconv2DSinglePixelScatter(t *testing.T) {
	config := InitDeconv2DLayer(1, 1, 1, 3, 2, 1, 1)
	for i := range config.Kernel {
		config.Kernel[i] = float32(i + 1)
	}
	config.Bias[0] = 0

	output := deconv2DForwardCPU([]float32{1}, &config, 1)

	expected := []float32{
		5, 6,
		8, 9,
	}
	if len(output) != len(expected) {
		t.Fatalf("Expected %d outputs, got %d", len(expected), len(output))
	}
	for i := range expected {
		if math.Abs(float64(output[i]-expected[i])) > 1e-6 {
			t.Errorf("output[%d]: expected %f, got %f", i, expected[i], output[i])
		}
	}
}

// TestDeconv2DIsConvAdjoint verifies the scatter form against the gather
// form: a single-channel transposed convolution must equal the input
// gradient of the convolution with the same kernel and geometry.
func TestDeconv2DIsConvAdjoint(t *testing.T) {
	kernel := []float32{0.5, -0.25, 0.125, 1, 0.75, -0.5, 0.25, -1, 0.375}

	deconv := InitDeconv2DLayer(2, 2, 1, 3, 2, 1, 1)
	copy(deconv.Kernel, kernel)
	deconv.Bias[0] = 0

	conv := InitConv2DLayer(4, 4, 1, 3, 2, 1, 1)
	copy(conv.Kernel, kernel)

	x := []float32{1.5, -2, 0.5, 1}
	scattered := deconv2DForwardCPU(x, &deconv, 1)
	gathered, _, _ := conv2DBackwardCPU(x, make([]float32, 16), &conv, 1)

	if len(scattered) != len(gathered) {
		t.Fatalf("Shape mismatch: deconv %d, conv gradInput %d", len(scattered), len(gathered))
	}
	for i := range scattered {
		if math.Abs(float64(scattered[i]-gathered[i])) > 1e-5 {
			t.Errorf("element %d: deconv %f, conv adjoint %f", i, scattered[i], gathered[i])
		}
	}
}

// TestDeconv2DBackwardFiniteDifference checks all three gradients against
// central differences; the layer is linear so the check is exact up to
// rounding.
func TestDeconv2DBackwardFiniteDifference(t *testing.T) {
	config := InitDeconv2DLayer(2, 2, 2, 3, 2, 1, 2)
	batchSize := 1

	input := make([]float32, batchSize*2*2*2)
	for i := range input {
		input[i] = float32(i%5)*0.25 - 0.5
	}
	for i := range config.Kernel {
		config.Kernel[i] = float32(i%7)*0.125 - 0.375
	}
	config.Bias[0] = 0.5
	config.Bias[1] = -0.25

	output := deconv2DForwardCPU(input, &config, batchSize)
	upstream := make([]float32, len(output))
	for i := range upstream {
		upstream[i] = float32(i%3)*0.5 - 0.5
	}

	gradInput, gradKernel, gradBias := deconv2DBackwardCPU(upstream, input, &config, batchSize)

	const h = 0.5
	const tol = 1e-3

	for i := range input {
		orig := input[i]
		input[i] = orig + h
		plus := weightedSum(deconv2DForwardCPU(input, &config, batchSize), upstream)
		input[i] = orig - h
		minus := weightedSum(deconv2DForwardCPU(input, &config, batchSize), upstream)
		input[i] = orig

		numerical := (plus - minus) / (2 * h)
		if math.Abs(float64(numerical-gradInput[i])) > tol {
			t.Errorf("gradInput[%d]: analytic %f, numerical %f", i, gradInput[i], numerical)
		}
	}

	for i := range config.Kernel {
		orig := config.Kernel[i]
		config.Kernel[i] = orig + h
		plus := weightedSum(deconv2DForwardCPU(input, &config, batchSize), upstream)
		config.Kernel[i] = orig - h
		minus := weightedSum(deconv2DForwardCPU(input, &config, batchSize), upstream)
		config.Kernel[i] = orig

		numerical := (plus - minus) / (2 * h)
		if math.Abs(float64(numerical-gradKernel[i])) > tol {
			t.Errorf("gradKernel[%d]: analytic %f, numerical %f", i, gradKernel[i], numerical)
		}
	}

	for i := range config.Bias {
		orig := config.Bias[i]
		config.Bias[i] = orig + h
		plus := weightedSum(deconv2DForwardCPU(input, &config, batchSize), upstream)
		config.Bias[i] = orig - h
		minus := weightedSum(deconv2DForwardCPU(input, &config, batchSize), upstream)
		config.Bias[i] = orig

		numerical := (plus - minus) / (2 * h)
		if math.Abs(float64(numerical-gradBias[i])) > tol {
			t.Errorf("gradBias[%d]: analytic %f, numerical %f", i, gradBias[i], numerical)
		}
	}
}
