package gpu

import (
	"strings"
	"testing"
)

func TestComputeOutputSize(t *testing.T) {
	cases := []struct {
		name                   string
		inH, inW, k, stride, p int
		outH, outW             int
	}{
		{"same_padding", 8, 8, 3, 1, 1, 8, 8},
		{"stride_two", 8, 8, 3, 2, 1, 4, 4},
		{"one_by_one", 5, 5, 1, 1, 0, 5, 5},
		{"zero_stride_clamps", 8, 8, 3, 0, 1, 8, 8},
		{"non_square", 6, 4, 3, 1, 1, 6, 4},
	}

	for _, c := range cases {
		l := Conv2DLayer{Spec: Conv2DSpec{
			InputHeight: c.inH,
			InputWidth:  c.inW,
			KernelSize:  c.k,
			Stride:      c.stride,
			Padding:     c.p,
		}}
		h, w := l.computeOutputSize()
		if h != c.outH || w != c.outW {
			t.Errorf("%s: expected %dx%d, got %dx%d", c.name, c.outH, c.outW, h, w)
		}
	}
}

func TestWorkgroupXDefault(t *testing.T) {
	l := Conv2DLayer{}
	if got := l.workgroupX(); got != 64 {
		t.Errorf("Expected default workgroup size 64, got %d", got)
	}

	l.Spec.WorkgroupX = 128
	if got := l.workgroupX(); got != 128 {
		t.Errorf("Expected workgroup size 128, got %d", got)
	}
}

func TestBufferLengths(t *testing.T) {
	l := Conv2DLayer{Spec: Conv2DSpec{
		BatchSize:   2,
		InChannels:  3,
		OutChannels: 4,
		KernelSize:  3,
		Stride:      2,
		Padding:     1,
		InputHeight: 8,
		InputWidth:  8,
	}}
	l.outputH, l.outputW = l.computeOutputSize()

	if got := l.inputLen(); got != 2*3*8*8 {
		t.Errorf("Expected input length %d, got %d", 2*3*8*8, got)
	}
	if got := l.outputLen(); got != 2*4*4*4 {
		t.Errorf("Expected output length %d, got %d", 2*4*4*4, got)
	}
}

func TestGenerateShaderBakesGeometry(t *testing.T) {
	l := Conv2DLayer{Spec: Conv2DSpec{
		BatchSize:   2,
		InChannels:  3,
		OutChannels: 4,
		KernelSize:  3,
		Stride:      2,
		Padding:     1,
		InputHeight: 8,
		InputWidth:  8,
		WorkgroupX:  32,
	}}

	shader := l.GenerateShader()
	for _, want := range []string{
		"const BATCH: u32 = 2u;",
		"const IN_H: u32 = 8u;",
		"const IN_W: u32 = 8u;",
		"const IN_CH: u32 = 3u;",
		"const OUT_CH: u32 = 4u;",
		"const K: u32 = 3u;",
		"const STRIDE: u32 = 2u;",
		"const PADDING: u32 = 1u;",
		"const OUT_H: u32 = 4u;",
		"const OUT_W: u32 = 4u;",
		"@compute @workgroup_size(32, 1, 1)",
		"@group(0) @binding(3) var<storage, read_write> output",
	} {
		if !strings.Contains(shader, want) {
			t.Errorf("Shader missing %q", want)
		}
	}

	// Escaped modulo operators must survive the formatting
	if strings.Contains(shader, "%%") {
		t.Error("Shader still contains unexpanded %% sequences")
	}
	if !strings.Contains(shader, "idx % OUT_W") {
		t.Error("Shader missing modulo indexing")
	}
}

func TestGenerateShaderClampsStride(t *testing.T) {
	l := Conv2DLayer{Spec: Conv2DSpec{
		BatchSize:   1,
		InChannels:  1,
		OutChannels: 1,
		KernelSize:  3,
		Stride:      0,
		Padding:     1,
		InputHeight: 4,
		InputWidth:  4,
	}}

	shader := l.GenerateShader()
	if !strings.Contains(shader, "const STRIDE: u32 = 1u;") {
		t.Error("Expected stride 0 to bake as 1")
	}
	if !strings.Contains(shader, "const OUT_H: u32 = 4u;") {
		t.Error("Expected clamped stride in the output size")
	}
}
