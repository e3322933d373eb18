package nn

import (
	"strings"
	"testing"

	"golang.org/x/exp/rand"
)

// TestMessagesDispatch verifies encoding selection
func TestMessagesDispatch(t *testing.T) {
	for _, encoding := range []string{"one-hot", "binary"} {
		out, err := Messages(encoding, 4, 8, rand.NewSource(1))
		if err != nil {
			t.Errorf("Messages(%q): unexpected error %v", encoding, err)
		}
		if len(out) != 32 {
			t.Errorf("Messages(%q): expected 32 values, got %d", encoding, len(out))
		}
	}

	_, err := Messages("base64", 4, 8, rand.NewSource(1))
	if err == nil {
		t.Fatal("Expected error for unknown encoding")
	}
	if !strings.Contains(err.Error(), "base64") {
		t.Errorf("Error should name the encoding, got: %v", err)
	}
}

// TestOneHotMessages verifies exactly one hot element per row
func TestOneHotMessages(t *testing.T) {
	n, dim := 64, 8
	out := OneHotMessages(n, dim, rand.NewSource(7))

	if len(out) != n*dim {
		t.Fatalf("Expected %d values, got %d", n*dim, len(out))
	}
	for i := 0; i < n; i++ {
		ones := 0
		for j := 0; j < dim; j++ {
			switch out[i*dim+j] {
			case 0:
			case 1:
				ones++
			default:
				t.Fatalf("row %d element %d: expected 0 or 1, got %f", i, j, out[i*dim+j])
			}
		}
		if ones != 1 {
			t.Errorf("row %d: expected exactly one hot element, got %d", i, ones)
		}
	}
}

// TestBinaryMessages verifies independent coin flips
func TestBinaryMessages(t *testing.T) {
	out := BinaryMessages(64, 8, rand.NewSource(7))

	zeros, ones := 0, 0
	for i, v := range out {
		switch v {
		case 0:
			zeros++
		case 1:
			ones++
		default:
			t.Fatalf("element %d: expected 0 or 1, got %f", i, v)
		}
	}
	// 512 flips without both outcomes would mean a broken source
	if zeros == 0 || ones == 0 {
		t.Errorf("Expected both outcomes in 512 flips, got %d zeros / %d ones", zeros, ones)
	}
}

// TestUniformMessagesRange verifies the [0,1) support
func TestUniformMessagesRange(t *testing.T) {
	out := UniformMessages(16, 16, rand.NewSource(3))

	if len(out) != 256 {
		t.Fatalf("Expected 256 values, got %d", len(out))
	}
	for i, v := range out {
		if v < 0 || v >= 1 {
			t.Errorf("element %d: expected [0,1), got %f", i, v)
		}
	}
}

// TestNoiseImages verifies geometry and support
func TestNoiseImages(t *testing.T) {
	out := NoiseImages(4, 3, 16, rand.NewSource(3))

	if len(out) != 4*3*16*16 {
		t.Fatalf("Expected %d pixels, got %d", 4*3*16*16, len(out))
	}
	for i, v := range out {
		if v < 0 || v >= 1 {
			t.Errorf("pixel %d: expected [0,1), got %f", i, v)
			break
		}
	}
}

// TestSamplingDeterminism verifies seeds fully determine the draws
func TestSamplingDeterminism(t *testing.T) {
	a := OneHotMessages(16, 8, rand.NewSource(42))
	b := OneHotMessages(16, 8, rand.NewSource(42))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Same seed diverged at element %d", i)
		}
	}

	c := UniformMessages(16, 16, rand.NewSource(1))
	d := UniformMessages(16, 16, rand.NewSource(2))
	same := true
	for i := range c {
		if c[i] != d[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds produced identical batches")
	}
}

// TestMessagesNilSource verifies a nil source self-seeds instead of panicking
func TestMessagesNilSource(t *testing.T) {
	out := OneHotMessages(4, 8, nil)
	if len(out) != 32 {
		t.Errorf("Expected 32 values, got %d", len(out))
	}
}
