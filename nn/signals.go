package nn

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Messages samples a batch of message vectors for the given encoding scheme,
// "one-hot" or "binary", laid out row-major as batch x vectorDim.
func Messages(encoding string, n, vectorDim int, src rand.Source) ([]float32, error) {
	switch encoding {
	case "one-hot":
		return OneHotMessages(n, vectorDim, src), nil
	case "binary":
		return BinaryMessages(n, vectorDim, src), nil
	default:
		return nil, fmt.Errorf("encoding %q not understood", encoding)
	}
}

// OneHotMessages samples n one-hot vectors of length vectorDim with a
// uniformly chosen hot index per row.
func OneHotMessages(n, vectorDim int, src rand.Source) []float32 {
	rng := newRand(src)
	out := make([]float32, n*vectorDim)
	for i := 0; i < n; i++ {
		out[i*vectorDim+rng.Intn(vectorDim)] = 1
	}
	return out
}

// BinaryMessages samples n vectors of length vectorDim whose elements are
// independent coin flips in {0,1}.
func BinaryMessages(n, vectorDim int, src rand.Source) []float32 {
	bern := distuv.Bernoulli{P: 0.5, Src: src}
	out := make([]float32, n*vectorDim)
	for i := range out {
		out[i] = float32(bern.Rand())
	}
	return out
}

// UniformMessages samples n vectors of length vectorDim with elements iid
// uniform in [0,1).
func UniformMessages(n, vectorDim int, src rand.Source) []float32 {
	return uniformBatch(n*vectorDim, src)
}

// NoiseImages samples n images of the given geometry with iid uniform [0,1)
// pixels; this is the no-signal distribution the discriminator learns to
// flag on its trailing channel.
func NoiseImages(n, channels, side int, src rand.Source) []float32 {
	return uniformBatch(n*channels*side*side, src)
}

func uniformBatch(total int, src rand.Source) []float32 {
	uni := distuv.Uniform{Min: 0, Max: 1, Src: src}
	out := make([]float32, total)
	for i := range out {
		out[i] = float32(uni.Rand())
	}
	return out
}

func newRand(src rand.Source) *rand.Rand {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return rand.New(src)
}
