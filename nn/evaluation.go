package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DecodingReport summarizes how well discriminator outputs recover the
// messages that were fed to the generator. Accuracies are fractions in
// [0, 1].
type DecodingReport struct {
	Samples         int     `json:"samples"`
	MessageAccuracy float64 `json:"message_accuracy"` // argmax agreement per row
	BitAccuracy     float64 `json:"bit_accuracy"`     // 0.5-threshold agreement per channel
	MeanAbsError    float64 `json:"mean_abs_error"`
	Correlation     float64 `json:"correlation"` // Pearson, all channels pooled
}

// EvaluateDecoding compares decoded message vectors against the originals.
// Both slices hold rows of vectorDim channels. Message accuracy (argmax
// agreement) is the metric that matters for one-hot messages, bit accuracy
// (threshold agreement) for binary ones; both are always reported.
func EvaluateDecoding(messages, decoded []float32, vectorDim int) (DecodingReport, error) {
	if vectorDim < 1 {
		return DecodingReport{}, fmt.Errorf("vectorDim must be at least 1, got %d", vectorDim)
	}
	if len(messages) != len(decoded) {
		return DecodingReport{}, fmt.Errorf("messages and decoded lengths differ: %d vs %d",
			len(messages), len(decoded))
	}
	if len(messages) == 0 || len(messages)%vectorDim != 0 {
		return DecodingReport{}, fmt.Errorf("data length %d is not a multiple of vectorDim %d",
			len(messages), vectorDim)
	}

	n := len(messages) / vectorDim

	want := make([]float64, len(messages))
	got := make([]float64, len(decoded))
	for i := range messages {
		want[i] = float64(messages[i])
		got[i] = float64(decoded[i])
	}

	messageHits := 0
	bitHits := 0
	absErrSum := 0.0
	for b := 0; b < n; b++ {
		wantRow := want[b*vectorDim : (b+1)*vectorDim]
		gotRow := got[b*vectorDim : (b+1)*vectorDim]

		if floats.MaxIdx(gotRow) == floats.MaxIdx(wantRow) {
			messageHits++
		}
		for i := range wantRow {
			if (gotRow[i] >= 0.5) == (wantRow[i] >= 0.5) {
				bitHits++
			}
			absErrSum += math.Abs(gotRow[i] - wantRow[i])
		}
	}

	return DecodingReport{
		Samples:         n,
		MessageAccuracy: float64(messageHits) / float64(n),
		BitAccuracy:     float64(bitHits) / float64(len(messages)),
		MeanAbsError:    absErrSum / float64(len(messages)),
		Correlation:     stat.Correlation(want, got, nil),
	}, nil
}

// EvaluatePair samples a fresh batch of messages, renders them with the
// generator and scores the discriminator's decoding of the rendered glyphs.
// Both models run in inference mode for the duration of the call.
func EvaluatePair(g, d *Model, encoding string, batchSize int, src rand.Source) (DecodingReport, error) {
	if g == nil || d == nil {
		return DecodingReport{}, fmt.Errorf("both models are required")
	}
	if batchSize < 1 {
		return DecodingReport{}, fmt.Errorf("batchSize must be at least 1, got %d", batchSize)
	}

	gTraining, dTraining := g.Training, d.Training
	g.SetTraining(false)
	d.SetTraining(false)
	defer func() {
		g.SetTraining(gTraining)
		d.SetTraining(dTraining)
	}()

	vectorDim := g.InputSize
	messages, err := Messages(encoding, batchSize, vectorDim, src)
	if err != nil {
		return DecodingReport{}, err
	}

	glyphs, err := g.Forward(messages, batchSize)
	if err != nil {
		return DecodingReport{}, fmt.Errorf("generator forward failed: %w", err)
	}

	scores, err := d.Forward(glyphs, batchSize)
	if err != nil {
		return DecodingReport{}, fmt.Errorf("discriminator forward failed: %w", err)
	}

	// Drop the flag channel; only the message channels are decoded.
	width := d.OutputSize
	decoded := make([]float32, batchSize*vectorDim)
	for b := 0; b < batchSize; b++ {
		copy(decoded[b*vectorDim:(b+1)*vectorDim], scores[b*width:b*width+vectorDim])
	}

	return EvaluateDecoding(messages, decoded, vectorDim)
}

// PrintReport prints the report to stdout.
func (r DecodingReport) PrintReport() {
	fmt.Printf("\n=== Decoding Report ===\n")
	fmt.Printf("Samples: %d\n", r.Samples)
	fmt.Printf("Message Accuracy: %.1f%%\n", r.MessageAccuracy*100)
	fmt.Printf("Bit Accuracy: %.1f%%\n", r.BitAccuracy*100)
	fmt.Printf("Mean Abs Error: %.4f\n", r.MeanAbsError)
	fmt.Printf("Correlation: %.4f\n", r.Correlation)
}
