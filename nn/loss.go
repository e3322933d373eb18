package nn

import (
	"fmt"
	"math"
)

// LossFunc scores a flattened batch of true/predicted vectors laid out as
// batch x width and returns the batch-mean loss.
type LossFunc func(yTrue, yPred []float32, width int) float32

// AdversarialLoss returns the loss function for an adversarial generator,
// dependent on the signal encoding. Both variants compare only the trailing
// no-signal channel. Still a work in progress; the cooperative trainer does
// not use these.
func AdversarialLoss(encoding string) (LossFunc, error) {
	switch encoding {
	case "one-hot":
		return oneHotLoss, nil
	case "binary":
		return binaryLoss, nil
	default:
		return nil, fmt.Errorf("encoding %q not understood", encoding)
	}
}

// oneHotLoss softmaxes both vectors row-wise, then takes the binary
// cross-entropy between the trailing channels.
func oneHotLoss(yTrue, yPred []float32, width int) float32 {
	rows := len(yTrue) / width
	loss := float32(0)
	for r := 0; r < rows; r++ {
		t := rowSoftmax(yTrue[r*width : (r+1)*width])
		p := rowSoftmax(yPred[r*width : (r+1)*width])
		loss += bce(t[width-1], p[width-1])
	}
	return loss / float32(rows)
}

// binaryLoss only compares the trailing channels, squashing both through a
// sigmoid and inverting the predicted side.
func binaryLoss(yTrue, yPred []float32, width int) float32 {
	rows := len(yTrue) / width
	loss := float32(0)
	for r := 0; r < rows; r++ {
		t := sigmoidCPU(yTrue[r*width+width-1])
		p := 1 - sigmoidCPU(yPred[r*width+width-1])
		loss += bce(t, p)
	}
	return loss / float32(rows)
}

// bce is the binary cross-entropy of predicted probability p against target
// t, with p clamped away from 0 and 1 before the logs.
func bce(t, p float32) float32 {
	const eps = 1e-7
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	return -(t*float32(math.Log(float64(p))) + (1-t)*float32(math.Log(float64(1-p))))
}

// rowSoftmax returns the softmax of one row, max-subtracted for stability.
func rowSoftmax(row []float32) []float32 {
	maxV := row[0]
	for _, v := range row[1:] {
		if v > maxV {
			maxV = v
		}
	}

	out := make([]float32, len(row))
	sum := float32(0)
	for i, v := range row {
		e := float32(math.Exp(float64(v - maxV)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
