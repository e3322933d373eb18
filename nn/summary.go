package nn

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Summary renders an aligned per-layer table (name, type, output shape,
// parameter count) with trainable/non-trainable totals.
func (m *Model) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Model: %s ===\n", m.Name)
	fmt.Fprintf(&b, "%-28s %-16s %-16s %12s\n", "Layer", "Type", "Output Shape", "Params")
	b.WriteString(strings.Repeat("-", 74))
	b.WriteByte('\n')

	for i := range m.Layers {
		config := &m.Layers[i]
		trainable, nonTrainable := layerParamCounts(config)
		fmt.Fprintf(&b, "%-28s %-16s %-16s %12d\n",
			config.Name, layerTypeString(config.Type), layerOutputShape(config),
			trainable+nonTrainable)
	}

	b.WriteString(strings.Repeat("-", 74))
	b.WriteByte('\n')

	trainable, nonTrainable := m.ParameterCount()
	fmt.Fprintf(&b, "Total params: %d\n", trainable+nonTrainable)
	fmt.Fprintf(&b, "Trainable params: %d\n", trainable)
	fmt.Fprintf(&b, "Non-trainable params: %d\n", nonTrainable)

	return b.String()
}

// PrintSummary prints the summary table to stdout.
func (m *Model) PrintSummary() {
	fmt.Print(m.Summary())
}

// ParameterCount returns the model's trainable and non-trainable parameter
// counts. Moving statistics of batch-norm layers are the non-trainable part.
func (m *Model) ParameterCount() (trainable, nonTrainable int) {
	for i := range m.Layers {
		t, nt := layerParamCounts(&m.Layers[i])
		trainable += t
		nonTrainable += nt
	}
	return trainable, nonTrainable
}

func layerParamCounts(config *LayerConfig) (trainable, nonTrainable int) {
	switch config.Type {
	case LayerConv2D, LayerDeconv2D, LayerDense:
		return len(config.Kernel) + len(config.Bias), 0
	case LayerBatchNorm:
		return len(config.Gamma) + len(config.Beta),
			len(config.MovingMean) + len(config.MovingVariance)
	default:
		return 0, 0
	}
}

// layerOutputShape formats a layer's output shape, channels first for
// feature maps.
func layerOutputShape(config *LayerConfig) string {
	switch config.Type {
	case LayerGlobalAvgPool, LayerDense:
		return fmt.Sprintf("(%d)", config.OutputSize)
	default:
		return fmt.Sprintf("(%d, %d, %d)",
			config.Filters, config.OutputHeight, config.OutputWidth)
	}
}

// StageFilters returns the recorded per-stage filter schedule, stem
// excluded. For a generator/discriminator pair built with matching options
// the discriminator's schedule is the reverse of the generator's.
func (m *Model) StageFilters() []int {
	if len(m.TrunkFilters) <= 1 {
		return nil
	}
	return append([]int(nil), m.TrunkFilters[1:]...)
}

// WriteDOT writes the layer graph in Graphviz DOT format. Residual skip
// connections appear as dashed edges, so a rendered diagram shows the
// trunk-plus-skips structure directly.
func (m *Model) WriteDOT(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "digraph %s {\n", dotGraphName(m.Name))
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, fontname=\"Helvetica\"];\n")
	fmt.Fprintf(&b, "  input [label=\"input\\n(%d)\"];\n", m.InputSize)

	for i := range m.Layers {
		config := &m.Layers[i]
		fmt.Fprintf(&b, "  l%d [label=\"%s\\n%s %s\"];\n",
			i, config.Name, layerTypeString(config.Type), layerOutputShape(config))
	}

	b.WriteString("  input -> l0;\n")
	for i := 1; i < len(m.Layers); i++ {
		fmt.Fprintf(&b, "  l%d -> l%d;\n", i-1, i)
		if m.Layers[i].Type == LayerAdd {
			fmt.Fprintf(&b, "  l%d -> l%d [style=dashed];\n", m.Layers[i].SkipFrom, i)
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// SaveDiagram writes the DOT graph to a file, creating parent directories
// as needed.
func (m *Model) SaveDiagram(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := m.WriteDOT(f); err != nil {
		return fmt.Errorf("failed to write diagram: %w", err)
	}

	return nil
}

// dotGraphName sanitizes a model name into a valid DOT identifier.
func dotGraphName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "model"
	}
	return b.String()
}
