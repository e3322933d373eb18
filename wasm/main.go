//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"golang.org/x/exp/rand"

	"github.com/openglyph/glyphnet/nn"
)

// Global codec pair shared by all exported functions
var (
	generator     *nn.Model
	discriminator *nn.Model
)

func jsSuccess(data map[string]interface{}) js.Value {
	data["success"] = true
	jsonData, _ := json.Marshal(data)
	return js.ValueOf(string(jsonData))
}

func jsError(message string) js.Value {
	data := map[string]interface{}{
		"success": false,
		"error":   message,
	}
	jsonData, _ := json.Marshal(data)
	return js.ValueOf(string(jsonData))
}

// toFloat32Array copies a tensor into a JS Float32Array
func toFloat32Array(data []float32) js.Value {
	arr := js.Global().Get("Float32Array").New(len(data))
	for i, v := range data {
		arr.SetIndex(i, v)
	}
	return arr
}

// fromJSArray reads a Float32Array or plain JS number array
func fromJSArray(v js.Value) []float32 {
	n := v.Length()
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(v.Index(i).Float())
	}
	return out
}

// newGlyphnetPair builds a fresh generator/discriminator pair:
// NewGlyphnetPair(vectorDim, r, numFilters, channels)
func newGlyphnetPair() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) < 4 {
			return jsError("Expected vectorDim, r, numFilters, channels")
		}

		opt := nn.Options{
			VectorDim:  args[0].Int(),
			R:          args[1].Int(),
			NumFilters: args[2].Int(),
			Channels:   args[3].Int(),
		}

		g, err := nn.NewGeneratorFromOptions(opt)
		if err != nil {
			return jsError(fmt.Sprintf("Failed to create generator: %v", err))
		}
		d, err := nn.NewDiscriminatorFromOptions(opt)
		if err != nil {
			return jsError(fmt.Sprintf("Failed to create discriminator: %v", err))
		}

		generator = g
		discriminator = d

		return jsSuccess(map[string]interface{}{
			"glyph_pixels": g.OutputSize,
			"score_width":  d.OutputSize,
			"message":      "Pair created",
		})
	})
}

// loadGlyphnetBundle restores a saved pair: LoadGlyphnetBundle(bundleJSON)
func loadGlyphnetBundle() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return jsError("Missing bundle JSON argument")
		}

		s := args[0].String()
		g, err := nn.LoadModelFromString(s, "generator")
		if err != nil {
			return jsError(fmt.Sprintf("Failed to load generator: %v", err))
		}
		d, err := nn.LoadModelFromString(s, "discriminator")
		if err != nil {
			return jsError(fmt.Sprintf("Failed to load discriminator: %v", err))
		}

		generator = g
		discriminator = d

		return jsSuccess(map[string]interface{}{
			"glyph_pixels": g.OutputSize,
			"score_width":  d.OutputSize,
			"message":      "Pair loaded",
		})
	})
}

// saveGlyphnetBundle serializes the pair: SaveGlyphnetBundle() -> bundle JSON
func saveGlyphnetBundle() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if generator == nil || discriminator == nil {
			return jsError("No pair created")
		}

		s, err := nn.SaveBundleToString(map[string]*nn.Model{
			"generator":     generator,
			"discriminator": discriminator,
		})
		if err != nil {
			return jsError(fmt.Sprintf("Failed to save bundle: %v", err))
		}

		return js.ValueOf(s)
	})
}

// sampleMessages draws a message batch: SampleMessages(encoding, n, seed)
func sampleMessages() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if generator == nil {
			return jsError("No pair created")
		}
		if len(args) < 3 {
			return jsError("Expected encoding, n, seed")
		}

		messages, err := nn.Messages(args[0].String(), args[1].Int(),
			generator.InputSize, rand.NewSource(uint64(args[2].Int())))
		if err != nil {
			return jsError(fmt.Sprintf("%v", err))
		}

		return toFloat32Array(messages)
	})
}

// renderGlyphs runs the generator: RenderGlyphs(messages, batchSize) -> pixels
func renderGlyphs() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if generator == nil {
			return jsError("No pair created")
		}
		if len(args) < 2 {
			return jsError("Expected messages and batchSize")
		}

		glyphs, err := generator.Forward(fromJSArray(args[0]), args[1].Int())
		if err != nil {
			return jsError(fmt.Sprintf("Render failed: %v", err))
		}

		return toFloat32Array(glyphs)
	})
}

// decodeGlyphs runs the discriminator: DecodeGlyphs(pixels, batchSize) -> scores
func decodeGlyphs() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if discriminator == nil {
			return jsError("No pair created")
		}
		if len(args) < 2 {
			return jsError("Expected pixels and batchSize")
		}

		scores, err := discriminator.Forward(fromJSArray(args[0]), args[1].Int())
		if err != nil {
			return jsError(fmt.Sprintf("Decode failed: %v", err))
		}

		return toFloat32Array(scores)
	})
}

// trainGlyphnetPair runs the cooperative loop: TrainGlyphnetPair(configJSON)
func trainGlyphnetPair() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if generator == nil || discriminator == nil {
			return jsError("No pair created")
		}

		config := nn.DefaultTrainerConfig()
		if len(args) >= 1 && args[0].String() != "" {
			if err := json.Unmarshal([]byte(args[0].String()), config); err != nil {
				return jsError(fmt.Sprintf("Invalid config: %v", err))
			}
		}

		trainer, err := nn.NewTrainer(generator, discriminator, config)
		if err != nil {
			return jsError(fmt.Sprintf("%v", err))
		}

		result, err := trainer.Train()
		if err != nil {
			return jsError(fmt.Sprintf("Training failed: %v", err))
		}

		return jsSuccess(map[string]interface{}{
			"steps":            result.Steps,
			"final_loss":       result.FinalLoss,
			"best_loss":        result.BestLoss,
			"steps_per_second": result.StepsPerSecond,
		})
	})
}

// evaluateGlyphnetPair scores a fresh batch: EvaluateGlyphnetPair(encoding, batchSize, seed)
func evaluateGlyphnetPair() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if generator == nil || discriminator == nil {
			return jsError("No pair created")
		}
		if len(args) < 3 {
			return jsError("Expected encoding, batchSize, seed")
		}

		report, err := nn.EvaluatePair(generator, discriminator,
			args[0].String(), args[1].Int(), rand.NewSource(uint64(args[2].Int())))
		if err != nil {
			return jsError(fmt.Sprintf("%v", err))
		}

		data, _ := json.Marshal(report)
		return js.ValueOf(string(data))
	})
}

// glyphnetSummary returns both model tables: GlyphnetSummary()
func glyphnetSummary() js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		if generator == nil || discriminator == nil {
			return jsError("No pair created")
		}
		return js.ValueOf(generator.Summary() + "\n" + discriminator.Summary())
	})
}

func main() {
	fmt.Println("glyphnet WASM module initialized")

	js.Global().Set("NewGlyphnetPair", newGlyphnetPair())
	js.Global().Set("LoadGlyphnetBundle", loadGlyphnetBundle())
	js.Global().Set("SaveGlyphnetBundle", saveGlyphnetBundle())
	js.Global().Set("SampleMessages", sampleMessages())
	js.Global().Set("RenderGlyphs", renderGlyphs())
	js.Global().Set("DecodeGlyphs", decodeGlyphs())
	js.Global().Set("TrainGlyphnetPair", trainGlyphnetPair())
	js.Global().Set("EvaluateGlyphnetPair", evaluateGlyphnetPair())
	js.Global().Set("GlyphnetSummary", glyphnetSummary())

	fmt.Println("glyphnet WASM API ready. Available functions:")
	fmt.Println("  - NewGlyphnetPair(vectorDim, r, numFilters, channels)")
	fmt.Println("  - LoadGlyphnetBundle(bundleJSON)")
	fmt.Println("  - SaveGlyphnetBundle() - Returns the pair as bundle JSON")
	fmt.Println("  - SampleMessages(encoding, n, seed) - Draw a message batch")
	fmt.Println("  - RenderGlyphs(messages, batchSize) - Messages to glyph pixels")
	fmt.Println("  - DecodeGlyphs(pixels, batchSize) - Glyph pixels to scores")
	fmt.Println("  - TrainGlyphnetPair(configJSON) - Run the cooperative loop")
	fmt.Println("  - EvaluateGlyphnetPair(encoding, batchSize, seed)")
	fmt.Println("  - GlyphnetSummary() - Layer tables for both models")

	// Keep the Go program running
	select {}
}
