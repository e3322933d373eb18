package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"encoding/json"
	"fmt"
	"unsafe"

	"golang.org/x/exp/rand"

	"github.com/openglyph/glyphnet/nn"
)

// Helper functions for JSON responses
func errJSON(msg string) *C.char {
	return C.CString(fmt.Sprintf(`{"error": "%s"}`, msg))
}

func asJSON(v interface{}) *C.char {
	data, err := json.Marshal(v)
	if err != nil {
		return errJSON(err.Error())
	}
	return C.CString(string(data))
}

// Global codec pair (simplified single-pair API)
var (
	generator     *nn.Model
	discriminator *nn.Model
)

//export GlyphnetNewPair
func GlyphnetNewPair(optionsJSON *C.char) *C.char {
	var opt nn.Options
	if err := json.Unmarshal([]byte(C.GoString(optionsJSON)), &opt); err != nil {
		return errJSON(fmt.Sprintf("invalid options: %v", err))
	}

	g, err := nn.NewGeneratorFromOptions(opt)
	if err != nil {
		return errJSON(fmt.Sprintf("failed to create generator: %v", err))
	}
	d, err := nn.NewDiscriminatorFromOptions(opt)
	if err != nil {
		return errJSON(fmt.Sprintf("failed to create discriminator: %v", err))
	}

	generator = g
	discriminator = d

	return C.CString(`{"status": "success", "message": "pair created"}`)
}

//export GlyphnetLoadBundle
func GlyphnetLoadBundle(bundleJSON *C.char) *C.char {
	s := C.GoString(bundleJSON)

	g, err := nn.LoadModelFromString(s, "generator")
	if err != nil {
		return errJSON(fmt.Sprintf("failed to load generator: %v", err))
	}
	d, err := nn.LoadModelFromString(s, "discriminator")
	if err != nil {
		return errJSON(fmt.Sprintf("failed to load discriminator: %v", err))
	}

	generator = g
	discriminator = d

	return C.CString(`{"status": "success", "message": "pair loaded"}`)
}

//export GlyphnetRender
func GlyphnetRender(messages *C.float, length C.int, batchSize C.int) *C.char {
	if generator == nil {
		return errJSON("no pair created")
	}

	// Convert C array to Go slice
	input := (*[1 << 30]float32)(unsafe.Pointer(messages))[:length:length]
	goInput := make([]float32, length)
	copy(goInput, input)

	glyphs, err := generator.Forward(goInput, int(batchSize))
	if err != nil {
		return errJSON(fmt.Sprintf("render failed: %v", err))
	}

	return asJSON(glyphs)
}

//export GlyphnetDecode
func GlyphnetDecode(pixels *C.float, length C.int, batchSize C.int) *C.char {
	if discriminator == nil {
		return errJSON("no pair created")
	}

	// Convert C array to Go slice
	input := (*[1 << 30]float32)(unsafe.Pointer(pixels))[:length:length]
	goInput := make([]float32, length)
	copy(goInput, input)

	scores, err := discriminator.Forward(goInput, int(batchSize))
	if err != nil {
		return errJSON(fmt.Sprintf("decode failed: %v", err))
	}

	return asJSON(scores)
}

//export GlyphnetTrain
func GlyphnetTrain(configJSON *C.char) *C.char {
	if generator == nil || discriminator == nil {
		return errJSON("no pair created")
	}

	config := nn.DefaultTrainerConfig()
	if err := json.Unmarshal([]byte(C.GoString(configJSON)), config); err != nil {
		return errJSON(fmt.Sprintf("invalid config: %v", err))
	}

	trainer, err := nn.NewTrainer(generator, discriminator, config)
	if err != nil {
		return errJSON(fmt.Sprintf("%v", err))
	}

	result, err := trainer.Train()
	if err != nil {
		return errJSON(fmt.Sprintf("%v", err))
	}

	return asJSON(result)
}

//export GlyphnetEvaluate
func GlyphnetEvaluate(encoding *C.char, batchSize C.int, seed C.ulonglong) *C.char {
	if generator == nil || discriminator == nil {
		return errJSON("no pair created")
	}

	report, err := nn.EvaluatePair(generator, discriminator,
		C.GoString(encoding), int(batchSize), rand.NewSource(uint64(seed)))
	if err != nil {
		return errJSON(fmt.Sprintf("%v", err))
	}

	return asJSON(report)
}

//export GlyphnetSaveBundle
func GlyphnetSaveBundle() *C.char {
	if generator == nil || discriminator == nil {
		return errJSON("no pair created")
	}

	s, err := nn.SaveBundleToString(map[string]*nn.Model{
		"generator":     generator,
		"discriminator": discriminator,
	})
	if err != nil {
		return errJSON(fmt.Sprintf("%v", err))
	}

	return C.CString(s)
}

//export GlyphnetInfo
func GlyphnetInfo() *C.char {
	if generator == nil || discriminator == nil {
		return errJSON("no pair created")
	}

	gTrainable, gFrozen := generator.ParameterCount()
	dTrainable, dFrozen := discriminator.ParameterCount()

	info := map[string]interface{}{
		"generator": map[string]interface{}{
			"input_size":    generator.InputSize,
			"output_size":   generator.OutputSize,
			"total_layers":  generator.TotalLayers(),
			"trunk_filters": generator.TrunkFilters,
			"params":        gTrainable + gFrozen,
		},
		"discriminator": map[string]interface{}{
			"input_size":    discriminator.InputSize,
			"output_size":   discriminator.OutputSize,
			"total_layers":  discriminator.TotalLayers(),
			"trunk_filters": discriminator.TrunkFilters,
			"params":        dTrainable + dFrozen,
		},
	}

	return asJSON(info)
}

//export FreeGlyphnetString
func FreeGlyphnetString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func main() {}
