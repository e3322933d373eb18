package nn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LayerObserver receives per-layer events during forward and backward passes
type LayerObserver interface {
	OnForward(event LayerEvent)
	OnBackward(event LayerEvent)
}

// LayerEvent describes one forward or backward step of a single layer
type LayerEvent struct {
	Type      string     `json:"type"` // "forward" or "backward"
	LayerIdx  int        `json:"layer_idx"`
	LayerName string     `json:"layer_name"`
	LayerType LayerType  `json:"layer_type"`
	Stats     LayerStats `json:"stats"`
	Output    []float32  `json:"output,omitempty"`
}

// LayerStats summarizes one activation or gradient slice
type LayerStats struct {
	AvgActivation float32 `json:"avg_activation"`
	MaxActivation float32 `json:"max_activation"`
	MinActivation float32 `json:"min_activation"`
	ActiveNeurons int     `json:"active_neurons"`
	TotalNeurons  int     `json:"total_neurons"`
	LayerType     string  `json:"layer_type"`
}

// computeLayerStats calculates summary statistics for an activation slice
func computeLayerStats(data []float32, layerType string, threshold float32) LayerStats {
	if len(data) == 0 {
		return LayerStats{LayerType: layerType}
	}

	var sum, max, min float32
	max = data[0]
	min = data[0]
	activeCount := 0

	for _, v := range data {
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
		if v > threshold {
			activeCount++
		}
	}

	return LayerStats{
		AvgActivation: sum / float32(len(data)),
		MaxActivation: max,
		MinActivation: min,
		ActiveNeurons: activeCount,
		TotalNeurons:  len(data),
		LayerType:     layerType,
	}
}

// notifyObserver sends an event to the layer's observer if one exists
// This is a helper to reduce boilerplate in the forward/backward passes
func notifyObserver(config *LayerConfig, layerIdx int, eventType string, output []float32) {
	if config.Observer == nil {
		return
	}

	stats := computeLayerStats(output, layerTypeString(config.Type), 0.0)

	event := LayerEvent{
		Type:      eventType,
		LayerIdx:  layerIdx,
		LayerName: config.Name,
		LayerType: config.Type,
		Stats:     stats,
		Output:    output,
	}

	if eventType == "forward" {
		config.Observer.OnForward(event)
	} else {
		config.Observer.OnBackward(event)
	}
}

// AttachObserver sets the same observer on every layer of the model.
func (m *Model) AttachObserver(o LayerObserver) {
	for i := range m.Layers {
		m.Layers[i].Observer = o
	}
}

// =============================================================================
// Example Observer Implementations
// =============================================================================

// ConsoleObserver prints layer events to stdout
type ConsoleObserver struct {
	Verbose bool // If true, print output data (can be large!)
}

func (o *ConsoleObserver) OnForward(event LayerEvent) {
	fmt.Printf("[FWD] Layer %d (%s): avg=%.4f max=%.4f active=%d/%d\n",
		event.LayerIdx, event.LayerName,
		event.Stats.AvgActivation, event.Stats.MaxActivation,
		event.Stats.ActiveNeurons, event.Stats.TotalNeurons)

	if o.Verbose && event.Output != nil && len(event.Output) <= 20 {
		fmt.Printf("       Output: %v\n", event.Output)
	}
}

func (o *ConsoleObserver) OnBackward(event LayerEvent) {
	fmt.Printf("[BWD] Layer %d (%s): grad_avg=%.4f grad_max=%.4f\n",
		event.LayerIdx, event.LayerName,
		event.Stats.AvgActivation, event.Stats.MaxActivation)
}

// HTTPObserver sends layer events to an HTTP endpoint (for visualization)
type HTTPObserver struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

func NewHTTPObserver(url string) *HTTPObserver {
	return &HTTPObserver{
		URL:     url,
		Timeout: 100 * time.Millisecond, // Fast timeout to not block training
		client: &http.Client{
			Timeout: 100 * time.Millisecond,
		},
	}
}

func (o *HTTPObserver) OnForward(event LayerEvent) {
	o.sendEvent(event)
}

func (o *HTTPObserver) OnBackward(event LayerEvent) {
	o.sendEvent(event)
}

func (o *HTTPObserver) sendEvent(event LayerEvent) {
	// Don't include raw data in HTTP to keep payloads small
	eventCopy := event
	eventCopy.Output = nil

	data, err := json.Marshal(eventCopy)
	if err != nil {
		return
	}

	// Fire and forget (non-blocking)
	go func() {
		resp, err := o.client.Post(o.URL, "application/json", bytes.NewReader(data))
		if err == nil && resp != nil {
			resp.Body.Close()
		}
	}()
}

// ChannelObserver sends events to a Go channel (for internal processing)
type ChannelObserver struct {
	Events chan LayerEvent
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan LayerEvent, bufferSize),
	}
}

func (o *ChannelObserver) OnForward(event LayerEvent) {
	select {
	case o.Events <- event:
	default:
		// Channel full, drop event to avoid blocking
	}
}

func (o *ChannelObserver) OnBackward(event LayerEvent) {
	select {
	case o.Events <- event:
	default:
		// Channel full, drop event to avoid blocking
	}
}
