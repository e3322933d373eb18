package nn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestComputeLayerStats(t *testing.T) {
	stats := computeLayerStats([]float32{1, -1, 2, 0}, "conv2d", 0)

	if stats.AvgActivation != 0.5 {
		t.Errorf("Expected avg 0.5, got %v", stats.AvgActivation)
	}
	if stats.MaxActivation != 2 {
		t.Errorf("Expected max 2, got %v", stats.MaxActivation)
	}
	if stats.MinActivation != -1 {
		t.Errorf("Expected min -1, got %v", stats.MinActivation)
	}
	// Zero sits on the threshold and does not count as active
	if stats.ActiveNeurons != 2 {
		t.Errorf("Expected 2 active neurons, got %d", stats.ActiveNeurons)
	}
	if stats.TotalNeurons != 4 {
		t.Errorf("Expected 4 total neurons, got %d", stats.TotalNeurons)
	}
	if stats.LayerType != "conv2d" {
		t.Errorf("Expected layer type conv2d, got %q", stats.LayerType)
	}

	raised := computeLayerStats([]float32{1, -1, 2, 0}, "conv2d", 1.5)
	if raised.ActiveNeurons != 1 {
		t.Errorf("Expected 1 active neuron above 1.5, got %d", raised.ActiveNeurons)
	}

	empty := computeLayerStats(nil, "dense", 0)
	if empty.TotalNeurons != 0 || empty.LayerType != "dense" {
		t.Errorf("Unexpected stats for empty slice: %+v", empty)
	}
}

func drainEvents(o *ChannelObserver) []LayerEvent {
	var events []LayerEvent
	for {
		select {
		case ev := <-o.Events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestChannelObserverCollectsPasses(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{VectorDim: 4, R: 1, LastChannels: 2, Channels: 1})
	require.NoError(t, err)

	observer := NewChannelObserver(4 * g.TotalLayers())
	g.AttachObserver(observer)
	for i := range g.Layers {
		require.Same(t, observer, g.Layers[i].Observer)
	}

	messages := OneHotMessages(1, 4, rand.NewSource(2))
	out, err := g.Forward(messages, 1)
	require.NoError(t, err)

	forward := drainEvents(observer)
	require.Len(t, forward, g.TotalLayers())
	for i, ev := range forward {
		require.Equal(t, "forward", ev.Type)
		require.Equal(t, i, ev.LayerIdx)
		require.Equal(t, g.Layers[i].Name, ev.LayerName)
		require.Equal(t, g.Layers[i].Type, ev.LayerType)
		require.NotEmpty(t, ev.Output)
		require.Equal(t, len(ev.Output), ev.Stats.TotalNeurons)
	}

	grad := make([]float32, len(out))
	grad[0] = 1
	_, err = g.Backward(grad)
	require.NoError(t, err)

	// The backward pass walks the layers in reverse
	backward := drainEvents(observer)
	require.Len(t, backward, g.TotalLayers())
	for i, ev := range backward {
		require.Equal(t, "backward", ev.Type)
		require.Equal(t, g.TotalLayers()-1-i, ev.LayerIdx)
	}
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{VectorDim: 4, R: 1, LastChannels: 2, Channels: 1})
	require.NoError(t, err)

	observer := NewChannelObserver(1)
	g.AttachObserver(observer)

	// Forward must not block even though only one event fits
	_, err = g.Forward(OneHotMessages(1, 4, rand.NewSource(2)), 1)
	require.NoError(t, err)

	events := drainEvents(observer)
	require.Len(t, events, 1)
	require.Equal(t, 0, events[0].LayerIdx)
}

func TestHTTPObserverPostsEvents(t *testing.T) {
	received := make(chan LayerEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev LayerEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			select {
			case received <- ev:
			default:
			}
		}
	}))
	defer server.Close()

	observer := NewHTTPObserver(server.URL)
	observer.OnForward(LayerEvent{
		Type:      "forward",
		LayerIdx:  3,
		LayerName: "stem_conv",
		LayerType: LayerConv2D,
		Stats:     LayerStats{TotalNeurons: 8, LayerType: "conv2d"},
		Output:    []float32{1, 2, 3},
	})

	select {
	case ev := <-received:
		require.Equal(t, "forward", ev.Type)
		require.Equal(t, 3, ev.LayerIdx)
		require.Equal(t, "stem_conv", ev.LayerName)
		require.Equal(t, 8, ev.Stats.TotalNeurons)
		// Raw output stays out of the HTTP payload
		require.Nil(t, ev.Output)
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived within 2s")
	}
}
