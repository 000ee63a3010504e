package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/internal/eventbus"
)

func TestStartTraceCollector(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(PromConfig{}, prometheus.NewRegistry())
	require.NoError(t, err)

	bus := eventbus.NewTyped[milp.TraceEvent](16)
	done := StartTraceCollector(context.Background(), bus, sink)

	bus.Publish(milp.TraceEvent{Backend: "simplex", Kind: milp.TraceIncumbent})
	bus.Publish(milp.TraceEvent{Backend: "simplex", Kind: milp.TraceProgress})
	bus.Publish(milp.TraceEvent{Backend: "simplex", Kind: milp.TraceIncumbent})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after bus close")
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.trace.WithLabelValues("simplex", "incumbent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.trace.WithLabelValues("simplex", "progress")))
}

func TestStartTraceCollectorStopsOnCancel(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(PromConfig{}, prometheus.NewRegistry())
	require.NoError(t, err)
	bus := eventbus.NewTyped[milp.TraceEvent](0)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := StartTraceCollector(ctx, bus, sink)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop on cancel")
	}
}

func TestStartTraceCollectorNilBus(t *testing.T) {
	done := StartTraceCollector(context.Background(), nil, nil)
	_, open := <-done
	assert.False(t, open)
}
