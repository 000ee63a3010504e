package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/ucmilp/core/metrics"
	"github.com/kilianp07/ucmilp/core/milp"
	"github.com/kilianp07/ucmilp/internal/eventbus"
)

// StartTraceCollector subscribes to the solver trace bus and counts events
// on rec. It stops when ctx is cancelled or the bus is closed; the returned
// channel is closed then.
func StartTraceCollector(ctx context.Context, bus *eventbus.TypedBus[milp.TraceEvent], rec coremetrics.TraceRecorder) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || rec == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordTrace(coremetrics.TraceCount{Backend: ev.Backend, Kind: string(ev.Kind)})
			}
		}
	}()
	return done
}
