package monitoring

import (
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/ucmilp/config"
	coremon "github.com/kilianp07/ucmilp/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if _, ok := m.(coremon.NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", m)
	}
}

func TestSentryMonitorCaptureTags(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	m, err := newSentryMonitor(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = sentry.Init(sentry.ClientOptions{}) }()

	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("extract: u[G1,3]: NaN"), map[string]string{"kind": "extraction", "case": "toy"})

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Tags["kind"] != "extraction" || events[0].Tags["case"] != "toy" {
		t.Fatalf("tags: %v", events[0].Tags)
	}
}
