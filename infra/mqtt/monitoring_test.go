package mqtt

import (
	"fmt"
	"testing"
	"time"

	coremon "github.com/kilianp07/ucmilp/core/monitoring"
)

type recordMonitor struct {
	errs []error
	tags []map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, nil}}
	useMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	cli, err := NewSchedulePublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	err = cli.PublishSchedule("run-9", "toy", sampleResults())
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(mc.published) != 3 {
		t.Fatalf("second generator must still be attempted, got %d publishes", len(mc.published))
	}
	if len(mon.errs) != 1 {
		t.Fatalf("expected one captured error, got %d", len(mon.errs))
	}
	if mon.tags[0]["generator"] != "G1" || mon.tags[0]["module"] != "mqtt" || mon.tags[0]["run_id"] != "run-9" {
		t.Fatalf("tags not set: %v", mon.tags[0])
	}
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	if err := m.PublishSchedule("r", "c", sampleResults()); err != nil {
		t.Fatal(err)
	}
	if got := m.Published(); len(got) != 2 || got[0].Generator != "G1" {
		t.Fatalf("unexpected messages %+v", got)
	}
	m.Fail = true
	if err := m.PublishSchedule("r", "c", sampleResults()); err == nil {
		t.Fatal("expected failure")
	}
}
