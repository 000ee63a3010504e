package mqtt

import (
	"fmt"
	"sync"

	"github.com/kilianp07/ucmilp/core/extract"
)

// MockPublisher records schedules instead of publishing them.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []ScheduleMessage
	// Fail makes PublishSchedule return an error.
	Fail bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishSchedule records one message per generator.
func (m *MockPublisher) PublishSchedule(runID, caseName string, res *extract.Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Messages = append(m.Messages, ScheduleMessages(runID, caseName, res)...)
	return nil
}

// Disconnect is a no-op.
func (m *MockPublisher) Disconnect() {}

// Published returns a copy of the recorded messages.
func (m *MockPublisher) Published() []ScheduleMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScheduleMessage(nil), m.Messages...)
}
