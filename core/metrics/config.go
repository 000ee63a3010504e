package metrics

import "github.com/kilianp07/ucmilp/core/factory"

// Config lists the metrics sinks to build.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// ScheduleDetail also records the per-hour schedule of every solve.
	ScheduleDetail bool `json:"schedule_detail"`
	// ListenAddr serves the Prometheus registry on /metrics while the
	// process runs. Empty disables the endpoint.
	ListenAddr string `json:"listen_addr"`
}
