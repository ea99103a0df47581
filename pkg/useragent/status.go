package useragent

import (
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Status is a point-in-time view of the agent for the status endpoint.
type Status struct {
	State        State     `json:"state"`
	PID          int       `json:"pid,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	RSSBytes     uint64    `json:"rss_bytes,omitempty"`
	CPUPercent   float64   `json:"cpu_percent,omitempty"`
}

// Status reads the state and, for a live process, its resource usage.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	st := Status{
		State:        s.state,
		RegisteredAt: s.registeredAt,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	l := s.current
	s.mu.Unlock()

	if l == nil || (st.State != StateStarting && st.State != StateRegistered) {
		return st
	}
	st.PID = l.cmd.Process.Pid
	st.StartedAt = l.startedAt

	p, err := process.NewProcess(int32(st.PID))
	if err != nil {
		return st
	}
	if mem, err := p.MemoryInfo(); err == nil {
		st.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	return st
}
