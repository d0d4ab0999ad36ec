package render

import "time"

// ============================================================
// Performance Monitor
// ============================================================

const sampleWindow = time.Second

// Monitor counts frames and turns them into an FPS figure once per window.
// It only observes; adaptation is the caller's decision.
type Monitor struct {
	now         func() time.Time
	windowStart time.Time
	frames      int
	fps         float64
	sampled     bool
}

// NewMonitor returns a monitor reading time from clock (time.Now when nil).
func NewMonitor(clock func() time.Time) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{now: clock}
}

// Tick records one rendered frame. It returns true when a window closed and
// CurrentFPS holds a fresh sample.
func (m *Monitor) Tick() bool {
	now := m.now()
	if m.windowStart.IsZero() {
		m.windowStart = now
		return false
	}
	m.frames++

	if now.Sub(m.windowStart) < sampleWindow {
		return false
	}
	m.fps = float64(m.frames)
	m.frames = 0
	m.windowStart = now
	m.sampled = true
	return true
}

// CurrentFPS returns the last completed sample, 0 before the first window closes.
func (m *Monitor) CurrentFPS() float64 {
	return m.fps
}

// Sampled reports whether at least one window has closed.
func (m *Monitor) Sampled() bool {
	return m.sampled
}

// Reset drops the running window, e.g. after a pause.
func (m *Monitor) Reset() {
	m.windowStart = time.Time{}
	m.frames = 0
}
