package engine

import (
	"sync"
	"time"

	"fleetwatch/internal/models"
)

// SamplePoint is one retained reading inside a rolling window.
type SamplePoint struct {
	Value     float64
	Timestamp time.Time
}

// Window is the rolling sample buffer for one (device, tag) pair. Samples are
// appended in arrival order and pruned past the retention horizon. The window
// is owned exclusively by the engine; evaluation reads it, nothing else
// mutates it.
type Window struct {
	samples   []SamplePoint
	retention time.Duration
}

func newWindow(retention time.Duration) *Window {
	return &Window{retention: retention}
}

func (w *Window) Append(value float64, ts time.Time) {
	w.samples = append(w.samples, SamplePoint{Value: value, Timestamp: ts})
	w.prune(ts)
}

func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.retention)
	i := 0
	for i < len(w.samples) && w.samples[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

func (w *Window) Latest() (SamplePoint, bool) {
	if len(w.samples) == 0 {
		return SamplePoint{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// Samples returns the retained points, oldest first. Callers must not mutate
// the returned slice.
func (w *Window) Samples() []SamplePoint {
	return w.samples
}

// WindowSet holds the rolling windows for all devices, keyed by device and
// tag.
type WindowSet struct {
	mu        sync.RWMutex
	windows   map[string]*Window
	retention time.Duration
}

func NewWindowSet(retention time.Duration) *WindowSet {
	return &WindowSet{
		windows:   make(map[string]*Window),
		retention: retention,
	}
}

func windowKey(deviceID, tag string) string {
	return deviceID + "\x00" + tag
}

func (ws *WindowSet) Record(s models.TelemetrySample) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	key := windowKey(s.DeviceID, s.Tag)
	w, ok := ws.windows[key]
	if !ok {
		w = newWindow(ws.retention)
		ws.windows[key] = w
	}
	w.Append(s.Value, s.Timestamp)
}

// Get returns the window for a (device, tag) pair, or nil when the tag has
// never been seen. A nil window evaluates every condition to false.
func (ws *WindowSet) Get(deviceID, tag string) *Window {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.windows[windowKey(deviceID, tag)]
}
