package task

import (
	"strings"
	"sync"
)

// ViewCounter buffers widget script loads in memory between flushes.
type ViewCounter struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewViewCounter builds an empty ViewCounter.
func NewViewCounter() *ViewCounter {
	return &ViewCounter{counts: make(map[string]int64)}
}

// Record counts one load of the widget.
func (counter *ViewCounter) Record(widgetID string) {
	normalizedWidgetID := strings.TrimSpace(widgetID)
	if counter == nil || normalizedWidgetID == "" {
		return
	}
	counter.mutex.Lock()
	counter.counts[normalizedWidgetID]++
	counter.mutex.Unlock()
}

// Drain returns the buffered counts and resets the buffer.
func (counter *ViewCounter) Drain() map[string]int64 {
	if counter == nil {
		return nil
	}
	counter.mutex.Lock()
	defer counter.mutex.Unlock()
	if len(counter.counts) == 0 {
		return nil
	}
	drained := counter.counts
	counter.counts = make(map[string]int64, len(drained))
	return drained
}

// Restore adds previously drained counts back into the buffer.
func (counter *ViewCounter) Restore(counts map[string]int64) {
	if counter == nil || len(counts) == 0 {
		return
	}
	counter.mutex.Lock()
	for widgetID, views := range counts {
		if views > 0 {
			counter.counts[widgetID] += views
		}
	}
	counter.mutex.Unlock()
}

// Pending reports the number of buffered views for the widget.
func (counter *ViewCounter) Pending(widgetID string) int64 {
	if counter == nil {
		return 0
	}
	counter.mutex.Lock()
	defer counter.mutex.Unlock()
	return counter.counts[strings.TrimSpace(widgetID)]
}
