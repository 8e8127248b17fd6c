package logger

import (
	"sync"
	"time"
)

// ProgressTracker logs periodic progress while a batch run walks a large
// target set. It is cheap enough to call per record.
type ProgressTracker struct {
	mu        sync.Mutex
	log       Logger
	operation string
	total     int
	done      int
	interval  time.Duration
	lastLog   time.Time
	started   time.Time
}

// NewProgressTracker creates a tracker that logs at most once per interval.
func NewProgressTracker(log Logger, operation string, total int) *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		log:       log.WithComponent("progress"),
		operation: operation,
		total:     total,
		interval:  2 * time.Second,
		lastLog:   now,
		started:   now,
	}
}

// Increment records one completed unit of work and may emit a log line.
func (p *ProgressTracker) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	now := time.Now()
	if now.Sub(p.lastLog) < p.interval && p.done != p.total {
		return
	}
	p.lastLog = now

	fields := Fields{
		"operation": p.operation,
		"done":      p.done,
		"total":     p.total,
	}
	if p.total > 0 {
		fields["percent"] = 100 * p.done / p.total
	}
	p.log.WithFields(fields).Info("progress")
}

// Finish logs the final count and elapsed time.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.WithFields(Fields{
		"operation": p.operation,
		"done":      p.done,
		"elapsed":   time.Since(p.started).Round(time.Millisecond).String(),
	}).Info("completed")
}
