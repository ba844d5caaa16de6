package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single self-overwriting progress line.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	total    int
	every    int
	done     int
	reported int
	start    time.Time
	running  bool
	now      func() time.Time
}

// NewProgressTracker reports to w roughly every `every` records out of total.
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	if every <= 0 {
		every = 1
	}
	return &ProgressTracker{w: w, total: total, every: every, now: time.Now}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = p.now()
	p.running = true
	p.done = 0
	p.reported = 0
}

// Update sets the number of completed records.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.advance(done)
	}
}

// Increment adds delta completed records.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.advance(p.done + delta)
	}
}

// Finish reports the final line and terminates it with a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = p.total
	p.print()
	fmt.Fprintln(p.w)
	p.running = false
}

// Elapsed is the time since Start, or zero before Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return 0
	}
	return p.now().Sub(p.start)
}

// caller holds p.mu
func (p *ProgressTracker) advance(done int) {
	p.done = min(done, p.total)
	if p.done-p.reported >= p.every {
		p.print()
		p.reported = p.done
	}
}

// caller holds p.mu
func (p *ProgressTracker) print() {
	pct := 0.0
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}
	rate := 0.0
	if secs := p.now().Sub(p.start).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	fmt.Fprintf(p.w, "\rProgress: %d/%d (%.1f%%) - %.1f records/s", p.done, p.total, pct, rate)
}
