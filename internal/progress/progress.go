// Package progress renders a live progress bar while a batch is running.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Tracker tracks and displays classification progress for one batch. It is
// fed from the supervisor's observer hook; the displayed counts are a UI
// convenience and never a substitute for the batch result.
type Tracker struct {
	total     int
	succeeded int
	failed    int
	startTime time.Time
	mu        sync.Mutex
	writer    io.Writer
	lastDraw  time.Time
}

// NewTracker creates a progress tracker for a batch of total targets
func NewTracker(total int, writer io.Writer) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		writer:    writer,
	}
}

// Update records one classified target and redraws the bar
func (p *Tracker) Update(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if success {
		p.succeeded++
	} else {
		p.failed++
	}

	p.draw()
}

// Finish clears the bar and prints the final one-line summary
func (p *Tracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	classified := p.succeeded + p.failed
	elapsed := time.Since(p.startTime)

	fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", 100))
	if p.failed == 0 {
		fmt.Fprintf(p.writer, "✓ Completed %d/%d targets successfully in %v\n",
			p.succeeded, p.total, elapsed.Round(time.Second))
	} else {
		fmt.Fprintf(p.writer, "⚠ Completed %d/%d targets (%d successful, %d failed) in %v\n",
			classified, p.total, p.succeeded, p.failed, elapsed.Round(time.Second))
	}
}

// draw renders the current progress bar
func (p *Tracker) draw() {
	now := time.Now()
	// Throttle updates to avoid excessive output
	if now.Sub(p.lastDraw) < 100*time.Millisecond {
		return
	}
	p.lastDraw = now

	if p.total == 0 {
		return
	}

	classified := p.succeeded + p.failed
	percentage := float64(classified) / float64(p.total) * 100
	elapsed := now.Sub(p.startTime)

	barWidth := 40
	filled := int(float64(barWidth) * percentage / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	// Format: [████████░░░░] 75.0% (15/20) ✓12 ✗3 [2m30s]
	fmt.Fprintf(p.writer, "\r[%s] %.1f%% (%d/%d) ✓%d ✗%d [%v]",
		bar, percentage, classified, p.total, p.succeeded, p.failed,
		elapsed.Round(time.Second))
}
