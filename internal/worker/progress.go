package worker

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// DefaultProgressThrottle is the minimum time between two redraws of the bar.
const DefaultProgressThrottle = 100 * time.Millisecond

// Progress tracks and displays render progress.
type Progress struct {
	startTime time.Time
	bar       *progressbar.ProgressBar
	total     int
	completed int
	failed    int
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a progress tracker writing to stderr.
func NewProgress(total int, enabled bool) *Progress {
	return newProgress(total, enabled, os.Stderr, DefaultProgressThrottle)
}

func newProgress(total int, enabled bool, w io.Writer, throttle time.Duration) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(enabled),
		progressbar.OptionSetDescription("tiles"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("tiles"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(throttle),
	)

	return &Progress{
		startTime: time.Now(),
		bar:       bar,
		total:     total,
		enabled:   enabled,
	}
}

// Update records the completion of a task. A total below the planned total
// (tasks still being submitted) is ignored.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed = completed
	p.failed = failed
	if total > p.total {
		p.total = total
		p.bar.ChangeMax(total)
	}

	if failed > 0 {
		p.bar.Describe(fmt.Sprintf("tiles (%d failed)", failed))
	}
	p.bar.Set(completed) // nolint:errcheck // Display only
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Done finishes the bar.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enabled {
		p.bar.Finish() // nolint:errcheck // Display only
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.RLock()
	completed := p.completed
	total := p.total
	failed := p.failed
	startTime := p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)
	successful := completed - failed

	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}

	return fmt.Sprintf("Processed %d/%d tiles (%d failed) in %s (%.1f tiles/sec)",
		successful, total, failed, FormatDuration(elapsed), rate)
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
