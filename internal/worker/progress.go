package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress tracks and displays trajectory analysis progress, including
// the running count of lift rides identified across all routes.
type Progress struct {
	startTime time.Time
	output    io.Writer
	total     int
	completed int
	failed    int
	liftRides int
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a new progress tracker.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// Update records the completion of a task.
func (p *Progress) Update(completed, total, failed, liftRides int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.failed = failed
	p.liftRides = liftRides
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

func renderBar(completed, total int) string {
	if total <= 0 {
		return strings.Repeat("░", barWidth)
	}
	filled := completed * barWidth / total
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// Print displays the current progress to output.
func (p *Progress) Print() {
	p.mu.RLock()
	completed := p.completed
	total := p.total
	failed := p.failed
	liftRides := p.liftRides
	startTime := p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)

	parts := []string{fmt.Sprintf("\r[%s] %d/%d routes", renderBar(completed, total), completed, total)}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("(%d failed)", failed))
	}
	parts = append(parts, fmt.Sprintf("- %d lift rides", liftRides))

	if completed > 0 && completed < total {
		perRoute := elapsed / time.Duration(completed)
		eta := perRoute * time.Duration(total-completed)
		parts = append(parts, fmt.Sprintf("- ETA: %s", formatDuration(eta)))
	}
	if completed == total {
		parts = append(parts, fmt.Sprintf("- Done in %s", formatDuration(elapsed)))
	}

	// trailing padding clears leftovers from the previous, longer line
	fmt.Fprint(p.output, strings.Join(parts, " ")+"          ")
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	p.mu.RLock()
	completed := p.completed
	total := p.total
	failed := p.failed
	liftRides := p.liftRides
	startTime := p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)
	successful := completed - failed

	return fmt.Sprintf("Analyzed %d/%d routes (%d failed), %d lift rides found, in %s",
		successful, total, failed, liftRides, formatDuration(elapsed))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
