package worker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockAnalyzer simulates trajectory analysis for testing
type mockAnalyzer struct {
	delay     time.Duration
	failPaths map[string]bool // trajectories that should fail
	callCount atomic.Int32
}

func (m *mockAnalyzer) Analyze(ctx context.Context, trajectoryPath string) (string, int, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failPaths != nil && m.failPaths[trajectoryPath] {
		return "", 0, errors.New("simulated failure")
	}

	name := strings.TrimSuffix(filepath.Base(trajectoryPath), filepath.Ext(trajectoryPath))
	return "/tmp/" + name + ".json", 2, nil
}

func TestPool_BasicExecution(t *testing.T) {
	an := &mockAnalyzer{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:  2,
		Analyzer: an,
	})

	tasks := []Task{
		{TrajectoryPath: "day1.gpx"},
		{TrajectoryPath: "day2.gpx"},
		{TrajectoryPath: "day3.gpx"},
	}

	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task.TrajectoryPath, r.Err)
		}
		if r.Path == "" {
			t.Errorf("Expected output path for %s", r.Task.TrajectoryPath)
		}
	}

	if got := an.callCount.Load(); got != int32(len(tasks)) {
		t.Errorf("Expected %d analyzer calls, got %d", len(tasks), got)
	}
}

func TestPool_PartialFailure(t *testing.T) {
	an := &mockAnalyzer{
		delay:     time.Millisecond,
		failPaths: map[string]bool{"bad.gpx": true},
	}

	pool := New(Config{
		Workers:  2,
		Analyzer: an,
	})

	tasks := []Task{
		{TrajectoryPath: "good.gpx"},
		{TrajectoryPath: "bad.gpx"},
	}

	results := pool.Run(context.Background(), tasks)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			if r.Task.TrajectoryPath != "bad.gpx" {
				t.Errorf("Unexpected failure for %s", r.Task.TrajectoryPath)
			}
		}
	}
	if failures != 1 {
		t.Errorf("Expected 1 failure, got %d", failures)
	}
}

func TestPool_ProgressReporting(t *testing.T) {
	an := &mockAnalyzer{delay: time.Millisecond}

	var updates atomic.Int32
	var lastTotal atomic.Int32
	var lastRides atomic.Int32
	pool := New(Config{
		Workers:  1,
		Analyzer: an,
		OnProgress: func(completed, total, failed, liftRides int) {
			updates.Add(1)
			lastTotal.Store(int32(total))
			lastRides.Store(int32(liftRides))
		},
	})

	tasks := []Task{
		{TrajectoryPath: "a.gpx"},
		{TrajectoryPath: "b.gpx"},
	}
	pool.Run(context.Background(), tasks)

	if got := updates.Load(); got != 2 {
		t.Errorf("Expected 2 progress updates, got %d", got)
	}
	if got := lastTotal.Load(); got != 2 {
		t.Errorf("Expected progress total 2, got %d", got)
	}
	// the mock reports 2 lift rides per route, aggregated across both
	if got := lastRides.Load(); got != 4 {
		t.Errorf("Expected 4 aggregated lift rides, got %d", got)
	}
}

func TestPool_ContextCancellation(t *testing.T) {
	an := &mockAnalyzer{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:  1,
		Analyzer: an,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before running

	tasks := []Task{
		{TrajectoryPath: "a.gpx"},
		{TrajectoryPath: "b.gpx"},
	}
	results := pool.Run(ctx, tasks)

	cancelled := 0
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Error("Expected at least one cancelled result")
	}
}

func TestPool_DefaultsToOneWorker(t *testing.T) {
	pool := New(Config{Workers: 0, Analyzer: &mockAnalyzer{}})
	if pool.workers != 1 {
		t.Errorf("Expected 1 worker, got %d", pool.workers)
	}
}
