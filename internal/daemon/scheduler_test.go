// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/teamarr/teamarr/internal/jobs"
)

type fakeGenRunner struct {
	mu    sync.Mutex
	calls int
	res   *jobs.RunResult
	err   error
}

func (f *fakeGenRunner) Run(context.Context) (*jobs.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func (f *fakeGenRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func okResult() *jobs.RunResult {
	return &jobs.RunResult{Generation: 7, Status: jobs.StatusSuccess}
}

func TestNewScheduler_MissingRunner(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{}, nil, nil)
	if !errors.Is(err, ErrMissingRunner) {
		t.Fatalf("NewScheduler() error = %v, want ErrMissingRunner", err)
	}
}

func TestScheduler_InitialRunAndTicks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeGenRunner{res: okResult()}
	sched, err := NewScheduler(SchedulerConfig{
		Interval:   20 * time.Millisecond,
		InitialRun: true,
	}, runner, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return runner.count() >= 3 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on cancellation")
	}
}

func TestScheduler_PostRunFollowsCompletedRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeGenRunner{res: okResult()}
	var mu sync.Mutex
	postRuns := 0
	sched, err := NewScheduler(SchedulerConfig{
		Interval:   20 * time.Millisecond,
		InitialRun: true,
	}, runner, func(context.Context) {
		mu.Lock()
		defer mu.Unlock()
		postRuns++
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return postRuns >= 2
	})
	cancel()
	<-done
}

func TestScheduler_NoPostRunAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeGenRunner{err: errors.New("settings unavailable")}
	var mu sync.Mutex
	postRuns := 0
	sched, err := NewScheduler(SchedulerConfig{
		Interval:   15 * time.Millisecond,
		InitialRun: true,
	}, runner, func(context.Context) {
		mu.Lock()
		defer mu.Unlock()
		postRuns++
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// The cadence continues through failures.
	waitFor(t, 2*time.Second, func() bool { return runner.count() >= 3 })
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if postRuns != 0 {
		t.Errorf("postRun ran %d times after failed runs, want 0", postRuns)
	}
}

func TestScheduler_ActiveRunSkipped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeGenRunner{err: jobs.ErrRunActive}
	sched, err := NewScheduler(SchedulerConfig{
		Interval:   15 * time.Millisecond,
		InitialRun: true,
	}, runner, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return runner.count() >= 2 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, busy runs must not be fatal", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop")
	}
}

func TestScheduler_SetIntervalRearms(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	runner := &fakeGenRunner{res: okResult()}
	sched, err := NewScheduler(SchedulerConfig{Interval: time.Hour}, runner, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Without the reload the first run would be an hour out.
	sched.SetInterval(20 * time.Millisecond)

	waitFor(t, 2*time.Second, func() bool { return runner.count() >= 1 })
	cancel()
	<-done
}

func TestScheduler_SetIntervalLatestWins(t *testing.T) {
	runner := &fakeGenRunner{res: okResult()}
	sched, err := NewScheduler(SchedulerConfig{Interval: time.Hour}, runner, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	// No consumer: the second value must replace the first.
	sched.SetInterval(30 * time.Minute)
	sched.SetInterval(10 * time.Minute)

	select {
	case d := <-sched.updates:
		if d != 10*time.Minute {
			t.Errorf("pending interval = %v, want 10m", d)
		}
	default:
		t.Fatal("no pending interval update")
	}
}
