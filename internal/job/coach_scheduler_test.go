package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type stubStarter struct {
	calls atomic.Int32
	err   error
}

func (s *stubStarter) Start(context.Context) (string, error) {
	s.calls.Add(1)
	return "run-1", s.err
}

func TestSchedulerTriggersOnInterval(t *testing.T) {
	starter := &stubStarter{}
	sched := NewCoachScheduler(trace.NewNoopTracerProvider().Tracer("test"), starter, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for starter.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if starter.calls.Load() < 3 {
		t.Fatalf("expected at least 3 triggers, got %d", starter.calls.Load())
	}
}

func TestSchedulerDisabledWithoutInterval(t *testing.T) {
	starter := &stubStarter{}
	sched := NewCoachScheduler(trace.NewNoopTracerProvider().Tracer("test"), starter, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if starter.calls.Load() != 0 {
		t.Fatalf("disabled scheduler must not trigger, got %d calls", starter.calls.Load())
	}
}

func TestSchedulerKeepsRunningAfterStartError(t *testing.T) {
	starter := &stubStarter{err: errors.New("not configured")}
	sched := NewCoachScheduler(trace.NewNoopTracerProvider().Tracer("test"), starter, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for starter.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if starter.calls.Load() < 2 {
		t.Fatalf("expected scheduler to keep triggering after errors, got %d", starter.calls.Load())
	}
}
