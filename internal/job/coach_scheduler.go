package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// WorkflowStarter kicks off a coaching run and returns its id.
type WorkflowStarter interface {
	Start(ctx context.Context) (string, error)
}

// CoachScheduler triggers a coaching run on a fixed interval so traders
// get fresh advice without hitting the trigger endpoint. A zero interval
// disables it.
type CoachScheduler struct {
	tracer   trace.Tracer
	workflow WorkflowStarter
	interval time.Duration
}

func NewCoachScheduler(tracer trace.Tracer, workflow WorkflowStarter, interval time.Duration) *CoachScheduler {
	return &CoachScheduler{
		tracer:   tracer,
		workflow: workflow,
		interval: interval,
	}
}

// Start launches scheduled coaching runs. Blocks until ctx is cancelled.
func (s *CoachScheduler) Start(ctx context.Context) {
	if s.workflow == nil || s.interval <= 0 {
		log.Println("Coach scheduler disabled")
		<-ctx.Done()
		return
	}

	log.Printf("Coach scheduler starting (every %s)...", s.interval)
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Coach scheduler stopped")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *CoachScheduler) trigger(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "coach-scheduler.trigger")
	defer span.End()

	id, err := s.workflow.Start(ctx)
	if err != nil {
		log.Printf("scheduled coaching run failed to start: %v", err)
		return
	}
	log.Printf("scheduled coaching run %s started", id)
}
