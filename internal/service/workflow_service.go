package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trade-coach/internal/anomaly"
	"trade-coach/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRecentCount  = 10
	defaultSimilarLimit = 5
)

// TradeSource loads the trades a coaching run analyzes.
type TradeSource interface {
	RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error)
}

// TradeEmbedder turns a trade into a similarity vector.
type TradeEmbedder interface {
	EmbedTrade(ctx context.Context, trade domain.Trade) ([]float64, error)
}

// SimilarityStore persists vectors and answers nearest-neighbor queries.
type SimilarityStore interface {
	UpsertTrade(ctx context.Context, id string, vector []float64, trade domain.Trade) error
	QuerySimilar(ctx context.Context, vector []float64, limit int) ([]domain.SimilarTrade, error)
}

// AnomalyDetector scores a trade batch for risky behaviors.
type AnomalyDetector interface {
	Detect(trades []domain.Trade) domain.AnomalyReport
}

// CoachAdvisor renders a coaching context into advice text.
type CoachAdvisor interface {
	Generate(ctx context.Context, cc domain.CoachingContext) (string, error)
}

// ResultCache keeps the latest completed coaching result. Failures are
// logged, never fatal.
type ResultCache interface {
	SetLatest(ctx context.Context, result domain.CoachingResult) error
	Latest(ctx context.Context) (*domain.CoachingResult, error)
}

// CompletionNotifier is told about every completed run.
type CompletionNotifier interface {
	WorkflowCompleted(result domain.CoachingResult)
}

// WorkflowService runs the coaching pipeline and tracks each run in
// memory. Runs execute in the background; callers poll Status.
type WorkflowService struct {
	tracer       trace.Tracer
	source       TradeSource
	embedder     TradeEmbedder
	store        SimilarityStore
	detector     AnomalyDetector
	advisor      CoachAdvisor
	cache        ResultCache
	notifier     CompletionNotifier
	recentCount  int
	similarLimit int

	mu   sync.RWMutex
	runs map[string]*domain.WorkflowRun
}

type WorkflowDeps struct {
	Source   TradeSource
	Embedder TradeEmbedder
	Store    SimilarityStore
	Detector AnomalyDetector
	Advisor  CoachAdvisor
	Cache    ResultCache
	Notifier CompletionNotifier

	RecentTradeCount  int
	SimilarTradeLimit int
}

func NewWorkflowService(tracer trace.Tracer, deps WorkflowDeps) *WorkflowService {
	if deps.RecentTradeCount <= 0 {
		deps.RecentTradeCount = defaultRecentCount
	}
	if deps.SimilarTradeLimit <= 0 {
		deps.SimilarTradeLimit = defaultSimilarLimit
	}
	return &WorkflowService{
		tracer:       tracer,
		source:       deps.Source,
		embedder:     deps.Embedder,
		store:        deps.Store,
		detector:     deps.Detector,
		advisor:      deps.Advisor,
		cache:        deps.Cache,
		notifier:     deps.Notifier,
		recentCount:  deps.RecentTradeCount,
		similarLimit: deps.SimilarTradeLimit,
		runs:         make(map[string]*domain.WorkflowRun),
	}
}

// SetNotifier wires the completion notifier after construction. The bot
// that provides it needs the service first, so startup sets it late.
func (s *WorkflowService) SetNotifier(n CompletionNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Start registers a pending run, kicks off the pipeline in the
// background, and returns the run id immediately.
func (s *WorkflowService) Start(ctx context.Context) (string, error) {
	_, span := s.tracer.Start(ctx, "workflow-service.start")
	defer span.End()

	if s.source == nil || s.embedder == nil || s.store == nil || s.detector == nil || s.advisor == nil {
		return "", fmt.Errorf("workflow service is not fully configured")
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.runs[id] = &domain.WorkflowRun{ID: id, Status: domain.WorkflowPending}
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), id)
	return id, nil
}

// Status returns a copy of the run record, or nil for unknown ids.
func (s *WorkflowService) Status(ctx context.Context, id string) *domain.WorkflowRun {
	_, span := s.tracer.Start(ctx, "workflow-service.status")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	copied := *run
	return &copied
}

// LatestResult returns the most recent completed coaching result, or nil
// when none has been cached yet.
func (s *WorkflowService) LatestResult(ctx context.Context) (*domain.CoachingResult, error) {
	_, span := s.tracer.Start(ctx, "workflow-service.latest-result")
	defer span.End()

	if s.cache == nil {
		return nil, nil
	}
	return s.cache.Latest(ctx)
}

func (s *WorkflowService) run(ctx context.Context, id string) {
	ctx, span := s.tracer.Start(ctx, "workflow-service.run")
	defer span.End()

	step := domain.StepLoadTrades
	log.Printf("[%s] Step 1: loading trades", id)
	trades, err := s.source.RecentTrades(ctx, s.recentCount)
	if err != nil {
		s.setFailed(id, step, err)
		return
	}
	if len(trades) == 0 {
		s.setFailed(id, step, fmt.Errorf("no trades available"))
		return
	}

	step = domain.StepEmbedTrades
	log.Printf("[%s] Step 2: embedding %d trades", id, len(trades))
	vectors := make([][]float64, 0, len(trades))
	for _, t := range trades {
		vector, err := s.embedder.EmbedTrade(ctx, t)
		if err != nil {
			s.setFailed(id, step, err)
			return
		}
		vectors = append(vectors, vector)
	}

	step = domain.StepStoreTrades
	log.Printf("[%s] Step 3: storing trades", id)
	if err := s.storeTrades(ctx, trades, vectors); err != nil {
		s.setFailed(id, step, err)
		return
	}

	step = domain.StepRetrieveSimilar
	log.Printf("[%s] Step 4: retrieving similar trades", id)
	similar, err := s.store.QuerySimilar(ctx, vectors[0], s.similarLimit)
	if err != nil {
		s.setFailed(id, step, err)
		return
	}

	step = domain.StepDetectAnomalies
	log.Printf("[%s] Step 5: detecting anomalies", id)
	report := s.detector.Detect(trades)
	log.Printf("[%s] Detected %d behaviors, risk score %d", id, len(report.Behaviors), report.RiskScore)

	step = domain.StepGenerateCoaching
	log.Printf("[%s] Step 6: generating coaching", id)
	coaching, err := s.advisor.Generate(ctx, domain.CoachingContext{
		RecentTrades:    trades,
		SimilarPatterns: similar,
		Report:          report,
	})
	if err != nil {
		s.setFailed(id, step, err)
		return
	}

	result := domain.CoachingResult{
		Coaching:  coaching,
		Patterns:  anomaly.BuildPatternIndicators(report, trades),
		RiskScore: report.RiskScore,
		Timestamp: time.Now().UTC(),
	}
	s.setCompleted(ctx, id, result)
}

// storeTrades upserts one vector per trade. The embedding step emits
// exactly one vector per trade, so a count mismatch means the batches
// drifted apart and the run must stop before any partial write.
func (s *WorkflowService) storeTrades(ctx context.Context, trades []domain.Trade, vectors [][]float64) error {
	if len(vectors) != len(trades) {
		return fmt.Errorf("mismatch between trades and embeddings count")
	}
	for i, t := range trades {
		if err := s.store.UpsertTrade(ctx, t.ID, vectors[i], t); err != nil {
			return err
		}
	}
	return nil
}

func (s *WorkflowService) setCompleted(ctx context.Context, id string, result domain.CoachingResult) {
	s.mu.Lock()
	run, ok := s.runs[id]
	if !ok || run.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	run.Status = domain.WorkflowCompleted
	run.Result = &result
	notifier := s.notifier
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, result); err != nil {
			log.Printf("[%s] Warning: failed to cache coaching result: %v", id, err)
		}
	}
	if notifier != nil {
		notifier.WorkflowCompleted(result)
	}
	log.Printf("[%s] Workflow completed", id)
}

func (s *WorkflowService) setFailed(id string, step domain.WorkflowStep, err error) {
	s.mu.Lock()
	run, ok := s.runs[id]
	if !ok || run.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	run.Status = domain.WorkflowFailed
	run.Error = fmt.Sprintf("%s failed: %v", step, err)
	run.FailedStep = step
	s.mu.Unlock()

	log.Printf("[%s] Workflow failed at %s: %v", id, step, err)
}
