package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trade-coach/internal/anomaly"
	"trade-coach/internal/domain"
	"trade-coach/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerTradeSourceStub struct {
	trades    []domain.Trade
	err       error
	lastLimit int
}

func (s *handlerTradeSourceStub) RecentTrades(_ context.Context, limit int) ([]domain.Trade, error) {
	s.lastLimit = limit
	return s.trades, s.err
}

type handlerEmbedderStub struct{}

func (handlerEmbedderStub) EmbedTrade(context.Context, domain.Trade) ([]float64, error) {
	return make([]float64, 768), nil
}

type handlerStoreStub struct{}

func (handlerStoreStub) UpsertTrade(context.Context, string, []float64, domain.Trade) error {
	return nil
}

func (handlerStoreStub) QuerySimilar(context.Context, []float64, int) ([]domain.SimilarTrade, error) {
	return nil, nil
}

type handlerAdvisorStub struct{}

func (handlerAdvisorStub) Generate(context.Context, domain.CoachingContext) (string, error) {
	return "Trade smaller after a losing streak.", nil
}

type handlerCacheStub struct {
	latest *domain.CoachingResult
}

func (s *handlerCacheStub) SetLatest(_ context.Context, result domain.CoachingResult) error {
	s.latest = &result
	return nil
}

func (s *handlerCacheStub) Latest(context.Context) (*domain.CoachingResult, error) {
	return s.latest, nil
}

func handlerTrades() []domain.Trade {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []domain.Trade{
		{ID: "t-1", Symbol: "EURUSD", Direction: domain.DirectionLong, LotSize: 0.5, PnL: 50, Timestamp: base},
		{ID: "t-2", Symbol: "GBPUSD", Direction: domain.DirectionShort, LotSize: 0.5, PnL: -20, Timestamp: base.Add(time.Hour)},
	}
}

func newTestHandler(source service.TradeSource, cache service.ResultCache) (*Handler, *gin.Engine) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	svc := service.NewWorkflowService(tracer, service.WorkflowDeps{
		Source:   source,
		Embedder: handlerEmbedderStub{},
		Store:    handlerStoreStub{},
		Detector: anomaly.NewEngine(),
		Advisor:  handlerAdvisorStub{},
		Cache:    cache,
	})
	h := New(tracer, svc, source, 10)
	router := gin.New()
	h.RegisterRoutes(router)
	return h, router
}

func TestTriggerCoachingReturnsWorkflowID(t *testing.T) {
	_, router := newTestHandler(&handlerTradeSourceStub{trades: handlerTrades()}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/coaching/trigger", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		WorkflowID string `json:"workflowId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if resp.WorkflowID == "" {
		t.Fatal("expected a workflow id")
	}
}

func TestCoachingStatusLifecycle(t *testing.T) {
	_, router := newTestHandler(&handlerTradeSourceStub{trades: handlerTrades()}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/coaching/trigger", nil))
	var trigger struct {
		WorkflowID string `json:"workflowId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &trigger); err != nil {
		t.Fatalf("parse error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/coaching/status/"+trigger.WorkflowID, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var run domain.WorkflowRun
		if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
			t.Fatalf("parse error: %v", err)
		}
		if run.Status.IsTerminal() {
			if run.Status != domain.WorkflowCompleted {
				t.Fatalf("expected completed run, got %+v", run)
			}
			if run.Result == nil || run.Result.Coaching == "" {
				t.Fatalf("expected coaching text on completed run, got %+v", run.Result)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("workflow did not complete in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCoachingStatusNotFound(t *testing.T) {
	_, router := newTestHandler(&handlerTradeSourceStub{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/coaching/status/unknown-id", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetLatestCoaching(t *testing.T) {
	cache := &handlerCacheStub{}
	_, router := newTestHandler(&handlerTradeSourceStub{}, cache)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/coaching/latest", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", w.Code)
	}

	cache.latest = &domain.CoachingResult{Coaching: "stay patient", RiskScore: 12}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/coaching/latest", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var result domain.CoachingResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if result.Coaching != "stay patient" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTriggerCoachingUnavailable(t *testing.T) {
	h := New(trace.NewNoopTracerProvider().Tracer("handler-test"), nil, nil, 0)
	router := gin.New()
	h.RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/coaching/trigger", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
