package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trade-coach/internal/domain"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultQdrantURL        = "http://localhost:6333"
	defaultQdrantCollection = "trades"
	defaultUpsertAttempts   = 3
)

// QdrantGateway is the similarity store boundary. It speaks the Qdrant
// REST API directly; upserts retry with the shared gateway backoff.
type QdrantGateway struct {
	tracer      trace.Tracer
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	collection  string
	vectorSize  int
	maxAttempts uint
	retryBase   time.Duration
}

type QdrantConfig struct {
	URL         string
	APIKey      string
	Collection  string
	VectorSize  int
	MaxAttempts int
	RetryBase   time.Duration
}

func NewQdrantGateway(tracer trace.Tracer, cfg QdrantConfig) *QdrantGateway {
	if cfg.URL == "" {
		cfg.URL = defaultQdrantURL
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultQdrantCollection
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = defaultEmbeddingDims
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultUpsertAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &QdrantGateway{
		tracer:      tracer,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		collection:  cfg.Collection,
		vectorSize:  cfg.VectorSize,
		maxAttempts: uint(cfg.MaxAttempts),
		retryBase:   cfg.RetryBase,
	}
}

// EnsureCollection creates the trade collection if it does not exist yet.
// Safe to call repeatedly.
func (g *QdrantGateway) EnsureCollection(ctx context.Context) error {
	ctx, span := g.tracer.Start(ctx, "qdrant-gateway.ensure-collection")
	defer span.End()

	status, err := g.do(ctx, http.MethodGet, "/collections/"+g.collection, nil, nil)
	if err == nil && status == http.StatusOK {
		return nil
	}
	if err != nil && status != http.StatusNotFound {
		return fmt.Errorf("check collection %s: %w", g.collection, err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     g.vectorSize,
			"distance": "Cosine",
		},
	}
	if _, err := g.do(ctx, http.MethodPut, "/collections/"+g.collection, body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", g.collection, err)
	}
	return nil
}

// UpsertTrade stores a trade vector with full trade metadata as payload,
// retrying transient failures before surfacing the last error.
func (g *QdrantGateway) UpsertTrade(ctx context.Context, id string, vector []float64, trade domain.Trade) error {
	ctx, span := g.tracer.Start(ctx, "qdrant-gateway.upsert-trade")
	defer span.End()

	body := map[string]any{
		"points": []map[string]any{{
			"id":      numericPointID(id),
			"vector":  vector,
			"payload": payloadFromTrade(trade),
		}},
	}

	op := func() (struct{}, error) {
		_, err := g.do(ctx, http.MethodPut, "/collections/"+g.collection+"/points?wait=true", body, nil)
		return struct{}{}, err
	}
	if _, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(retryPolicy(g.retryBase)),
		backoff.WithMaxTries(g.maxAttempts),
	); err != nil {
		return fmt.Errorf("store trade %s after %d attempts: %w", id, g.maxAttempts, err)
	}
	return nil
}

// QuerySimilar returns up to limit stored trades ordered by descending
// similarity to the given vector.
func (g *QdrantGateway) QuerySimilar(ctx context.Context, vector []float64, limit int) ([]domain.SimilarTrade, error) {
	ctx, span := g.tracer.Start(ctx, "qdrant-gateway.query-similar")
	defer span.End()

	if limit <= 0 {
		limit = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64      `json:"score"`
			Payload tradePayload `json:"payload"`
		} `json:"result"`
	}
	if _, err := g.do(ctx, http.MethodPost, "/collections/"+g.collection+"/points/search", body, &resp); err != nil {
		return nil, fmt.Errorf("find similar trades: %w", err)
	}

	similar := make([]domain.SimilarTrade, 0, len(resp.Result))
	for _, r := range resp.Result {
		trade, err := r.Payload.toTrade()
		if err != nil {
			return nil, fmt.Errorf("decode similar trade payload: %w", err)
		}
		similar = append(similar, domain.SimilarTrade{Trade: trade, Similarity: r.Score})
	}
	return similar, nil
}

// GetTradeByID fetches a stored trade by its external identifier, or nil
// when the point does not exist.
func (g *QdrantGateway) GetTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	ctx, span := g.tracer.Start(ctx, "qdrant-gateway.get-trade-by-id")
	defer span.End()

	body := map[string]any{
		"ids":          []uint64{numericPointID(id)},
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Payload tradePayload `json:"payload"`
		} `json:"result"`
	}
	if _, err := g.do(ctx, http.MethodPost, "/collections/"+g.collection+"/points", body, &resp); err != nil {
		return nil, fmt.Errorf("retrieve trade %s: %w", id, err)
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	trade, err := resp.Result[0].Payload.toTrade()
	if err != nil {
		return nil, fmt.Errorf("decode trade payload: %w", err)
	}
	return &trade, nil
}

func (g *QdrantGateway) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("api-key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// numericPointID maps an arbitrary external id to a stable numeric key.
// Collisions are tolerable since the full metadata round-trips through
// the payload.
func numericPointID(id string) uint64 {
	var hash int32
	for _, r := range id {
		hash = (hash << 5) - hash + int32(r)
	}
	if hash < 0 {
		hash = -hash
	}
	return uint64(uint32(hash))
}

type tradePayload struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	LotSize   float64 `json:"lot_size"`
	Entry     float64 `json:"entry"`
	Exit      float64 `json:"exit"`
	PnL       float64 `json:"pnl"`
	Timestamp string  `json:"timestamp"`
}

func payloadFromTrade(t domain.Trade) tradePayload {
	return tradePayload{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Direction: string(t.Direction),
		LotSize:   t.LotSize,
		Entry:     t.Entry,
		Exit:      t.Exit,
		PnL:       t.PnL,
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (p tradePayload) toTrade() (domain.Trade, error) {
	ts, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse timestamp %q: %w", p.Timestamp, err)
	}
	return domain.Trade{
		ID:        p.ID,
		Symbol:    p.Symbol,
		Direction: domain.TradeDirection(p.Direction),
		LotSize:   p.LotSize,
		Entry:     p.Entry,
		Exit:      p.Exit,
		PnL:       p.PnL,
		Timestamp: ts,
	}, nil
}
