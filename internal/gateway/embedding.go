package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-coach/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultEmbeddingDims = 768

// ErrInvalidEmbedding marks an empty or dimension-mismatched vector from
// the embedding backend.
var ErrInvalidEmbedding = errors.New("invalid embedding response")

// EmbeddingGateway renders trades to text and embeds them through an
// EmbeddingClient, enforcing the expected vector length.
type EmbeddingGateway struct {
	tracer trace.Tracer
	client EmbeddingClient
	dims   int
}

func NewEmbeddingGateway(tracer trace.Tracer, client EmbeddingClient, dims int) *EmbeddingGateway {
	if dims <= 0 {
		dims = defaultEmbeddingDims
	}
	return &EmbeddingGateway{tracer: tracer, client: client, dims: dims}
}

func (g *EmbeddingGateway) EmbedTrade(ctx context.Context, trade domain.Trade) ([]float64, error) {
	ctx, span := g.tracer.Start(ctx, "embedding-gateway.embed-trade")
	defer span.End()

	if g.client == nil {
		return nil, fmt.Errorf("embedding gateway is not configured")
	}

	vector, err := g.client.Embed(ctx, TradeToText(trade))
	if err != nil {
		return nil, fmt.Errorf("generate embedding for trade %s: %w", trade.ID, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty vector for trade %s", ErrInvalidEmbedding, trade.ID)
	}
	if len(vector) != g.dims {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidEmbedding, g.dims, len(vector))
	}
	return vector, nil
}

// TradeToText is the natural-language rendering embedded for similarity
// search.
func TradeToText(t domain.Trade) string {
	return fmt.Sprintf(
		"%s %s trade with lot size %g, P/L: %g, at %s",
		t.Symbol, t.Direction, t.LotSize, t.PnL, t.Timestamp.UTC().Format(time.RFC3339),
	)
}
