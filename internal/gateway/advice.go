package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trade-coach/internal/domain"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"
)

const defaultAdviceAttempts = 2

const coachSystemPrompt = "You are a trader performance coach. Your job is to evaluate the trader's recent trades, analyze anomalies, and provide clear, actionable coaching advice in simple language. Always be constructive, supportive, and specific."

// ErrEmptyAdvice marks a blank completion from the language model.
var ErrEmptyAdvice = errors.New("empty coaching response")

// AdviceGateway turns a coaching context into advice text through an
// LLMClient, with a bounded retry on failures and blank responses.
type AdviceGateway struct {
	tracer      trace.Tracer
	client      LLMClient
	maxAttempts uint
	retryBase   time.Duration
}

func NewAdviceGateway(tracer trace.Tracer, client LLMClient, maxAttempts int, retryBase time.Duration) *AdviceGateway {
	if maxAttempts <= 0 {
		maxAttempts = defaultAdviceAttempts
	}
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	return &AdviceGateway{
		tracer:      tracer,
		client:      client,
		maxAttempts: uint(maxAttempts),
		retryBase:   retryBase,
	}
}

func (g *AdviceGateway) Generate(ctx context.Context, cc domain.CoachingContext) (string, error) {
	ctx, span := g.tracer.Start(ctx, "advice-gateway.generate")
	defer span.End()

	if g.client == nil {
		return "", fmt.Errorf("advice gateway is not configured")
	}

	prompt := BuildPrompt(cc)
	op := func() (string, error) {
		text, err := g.client.Complete(ctx, coachSystemPrompt, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrEmptyAdvice
		}
		return text, nil
	}
	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(retryPolicy(g.retryBase)),
		backoff.WithMaxTries(g.maxAttempts),
	)
	if err != nil {
		return "", fmt.Errorf("generate coaching after %d attempts: %w", g.maxAttempts, err)
	}
	return text, nil
}

// BuildPrompt renders the coaching context into the user prompt sent to
// the model.
func BuildPrompt(cc domain.CoachingContext) string {
	var recent strings.Builder
	for i, t := range cc.RecentTrades {
		if i > 0 {
			recent.WriteByte('\n')
		}
		fmt.Fprintf(&recent, "- %s %s | Lot: %g | Entry: %g | Exit: %g | P/L: %g | Time: %s",
			t.Symbol, t.Direction, t.LotSize, t.Entry, t.Exit, t.PnL, t.Timestamp.UTC().Format(time.RFC3339))
	}

	similar := "No similar historical patterns found."
	if len(cc.SimilarPatterns) > 0 {
		var b strings.Builder
		for i, s := range cc.SimilarPatterns {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- %s %s | Lot: %g | P/L: %g | Similarity: %.1f%%",
				s.Symbol, s.Direction, s.LotSize, s.PnL, s.Similarity*100)
		}
		similar = b.String()
	}

	behaviors := "No anomalies detected."
	if len(cc.Report.Behaviors) > 0 {
		var b strings.Builder
		for i, bh := range cc.Report.Behaviors {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- %s (%s): %s", bh.Type, bh.Severity, bh.Description)
		}
		behaviors = b.String()
	}

	return fmt.Sprintf(`Here are the trader's last trades:
%s

Similar historical patterns retrieved:
%s

Anomaly detection output:
Risk Score: %d/100
Detected Behaviors:
%s

Generate 3-5 concise coaching insights. Focus on risk, psychology, consistency, and practical improvements for the next session.`,
		recent.String(), similar, cc.Report.RiskScore, behaviors)
}
