package anomaly

import (
	"fmt"
	"math"
	"sort"

	"trade-coach/internal/domain"
)

const (
	overLeverageFactor = 2.0
	overLeverageMedium = 3.0
	overLeverageHigh   = 4.0
	revengeRatioMedium = 1.5
	revengeRatioHigh   = 2.0
	tiltMinStreak      = 3
	tiltMediumStreak   = 4
	tiltHighStreak     = 5
	maxRiskScore       = 100
)

var behaviorWeights = map[domain.BehaviorType]float64{
	domain.BehaviorOverLeverage:       30,
	domain.BehaviorRevengeTrading:     35,
	domain.BehaviorTilt:               25,
	domain.BehaviorVolatilityMismatch: 20,
}

var severityFactors = map[domain.Severity]float64{
	domain.SeverityLow:    0.5,
	domain.SeverityMedium: 1.0,
	domain.SeverityHigh:   1.5,
}

// Engine is the rule-based behavioral scorer. It holds no state; Detect is
// deterministic and side-effect free.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Detect inspects a trade batch for risk patterns and derives a composite
// risk score. Behaviors appear in fixed order: over-leverage, revenge
// trading, tilt.
func (e *Engine) Detect(trades []domain.Trade) domain.AnomalyReport {
	if len(trades) == 0 {
		return domain.AnomalyReport{RiskScore: 0, Behaviors: []domain.Behavior{}}
	}

	behaviors := make([]domain.Behavior, 0, 3)
	if b, ok := detectOverLeverage(trades); ok {
		behaviors = append(behaviors, b)
	}
	if b, ok := detectRevengeTrading(trades); ok {
		behaviors = append(behaviors, b)
	}
	if b, ok := detectTilt(trades); ok {
		behaviors = append(behaviors, b)
	}

	return domain.AnomalyReport{
		RiskScore: riskScore(behaviors),
		Behaviors: behaviors,
	}
}

func detectOverLeverage(trades []domain.Trade) (domain.Behavior, bool) {
	var sum float64
	for _, t := range trades {
		sum += t.LotSize
	}
	mean := sum / float64(len(trades))
	threshold := mean * overLeverageFactor

	count := 0
	maxLot := 0.0
	for _, t := range trades {
		if t.LotSize > threshold {
			count++
			maxLot = math.Max(maxLot, t.LotSize)
		}
	}
	if count == 0 {
		return domain.Behavior{}, false
	}

	ratio := maxLot / mean
	severity := domain.SeverityLow
	if ratio > overLeverageHigh {
		severity = domain.SeverityHigh
	} else if ratio > overLeverageMedium {
		severity = domain.SeverityMedium
	}

	return domain.Behavior{
		Type:     domain.BehaviorOverLeverage,
		Severity: severity,
		Description: fmt.Sprintf(
			"Detected %d trade(s) with lot size exceeding 2x average (%.2f). Maximum lot size: %.2f.",
			count, mean, maxLot,
		),
	}, true
}

func detectRevengeTrading(trades []domain.Trade) (domain.Behavior, bool) {
	if len(trades) < 2 {
		return domain.Behavior{}, false
	}

	ordered := sortByTimestamp(trades)
	instances := 0
	maxIncrease := 0.0
	for i := 1; i < len(ordered); i++ {
		prev := ordered[i-1]
		curr := ordered[i]
		if prev.PnL < 0 && curr.LotSize > prev.LotSize {
			instances++
			maxIncrease = math.Max(maxIncrease, curr.LotSize/prev.LotSize)
		}
	}
	if instances == 0 {
		return domain.Behavior{}, false
	}

	severity := domain.SeverityLow
	if instances >= 3 || maxIncrease > revengeRatioHigh {
		severity = domain.SeverityHigh
	} else if instances >= 2 || maxIncrease > revengeRatioMedium {
		severity = domain.SeverityMedium
	}

	return domain.Behavior{
		Type:     domain.BehaviorRevengeTrading,
		Severity: severity,
		Description: fmt.Sprintf(
			"Detected %d instance(s) of revenge trading (increasing lot size after losses). Maximum increase: %.2fx.",
			instances, maxIncrease,
		),
	}, true
}

func detectTilt(trades []domain.Trade) (domain.Behavior, bool) {
	if len(trades) < tiltMinStreak {
		return domain.Behavior{}, false
	}

	ordered := sortByTimestamp(trades)
	maxStreak := 0
	streak := 0
	for _, t := range ordered {
		if t.PnL < 0 {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	if maxStreak < tiltMinStreak {
		return domain.Behavior{}, false
	}

	severity := domain.SeverityLow
	if maxStreak >= tiltHighStreak {
		severity = domain.SeverityHigh
	} else if maxStreak >= tiltMediumStreak {
		severity = domain.SeverityMedium
	}

	return domain.Behavior{
		Type:     domain.BehaviorTilt,
		Severity: severity,
		Description: fmt.Sprintf(
			"Detected tilt behavior with %d consecutive losses. This may indicate emotional trading.",
			maxStreak,
		),
	}, true
}

func riskScore(behaviors []domain.Behavior) int {
	var score float64
	for _, b := range behaviors {
		score += behaviorWeights[b.Type] * severityFactors[b.Severity]
	}
	rounded := int(math.Round(score))
	if rounded > maxRiskScore {
		return maxRiskScore
	}
	return rounded
}

func sortByTimestamp(trades []domain.Trade) []domain.Trade {
	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
