package anomaly

import (
	"fmt"
	"math"

	"trade-coach/internal/domain"
)

// unboundedRatio is the sentinel for profit factor and risk/reward when the
// batch has wins but no losses. Effectively unbounded; always resolves the
// qualitative status to "excellent".
const unboundedRatio = 999

// BuildPatternIndicators projects an anomaly report and its trade batch into
// the dashboard-facing indicators. Pure derivation, recomputed per run.
func BuildPatternIndicators(report domain.AnomalyReport, trades []domain.Trade) domain.PatternIndicators {
	var overLeverage, revenge, tilt *domain.Behavior
	for i := range report.Behaviors {
		switch report.Behaviors[i].Type {
		case domain.BehaviorOverLeverage:
			overLeverage = &report.Behaviors[i]
		case domain.BehaviorRevengeTrading:
			revenge = &report.Behaviors[i]
		case domain.BehaviorTilt:
			tilt = &report.Behaviors[i]
		}
	}

	return domain.PatternIndicators{
		OverLeverage:      overLeverageIndicator(overLeverage),
		ProfitConsistency: profitConsistency(trades),
		TiltRevenge:       tiltRevengeIndicator(revenge, tilt),
		RiskReward:        riskReward(trades),
	}
}

func overLeverageIndicator(b *domain.Behavior) domain.OverLeverageIndicator {
	if b == nil {
		return domain.OverLeverageIndicator{
			Detected: false,
			Severity: domain.SeverityLow,
			Message:  "No over-leverage detected",
		}
	}
	return domain.OverLeverageIndicator{
		Detected: true,
		Severity: b.Severity,
		Message:  b.Description,
	}
}

func tiltRevengeIndicator(revenge, tilt *domain.Behavior) domain.TiltRevengeIndicator {
	instances := 0
	message := "No tilt or revenge trading detected"
	if revenge != nil {
		instances++
		message = revenge.Description
	}
	if tilt != nil {
		instances++
		if revenge == nil {
			message = tilt.Description
		}
	}
	return domain.TiltRevengeIndicator{
		Detected:  instances > 0,
		Instances: instances,
		Message:   message,
	}
}

func profitConsistency(trades []domain.Trade) domain.ProfitConsistencyIndicator {
	wins, losses := partitionPnL(trades)

	winRate := 0.0
	if len(trades) > 0 {
		winRate = float64(len(wins)) / float64(len(trades)) * 100
	}
	avgWin := average(wins)
	avgLoss := math.Abs(average(losses))

	totalWins := sum(wins)
	totalLosses := math.Abs(sum(losses))
	profitFactor := 0.0
	if totalLosses > 0 {
		profitFactor = totalWins / totalLosses
	} else if totalWins > 0 {
		profitFactor = unboundedRatio
	}

	status := domain.StatusPoor
	if winRate >= 60 && profitFactor >= 2 {
		status = domain.StatusExcellent
	} else if winRate >= 45 && profitFactor >= 1.5 {
		status = domain.StatusGood
	}

	var verdict string
	switch status {
	case domain.StatusExcellent:
		verdict = "Excellent consistency!"
	case domain.StatusGood:
		verdict = "Good performance, room for improvement."
	default:
		verdict = "Focus on improving win rate and profit factor."
	}

	return domain.ProfitConsistencyIndicator{
		WinRate:      winRate,
		AvgWin:       avgWin,
		AvgLoss:      avgLoss,
		ProfitFactor: profitFactor,
		Status:       status,
		Message:      fmt.Sprintf("Win rate: %.1f%%, Profit factor: %.2f. %s", winRate, profitFactor, verdict),
	}
}

func riskReward(trades []domain.Trade) domain.RiskRewardIndicator {
	wins, losses := partitionPnL(trades)

	avgWin := average(wins)
	avgLoss := math.Abs(average(losses))

	ratio := 0.0
	if avgLoss > 0 {
		ratio = avgWin / avgLoss
	} else if avgWin > 0 {
		ratio = unboundedRatio
	}

	status := domain.StatusPoor
	if ratio >= 2 {
		status = domain.StatusExcellent
	} else if ratio >= 1.5 {
		status = domain.StatusGood
	}

	var verdict string
	switch status {
	case domain.StatusExcellent:
		verdict = "Excellent risk management!"
	case domain.StatusGood:
		verdict = "Good risk/reward balance."
	default:
		verdict = "Consider improving your risk/reward ratio."
	}

	return domain.RiskRewardIndicator{
		Ratio:   ratio,
		Status:  status,
		Message: fmt.Sprintf("Average win: $%.2f, Average loss: $%.2f. %s", avgWin, avgLoss, verdict),
	}
}

func partitionPnL(trades []domain.Trade) (wins, losses []float64) {
	for _, t := range trades {
		if t.PnL > 0 {
			wins = append(wins, t.PnL)
		} else if t.PnL < 0 {
			losses = append(losses, t.PnL)
		}
	}
	return wins, losses
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
