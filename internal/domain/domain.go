package domain

import (
	"fmt"
	"strings"
	"time"
)

type TradeDirection string

const (
	DirectionLong  TradeDirection = "LONG"
	DirectionShort TradeDirection = "SHORT"
)

func (d TradeDirection) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Trade is one closed position as reported by the trade source.
type Trade struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Direction TradeDirection `json:"direction"`
	LotSize   float64        `json:"lot_size"`
	Entry     float64        `json:"entry"`
	Exit      float64        `json:"exit"`
	PnL       float64        `json:"pnl"`
	Timestamp time.Time      `json:"timestamp"`
}

func (t Trade) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("trade id must be a non-empty string")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trade %s: symbol must be a non-empty string", t.ID)
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("trade %s: direction must be LONG or SHORT", t.ID)
	}
	if t.LotSize <= 0 {
		return fmt.Errorf("trade %s: lot size must be positive", t.ID)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("trade %s: timestamp is required", t.ID)
	}
	return nil
}

// SimilarTrade is a stored trade returned from a similarity query.
type SimilarTrade struct {
	Trade
	Similarity float64 `json:"similarity"`
}

type BehaviorType string

const (
	BehaviorOverLeverage       BehaviorType = "over-leverage"
	BehaviorRevengeTrading     BehaviorType = "revenge-trading"
	BehaviorTilt               BehaviorType = "tilt"
	BehaviorVolatilityMismatch BehaviorType = "volatility-mismatch"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Behavior is a single detected risk pattern in a trade batch.
type Behavior struct {
	Type        BehaviorType `json:"type"`
	Severity    Severity     `json:"severity"`
	Description string       `json:"description"`
}

// AnomalyReport is the scoring engine output: a composite risk score in
// [0,100] plus the behaviors that contributed to it, in detection order.
type AnomalyReport struct {
	RiskScore int        `json:"risk_score"`
	Behaviors []Behavior `json:"detected_behaviors"`
}

type QualityStatus string

const (
	StatusExcellent QualityStatus = "excellent"
	StatusGood      QualityStatus = "good"
	StatusPoor      QualityStatus = "poor"
)

type OverLeverageIndicator struct {
	Detected bool     `json:"detected"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type ProfitConsistencyIndicator struct {
	WinRate      float64       `json:"win_rate"`
	AvgWin       float64       `json:"avg_win"`
	AvgLoss      float64       `json:"avg_loss"`
	ProfitFactor float64       `json:"profit_factor"`
	Status       QualityStatus `json:"status"`
	Message      string        `json:"message"`
}

type TiltRevengeIndicator struct {
	Detected  bool   `json:"detected"`
	Instances int    `json:"instances"`
	Message   string `json:"message"`
}

type RiskRewardIndicator struct {
	Ratio   float64       `json:"ratio"`
	Status  QualityStatus `json:"status"`
	Message string        `json:"message"`
}

// PatternIndicators is the presentation-oriented projection of an anomaly
// report plus the underlying batch, recomputed on every run.
type PatternIndicators struct {
	OverLeverage      OverLeverageIndicator      `json:"over_leverage"`
	ProfitConsistency ProfitConsistencyIndicator `json:"profit_consistency"`
	TiltRevenge       TiltRevengeIndicator       `json:"tilt_revenge"`
	RiskReward        RiskRewardIndicator        `json:"risk_reward"`
}

// CoachingResult is the payload attached to a completed workflow run.
type CoachingResult struct {
	Coaching  string            `json:"coaching"`
	Patterns  PatternIndicators `json:"patterns"`
	RiskScore int               `json:"risk_score"`
	Timestamp time.Time         `json:"timestamp"`
}

// CoachingContext is everything the advice gateway needs to build a prompt.
type CoachingContext struct {
	RecentTrades    []Trade
	SimilarPatterns []SimilarTrade
	Report          AnomalyReport
}

type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

type WorkflowStep string

const (
	StepLoadTrades       WorkflowStep = "LoadTrades"
	StepEmbedTrades      WorkflowStep = "EmbedTrades"
	StepStoreTrades      WorkflowStep = "StoreTrades"
	StepRetrieveSimilar  WorkflowStep = "RetrieveSimilar"
	StepDetectAnomalies  WorkflowStep = "DetectAnomalies"
	StepGenerateCoaching WorkflowStep = "GenerateCoaching"
)

// WorkflowRun tracks one execution of the coaching pipeline. Result is set
// iff Status is completed; Error and FailedStep iff Status is failed.
type WorkflowRun struct {
	ID         string          `json:"workflow_id"`
	Status     WorkflowStatus  `json:"status"`
	Result     *CoachingResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	FailedStep WorkflowStep    `json:"failed_step,omitempty"`
}
