package anomaly

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"trade-coach/internal/domain"
)

func makeTrades(lots []float64, pnls []float64) []domain.Trade {
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	trades := make([]domain.Trade, len(lots))
	for i := range lots {
		pnl := 10.0
		if i < len(pnls) {
			pnl = pnls[i]
		}
		trades[i] = domain.Trade{
			ID:        string(rune('a' + i)),
			Symbol:    "EURUSD",
			Direction: domain.DirectionLong,
			LotSize:   lots[i],
			Entry:     1.1,
			Exit:      1.2,
			PnL:       pnl,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return trades
}

func findBehavior(report domain.AnomalyReport, typ domain.BehaviorType) *domain.Behavior {
	for i := range report.Behaviors {
		if report.Behaviors[i].Type == typ {
			return &report.Behaviors[i]
		}
	}
	return nil
}

func TestDetectEmptyBatch(t *testing.T) {
	report := NewEngine().Detect(nil)
	if report.RiskScore != 0 {
		t.Fatalf("expected score 0, got %d", report.RiskScore)
	}
	if len(report.Behaviors) != 0 {
		t.Fatalf("expected no behaviors, got %d", len(report.Behaviors))
	}
}

func TestDetectOverLeverageLowSeverity(t *testing.T) {
	// mean=2, threshold=4, only the size-5 trade is flagged, ratio=2.5.
	trades := makeTrades([]float64{1, 1, 1, 5}, nil)

	report := NewEngine().Detect(trades)
	b := findBehavior(report, domain.BehaviorOverLeverage)
	if b == nil {
		t.Fatal("expected over-leverage behavior")
	}
	if b.Severity != domain.SeverityLow {
		t.Fatalf("expected low severity, got %s", b.Severity)
	}
	if !strings.Contains(b.Description, "1 trade(s)") {
		t.Fatalf("expected count in description, got %q", b.Description)
	}
	if !strings.Contains(b.Description, "(2.00)") || !strings.Contains(b.Description, "5.00") {
		t.Fatalf("expected mean and max in description, got %q", b.Description)
	}
}

func TestDetectOverLeverageSeverityThresholds(t *testing.T) {
	// mean=2, max=7, ratio=3.5 -> medium
	trades := makeTrades([]float64{1, 1, 1, 1, 1, 1, 7}, nil)
	b := findBehavior(NewEngine().Detect(trades), domain.BehaviorOverLeverage)
	if b == nil || b.Severity != domain.SeverityMedium {
		t.Fatalf("expected medium severity, got %+v", b)
	}

	// mean=2, max=11, ratio=5.5 -> high
	trades = makeTrades([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 11}, nil)
	b = findBehavior(NewEngine().Detect(trades), domain.BehaviorOverLeverage)
	if b == nil || b.Severity != domain.SeverityHigh {
		t.Fatalf("expected high severity, got %+v", b)
	}
}

func TestDetectRevengeTradingMediumOnRatio(t *testing.T) {
	// one instance with ratio 2.0: instances<2 but ratio>1.5 -> medium.
	trades := makeTrades([]float64{1, 2}, []float64{-10, 5})

	b := findBehavior(NewEngine().Detect(trades), domain.BehaviorRevengeTrading)
	if b == nil {
		t.Fatal("expected revenge-trading behavior")
	}
	if b.Severity != domain.SeverityMedium {
		t.Fatalf("expected medium severity, got %s", b.Severity)
	}
	if !strings.Contains(b.Description, "1 instance(s)") || !strings.Contains(b.Description, "2.00x") {
		t.Fatalf("unexpected description: %q", b.Description)
	}
}

func TestDetectRevengeTradingHighOnInstances(t *testing.T) {
	// three loss->size-up pairs with modest ratios -> high on instance count.
	trades := makeTrades(
		[]float64{1, 1.2, 1.4, 1.6},
		[]float64{-5, -5, -5, 10},
	)
	b := findBehavior(NewEngine().Detect(trades), domain.BehaviorRevengeTrading)
	if b == nil || b.Severity != domain.SeverityHigh {
		t.Fatalf("expected high severity, got %+v", b)
	}
}

func TestDetectRevengeTradingNeedsTwoTrades(t *testing.T) {
	trades := makeTrades([]float64{1}, []float64{-10})
	if b := findBehavior(NewEngine().Detect(trades), domain.BehaviorRevengeTrading); b != nil {
		t.Fatalf("expected no revenge behavior, got %+v", b)
	}
}

func TestDetectTiltStreaks(t *testing.T) {
	cases := []struct {
		pnls     []float64
		expected domain.Severity
		detected bool
	}{
		{[]float64{-1, -1, -1, -1, -1}, domain.SeverityHigh, true},
		{[]float64{5, -1, -1, -1, -1, 5}, domain.SeverityMedium, true},
		{[]float64{-1, -1, -1, 5}, domain.SeverityLow, true},
		{[]float64{-1, -1, 5, -1}, "", false},
	}
	for _, tc := range cases {
		lots := make([]float64, len(tc.pnls))
		for i := range lots {
			lots[i] = 1
		}
		b := findBehavior(NewEngine().Detect(makeTrades(lots, tc.pnls)), domain.BehaviorTilt)
		if tc.detected {
			if b == nil {
				t.Fatalf("pnls %v: expected tilt behavior", tc.pnls)
			}
			if b.Severity != tc.expected {
				t.Fatalf("pnls %v: expected %s severity, got %s", tc.pnls, tc.expected, b.Severity)
			}
		} else if b != nil {
			t.Fatalf("pnls %v: expected no tilt behavior, got %+v", tc.pnls, b)
		}
	}
}

func TestDetectSortsByTimestampBeforeSequencing(t *testing.T) {
	// Losing trade is last in the slice but earliest in time; revenge rule
	// must still see loss -> larger size.
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		{ID: "b", Symbol: "EURUSD", Direction: domain.DirectionLong, LotSize: 3, PnL: 8, Timestamp: base.Add(time.Hour)},
		{ID: "a", Symbol: "EURUSD", Direction: domain.DirectionLong, LotSize: 1, PnL: -4, Timestamp: base},
	}
	if b := findBehavior(NewEngine().Detect(trades), domain.BehaviorRevengeTrading); b == nil {
		t.Fatal("expected revenge behavior across unordered input")
	}
}

func TestDetectBehaviorOrderIsFixed(t *testing.T) {
	// Batch triggering all three rules: oversized trade after a losing
	// streak of three.
	trades := makeTrades(
		[]float64{1, 1, 1, 9},
		[]float64{-5, -5, -5, 20},
	)
	report := NewEngine().Detect(trades)
	got := make([]domain.BehaviorType, 0, len(report.Behaviors))
	for _, b := range report.Behaviors {
		got = append(got, b.Type)
	}
	want := []domain.BehaviorType{
		domain.BehaviorOverLeverage,
		domain.BehaviorRevengeTrading,
		domain.BehaviorTilt,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
}

func TestRiskScoreBoundedAndWeighted(t *testing.T) {
	score := riskScore([]domain.Behavior{
		{Type: domain.BehaviorOverLeverage, Severity: domain.SeverityHigh},
		{Type: domain.BehaviorRevengeTrading, Severity: domain.SeverityHigh},
		{Type: domain.BehaviorTilt, Severity: domain.SeverityHigh},
	})
	if score != 100 {
		t.Fatalf("expected clamp to 100, got %d", score)
	}

	score = riskScore([]domain.Behavior{
		{Type: domain.BehaviorOverLeverage, Severity: domain.SeverityLow},
	})
	if score != 15 {
		t.Fatalf("expected 15, got %d", score)
	}

	score = riskScore([]domain.Behavior{
		{Type: domain.BehaviorTilt, Severity: domain.SeverityMedium},
		{Type: domain.BehaviorRevengeTrading, Severity: domain.SeverityLow},
	})
	if score != 43 {
		t.Fatalf("expected 43, got %d", score)
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	trades := makeTrades([]float64{1, 2, 1, 5}, []float64{-5, 3, -2, -8})
	engine := NewEngine()
	first := engine.Detect(trades)
	second := engine.Detect(trades)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical reports, got %+v vs %+v", first, second)
	}
}
