// internal/services/pricing_engine.go
package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// PricingEngine computes renewal terms from a license's history and a
// strategy. Price is deterministic and side-effect free: the same input
// always yields the same breakdown, so it doubles as the preview path.
type PricingEngine struct {
	cfg config.EngineConfig
}

// PricingInput is everything Price needs; callers resolve times and metrics
// before the call so the function itself never reads the clock.
type PricingInput struct {
	OriginalFee         int64
	OriginalRevShareBps int
	PriorRenewals       int
	DaysUntilExpiry     int
	PerformanceScore    float64 // usage vs segment benchmark, 1.0 = on par, 0 = unknown
	MarketBenchmarkFee  int64   // external benchmark in minor units, 0 = unknown
	Strategy            models.RenewalStrategy
	CustomAdjustmentPct *float64
}

// PriceAdjustment is one named step of the chain, recorded with its own
// reason for auditability.
type PriceAdjustment struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Amount  int64   `json:"amount"`
	Reason  string  `json:"reason"`
}

// PricingBreakdown is the engine's full answer: the ordered adjustments, the
// clamped final terms and the assembled reasoning.
type PricingBreakdown struct {
	Strategy         models.RenewalStrategy `json:"strategy"`
	OriginalFee      int64                  `json:"original_fee"`
	BaseRenewalFee   int64                  `json:"base_renewal_fee"`
	Adjustments      []PriceAdjustment      `json:"adjustments"`
	FinalFee         int64                  `json:"final_fee"`
	FinalRevShareBps int                    `json:"final_rev_share_bps"`
	Clamped          bool                   `json:"clamped"`
	ClampNote        string                 `json:"clamp_note,omitempty"`
	Confidence       float64                `json:"confidence"`
	Reasoning        []string               `json:"reasoning"`
}

func NewPricingEngine(cfg config.EngineConfig) *PricingEngine {
	return &PricingEngine{cfg: cfg}
}

// Price chains the configured adjustments over a decimal subtotal and rounds
// once at the end (half-up to the nearest minor unit). Per-step Amount values
// are reported rounded but never fed back into the chain, so step-level
// display rounding cannot skew the final fee.
func (e *PricingEngine) Price(in PricingInput) (*PricingBreakdown, error) {
	if in.OriginalFee <= 0 {
		return nil, fmt.Errorf("pricing requires a positive original fee, got %d", in.OriginalFee)
	}
	if in.Strategy == models.RenewalStrategyNegotiated && in.CustomAdjustmentPct == nil {
		return nil, fmt.Errorf("negotiated strategy requires a custom adjustment percent")
	}

	breakdown := &PricingBreakdown{
		Strategy:         in.Strategy,
		OriginalFee:      in.OriginalFee,
		FinalRevShareBps: in.OriginalRevShareBps,
	}

	subtotal := decimal.NewFromInt(in.OriginalFee)

	apply := func(label string, percent float64, reason string) {
		factor := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(percent).Div(decimal.NewFromInt(100)))
		next := subtotal.Mul(factor)
		breakdown.Adjustments = append(breakdown.Adjustments, PriceAdjustment{
			Label:   label,
			Percent: percent,
			Amount:  next.Sub(subtotal).Round(0).IntPart(),
			Reason:  reason,
		})
		breakdown.Reasoning = append(breakdown.Reasoning, reason)
		subtotal = next
	}

	// Base uplift first: baseRenewalFee = originalFee * (1 + standard rate)
	apply("standard_rate_adjustment", e.cfg.StandardRateAdjustmentPct,
		fmt.Sprintf("standard renewal uplift of %.2f%% over the original fee", e.cfg.StandardRateAdjustmentPct))
	breakdown.BaseRenewalFee = subtotal.Round(0).IntPart()

	if pct := e.loyaltyPct(in); pct != 0 {
		apply("loyalty_discount", pct,
			fmt.Sprintf("loyalty discount of %.2f%% for %d prior renewals", -pct, in.PriorRenewals))
	}

	if pct := e.earlyRenewalPct(in); pct != 0 {
		apply("early_renewal_discount", pct,
			fmt.Sprintf("early-renewal discount of %.2f%% for renewing %d days before expiry", -pct, in.DaysUntilExpiry))
	}

	if pct := e.performancePct(in); pct != 0 {
		kind := "bonus"
		if pct < 0 {
			kind = "penalty"
		}
		apply("performance_adjustment", pct,
			fmt.Sprintf("performance %s of %.2f%% against the segment benchmark (score %.2f)", kind, pct, in.PerformanceScore))
	}

	if pct := e.marketRatePct(in, subtotal); pct != 0 {
		apply("market_rate_adjustment", pct,
			fmt.Sprintf("market-rate adjustment of %.2f%% toward the external benchmark", pct))
	}

	if in.Strategy == models.RenewalStrategyNegotiated && in.CustomAdjustmentPct != nil {
		apply("negotiated_override", *in.CustomAdjustmentPct,
			fmt.Sprintf("negotiated adjustment of %.2f%% applied directly", *in.CustomAdjustmentPct))
	}

	// Floor/ceiling clamp always runs last
	floor := decimal.NewFromInt(e.cfg.FeeFloorMinor)
	ceiling := decimal.NewFromInt(in.OriginalFee).Mul(decimal.NewFromFloat(e.cfg.FeeCeilingMultiple))
	switch {
	case subtotal.LessThan(floor):
		breakdown.Clamped = true
		breakdown.ClampNote = fmt.Sprintf("fee raised to the configured floor of %d", e.cfg.FeeFloorMinor)
		subtotal = floor
	case subtotal.GreaterThan(ceiling):
		breakdown.Clamped = true
		breakdown.ClampNote = fmt.Sprintf("fee capped at %.1fx the original fee", e.cfg.FeeCeilingMultiple)
		subtotal = ceiling
	}
	if breakdown.Clamped {
		breakdown.Reasoning = append(breakdown.Reasoning, breakdown.ClampNote)
	}

	// Single terminal rounding, half-up
	breakdown.FinalFee = subtotal.Round(0).IntPart()
	breakdown.Confidence = e.confidence(in)

	return breakdown, nil
}

// loyaltyPct scales with prior renewal count, capped.
func (e *PricingEngine) loyaltyPct(in PricingInput) float64 {
	if in.PriorRenewals <= 0 {
		return 0
	}
	discount := e.cfg.LoyaltyDiscountPctPerTerm * float64(in.PriorRenewals)
	if discount > e.cfg.LoyaltyDiscountCapPct {
		discount = e.cfg.LoyaltyDiscountCapPct
	}
	return -discount
}

// earlyRenewalPct grants the configured percent per full 30-day block of lead
// time, capped, and only when the lead time clears the configured minimum.
func (e *PricingEngine) earlyRenewalPct(in PricingInput) float64 {
	if in.DaysUntilExpiry < e.cfg.EarlyRenewalMinLeadDays {
		return 0
	}
	blocks := in.DaysUntilExpiry / 30
	discount := e.cfg.EarlyRenewalDiscountPct * float64(blocks)
	if discount > e.cfg.EarlyRenewalCapPct {
		discount = e.cfg.EarlyRenewalCapPct
	}
	return -discount
}

// performancePct converts the usage score (1.0 = benchmark) into a bonus or
// penalty, capped symmetrically.
func (e *PricingEngine) performancePct(in PricingInput) float64 {
	if in.PerformanceScore == 0 {
		return 0
	}
	swing := (in.PerformanceScore - 1.0) * 10
	if swing > e.cfg.PerformanceSwingCapPct {
		swing = e.cfg.PerformanceSwingCapPct
	}
	if swing < -e.cfg.PerformanceSwingCapPct {
		swing = -e.cfg.PerformanceSwingCapPct
	}
	return swing
}

// marketRatePct closes the configured fraction of the gap between the running
// subtotal and the external benchmark. MARKET_RATE and AUTOMATIC only.
func (e *PricingEngine) marketRatePct(in PricingInput, subtotal decimal.Decimal) float64 {
	if in.Strategy != models.RenewalStrategyMarketRate && in.Strategy != models.RenewalStrategyAutomatic {
		return 0
	}
	if in.MarketBenchmarkFee <= 0 || subtotal.IsZero() {
		return 0
	}
	gap, _ := decimal.NewFromInt(in.MarketBenchmarkFee).
		Sub(subtotal).
		Div(subtotal).
		Mul(decimal.NewFromInt(100)).
		Float64()
	return gap * e.cfg.MarketRatePullPct / 100
}

// confidence grows with history depth and tops out below certainty.
func (e *PricingEngine) confidence(in PricingInput) float64 {
	renewals := in.PriorRenewals
	if renewals > 3 {
		renewals = 3
	}
	score := 0.5 + 0.15*float64(renewals)
	if score > 0.95 {
		score = 0.95
	}
	return score
}

// ProRataFee computes an extension's additional fee: the original fee spread
// over the original duration, times the extension days, rounded half-up.
func ProRataFee(originalFee int64, originalDurationDays, extensionDays int) int64 {
	if originalDurationDays < 1 {
		originalDurationDays = 1
	}
	return decimal.NewFromInt(originalFee).
		Div(decimal.NewFromInt(int64(originalDurationDays))).
		Mul(decimal.NewFromInt(int64(extensionDays))).
		Round(0).
		IntPart()
}
