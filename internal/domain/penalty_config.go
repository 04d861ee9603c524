package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyConfigOverride holds the per-listing or per-location overstay
// settings. A nil field falls through to the next tier.
type PenaltyConfigOverride struct {
	GracePeriodDays *int
	PenaltyRate     *decimal.Decimal
	MaxPenaltyDays  *int
	PolicyText      *string
}

// EffectivePenaltyConfig is the fully resolved configuration used for one
// detection pass over one booking. Derived, never persisted.
type EffectivePenaltyConfig struct {
	GracePeriodDays int
	PenaltyRate     decimal.Decimal
	MaxPenaltyDays  int
	PolicyText      string
}

// ResolvePenaltyConfig overlays platform defaults with the location override,
// then the listing override, in that priority order.
func ResolvePenaltyConfig(platform EffectivePenaltyConfig, location, listing *PenaltyConfigOverride) EffectivePenaltyConfig {
	cfg := platform
	for _, o := range []*PenaltyConfigOverride{location, listing} {
		if o == nil {
			continue
		}
		if o.GracePeriodDays != nil {
			cfg.GracePeriodDays = *o.GracePeriodDays
		}
		if o.PenaltyRate != nil {
			cfg.PenaltyRate = *o.PenaltyRate
		}
		if o.MaxPenaltyDays != nil {
			cfg.MaxPenaltyDays = *o.MaxPenaltyDays
		}
		if o.PolicyText != nil {
			cfg.PolicyText = *o.PolicyText
		}
	}
	return cfg
}

// PenaltyDays clamps the billable overstay days to [0, MaxPenaltyDays] after
// subtracting the grace period.
func (c EffectivePenaltyConfig) PenaltyDays(daysOverdue int) int {
	days := daysOverdue - c.GracePeriodDays
	if days < 0 {
		days = 0
	}
	if days > c.MaxPenaltyDays {
		days = c.MaxPenaltyDays
	}
	return days
}

// PenaltyCents computes round(dailyRate * (1 + rate)) * penaltyDays. The daily
// charge includes the underlying rental rate plus the surcharge: an overstayed
// booking re-rents the slot at a premium.
func (c EffectivePenaltyConfig) PenaltyCents(dailyRateCents int64, penaltyDays int) int64 {
	if penaltyDays <= 0 {
		return 0
	}
	perDay := decimal.NewFromInt(dailyRateCents).
		Mul(decimal.NewFromInt(1).Add(c.PenaltyRate)).
		Round(0)
	return perDay.IntPart() * int64(penaltyDays)
}

// GracePeriodEnd returns the first day on which penalties accrue.
func (c EffectivePenaltyConfig) GracePeriodEnd(endDate time.Time) time.Time {
	return endDate.AddDate(0, 0, c.GracePeriodDays)
}

// TaxCents computes round(base * taxRatePercent / 100).
func TaxCents(baseCents int64, taxRatePercent decimal.Decimal) int64 {
	return decimal.NewFromInt(baseCents).
		Mul(taxRatePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// ProcessingFeeCents sizes the platform surcharge to offset the gateway's
// processing cost: round(base * percent / 100) + fixed.
func ProcessingFeeCents(amountCents int64, percent decimal.Decimal, fixedCents int64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart() + fixedCents
}

// WholeDaysBetween returns the number of whole calendar days from a to b in
// UTC. Negative when b precedes a.
func WholeDaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
