package domain

import (
	"math"
	"time"
)

const (
	contractMultiplier = 100
	daysPerYear        = 365

	// estimatedPremiumRate prices a contract with no quote and no last
	// trade at 2% of strike. Such results carry QualityEstimated and are
	// meant to be filtered, not traded.
	estimatedPremiumRate = 0.02
)

// PoPModel estimates the probability of profit for a contract. The default
// model is a heuristic; callers can swap in a proper pricing-model-derived
// implementation without touching the calculator.
type PoPModel interface {
	PoP(c OptionContract, underlyingPrice float64) float64
}

// Calculator turns contract snapshots into ranked opportunities. The zero
// value is not usable; construct with NewCalculator.
type Calculator struct {
	pop PoPModel
}

// NewCalculator returns a calculator using the given PoP model, or the
// default delta/distance heuristic when model is nil.
func NewCalculator(model PoPModel) *Calculator {
	if model == nil {
		model = DefaultPoPModel{}
	}
	return &Calculator{pop: model}
}

// Calculate derives an Opportunity from a contract snapshot and the
// underlying's price. It never fails: malformed inputs produce a result with
// defensive defaults and a DataQuality flag, and the filter stage decides
// whether to keep it.
func (calc *Calculator) Calculate(c OptionContract, underlyingPrice float64, now time.Time) Opportunity {
	premium, quality := effectivePremium(c)
	dte := DTE(c.Expiration, now)

	strategy := StrategyCoveredCall
	if c.Type == ContractPut {
		strategy = StrategyCashSecuredPut
	}

	// Capital the strategy ties up: cash to secure the put, or the shares
	// backing the call.
	capital := underlyingPrice * contractMultiplier
	if c.Type == ContractPut {
		capital = c.Strike * contractMultiplier
	}

	var roi float64
	if capital > 0 {
		roi = (premium * contractMultiplier / capital) * 100
	}
	roiPerDay := roi / float64(dte)
	roiAnnual := roiPerDay * daysPerYear

	var distance float64
	if underlyingPrice > 0 {
		if c.Type == ContractPut {
			distance = (underlyingPrice - c.Strike) / underlyingPrice * 100
		} else {
			distance = (c.Strike - underlyingPrice) / underlyingPrice * 100
		}
	}

	breakeven := c.Strike - premium
	if c.Type == ContractCall {
		breakeven = underlyingPrice - premium
	}

	return Opportunity{
		Symbol:       c.Underlying,
		Contract:     c.Ticker,
		Strategy:     strategy,
		Type:         c.Type,
		Strike:       c.Strike,
		Expiration:   c.Expiration,
		DTE:          dte,
		Premium:      premium,
		Capital:      capital,
		ROI:          roi,
		ROIPerDay:    roiPerDay,
		ROIAnnual:    roiAnnual,
		PoP:          calc.pop.PoP(c, underlyingPrice),
		Distance:     distance,
		Breakeven:    breakeven,
		StockPrice:   underlyingPrice,
		Bid:          c.Quote.Bid,
		Ask:          c.Quote.Ask,
		Volume:       c.Quote.Volume,
		OpenInterest: c.Quote.OpenInterest,
		IV:           c.Quote.IV,
		Greeks:       c.Quote.Greeks,
		DataQuality:  quality,
	}
}

// DTE returns whole days to expiration, floored at 1 so per-day ratios
// never divide by zero even for same-day or already-expired contracts.
func DTE(expiration, now time.Time) int {
	days := int(math.Ceil(expiration.Sub(now).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

// effectivePremium picks the best available premium estimate: quote
// midpoint, then last trade, then a flagged heuristic.
func effectivePremium(c OptionContract) (float64, DataQuality) {
	if c.Quote.Bid > 0 && c.Quote.Ask > 0 {
		return (c.Quote.Bid + c.Quote.Ask) / 2, QualityQuoted
	}
	if c.Quote.Last > 0 {
		return c.Quote.Last, QualityLastTrade
	}
	return c.Strike * estimatedPremiumRate, QualityEstimated
}

// DefaultPoPModel estimates probability of profit from delta when the
// provider supplied greeks, falling back to a linear interpolation from the
// OTM distance. Both are heuristics, not pricing-model outputs.
type DefaultPoPModel struct{}

// PoP implements PoPModel.
func (DefaultPoPModel) PoP(c OptionContract, underlyingPrice float64) float64 {
	// |delta| approximates the chance the option expires ITM, so the
	// short seller's PoP is its complement for both puts and calls.
	if g := c.Quote.Greeks; g != nil && g.Delta != 0 {
		return clampPoP((1 - math.Abs(g.Delta)) * 100)
	}
	if underlyingPrice <= 0 {
		return 50
	}
	var distance float64
	if c.Type == ContractPut {
		distance = (underlyingPrice - c.Strike) / underlyingPrice * 100
	} else {
		distance = (c.Strike - underlyingPrice) / underlyingPrice * 100
	}
	// Roughly 2.5 points of PoP per percent OTM, anchored at the money.
	return clampPoP(50 + distance*2.5)
}

func clampPoP(p float64) float64 {
	if p < 5 {
		return 5
	}
	if p > 95 {
		return 95
	}
	return p
}
