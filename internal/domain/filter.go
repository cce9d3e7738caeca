package domain

import "sort"

// DefaultLimit caps a filtered result set when the caller does not ask for a
// specific size.
const DefaultLimit = 100

// FilterSpec holds inclusive numeric bounds for the filter stage. Zero
// values mean "no constraint" (Limit falls back to DefaultLimit).
type FilterSpec struct {
	Strategy         Strategy
	MinDTE           int
	MaxDTE           int
	MinROI           float64
	MaxROI           float64
	MinPoP           float64
	MinVolume        int64
	MinOpenInterest  int64
	MaxCapital       float64
	IncludeEstimated bool
	Limit            int
}

// FilterAndRank applies spec to opps and returns the survivors sorted by
// ROI/day descending, truncated to the limit. Ties break by symbol, strike,
// then expiration so equal-ROI results are deterministic. The input slice is
// not modified; calling twice with the same spec yields the same result.
func FilterAndRank(opps []Opportunity, spec FilterSpec) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, o := range opps {
		if !matches(o, spec) {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ROIPerDay != b.ROIPerDay {
			return a.ROIPerDay > b.ROIPerDay
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Expiration.Before(b.Expiration)
	})

	limit := spec.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matches(o Opportunity, spec FilterSpec) bool {
	if spec.Strategy != "" && o.Strategy != spec.Strategy {
		return false
	}
	if !spec.IncludeEstimated && o.DataQuality == QualityEstimated {
		return false
	}
	if spec.MinDTE > 0 && o.DTE < spec.MinDTE {
		return false
	}
	if spec.MaxDTE > 0 && o.DTE > spec.MaxDTE {
		return false
	}
	if spec.MinROI > 0 && o.ROI < spec.MinROI {
		return false
	}
	if spec.MaxROI > 0 && o.ROI > spec.MaxROI {
		return false
	}
	if spec.MinPoP > 0 && o.PoP < spec.MinPoP {
		return false
	}
	if spec.MinVolume > 0 && o.Volume < spec.MinVolume {
		return false
	}
	if spec.MinOpenInterest > 0 && o.OpenInterest < spec.MinOpenInterest {
		return false
	}
	if spec.MaxCapital > 0 && o.Capital > spec.MaxCapital {
		return false
	}
	return true
}
