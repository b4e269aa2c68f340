// Package rollup derives scalar summaries from filtered record sets.
//
// A nil result always means "not derivable": the source was unavailable, the
// set was empty or an input was missing. It is never folded into zero.
package rollup

import (
	"github.com/web3-frozen/defi-overview/internal/llama"
)

// Field selects a window total of a dimension record.
type Field int

const (
	Total24h Field = iota
	Total30d
	TotalAllTime
)

func (f Field) value(r llama.DimensionProtocol) float64 {
	switch f {
	case Total24h:
		return r.Total24h
	case Total30d:
		return r.Total30d
	case TotalAllTime:
		return r.TotalAllTime
	}
	return 0
}

// SumWindow sums field across records. Missing fields count as zero.
func SumWindow(records []llama.DimensionProtocol, field Field) *float64 {
	if len(records) == 0 {
		return nil
	}
	var sum float64
	for _, r := range records {
		sum += field.value(r)
	}
	return &sum
}

// WindowSums holds the three window totals of one metric.
type WindowSums struct {
	Daily   *float64
	Monthly *float64
	AllTime *float64
}

// Windows sums records over each window; see SumWindow.
func Windows(records []llama.DimensionProtocol) WindowSums {
	return WindowSums{
		Daily:   SumWindow(records, Total24h),
		Monthly: SumWindow(records, Total30d),
		AllTime: SumWindow(records, TotalAllTime),
	}
}

// YieldSummary summarises a protocol's yield pools.
type YieldSummary struct {
	NoOfPoolsTracked int     `json:"noOfPoolsTracked"`
	AverageAPY       float64 `json:"averageAPY"`
}

// Yields reports the pool count and unweighted mean APY, or nil without pools.
func Yields(pools []llama.YieldPool) *YieldSummary {
	if len(pools) == 0 {
		return nil
	}
	var total float64
	for _, p := range pools {
		total += p.APY
	}
	return &YieldSummary{
		NoOfPoolsTracked: len(pools),
		AverageAPY:       total / float64(len(pools)),
	}
}

// UpcomingUnlocks returns every event at the soonest timestamp not before
// now. It returns nil when there is no such event, or when that event
// unlocks exactly zero tokens.
func UpcomingUnlocks(events []llama.EmissionEvent, now int64) []llama.EmissionEvent {
	first := -1
	for i, e := range events {
		if e.Timestamp < now {
			continue
		}
		if first < 0 || e.Timestamp < events[first].Timestamp {
			first = i
		}
	}
	if first < 0 {
		return nil
	}
	if n := events[first].NoOfTokens; len(n) == 1 && n[0] == 0 {
		return nil
	}

	var out []llama.EmissionEvent
	for _, e := range events {
		if e.Timestamp == events[first].Timestamp {
			out = append(out, e)
		}
	}
	return out
}

// TokensUnlocked sums the tie-set: a single amount counts as itself, a
// [from, to] range as to-from.
func TokensUnlocked(set []llama.EmissionEvent) float64 {
	var total float64
	for _, e := range set {
		switch len(e.NoOfTokens) {
		case 0:
		case 2:
			total += e.NoOfTokens[1] - e.NoOfTokens[0]
		default:
			total += e.NoOfTokens[0]
		}
	}
	return total
}

// UnlockValuation is the USD value of an unlock and its share of market cap
// in percent.
type UnlockValuation struct {
	USD     *float64
	Percent *float64
}

// UnlockValue values tokens at price against mcap. Price and mcap of zero are
// treated as missing, which is how the market upstream encodes them.
func UnlockValue(tokens float64, price, mcap *float64) UnlockValuation {
	var v UnlockValuation
	if price == nil || *price == 0 {
		return v
	}
	usd := tokens * *price
	v.USD = &usd
	if usd == 0 || mcap == nil || *mcap == 0 {
		return v
	}
	pct := usd / *mcap * 100
	v.Percent = &pct
	return v
}

// LatestValue returns the value of the last point of a series.
func LatestValue(series []llama.Point) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1].Value()
	return &v
}
