// Package merge reduces raw upstream datasets to the records that belong to
// one resolved protocol identity.
//
// A nil input always means the source was unavailable or skipped and yields
// a nil result; a non-nil input with no match yields an empty result.
package merge

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/protocol"
)

// ForIdentity keeps the dimension records that belong to id: an exact name
// match, or a child whose parentProtocol is id. The latter lets a parent
// rollup absorb every child without knowing them in advance.
func ForIdentity(records []llama.DimensionProtocol, id *protocol.Identity) []llama.DimensionProtocol {
	if records == nil {
		return nil
	}
	out := make([]llama.DimensionProtocol, 0)
	for _, r := range records {
		if r.Name == id.Name || (r.ParentProtocol != "" && r.ParentProtocol == id.ID) {
			out = append(out, r)
		}
	}
	return out
}

// Overview is ForIdentity over an optional overview payload.
func Overview(ov *llama.DimensionsOverview, id *protocol.Identity) []llama.DimensionProtocol {
	if ov == nil {
		return nil
	}
	return ForIdentity(ov.Protocols, id)
}

// Treasury returns the first treasury whose id, minus its -treasury suffix,
// equals the identity id.
func Treasury(list []llama.Treasury, id *protocol.Identity) *llama.Treasury {
	for i := range list {
		if strings.Replace(list[i].ID, "-treasury", "", 1) == id.ID {
			return &list[i]
		}
	}
	return nil
}

// LiquidityRow is one [displayName, chain, tvlUsd] row of the token
// liquidity table.
type LiquidityRow struct {
	Name   string
	Chain  string
	TVLUsd float64
}

func (r LiquidityRow) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{r.Name, r.Chain, r.TVLUsd})
}

// LiquidityPools returns the token pools listed for the identity.
func LiquidityPools(list []llama.ProtocolLiquidity, id *protocol.Identity) []llama.TokenPool {
	for _, p := range list {
		if p.ID == id.ID {
			return p.TokenPools
		}
	}
	return nil
}

// TokenLiquidity sums pool TVL per project and chain, names each project
// through the yields config and drops projects it cannot name. Rows are
// sorted by TVL descending; equal TVLs keep the order in which their
// project and chain were first seen.
func TokenLiquidity(pools []llama.TokenPool, config *llama.YieldConfig) []LiquidityRow {
	if config == nil {
		return []LiquidityRow{}
	}

	type project struct {
		name   string
		chains []string
		tvl    map[string]float64
	}
	var order []*project
	byName := map[string]*project{}
	for _, p := range pools {
		proj, ok := byName[p.Project]
		if !ok {
			proj = &project{name: p.Project, tvl: map[string]float64{}}
			byName[p.Project] = proj
			order = append(order, proj)
		}
		if _, seen := proj.tvl[p.Chain]; !seen {
			proj.chains = append(proj.chains, p.Chain)
		}
		proj.tvl[p.Chain] += p.TVLUsd
	}

	rows := make([]LiquidityRow, 0)
	for _, proj := range order {
		display := config.Protocols[proj.name].Name
		if display == "" {
			continue
		}
		for _, chain := range proj.chains {
			rows = append(rows, LiquidityRow{Name: display, Chain: chain, TVLUsd: proj.tvl[chain]})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TVLUsd > rows[j].TVLUsd })
	return rows
}

// Expenses returns the first expense record whose protocol id loosely equals
// the identity id; upstream ids arrive as numbers or strings.
func Expenses(list []llama.Expense, id *protocol.Identity) *llama.Expense {
	for i := range list {
		if list[i].ProtocolID.Equal(id.ID) {
			return &list[i]
		}
	}
	return nil
}

// Hacks returns the hacks whose defillamaId numerically equals the identity
// id, oldest first. Non-numeric ids never match.
func Hacks(list []llama.Hack, id *protocol.Identity) []llama.Hack {
	if list == nil {
		return nil
	}
	out := make([]llama.Hack, 0)
	want, err := strconv.ParseFloat(id.ID, 64)
	if err != nil {
		return out
	}
	for _, h := range list {
		got, err := strconv.ParseFloat(strings.TrimSpace(string(h.DefillamaID)), 64)
		if err == nil && got == want {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Raises returns the funding rounds of the identity, or nil when it has none.
func Raises(list []llama.Raise, id *protocol.Identity) []llama.Raise {
	var out []llama.Raise
	for _, r := range list {
		if r.DefillamaID == id.ID {
			out = append(out, r)
		}
	}
	return out
}

// YieldPools keeps the pools of the requested project slug. Identities that
// are not children of a parent also claim pools listed under their
// otherProtocols aliases.
func YieldPools(pools *llama.YieldPools, slug string, id *protocol.Identity) []llama.YieldPool {
	if pools == nil || pools.Data == nil {
		return nil
	}
	aliases := map[string]bool{}
	if id.ParentProtocol == "" {
		for _, p := range id.OtherProtocols {
			aliases[protocol.Slug(p)] = true
		}
	}
	out := make([]llama.YieldPool, 0)
	for _, p := range pools.Data {
		if p.Project == slug || aliases[p.Project] {
			out = append(out, p)
		}
	}
	return out
}

// Incentives finds the emissions entry of the identity: by display name for
// parent rollups, by defillamaId otherwise.
func Incentives(list *llama.EmissionsBreakdown, id *protocol.Identity) *llama.EmissionsEntry {
	if list == nil {
		return nil
	}
	for i := range list.Protocols {
		e := &list.Protocols[i]
		if id.IsParent() {
			if e.Name == id.Name {
				return e
			}
		} else if e.DefillamaID == id.ID {
			return e
		}
	}
	return nil
}

// NFTPoint is one day of marketplace volume.
type NFTPoint struct {
	Date      string  `json:"date"`
	Volume    float64 `json:"volume"`
	VolumeUsd float64 `json:"volumeUsd"`
}

// NFTVolume keeps the marketplace rows whose exchange name slugs to the
// requested slug.
func NFTVolume(list []llama.NFTVolume, slug string) []NFTPoint {
	out := make([]NFTPoint, 0)
	want := protocol.Slug(slug)
	for _, v := range list {
		if protocol.Slug(v.ExchangeName) == want {
			out = append(out, NFTPoint{Date: v.Day, Volume: v.Sum, VolumeUsd: v.SumUsd})
		}
	}
	return out
}
