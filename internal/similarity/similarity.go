// Package similarity ranks protocols that resemble a given one by category
// and chain overlap.
package similarity

import (
	"sort"
	"strings"

	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/protocol"
)

const (
	byChainsTake = 5
	maxResults   = 10
)

type Candidate struct {
	Name         string   `json:"name"`
	TVL          float64  `json:"tvl"`
	CommonChains int      `json:"commonChains"`
	Chains       []string `json:"chains"`
}

// Rank returns up to ten protocols in the same category sharing at least
// one chain with id. The five with the most chains in common come first,
// then the rest by TVL.
func Rank(universe *llama.ProtocolsListing, id *protocol.Identity) []Candidate {
	out := make([]Candidate, 0)
	if universe == nil || id.Category == "" {
		return out
	}

	category := strings.ToLower(id.Category)
	name := strings.ToLower(id.Name)
	own := make(map[string]bool, len(id.Chains))
	for _, c := range id.Chains {
		own[c] = true
	}

	var candidates []Candidate
	for _, p := range universe.Protocols {
		if p.Category == "" || strings.ToLower(p.Category) != category || strings.ToLower(p.Name) == name {
			continue
		}
		shared := false
		for _, c := range p.Chains {
			if own[c] {
				shared = true
				break
			}
		}
		if !shared {
			continue
		}
		candidates = append(candidates, Candidate{
			Name:         p.Name,
			TVL:          p.TVL,
			CommonChains: commonChains(id.Chains, p.Chains),
			Chains:       p.Chains,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].TVL > candidates[j].TVL })

	byChains := append([]Candidate(nil), candidates...)
	sort.SliceStable(byChains, func(i, j int) bool { return byChains[i].CommonChains > byChains[j].CommonChains })
	if len(byChains) > byChainsTake {
		byChains = byChains[:byChainsTake]
	}

	seen := make(map[string]bool, maxResults)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, c := range byChains {
		add(c.Name)
	}
	for _, c := range candidates {
		if len(names) >= maxResults {
			break
		}
		add(c.Name)
	}

	// Resolve each name to its first record in TVL order.
	first := make(map[string]Candidate, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		first[candidates[i].Name] = candidates[i]
	}
	for _, n := range names {
		out = append(out, first[n])
	}
	return out
}

// commonChains counts the chains of ours that also appear in theirs.
func commonChains(ours, theirs []string) int {
	set := make(map[string]bool, len(theirs))
	for _, c := range theirs {
		set[c] = true
	}
	n := 0
	for _, c := range ours {
		if set[c] {
			n++
		}
	}
	return n
}
