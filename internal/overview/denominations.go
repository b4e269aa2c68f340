package overview

import (
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/protocol"
)

// Denomination is a currency a protocol's charts can be shown in.
type Denomination struct {
	Symbol  string  `json:"symbol"`
	GeckoID *string `json:"geckoId"`
}

type gasToken struct {
	symbol  string
	geckoID string
}

// Chains whose native token is only a gas token; charts on them are
// denominated in the gas asset rather than the chain's own token.
var gasNotMcapTokens = map[string]gasToken{
	"Arbitrum":      {"ETH", "ethereum"},
	"Optimism":      {"ETH", "ethereum"},
	"Base":          {"ETH", "ethereum"},
	"Linea":         {"ETH", "ethereum"},
	"Scroll":        {"ETH", "ethereum"},
	"Blast":         {"ETH", "ethereum"},
	"zkSync Era":    {"ETH", "ethereum"},
	"Polygon zkEVM": {"ETH", "ethereum"},
	"Mode":          {"ETH", "ethereum"},
	"Zora":          {"ETH", "ethereum"},
	"Taiko":         {"ETH", "ethereum"},
	"Manta":         {"ETH", "ethereum"},
}

// chartDenominations lists USD first, then the token of the protocol's
// first chain. It is empty when the protocol has no chains.
func chartDenominations(chains []string, snap *metadata.Snapshot) []Denomination {
	out := make([]Denomination, 0, 2)
	if len(chains) == 0 {
		return out
	}
	out = append(out, Denomination{Symbol: "USD"})

	meta, ok := snap.Chain(protocol.Slug(chains[0]))
	if gas, isGas := gasNotMcapTokens[meta.Name]; ok && isGas {
		return append(out, Denomination{Symbol: gas.symbol, GeckoID: strPtr(gas.geckoID)})
	}
	if ok && meta.GeckoID != "" {
		return append(out, Denomination{Symbol: meta.TokenSymbol, GeckoID: strPtr(meta.GeckoID)})
	}
	eth := Denomination{Symbol: "ETH"}
	if m, ok := snap.Chain("ethereum"); ok && m.GeckoID != "" {
		eth.GeckoID = strPtr(m.GeckoID)
	}
	return append(out, eth)
}

func strPtr(s string) *string { return &s }
