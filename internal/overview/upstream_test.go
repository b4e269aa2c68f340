package overview

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/defi-overview/internal/llama"
)

// fakeUpstream serves canned payloads and counts calls per source. Payload
// fields are set before use and only read afterwards.
type fakeUpstream struct {
	mu    sync.Mutex
	calls map[string]int
	urls  []string
	errs  map[string]error

	protocol      *llama.Protocol
	articles      []llama.Article
	expenses      []llama.Expense
	treasuries    []llama.Treasury
	yields        *llama.YieldPools
	yieldConfig   *llama.YieldConfig
	liquidity     []llama.ProtocolLiquidity
	hacks         []llama.Hack
	raises        []llama.Raise
	protocols     *llama.ProtocolsListing
	activeUsers   *llama.ActiveUsers
	overviews     map[string]*llama.DimensionsOverview
	tokenMarket   *llama.TokenMarket
	devMetrics    json.RawMessage
	breakdown     *llama.EmissionsBreakdown
	emissions     map[string]*llama.ProtocolEmissions
	nftVolume     []llama.NFTVolume
	proposals     []llama.Proposal
	chainTVL      []llama.TVLPoint
	userData      map[string]json.RawMessage
	bridgeVolumes []llama.BridgeVolume
}

func overviewKey(adapterType, dataType string) string {
	return "overview:" + adapterType + "/" + dataType
}

func chainOverviewKey(adapterType, chain, dataType string) string {
	return "chain:" + adapterType + "/" + chain + "/" + dataType
}

func (u *fakeUpstream) hit(name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.calls == nil {
		u.calls = map[string]int{}
	}
	u.calls[name]++
	return u.errs[name]
}

func (u *fakeUpstream) count(name string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[name]
}

func (u *fakeUpstream) total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		n += c
	}
	return n
}

func (u *fakeUpstream) Endpoints() llama.Endpoints { return llama.DefaultEndpoints() }

func (u *fakeUpstream) FetchProtocol(_ context.Context, _ string) (*llama.Protocol, error) {
	if err := u.hit("protocol"); err != nil {
		return nil, err
	}
	return u.protocol, nil
}

func (u *fakeUpstream) FetchArticles(_ context.Context, _ string) ([]llama.Article, error) {
	if err := u.hit("articles"); err != nil {
		return nil, err
	}
	return u.articles, nil
}

func (u *fakeUpstream) FetchExpenses(_ context.Context) ([]llama.Expense, error) {
	if err := u.hit("expenses"); err != nil {
		return nil, err
	}
	return u.expenses, nil
}

func (u *fakeUpstream) FetchTreasuries(_ context.Context) ([]llama.Treasury, error) {
	if err := u.hit("treasury"); err != nil {
		return nil, err
	}
	return u.treasuries, nil
}

func (u *fakeUpstream) FetchYieldPools(_ context.Context) (*llama.YieldPools, error) {
	if err := u.hit("yields"); err != nil {
		return nil, err
	}
	return u.yields, nil
}

func (u *fakeUpstream) FetchYieldConfig(_ context.Context) (*llama.YieldConfig, error) {
	if err := u.hit("yields_config"); err != nil {
		return nil, err
	}
	return u.yieldConfig, nil
}

func (u *fakeUpstream) FetchLiquidity(_ context.Context) ([]llama.ProtocolLiquidity, error) {
	if err := u.hit("liquidity"); err != nil {
		return nil, err
	}
	return u.liquidity, nil
}

func (u *fakeUpstream) FetchHacks(_ context.Context) ([]llama.Hack, error) {
	if err := u.hit("hacks"); err != nil {
		return nil, err
	}
	return u.hacks, nil
}

func (u *fakeUpstream) FetchRaises(_ context.Context) ([]llama.Raise, error) {
	if err := u.hit("raises"); err != nil {
		return nil, err
	}
	return u.raises, nil
}

func (u *fakeUpstream) FetchProtocols(_ context.Context) (*llama.ProtocolsListing, error) {
	if err := u.hit("protocols"); err != nil {
		return nil, err
	}
	return u.protocols, nil
}

func (u *fakeUpstream) FetchActiveUsers(_ context.Context, _ string) (*llama.ActiveUsers, error) {
	if err := u.hit("active_users"); err != nil {
		return nil, err
	}
	return u.activeUsers, nil
}

func (u *fakeUpstream) FetchOverview(_ context.Context, adapterType, dataType string) (*llama.DimensionsOverview, error) {
	key := overviewKey(adapterType, dataType)
	if err := u.hit(key); err != nil {
		return nil, err
	}
	return u.overviews[key], nil
}

func (u *fakeUpstream) FetchChainOverview(_ context.Context, adapterType, chain, dataType string) (*llama.DimensionsOverview, error) {
	key := chainOverviewKey(adapterType, chain, dataType)
	if err := u.hit(key); err != nil {
		return nil, err
	}
	return u.overviews[key], nil
}

func (u *fakeUpstream) FetchSummary(_ context.Context, adapterType, name string) (*llama.DimensionsOverview, error) {
	key := "summary:" + adapterType + "/" + name
	if err := u.hit(key); err != nil {
		return nil, err
	}
	return u.overviews[key], nil
}

func (u *fakeUpstream) FetchTokenMarket(_ context.Context, _ string) (*llama.TokenMarket, error) {
	if err := u.hit("token_market"); err != nil {
		return nil, err
	}
	return u.tokenMarket, nil
}

func (u *fakeUpstream) FetchDevMetrics(_ context.Context, _ string) (json.RawMessage, error) {
	if err := u.hit("dev_metrics"); err != nil {
		return nil, err
	}
	return u.devMetrics, nil
}

func (u *fakeUpstream) FetchEmissionsBreakdown(_ context.Context) (*llama.EmissionsBreakdown, error) {
	if err := u.hit("emissions_breakdown"); err != nil {
		return nil, err
	}
	return u.breakdown, nil
}

func (u *fakeUpstream) FetchEmission(_ context.Context, slug string) (*llama.ProtocolEmissions, error) {
	if err := u.hit("emission:" + slug); err != nil {
		return nil, err
	}
	return u.emissions[slug], nil
}

func (u *fakeUpstream) FetchNFTVolume(_ context.Context) ([]llama.NFTVolume, error) {
	if err := u.hit("nft_volume"); err != nil {
		return nil, err
	}
	return u.nftVolume, nil
}

func (u *fakeUpstream) FetchProposals(_ context.Context, url string) ([]llama.Proposal, error) {
	u.mu.Lock()
	u.urls = append(u.urls, url)
	u.mu.Unlock()
	if err := u.hit("proposals:" + url); err != nil {
		return nil, err
	}
	// Each feed sorts its own copy.
	return append([]llama.Proposal(nil), u.proposals...), nil
}

func (u *fakeUpstream) FetchChainTVL(_ context.Context, _ string) ([]llama.TVLPoint, error) {
	if err := u.hit("chain_tvl"); err != nil {
		return nil, err
	}
	return u.chainTVL, nil
}

func (u *fakeUpstream) FetchChainUserData(_ context.Context, kind, _ string) (json.RawMessage, error) {
	if err := u.hit(kind); err != nil {
		return nil, err
	}
	return u.userData[kind], nil
}

func (u *fakeUpstream) FetchBridgeVolume(_ context.Context, _ string) ([]llama.BridgeVolume, error) {
	if err := u.hit("bridge_volume"); err != nil {
		return nil, err
	}
	return u.bridgeVolumes, nil
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAggregator(up Upstream, governance bool) *Aggregator {
	a := NewAggregator(up, slog.New(slog.NewTextHandler(io.Discard, nil)), governance)
	a.now = func() time.Time { return testNow }
	return a
}

func ptr(f float64) *float64 { return &f }
