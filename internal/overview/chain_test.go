package overview

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/defi-overview/internal/guard"
	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/metadata"
)

func TestChain(t *testing.T) {
	up := &fakeUpstream{
		errs:     map[string]error{"bridge_volume": errors.New("timeout")},
		chainTVL: []llama.TVLPoint{{Date: 1, TVL: 100}},
		overviews: map[string]*llama.DimensionsOverview{
			overviewKey(llama.AdapterDexs, ""):                  {Total24h: ptr(9)},
			chainOverviewKey(llama.AdapterDexs, "Ethereum", ""): {Total24h: ptr(3), Chain: "Ethereum"},
			chainOverviewKey(llama.AdapterFees, "Ethereum", ""): {Chain: "Ethereum"},
			"summary:" + llama.AdapterFees + "/Ethereum":        {Total24h: ptr(2)},
		},
		userData: map[string]json.RawMessage{"users": json.RawMessage(`[[1,5]]`)},
	}

	c := newTestAggregator(up, false).Chain(context.Background(), "Ethereum")

	assert.Equal(t, "Ethereum", c.Chain)
	assert.Equal(t, []llama.TVLPoint{{Date: 1, TVL: 100}}, c.TVL)
	require.NotNil(t, c.DexsOverview)
	assert.Equal(t, 9.0, *c.DexsOverview.Total24h)
	require.NotNil(t, c.ChainDexs)
	assert.Equal(t, 3.0, *c.ChainDexs.Total24h)
	// A fees overview without a 24h total is treated as absent.
	assert.Nil(t, c.ChainFees)
	require.NotNil(t, c.FeesSummary)
	assert.JSONEq(t, `[[1,5]]`, string(c.Users))
	assert.Nil(t, c.Txs)
	assert.Nil(t, c.BridgeVolume)

	assert.Equal(t, guard.StatusDegraded, c.Sources["bridge_volume"])
	assert.Equal(t, guard.StatusOK, c.Sources["chain_tvl"])
	assert.Len(t, c.Sources, 8)
}

func TestChainsOverview(t *testing.T) {
	snap := metadata.NewSnapshot(nil, map[string]metadata.ChainMeta{
		"arbitrum": {Name: "Arbitrum", Dexs: true},
		"bsc":      {Name: "BSC", Fees: true},
		"ethereum": {Name: "Ethereum", Dexs: true},
		"solana":   {Name: "Solana", Dexs: true},
	}, testNow)
	up := &fakeUpstream{
		errs: map[string]error{chainOverviewKey(llama.AdapterDexs, "solana", ""): errors.New("502")},
		overviews: map[string]*llama.DimensionsOverview{
			chainOverviewKey(llama.AdapterDexs, "arbitrum", ""): {Chain: "Arbitrum"},
			chainOverviewKey(llama.AdapterDexs, "ethereum", ""): {Chain: "Ethereum"},
		},
	}

	got, err := newTestAggregator(up, false).ChainsOverview(context.Background(), snap, llama.AdapterDexs, "")
	require.NoError(t, err)

	chains := make([]string, len(got))
	for i, ov := range got {
		chains[i] = ov.Chain
	}
	assert.Equal(t, []string{"Arbitrum", "Ethereum"}, chains)
	assert.Zero(t, up.count(chainOverviewKey(llama.AdapterDexs, "bsc", "")))
}

func TestChainsOverviewUnknownAdapter(t *testing.T) {
	snap := metadata.NewSnapshot(nil, nil, testNow)
	_, err := newTestAggregator(&fakeUpstream{}, false).ChainsOverview(context.Background(), snap, "nfts", "")
	assert.ErrorIs(t, err, ErrUnknownAdapter)
}

func TestChainsOverviewEmptySnapshot(t *testing.T) {
	got, err := newTestAggregator(&fakeUpstream{}, false).ChainsOverview(context.Background(), nil, llama.AdapterFees, "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
