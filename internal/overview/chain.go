package overview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/defi-overview/internal/guard"
	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/metrics"
)

// ErrUnknownAdapter is returned for an adapter type with no chain metadata flag.
var ErrUnknownAdapter = errors.New("unknown adapter type")

// Chain is the composed overview of one chain. Every part is optional.
type Chain struct {
	Chain        string                    `json:"chain"`
	TVL          []llama.TVLPoint          `json:"tvl"`
	DexsOverview *llama.DimensionsOverview `json:"volumeData"`
	ChainDexs    *llama.DimensionsOverview `json:"chainVolumeData"`
	ChainFees    *llama.DimensionsOverview `json:"feesData"`
	FeesSummary  *llama.DimensionsOverview `json:"feesSummary"`
	Users        json.RawMessage           `json:"usersData"`
	Txs          json.RawMessage           `json:"txsData"`
	BridgeVolume []llama.BridgeVolume      `json:"bridgeData"`
	Sources      map[string]guard.Status   `json:"sources"`
}

// Chain aggregates the chain overview of chain. It never fails; each part
// that cannot be fetched is left empty.
func (a *Aggregator) Chain(ctx context.Context, chain string) *Chain {
	start := time.Now()
	logger := a.logger.With("run_id", uuid.NewString(), "chain", chain)
	f := &fanout{ctx: context.WithoutCancel(ctx), logger: logger, protocol: chain}

	var (
		tvl          guard.Result[[]llama.TVLPoint]
		dexs         guard.Result[*llama.DimensionsOverview]
		chainDexs    guard.Result[*llama.DimensionsOverview]
		chainFees    guard.Result[*llama.DimensionsOverview]
		feesSummary  guard.Result[*llama.DimensionsOverview]
		users        guard.Result[json.RawMessage]
		txs          guard.Result[json.RawMessage]
		bridgeVolume guard.Result[[]llama.BridgeVolume]
	)
	spawn(f, "chain_tvl", true, 0, nil, &tvl, func(ctx context.Context) ([]llama.TVLPoint, error) {
		return a.up.FetchChainTVL(ctx, chain)
	})
	spawn(f, "dexs", true, 0, nil, &dexs, func(ctx context.Context) (*llama.DimensionsOverview, error) {
		return a.up.FetchOverview(ctx, llama.AdapterDexs, "")
	})
	spawn(f, "chain_dexs", true, 0, nil, &chainDexs, func(ctx context.Context) (*llama.DimensionsOverview, error) {
		return a.up.FetchChainOverview(ctx, llama.AdapterDexs, chain, "")
	})
	spawn(f, "chain_fees", true, 0, nil, &chainFees, func(ctx context.Context) (*llama.DimensionsOverview, error) {
		ov, err := a.up.FetchChainOverview(ctx, llama.AdapterFees, chain, "")
		if err != nil || ov == nil || ov.Total24h == nil {
			return nil, err
		}
		return ov, nil
	})
	spawn(f, "fees_summary", true, 0, nil, &feesSummary, func(ctx context.Context) (*llama.DimensionsOverview, error) {
		return a.up.FetchSummary(ctx, llama.AdapterFees, chain)
	})
	spawn(f, "users", true, 0, nil, &users, func(ctx context.Context) (json.RawMessage, error) {
		return a.up.FetchChainUserData(ctx, "users", chain)
	})
	spawn(f, "txs", true, 0, nil, &txs, func(ctx context.Context) (json.RawMessage, error) {
		return a.up.FetchChainUserData(ctx, "txs", chain)
	})
	spawn(f, "bridge_volume", true, 0, nil, &bridgeVolume, func(ctx context.Context) ([]llama.BridgeVolume, error) {
		return a.up.FetchBridgeVolume(ctx, chain)
	})
	statuses := f.wait()

	metrics.AggregationDuration.WithLabelValues("chain").Observe(time.Since(start).Seconds())
	metrics.AggregationsTotal.WithLabelValues("chain", "ok").Inc()
	logger.Info("chain aggregated", "degraded", countStatus(statuses, guard.StatusDegraded))

	return &Chain{
		Chain:        chain,
		TVL:          tvl.Value,
		DexsOverview: dexs.Value,
		ChainDexs:    chainDexs.Value,
		ChainFees:    chainFees.Value,
		FeesSummary:  feesSummary.Value,
		Users:        users.Value,
		Txs:          txs.Value,
		BridgeVolume: bridgeVolume.Value,
		Sources:      statuses,
	}
}

// chainFlag reports whether a chain has data for an adapter type.
func chainFlag(adapterType string) (func(metadata.ChainMeta) bool, bool) {
	switch adapterType {
	case llama.AdapterFees:
		return func(m metadata.ChainMeta) bool { return m.Fees }, true
	case llama.AdapterDexs:
		return func(m metadata.ChainMeta) bool { return m.Dexs }, true
	case llama.AdapterDerivatives:
		return func(m metadata.ChainMeta) bool { return m.Perps }, true
	case llama.AdapterOptions:
		return func(m metadata.ChainMeta) bool { return m.Options }, true
	case llama.AdapterAggregators:
		return func(m metadata.ChainMeta) bool { return m.Aggregators }, true
	case llama.AdapterAggregatorDerivatives:
		return func(m metadata.ChainMeta) bool { return m.PerpsAggregators }, true
	case llama.AdapterBridgeAggregators:
		return func(m metadata.ChainMeta) bool { return m.BridgeAggregators }, true
	}
	return nil, false
}

// ChainsOverview fetches the adapterType overview of every chain flagged for
// it in snap, in chain slug order. Chains whose fetch fails are dropped.
func (a *Aggregator) ChainsOverview(ctx context.Context, snap *metadata.Snapshot, adapterType, dataType string) ([]*llama.DimensionsOverview, error) {
	flag, ok := chainFlag(adapterType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, adapterType)
	}
	start := time.Now()
	logger := a.logger.With("run_id", uuid.NewString(), "adapter_type", adapterType)
	ctx = context.WithoutCancel(ctx)

	var chains []string
	for _, slug := range snap.ChainSlugs() {
		if m, _ := snap.Chain(slug); flag(m) {
			chains = append(chains, slug)
		}
	}

	results := make([]guard.Result[*llama.DimensionsOverview], len(chains))
	var g errgroup.Group
	for i, chain := range chains {
		i, chain := i, chain
		task := guard.Task{Source: adapterType + "_chain", Protocol: chain, Logger: logger}
		g.Go(func() error {
			results[i] = guard.Run(ctx, task, nil, func(ctx context.Context) (*llama.DimensionsOverview, error) {
				return a.up.FetchChainOverview(ctx, adapterType, chain, dataType)
			})
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*llama.DimensionsOverview, 0, len(chains))
	for _, r := range results {
		if r.Value != nil {
			out = append(out, r.Value)
		}
	}
	metrics.AggregationDuration.WithLabelValues("chains_overview").Observe(time.Since(start).Seconds())
	metrics.AggregationsTotal.WithLabelValues("chains_overview", "ok").Inc()
	return out, nil
}
