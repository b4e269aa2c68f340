// Package overview composes the protocol and chain overview records by
// fanning out to every applicable upstream and merging what comes back.
package overview

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/defi-overview/internal/guard"
	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/merge"
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/metrics"
	"github.com/web3-frozen/defi-overview/internal/protocol"
)

// Sources with a fixed upper bound on their fetch.
const slowSourceTimeout = 10 * time.Second

const governanceTopN = 3

// Upstream is the set of fetches the aggregator depends on.
type Upstream interface {
	Endpoints() llama.Endpoints

	FetchProtocol(ctx context.Context, slug string) (*llama.Protocol, error)
	FetchArticles(ctx context.Context, tag string) ([]llama.Article, error)
	FetchExpenses(ctx context.Context) ([]llama.Expense, error)
	FetchTreasuries(ctx context.Context) ([]llama.Treasury, error)
	FetchYieldPools(ctx context.Context) (*llama.YieldPools, error)
	FetchYieldConfig(ctx context.Context) (*llama.YieldConfig, error)
	FetchLiquidity(ctx context.Context) ([]llama.ProtocolLiquidity, error)
	FetchHacks(ctx context.Context) ([]llama.Hack, error)
	FetchRaises(ctx context.Context) ([]llama.Raise, error)
	FetchProtocols(ctx context.Context) (*llama.ProtocolsListing, error)
	FetchActiveUsers(ctx context.Context, id string) (*llama.ActiveUsers, error)
	FetchOverview(ctx context.Context, adapterType, dataType string) (*llama.DimensionsOverview, error)
	FetchChainOverview(ctx context.Context, adapterType, chain, dataType string) (*llama.DimensionsOverview, error)
	FetchSummary(ctx context.Context, adapterType, name string) (*llama.DimensionsOverview, error)
	FetchTokenMarket(ctx context.Context, geckoID string) (*llama.TokenMarket, error)
	FetchDevMetrics(ctx context.Context, path string) (json.RawMessage, error)
	FetchEmissionsBreakdown(ctx context.Context) (*llama.EmissionsBreakdown, error)
	FetchEmission(ctx context.Context, slug string) (*llama.ProtocolEmissions, error)
	FetchNFTVolume(ctx context.Context) ([]llama.NFTVolume, error)
	FetchProposals(ctx context.Context, url string) ([]llama.Proposal, error)
	FetchChainTVL(ctx context.Context, chain string) ([]llama.TVLPoint, error)
	FetchChainUserData(ctx context.Context, kind, chain string) (json.RawMessage, error)
	FetchBridgeVolume(ctx context.Context, chain string) ([]llama.BridgeVolume, error)
}

// Aggregator assembles protocol and chain overviews from the upstreams.
type Aggregator struct {
	up         Upstream
	logger     *slog.Logger
	governance bool
	now        func() time.Time
}

// NewAggregator returns an aggregator over up. With governance set,
// controversial proposals are fetched from each governance feed.
func NewAggregator(up Upstream, logger *slog.Logger, governance bool) *Aggregator {
	return &Aggregator{up: up, logger: logger, governance: governance, now: time.Now}
}

// Request is one protocol aggregation.
type Request struct {
	Slug            string
	Raw             *llama.Protocol
	Snapshot        *metadata.Snapshot
	SkipRemoteFetch bool
}

// Lookup fetches the canonical protocol record for slug. A nil record with
// a nil error means the protocol does not exist.
func (a *Aggregator) Lookup(ctx context.Context, slug string) (*llama.Protocol, error) {
	return a.up.FetchProtocol(ctx, slug)
}

// incentives is the emissions entry of a protocol together with its unlock
// schedule.
type incentives struct {
	entry     llama.EmissionsEntry
	emissions *llama.ProtocolEmissions
}

// fetched holds one settled result per source. Each fan-out task writes
// only its own field.
type fetched struct {
	articles         guard.Result[[]llama.Article]
	expenses         guard.Result[[]llama.Expense]
	treasuries       guard.Result[[]llama.Treasury]
	yields           guard.Result[*llama.YieldPools]
	yieldsConfig     guard.Result[*llama.YieldConfig]
	liquidity        guard.Result[[]llama.ProtocolLiquidity]
	hacks            guard.Result[[]llama.Hack]
	raises           guard.Result[[]llama.Raise]
	protocols        guard.Result[*llama.ProtocolsListing]
	activeUsers      guard.Result[*llama.ActiveUsers]
	fees             guard.Result[*llama.DimensionsOverview]
	revenue          guard.Result[*llama.DimensionsOverview]
	holdersRevenue   guard.Result[*llama.DimensionsOverview]
	bribes           guard.Result[*llama.DimensionsOverview]
	tokenTax         guard.Result[*llama.DimensionsOverview]
	dexs             guard.Result[*llama.DimensionsOverview]
	perps            guard.Result[*llama.DimensionsOverview]
	dexAggregators   guard.Result[*llama.DimensionsOverview]
	optionsPremium   guard.Result[*llama.DimensionsOverview]
	optionsNotional  guard.Result[*llama.DimensionsOverview]
	perpsAggregators guard.Result[*llama.DimensionsOverview]
	tokenMarket      guard.Result[*llama.TokenMarket]
	devMetrics       guard.Result[json.RawMessage]
	incentives       guard.Result[*incentives]
	nftVolume        guard.Result[[]merge.NFTPoint]
	governance       guard.Result[[]llama.Proposal]

	statuses map[string]guard.Status
}

// fanout launches guarded tasks and records each one's settled status.
type fanout struct {
	g        errgroup.Group
	ctx      context.Context
	logger   *slog.Logger
	protocol string
	status   []func() (string, guard.Status)
}

func spawn[T any](f *fanout, source string, enabled bool, timeout time.Duration, fallback T, slot *guard.Result[T], fn func(context.Context) (T, error)) {
	f.status = append(f.status, func() (string, guard.Status) { return source, slot.Status })
	if !enabled {
		*slot = guard.Skip(fallback)
		return
	}
	task := guard.Task{Source: source, Protocol: f.protocol, Timeout: timeout, Logger: f.logger}
	f.g.Go(func() error {
		*slot = guard.Run(f.ctx, task, fallback, fn)
		return nil
	})
}

func (f *fanout) wait() map[string]guard.Status {
	_ = f.g.Wait() // tasks never return errors
	out := make(map[string]guard.Status, len(f.status))
	for _, s := range f.status {
		name, st := s()
		out[name] = st
	}
	return out
}

// Protocol aggregates every applicable source for req and composes the
// result. The only error is protocol.ErrNotFound; every source failure
// degrades to its fallback. Caller cancellation does not stop the fan-out.
func (a *Aggregator) Protocol(ctx context.Context, req Request) (*Protocol, error) {
	start := time.Now()
	id, err := protocol.Resolve(req.Raw, req.Snapshot)
	if err != nil {
		metrics.AggregationsTotal.WithLabelValues("protocol", "not_found").Inc()
		return nil, err
	}
	slug := req.Slug
	if slug == "" {
		slug = protocol.Slug(id.Name)
	}

	logger := a.logger.With("run_id", uuid.NewString(), "protocol", slug)
	f := &fanout{ctx: context.WithoutCancel(ctx), logger: logger, protocol: slug}
	out := a.fetchAll(f, id, slug, req.SkipRemoteFetch)
	out.statuses = f.wait()

	p := compose(composeInput{
		slug:       slug,
		raw:        req.Raw,
		id:         id,
		snap:       req.Snapshot,
		endpoints:  a.up.Endpoints(),
		clientSide: req.SkipRemoteFetch,
		now:        a.now(),
	}, out)

	metrics.AggregationDuration.WithLabelValues("protocol").Observe(time.Since(start).Seconds())
	metrics.AggregationsTotal.WithLabelValues("protocol", "ok").Inc()
	logger.Info("protocol aggregated", "degraded", countStatus(out.statuses, guard.StatusDegraded))
	return p, nil
}

func (a *Aggregator) fetchAll(f *fanout, id *protocol.Identity, slug string, skip bool) *fetched {
	out := &fetched{}
	live := !skip
	flags := id.Flags

	spawn(f, "articles", live, 0, []llama.Article{}, &out.articles, func(ctx context.Context) ([]llama.Article, error) {
		return a.up.FetchArticles(ctx, slug)
	})
	spawn(f, "expenses", live && flags.Expenses, 0, []llama.Expense{}, &out.expenses, a.up.FetchExpenses)
	spawn(f, "treasury", live && flags.Treasury, 0, []llama.Treasury{}, &out.treasuries, a.up.FetchTreasuries)
	spawn(f, "yields", live && flags.Yields, 0, nil, &out.yields, a.up.FetchYieldPools)
	spawn(f, "yields_config", live, 0, nil, &out.yieldsConfig, a.up.FetchYieldConfig)
	spawn(f, "liquidity", live && flags.Liquidity, 0, []llama.ProtocolLiquidity{}, &out.liquidity, a.up.FetchLiquidity)
	spawn(f, "hacks", live && flags.Hacks, 0, []llama.Hack{}, &out.hacks, a.up.FetchHacks)
	spawn(f, "raises", live && flags.Raises, 0, []llama.Raise{}, &out.raises, a.up.FetchRaises)
	spawn(f, "protocols", true, 0, nil, &out.protocols, a.up.FetchProtocols)
	spawn(f, "active_users", live && flags.ActiveUsers, slowSourceTimeout, nil, &out.activeUsers, func(ctx context.Context) (*llama.ActiveUsers, error) {
		return a.up.FetchActiveUsers(ctx, id.ID)
	})

	overviews := []struct {
		source      string
		enabled     bool
		adapterType string
		dataType    string
		slot        *guard.Result[*llama.DimensionsOverview]
	}{
		{"fees", flags.Fees, llama.AdapterFees, "", &out.fees},
		{"revenue", flags.Revenue, llama.AdapterFees, llama.DataTypeRevenue, &out.revenue},
		{"holders_revenue", flags.Revenue, llama.AdapterFees, llama.DataTypeHoldersRevenue, &out.holdersRevenue},
		{"bribes", flags.BribeRevenue, llama.AdapterFees, llama.DataTypeBribesRevenue, &out.bribes},
		{"token_tax", flags.TokenTax, llama.AdapterFees, llama.DataTypeTokenTaxes, &out.tokenTax},
		{"dexs", flags.Dexs, llama.AdapterDexs, "", &out.dexs},
		{"perps", flags.Perps, llama.AdapterDerivatives, "", &out.perps},
		{"dex_aggregators", flags.DexAggregators, llama.AdapterAggregators, "", &out.dexAggregators},
		{"options_premium", flags.Options, llama.AdapterOptions, llama.DataTypePremiumVolume, &out.optionsPremium},
		{"options_notional", flags.Options, llama.AdapterOptions, llama.DataTypeNotionalVolume, &out.optionsNotional},
		{"perps_aggregators", flags.PerpsAggregators, llama.AdapterAggregatorDerivatives, "", &out.perpsAggregators},
	}
	for _, o := range overviews {
		o := o
		spawn(f, o.source, live && o.enabled, 0, nil, o.slot, func(ctx context.Context) (*llama.DimensionsOverview, error) {
			return a.up.FetchOverview(ctx, o.adapterType, o.dataType)
		})
	}

	spawn(f, "token_market", live && id.GeckoID != "", 0, nil, &out.tokenMarket, func(ctx context.Context) (*llama.TokenMarket, error) {
		return a.up.FetchTokenMarket(ctx, id.GeckoID)
	})
	spawn(f, "dev_metrics", live && flags.DevMetrics, slowSourceTimeout, nil, &out.devMetrics, func(ctx context.Context) (json.RawMessage, error) {
		return a.up.FetchDevMetrics(ctx, id.PathID())
	})
	spawn(f, "incentives", live && flags.Emissions, 0, nil, &out.incentives, func(ctx context.Context) (*incentives, error) {
		return a.fetchIncentives(ctx, id)
	})
	spawn(f, "nft_volume", live && flags.NFTs, slowSourceTimeout, []merge.NFTPoint{}, &out.nftVolume, func(ctx context.Context) ([]merge.NFTPoint, error) {
		list, err := a.up.FetchNFTVolume(ctx)
		if err != nil {
			return nil, err
		}
		return merge.NFTVolume(list, slug), nil
	})

	govURLs := id.GovernanceURLs(a.up.Endpoints())
	spawn(f, "governance", live && a.governance && len(govURLs) > 0, 0, []llama.Proposal{}, &out.governance, func(ctx context.Context) ([]llama.Proposal, error) {
		return a.fetchGovernance(ctx, f.logger, govURLs), nil
	})
	return out
}

func (a *Aggregator) fetchIncentives(ctx context.Context, id *protocol.Identity) (*incentives, error) {
	breakdown, err := a.up.FetchEmissionsBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	entry := merge.Incentives(breakdown, id)
	if entry == nil {
		return nil, nil
	}
	emissions, err := a.up.FetchEmission(ctx, protocol.Slug(entry.Name))
	if err != nil {
		return nil, err
	}
	return &incentives{entry: *entry, emissions: emissions}, nil
}

// fetchGovernance returns the top proposals of every feed, in feed order.
// A failing feed contributes nothing.
func (a *Aggregator) fetchGovernance(ctx context.Context, logger *slog.Logger, urls []string) []llama.Proposal {
	perFeed := make([][]llama.Proposal, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			props, err := a.up.FetchProposals(ctx, u)
			if err != nil {
				logger.Warn("governance feed unavailable", "url", u, "error", err)
				return nil
			}
			sort.SliceStable(props, func(x, y int) bool {
				if props[x].ScoreCurve != props[y].ScoreCurve {
					return props[x].ScoreCurve > props[y].ScoreCurve
				}
				return props[x].ID < props[y].ID
			})
			if len(props) > governanceTopN {
				props = props[:governanceTopN]
			}
			perFeed[i] = props
			return nil
		})
	}
	_ = g.Wait()

	out := make([]llama.Proposal, 0)
	for _, props := range perFeed {
		out = append(out, props...)
	}
	return out
}

func countStatus(m map[string]guard.Status, want guard.Status) int {
	n := 0
	for _, s := range m {
		if s == want {
			n++
		}
	}
	return n
}
