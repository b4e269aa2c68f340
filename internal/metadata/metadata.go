// Package metadata holds the process-wide protocol and chain metadata snapshot.
//
// A Snapshot is immutable once built. The Holder swaps whole snapshots on
// refresh, so readers never observe a partially loaded table.
package metadata

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/web3-frozen/defi-overview/internal/metrics"
)

// Flags declares which data categories apply to a protocol.
type Flags struct {
	Fees             bool `json:"fees"`
	Revenue          bool `json:"revenue"`
	BribeRevenue     bool `json:"bribeRevenue"`
	TokenTax         bool `json:"tokenTax"`
	Yields           bool `json:"yields"`
	Treasury         bool `json:"treasury"`
	Hacks            bool `json:"hacks"`
	Raises           bool `json:"raises"`
	Emissions        bool `json:"emissions"`
	NFTs             bool `json:"nfts"`
	ActiveUsers      bool `json:"activeUsers"`
	DevMetrics       bool `json:"devMetrics"`
	Dexs             bool `json:"dexs"`
	Perps            bool `json:"perps"`
	DexAggregators   bool `json:"dexAggregators"`
	PerpsAggregators bool `json:"perpsAggregators"`
	Options          bool `json:"options"`
	Expenses         bool `json:"expenses"`
	Liquidity        bool `json:"liquidity"`
}

// ProtocolMeta is one entry of the protocol metadata table.
type ProtocolMeta struct {
	Name string `json:"displayName"`
	Flags
}

// ChainMeta is one entry of the chain metadata table, keyed by chain slug.
type ChainMeta struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	GeckoID     string `json:"gecko_id"`
	TokenSymbol string `json:"tokenSymbol"`

	Fees              bool `json:"fees"`
	Dexs              bool `json:"dexs"`
	Perps             bool `json:"perps"`
	Options           bool `json:"options"`
	Aggregators       bool `json:"aggregators"`
	PerpsAggregators  bool `json:"perpsAggregators"`
	BridgeAggregators bool `json:"bridgeAggregators"`
}

// Snapshot is a read-only view of the metadata tables.
type Snapshot struct {
	protocols map[string]ProtocolMeta
	chains    map[string]ChainMeta
	chainKeys []string
	loadedAt  time.Time
}

// NewSnapshot copies the given tables into a new immutable snapshot.
func NewSnapshot(protocols map[string]ProtocolMeta, chains map[string]ChainMeta, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		protocols: make(map[string]ProtocolMeta, len(protocols)),
		chains:    make(map[string]ChainMeta, len(chains)),
		loadedAt:  loadedAt,
	}
	for k, v := range protocols {
		s.protocols[k] = v
	}
	for k, v := range chains {
		s.chains[k] = v
		s.chainKeys = append(s.chainKeys, k)
	}
	sort.Strings(s.chainKeys)
	return s
}

// Protocol returns the metadata entry for a canonical protocol id.
func (s *Snapshot) Protocol(id string) (ProtocolMeta, bool) {
	if s == nil {
		return ProtocolMeta{}, false
	}
	m, ok := s.protocols[id]
	return m, ok
}

// Chain returns the metadata entry for a chain slug.
func (s *Snapshot) Chain(slug string) (ChainMeta, bool) {
	if s == nil {
		return ChainMeta{}, false
	}
	m, ok := s.chains[slug]
	return m, ok
}

// ChainSlugs returns every chain slug in lexical order.
func (s *Snapshot) ChainSlugs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.chainKeys))
	copy(out, s.chainKeys)
	return out
}

// Protocols returns a copy of the protocol table.
func (s *Snapshot) Protocols() map[string]ProtocolMeta {
	out := make(map[string]ProtocolMeta, len(s.protocols))
	for k, v := range s.protocols {
		out[k] = v
	}
	return out
}

// Chains returns a copy of the chain table.
func (s *Snapshot) Chains() map[string]ChainMeta {
	out := make(map[string]ChainMeta, len(s.chains))
	for k, v := range s.chains {
		out[k] = v
	}
	return out
}

func (s *Snapshot) ProtocolCount() int  { return len(s.protocols) }
func (s *Snapshot) ChainCount() int     { return len(s.chains) }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Loader produces a fresh snapshot from wherever the metadata lives.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Holder publishes the current snapshot to concurrent readers.
type Holder struct {
	loader  Loader
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
}

func NewHolder(loader Loader, logger *slog.Logger) *Holder {
	return &Holder{loader: loader, logger: logger}
}

// Current returns the latest loaded snapshot, or nil before the first load.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Set replaces the current snapshot.
func (h *Holder) Set(s *Snapshot) {
	h.current.Store(s)
	metrics.MetadataEntries.WithLabelValues("protocols").Set(float64(s.ProtocolCount()))
	metrics.MetadataEntries.WithLabelValues("chains").Set(float64(s.ChainCount()))
	metrics.MetadataLastRefresh.Set(float64(s.LoadedAt().Unix()))
}

// Refresh loads a new snapshot. On failure the previous snapshot stays in place.
func (h *Holder) Refresh(ctx context.Context) error {
	s, err := h.loader.Load(ctx)
	if err != nil {
		return err
	}
	h.Set(s)
	h.logger.Info("metadata refreshed", "protocols", s.ProtocolCount(), "chains", s.ChainCount())
	return nil
}

// Run refreshes the snapshot every interval until ctx is cancelled.
func (h *Holder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Refresh(ctx); err != nil {
				h.logger.Error("metadata refresh failed", "error", err)
			}
		}
	}
}
