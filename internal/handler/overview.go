package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/overview"
	"github.com/web3-frozen/defi-overview/internal/protocol"
)

// Aggregator is the overview surface the handlers serve.
type Aggregator interface {
	Lookup(ctx context.Context, slug string) (*llama.Protocol, error)
	Protocol(ctx context.Context, req overview.Request) (*overview.Protocol, error)
	Chain(ctx context.Context, chain string) *overview.Chain
	ChainsOverview(ctx context.Context, snap *metadata.Snapshot, adapterType, dataType string) ([]*llama.DimensionsOverview, error)
}

// Protocol serves the composed overview of /api/protocol/{slug}. With
// ?skipRemoteFetch=true only the protocol universe is fetched.
func Protocol(agg Aggregator, snaps Snapshots, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		skip, _ := strconv.ParseBool(r.URL.Query().Get("skipRemoteFetch"))

		snap := snaps.Current()
		if snap == nil {
			http.Error(w, `{"error":"metadata not loaded"}`, http.StatusServiceUnavailable)
			return
		}

		raw, err := agg.Lookup(r.Context(), slug)
		if err != nil {
			logger.Error("protocol lookup failed", "protocol", slug, "error", err)
			http.Error(w, `{"error":"protocol lookup failed"}`, http.StatusBadGateway)
			return
		}

		p, err := agg.Protocol(r.Context(), overview.Request{
			Slug:            slug,
			Raw:             raw,
			Snapshot:        snap,
			SkipRemoteFetch: skip,
		})
		if errors.Is(err, protocol.ErrNotFound) {
			http.Error(w, `{"error":"protocol not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("protocol aggregation failed", "protocol", slug, "error", err)
			http.Error(w, `{"error":"aggregation failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, p)
	}
}

// Chain serves the chain overview of /api/chain/{chain}.
func Chain(agg Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, agg.Chain(r.Context(), chi.URLParam(r, "chain")))
	}
}

// DimensionsChains serves /api/dimensions/{adapterType}/chains, the per-chain
// overviews of one adapter type. ?dataType selects e.g. dailyRevenue.
func DimensionsChains(agg Aggregator, snaps Snapshots) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := snaps.Current()
		if snap == nil {
			http.Error(w, `{"error":"metadata not loaded"}`, http.StatusServiceUnavailable)
			return
		}
		out, err := agg.ChainsOverview(r.Context(), snap, chi.URLParam(r, "adapterType"), r.URL.Query().Get("dataType"))
		if errors.Is(err, overview.ErrUnknownAdapter) {
			http.Error(w, `{"error":"unknown adapter type"}`, http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"aggregation failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, out)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
