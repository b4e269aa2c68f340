package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/web3-frozen/defi-overview/internal/metadata"
)

// Snapshots yields the current metadata snapshot, nil until the first load.
type Snapshots interface {
	Current() *metadata.Snapshot
}

// Pinger is a backing store whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Ready reports ready once a metadata snapshot has been loaded and, when db
// is non-nil, the database answers a ping.
func Ready(snaps Snapshots, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := snaps.Current()
		if snap == nil {
			http.Error(w, `{"status":"not ready"}`, http.StatusServiceUnavailable)
			return
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				http.Error(w, `{"status":"database unavailable"}`, http.StatusServiceUnavailable)
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "ready",
			"protocols": snap.ProtocolCount(),
			"chains":    snap.ChainCount(),
			"loadedAt":  snap.LoadedAt().UTC().Format(time.RFC3339),
		})
	}
}
