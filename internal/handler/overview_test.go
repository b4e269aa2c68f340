package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/overview"
)

type staticSnapshots struct{ snap *metadata.Snapshot }

func (s staticSnapshots) Current() *metadata.Snapshot { return s.snap }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testSnapshot() *metadata.Snapshot {
	return metadata.NewSnapshot(
		map[string]metadata.ProtocolMeta{"111": {Name: "Aave", Flags: metadata.Flags{Fees: true}}},
		map[string]metadata.ChainMeta{
			"ethereum": {Name: "Ethereum", GeckoID: "ethereum", TokenSymbol: "ETH", Fees: true},
		},
		time.Unix(1700000000, 0),
	)
}

func newRouter(agg Aggregator, snaps Snapshots) http.Handler {
	r := chi.NewRouter()
	r.Get("/readyz", Ready(snaps, nil))
	r.Get("/api/protocol/{slug}", Protocol(agg, snaps, discard()))
	r.Get("/api/chain/{chain}", Chain(agg))
	r.Get("/api/dimensions/{adapterType}/chains", DimensionsChains(agg, snaps))
	return r
}

// newUpstream serves just enough of the upstream API for a client-side
// protocol aggregation.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/updatedProtocol/aave", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"111","name":"Aave","symbol":"AAVE","category":"Lending","chains":["Ethereum"]}`))
	})
	mux.HandleFunc("/lite/protocols2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"protocols":[{"name":"Compound","category":"Lending","chains":["Ethereum"],"tvl":10}],"parentProtocols":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProtocolEndToEnd(t *testing.T) {
	srv := newUpstream(t)
	e := llama.DefaultEndpoints()
	e.Llama = srv.URL
	agg := overview.NewAggregator(llama.NewClient(e, 5*time.Second, nil), discard(), false)
	h := newRouter(agg, staticSnapshots{testSnapshot()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/protocol/aave?skipRemoteFetch=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var body struct {
		Protocol     string `json:"protocol"`
		ClientSide   bool   `json:"clientSide"`
		ProtocolData struct {
			Name     string         `json:"name"`
			Symbol   string         `json:"symbol"`
			Metadata map[string]any `json:"metadata"`
		} `json:"protocolData"`
		SimilarProtocols []struct {
			Name string `json:"name"`
		} `json:"similarProtocols"`
		ChartDenominations []struct {
			Symbol string `json:"symbol"`
		} `json:"chartDenominations"`
		DailyFees *float64 `json:"dailyFees"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Protocol != "aave" || !body.ClientSide {
		t.Errorf("protocol = %q clientSide = %v", body.Protocol, body.ClientSide)
	}
	if body.ProtocolData.Name != "Aave" || body.ProtocolData.Symbol != "AAVE" {
		t.Errorf("protocolData = %+v", body.ProtocolData)
	}
	if body.ProtocolData.Metadata["fees"] != true {
		t.Errorf("metadata flags = %v, want fees set", body.ProtocolData.Metadata)
	}
	if len(body.SimilarProtocols) != 1 || body.SimilarProtocols[0].Name != "Compound" {
		t.Errorf("similarProtocols = %+v", body.SimilarProtocols)
	}
	if len(body.ChartDenominations) != 2 || body.ChartDenominations[1].Symbol != "ETH" {
		t.Errorf("chartDenominations = %+v", body.ChartDenominations)
	}
	if body.DailyFees != nil {
		t.Errorf("dailyFees = %v, want null when fetching client side", *body.DailyFees)
	}
}

func TestProtocolUnknownSlug(t *testing.T) {
	srv := newUpstream(t)
	e := llama.DefaultEndpoints()
	e.Llama = srv.URL
	agg := overview.NewAggregator(llama.NewClient(e, 5*time.Second, nil), discard(), false)
	h := newRouter(agg, staticSnapshots{testSnapshot()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/protocol/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

type fakeAggregator struct {
	lookupErr error
	chains    []*llama.DimensionsOverview
	gotChain  string
	gotType   string
	gotData   string
}

func (f *fakeAggregator) Lookup(context.Context, string) (*llama.Protocol, error) {
	return nil, f.lookupErr
}

func (f *fakeAggregator) Protocol(context.Context, overview.Request) (*overview.Protocol, error) {
	return nil, errors.New("unexpected call")
}

func (f *fakeAggregator) Chain(_ context.Context, chain string) *overview.Chain {
	f.gotChain = chain
	return &overview.Chain{Chain: chain}
}

func (f *fakeAggregator) ChainsOverview(_ context.Context, _ *metadata.Snapshot, adapterType, dataType string) ([]*llama.DimensionsOverview, error) {
	f.gotType, f.gotData = adapterType, dataType
	if adapterType == "nfts" {
		return nil, overview.ErrUnknownAdapter
	}
	return f.chains, nil
}

func TestProtocolLookupFailure(t *testing.T) {
	h := newRouter(&fakeAggregator{lookupErr: errors.New("dial tcp: refused")}, staticSnapshots{testSnapshot()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/protocol/aave", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestHandlersNeedMetadata(t *testing.T) {
	h := newRouter(&fakeAggregator{}, staticSnapshots{})
	for _, path := range []string{"/readyz", "/api/protocol/aave", "/api/dimensions/fees/chains"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
		}
	}
}

func TestChainHandler(t *testing.T) {
	agg := &fakeAggregator{}
	rec := httptest.NewRecorder()
	newRouter(agg, staticSnapshots{testSnapshot()}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chain/Ethereum", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if agg.gotChain != "Ethereum" {
		t.Errorf("chain = %q, want %q", agg.gotChain, "Ethereum")
	}
}

func TestDimensionsChainsHandler(t *testing.T) {
	agg := &fakeAggregator{chains: []*llama.DimensionsOverview{{Chain: "Ethereum"}}}
	h := newRouter(agg, staticSnapshots{testSnapshot()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dimensions/fees/chains?dataType=dailyRevenue", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if agg.gotType != "fees" || agg.gotData != "dailyRevenue" {
		t.Errorf("adapterType = %q dataType = %q", agg.gotType, agg.gotData)
	}
	var out []llama.DimensionsOverview
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Chain != "Ethereum" {
		t.Errorf("body = %+v", out)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dimensions/nfts/chains", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown adapter: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestReady(t *testing.T) {
	rec := httptest.NewRecorder()
	Ready(staticSnapshots{testSnapshot()}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ready" || body["protocols"] != float64(1) || body["chains"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyPingsDatabase(t *testing.T) {
	snaps := staticSnapshots{testSnapshot()}

	rec := httptest.NewRecorder()
	Ready(snaps, pingFunc(func(context.Context) error { return nil })).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthy db: status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	Ready(snaps, pingFunc(func(context.Context) error { return errors.New("conn refused") })).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("down db: status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
