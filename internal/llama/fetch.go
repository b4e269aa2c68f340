package llama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Dimensions overview adapter types.
const (
	AdapterFees                  = "fees"
	AdapterDexs                  = "dexs"
	AdapterDerivatives           = "derivatives"
	AdapterAggregators           = "aggregators"
	AdapterOptions               = "options"
	AdapterAggregatorDerivatives = "aggregator-derivatives"
	AdapterBridgeAggregators     = "bridge-aggregators"
)

// Dimensions overview data types. An empty data type selects the adapter's default.
const (
	DataTypeRevenue        = "dailyRevenue"
	DataTypeHoldersRevenue = "dailyHoldersRevenue"
	DataTypeBribesRevenue  = "dailyBribesRevenue"
	DataTypeTokenTaxes     = "dailyTokenTaxes"
	DataTypePremiumVolume  = "dailyPremiumVolume"
	DataTypeNotionalVolume = "dailyNotionalVolume"
)

// errNoRecord marks a protocol payload without an id.
var errNoRecord = errors.New("no protocol record")

// FetchProtocol returns the canonical record for slug, or nil when the
// upstream does not know it.
func (c *Client) FetchProtocol(ctx context.Context, slug string) (*Protocol, error) {
	var p Protocol
	err := c.getJSON(ctx, c.endpoints.Llama+"/updatedProtocol/"+url.PathEscape(slug), &p, func() error {
		if p.ID == "" {
			return errNoRecord
		}
		return nil
	})
	if IsNotFound(err) || errors.Is(err, errNoRecord) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("protocol API: %w", err)
	}
	return &p, nil
}

func (c *Client) FetchArticles(ctx context.Context, tag string) ([]Article, error) {
	q := url.Values{"tags": {tag}}
	var out []Article
	if err := c.getJSON(ctx, c.endpoints.Articles+"?"+q.Encode(), &out, nil); err != nil {
		return nil, fmt.Errorf("articles API: %w", err)
	}
	return out, nil
}

func (c *Client) FetchExpenses(ctx context.Context) ([]Expense, error) {
	var out []Expense
	if err := c.getJSON(ctx, c.endpoints.Llama+"/operationalCosts", &out, nil); err != nil {
		return nil, fmt.Errorf("expenses API: %w", err)
	}
	return out, nil
}

func (c *Client) FetchTreasuries(ctx context.Context) ([]Treasury, error) {
	var out []Treasury
	if err := c.getJSON(ctx, c.endpoints.Llama+"/treasuries", &out, nil); err != nil {
		return nil, fmt.Errorf("treasury API: %w", err)
	}
	return out, nil
}

func (c *Client) FetchYieldPools(ctx context.Context) (*YieldPools, error) {
	var out YieldPools
	err := c.getJSON(ctx, c.endpoints.Yields+"/pools", &out, func() error {
		if out.Data == nil {
			return errors.New("missing data array")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yields API: %w", err)
	}
	return &out, nil
}

func (c *Client) FetchYieldConfig(ctx context.Context) (*YieldConfig, error) {
	var out YieldConfig
	err := c.getJSON(ctx, c.endpoints.Llama+"/config/yields", &out, func() error {
		if out.Protocols == nil {
			return errors.New("missing protocols map")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yields config API: %w", err)
	}
	return &out, nil
}

func (c *Client) FetchLiquidity(ctx context.Context) ([]ProtocolLiquidity, error) {
	var out []ProtocolLiquidity
	if err := c.getJSON(ctx, c.endpoints.Llama+"/liquidity", &out, nil); err != nil {
		return nil, fmt.Errorf("liquidity API: %w", err)
	}
	return out, nil
}

func (c *Client) FetchHacks(ctx context.Context) ([]Hack, error) {
	var out []Hack
	if err := c.getJSON(ctx, c.endpoints.Llama+"/hacks", &out, nil); err != nil {
		return nil, fmt.Errorf("hacks API: %w", err)
	}
	return out, nil
}

func (c *Client) FetchRaises(ctx context.Context) ([]Raise, error) {
	var out struct {
		Raises []Raise `json:"raises"`
	}
	if err := c.getJSON(ctx, c.endpoints.Llama+"/raises", &out, nil); err != nil {
		return nil, fmt.Errorf("raises API: %w", err)
	}
	return out.Raises, nil
}

func (c *Client) FetchProtocols(ctx context.Context) (*ProtocolsListing, error) {
	var out ProtocolsListing
	err := c.getJSON(ctx, c.endpoints.Llama+"/lite/protocols2", &out, func() error {
		if out.Protocols == nil {
			return errors.New("missing protocols array")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("protocols API: %w", err)
	}
	return &out, nil
}

// FetchActiveUsers returns the active-users entry for id, or nil if the
// listing has none.
func (c *Client) FetchActiveUsers(ctx context.Context, id string) (*ActiveUsers, error) {
	var out map[string]ActiveUsers
	if err := c.getJSON(ctx, c.endpoints.Llama+"/activeUsers", &out, nil); err != nil {
		return nil, fmt.Errorf("active users API: %w", err)
	}
	u, ok := out[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// FetchOverview fetches a dimensions overview for adapterType, optionally
// narrowed to dataType.
func (c *Client) FetchOverview(ctx context.Context, adapterType, dataType string) (*DimensionsOverview, error) {
	return c.fetchOverview(ctx, c.endpoints.Llama+"/overview/"+adapterType, dataType)
}

// FetchChainOverview is FetchOverview restricted to a single chain.
func (c *Client) FetchChainOverview(ctx context.Context, adapterType, chain, dataType string) (*DimensionsOverview, error) {
	return c.fetchOverview(ctx, c.endpoints.Llama+"/overview/"+adapterType+"/"+url.PathEscape(chain), dataType)
}

func (c *Client) fetchOverview(ctx context.Context, base, dataType string) (*DimensionsOverview, error) {
	q := url.Values{
		"excludeTotalDataChart":          {"true"},
		"excludeTotalDataChartBreakdown": {"true"},
	}
	if dataType != "" {
		q.Set("dataType", dataType)
	}
	var out DimensionsOverview
	err := c.getJSON(ctx, base+"?"+q.Encode(), &out, func() error {
		if out.Protocols == nil {
			return fmt.Errorf("missing protocols array in %s", base)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("overview API: %w", err)
	}
	return &out, nil
}

// FetchSummary fetches the single-entity dimensions summary, used for chain
// fee totals keyed by chain name.
func (c *Client) FetchSummary(ctx context.Context, adapterType, name string) (*DimensionsOverview, error) {
	var out DimensionsOverview
	u := c.endpoints.Llama + "/summary/" + adapterType + "/" + url.PathEscape(name) + "?excludeTotalDataChart=true&excludeTotalDataChartBreakdown=true"
	if err := c.getJSON(ctx, u, &out, nil); err != nil {
		return nil, fmt.Errorf("summary API: %w", err)
	}
	return &out, nil
}

// FetchTokenMarket returns the full price/mcap/volume chart for a gecko id.
func (c *Client) FetchTokenMarket(ctx context.Context, geckoID string) (*TokenMarket, error) {
	var out struct {
		Data *TokenMarket `json:"data"`
	}
	u := c.endpoints.FECache + "/cgchart/" + url.PathEscape(geckoID) + "?fullChart=true"
	if err := c.getJSON(ctx, u, &out, nil); err != nil {
		return nil, fmt.Errorf("token market API: %w", err)
	}
	return out.Data, nil
}

// FetchDevMetrics fetches the dev-metrics document at path (without the
// .json extension). The document is passed through untouched but must be an
// object.
func (c *Client) FetchDevMetrics(ctx context.Context, path string) (json.RawMessage, error) {
	u := c.endpoints.DevMetrics + "/" + path + ".json"
	body, cached, err := c.httpGet(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("dev metrics API: %w", err)
	}
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") || !json.Valid(body) {
		return nil, errors.New("dev metrics API: payload is not an object")
	}
	if !cached {
		c.remember(ctx, u, body)
	}
	return json.RawMessage(body), nil
}

func (c *Client) FetchEmissionsBreakdown(ctx context.Context) (*EmissionsBreakdown, error) {
	var out EmissionsBreakdown
	err := c.getJSON(ctx, c.endpoints.Llama+"/emissionsBreakdownAggregated", &out, func() error {
		if out.Protocols == nil {
			return errors.New("missing protocols array")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("emissions API: %w", err)
	}
	return &out, nil
}

// FetchEmission returns the unlock schedule for a protocol slug, or nil when
// the upstream has none.
func (c *Client) FetchEmission(ctx context.Context, slug string) (*ProtocolEmissions, error) {
	var out ProtocolEmissions
	ok, err := c.getWrapped(ctx, c.endpoints.Llama+"/emission/"+url.PathEscape(slug), &out)
	if err != nil {
		return nil, fmt.Errorf("emission API: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &out, nil
}

func (c *Client) FetchNFTVolume(ctx context.Context) ([]NFTVolume, error) {
	var out []NFTVolume
	if err := c.getJSON(ctx, c.endpoints.NFT+"/exchange/volume", &out, nil); err != nil {
		return nil, fmt.Errorf("nft volume API: %w", err)
	}
	return out, nil
}

// FetchProposals returns every proposal of a governance overview document.
func (c *Client) FetchProposals(ctx context.Context, docURL string) ([]Proposal, error) {
	var out struct {
		Proposals map[string]Proposal `json:"proposals"`
	}
	err := c.getJSON(ctx, docURL, &out, func() error {
		if out.Proposals == nil {
			return errors.New("missing proposals")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("governance API: %w", err)
	}
	props := make([]Proposal, 0, len(out.Proposals))
	for id, p := range out.Proposals {
		if p.ID == "" {
			p.ID = id
		}
		props = append(props, p)
	}
	return props, nil
}

func (c *Client) FetchChainTVL(ctx context.Context, chain string) ([]TVLPoint, error) {
	var out []TVLPoint
	if err := c.getJSON(ctx, c.endpoints.Llama+"/v2/historicalChainTvl/"+url.PathEscape(chain), &out, nil); err != nil {
		return nil, fmt.Errorf("chain tvl API: %w", err)
	}
	return out, nil
}

// FetchChainUserData fetches a chain's users or txs series. kind is "users"
// or "txs". The upstream embeds the series as a JSON string in "body".
func (c *Client) FetchChainUserData(ctx context.Context, kind, chain string) (json.RawMessage, error) {
	var out json.RawMessage
	ok, err := c.getWrapped(ctx, c.endpoints.Llama+"/userData/"+kind+"/chain$"+url.PathEscape(chain), &out)
	if err != nil {
		return nil, fmt.Errorf("user data API: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return out, nil
}

func (c *Client) FetchBridgeVolume(ctx context.Context, chain string) ([]BridgeVolume, error) {
	var out []BridgeVolume
	if err := c.getJSON(ctx, c.endpoints.Bridges+"/bridgevolume/"+url.PathEscape(chain), &out, nil); err != nil {
		return nil, fmt.Errorf("bridge volume API: %w", err)
	}
	return out, nil
}
