package llama

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Protocol is the canonical protocol record the identity is resolved from.
type Protocol struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Symbol         string   `json:"symbol"`
	Category       string   `json:"category"`
	Chains         []string `json:"chains"`
	GeckoID        string   `json:"gecko_id"`
	Github         []string `json:"github"`
	GovernanceID   []string `json:"governanceID"`
	ParentProtocol string   `json:"parentProtocol"`
	OtherProtocols []string `json:"otherProtocols"`
	Module         string   `json:"module"`
	Treasury       string   `json:"treasury"`
	Stablecoins    []string `json:"stablecoins"`
	URL            string   `json:"url"`
	Description    string   `json:"description"`
	Logo           string   `json:"logo"`
	Twitter        string   `json:"twitter"`
}

// DimensionsOverview is the shared shape of the fees, volume, derivatives,
// aggregator and options overviews.
type DimensionsOverview struct {
	Protocols []DimensionProtocol `json:"protocols"`
	Total24h  *float64            `json:"total24h"`
	Total7d   *float64            `json:"total7d"`
	Total30d  *float64            `json:"total30d"`
	Chain     string              `json:"chain"`
}

// DimensionProtocol is one protocol row of a dimensions overview.
type DimensionProtocol struct {
	Name           string         `json:"name"`
	DisplayName    string         `json:"displayName"`
	ParentProtocol string         `json:"parentProtocol"`
	DefillamaID    string         `json:"defillamaId"`
	Category       string         `json:"category"`
	Total24h       float64        `json:"total24h"`
	Total30d       float64        `json:"total30d"`
	TotalAllTime   float64        `json:"totalAllTime"`
	MethodologyURL string         `json:"methodologyURL"`
	Methodology    map[string]any `json:"methodology"`
}

// MethodologyText returns the free-text methodology entry for key, if it is a string.
func (p DimensionProtocol) MethodologyText(key string) (string, bool) {
	v, ok := p.Methodology[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ProtocolsListing is the protocol universe used for similarity ranking.
type ProtocolsListing struct {
	Protocols       []ListedProtocol `json:"protocols"`
	ParentProtocols []ListedParent   `json:"parentProtocols"`
}

type ListedProtocol struct {
	Name           string   `json:"name"`
	DefillamaID    string   `json:"defillamaId"`
	Category       string   `json:"category"`
	Chains         []string `json:"chains"`
	TVL            float64  `json:"tvl"`
	ParentProtocol string   `json:"parentProtocol"`
}

type ListedParent struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Chains []string `json:"chains"`
}

type Treasury struct {
	ID              string             `json:"id"`
	TokenBreakdowns map[string]float64 `json:"tokenBreakdowns"`
}

type YieldPools struct {
	Status string      `json:"status"`
	Data   []YieldPool `json:"data"`
}

type YieldPool struct {
	Pool    string  `json:"pool"`
	Project string  `json:"project"`
	Chain   string  `json:"chain"`
	Symbol  string  `json:"symbol"`
	TVLUsd  float64 `json:"tvlUsd"`
	APY     float64 `json:"apy"`
}

type YieldConfig struct {
	Protocols map[string]YieldProject `json:"protocols"`
}

type YieldProject struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ProtocolLiquidity struct {
	ID         string      `json:"id"`
	TokenPools []TokenPool `json:"tokenPools"`
}

type TokenPool struct {
	Project string  `json:"project"`
	Chain   string  `json:"chain"`
	TVLUsd  float64 `json:"tvlUsd"`
}

type Hack struct {
	Name           string   `json:"name"`
	Date           int64    `json:"date"`
	Amount         *float64 `json:"amount"`
	Classification string   `json:"classification"`
	Technique      string   `json:"technique"`
	Chain          []string `json:"chain"`
	DefillamaID    LooseID  `json:"defillamaId"`
}

type Raise struct {
	Name           string   `json:"name"`
	Date           int64    `json:"date"`
	Round          string   `json:"round"`
	Amount         *float64 `json:"amount"`
	LeadInvestors  []string `json:"leadInvestors"`
	OtherInvestors []string `json:"otherInvestors"`
	DefillamaID    string   `json:"defillamaId"`
}

type Expense struct {
	ProtocolID    LooseID            `json:"protocolId"`
	Headcount     *float64           `json:"headcount"`
	AnnualUsdCost map[string]float64 `json:"annualUsdCost"`
	Sources       []string           `json:"sources"`
	Notes         []string           `json:"notes"`
	LastUpdate    string             `json:"lastUpdate"`
}

// UserMetric is a single {"value": n} entry of the active users listing.
type UserMetric struct {
	Value *float64 `json:"value"`
}

type ActiveUsers struct {
	Users    *UserMetric `json:"users"`
	NewUsers *UserMetric `json:"newUsers"`
	Txs      *UserMetric `json:"txs"`
	GasUsd   *UserMetric `json:"gasUsd"`
}

// Point is a [timestamp, value] pair.
type Point [2]float64

func (p Point) Time() int64    { return int64(p[0]) }
func (p Point) Value() float64 { return p[1] }

type TokenMarket struct {
	Prices       []Point `json:"prices"`
	Mcaps        []Point `json:"mcaps"`
	TotalVolumes []Point `json:"totalVolumes"`
}

type EmissionsBreakdown struct {
	Protocols []EmissionsEntry `json:"protocols"`
}

type EmissionsEntry struct {
	Name               string   `json:"name"`
	DefillamaID        string   `json:"defillamaId"`
	Emission24h        *float64 `json:"emission24h"`
	Emission7d         *float64 `json:"emission7d"`
	Emission30d        *float64 `json:"emission30d"`
	EmissionsAllTime   *float64 `json:"emissionsAllTime"`
	EmissionsAverage1y *float64 `json:"emissionsAverage1y"`
}

// ProtocolEmissions carries the unlock schedule of one protocol.
type ProtocolEmissions struct {
	Events         []EmissionEvent `json:"events"`
	UnlockUsdChart []Point         `json:"unlockUsdChart"`
}

type EmissionEvent struct {
	Timestamp   int64     `json:"timestamp"`
	NoOfTokens  []float64 `json:"noOfTokens"`
	Description string    `json:"description"`
}

type NFTVolume struct {
	ExchangeName string  `json:"exchangeName"`
	Day          string  `json:"day"`
	Sum          float64 `json:"sum"`
	SumUsd       float64 `json:"sumUsd"`
}

type Article struct {
	Headline string `json:"headline"`
	Date     string `json:"date"`
	Href     string `json:"href"`
	ImgSrc   string `json:"imgSrc"`
}

type Proposal struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	State      string  `json:"state"`
	Link       string  `json:"link"`
	ScoreCurve float64 `json:"score_curve"`
}

type TVLPoint struct {
	Date int64   `json:"date"`
	TVL  float64 `json:"tvl"`
}

type BridgeVolume struct {
	Date        string  `json:"date"`
	DepositUSD  float64 `json:"depositUSD"`
	WithdrawUSD float64 `json:"withdrawUSD"`
	DepositTxs  float64 `json:"depositTxs"`
	WithdrawTxs float64 `json:"withdrawTxs"`
}

// LooseID accepts both JSON numbers and strings, keeping the textual form.
type LooseID string

func (l *LooseID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LooseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("loose id: %w", err)
	}
	*l = LooseID(n.String())
	return nil
}

// Equal compares two ids the way a loose equality would: numerically when
// both sides parse as numbers, textually otherwise.
func (l LooseID) Equal(id string) bool {
	a := strings.TrimSpace(string(l))
	b := strings.TrimSpace(id)
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}
