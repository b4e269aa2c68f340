package overview

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/web3-frozen/defi-overview/internal/guard"
	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/merge"
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/protocol"
	"github.com/web3-frozen/defi-overview/internal/rollup"
	"github.com/web3-frozen/defi-overview/internal/similarity"
)

const (
	usersHelperText      = "This only counts users that interact with protocol directly (so not through another contract, such as a dex aggregator), and only on arbitrum, avax, bsc, ethereum, xdai, optimism, polygon."
	incentivesHelperText = "Tokens allocated to users through liquidity mining or incentive schemes, typically as part of governance or reward mechanisms"
	earningsHelperText   = "Earnings is the revenue of the protocol minus the incentives distributed to users"

	adaptersRepo   = "https://github.com/DefiLlama/DefiLlama-Adapters"
	peggedAdapters = "https://github.com/DefiLlama/peggedassets-server/blob/master/src/adapters/peggedAssets"
)

// ProtocolData is the resolved identity together with the descriptive
// fields of the raw record.
type ProtocolData struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Name           string         `json:"name"`
	Symbol         *string        `json:"symbol"`
	Category       string         `json:"category"`
	Chains         []string       `json:"chains"`
	URL            string         `json:"url,omitempty"`
	Description    string         `json:"description,omitempty"`
	Logo           string         `json:"logo,omitempty"`
	Twitter        string         `json:"twitter,omitempty"`
	GeckoID        string         `json:"gecko_id,omitempty"`
	Github         []string       `json:"github,omitempty"`
	ParentProtocol string         `json:"parentProtocol,omitempty"`
	OtherProtocols []string       `json:"otherProtocols,omitempty"`
	Module         string         `json:"module,omitempty"`
	Treasury       string         `json:"treasury,omitempty"`
	Stablecoins    []string       `json:"stablecoins,omitempty"`
	Raises         []llama.Raise  `json:"raises,omitempty"`
	Flags          metadata.Flags `json:"metadata"`
}

// Users holds the latest active-users figures; each is nil when unknown.
type Users struct {
	ActiveUsers  *float64 `json:"activeUsers"`
	NewUsers     *float64 `json:"newUsers"`
	Transactions *float64 `json:"transactions"`
	GasUsd       *float64 `json:"gasUsd"`
}

// HelperTexts are tooltip strings shown next to the headline figures.
type HelperTexts struct {
	Fees       *string `json:"fees"`
	Revenue    *string `json:"revenue"`
	Users      string  `json:"users"`
	Incentives string  `json:"incentives"`
	Earnings   string  `json:"earnings"`
}

// MethodologyURLs link to the adapter source for each metric, nil when absent.
type MethodologyURLs struct {
	TVL             *string `json:"tvl"`
	Fees            *string `json:"fees"`
	Dexs            *string `json:"dexs"`
	Perps           *string `json:"perps"`
	DexAggregators  *string `json:"dexAggregators"`
	Options         *string `json:"options"`
	PerpsAggregator *string `json:"perpsAggregator"`
	Treasury        *string `json:"treasury"`
	Stablecoins     *string `json:"stablecoins"`
}

// TokenMarket is the latest point of the token's market series.
type TokenMarket struct {
	Price       *float64 `json:"price"`
	MarketCap   *float64 `json:"mcap"`
	TotalVolume *float64 `json:"volume24h"`
}

// Incentives are the emission rollups for a protocol, nil fields when unknown.
type Incentives struct {
	IncentivesChart  []llama.Point `json:"incentivesChart"`
	Emissions24h     *float64      `json:"emissions24h"`
	Emissions7d      *float64      `json:"emissions7d"`
	Emissions30d     *float64      `json:"emissions30d"`
	EmissionsAllTime *float64      `json:"emissionsAllTime"`
	Average1y        *float64      `json:"average1y"`
}

// Protocol is the composed overview of one protocol.
type Protocol struct {
	Protocol     string       `json:"protocol"`
	ProtocolData ProtocolData `json:"protocolData"`

	Articles         []llama.Article        `json:"articles"`
	DevMetrics       json.RawMessage        `json:"devMetrics"`
	NFTVolumeData    []merge.NFTPoint       `json:"nftVolumeData"`
	NFTDataExists    bool                   `json:"nftDataExist"`
	SimilarProtocols []similarity.Candidate `json:"similarProtocols"`
	Users            *Users                 `json:"users"`

	DailyFees                    *float64 `json:"dailyFees"`
	Fees30d                      *float64 `json:"fees30d"`
	AllTimeFees                  *float64 `json:"allTimeFees"`
	DailyRevenue                 *float64 `json:"dailyRevenue"`
	Revenue30d                   *float64 `json:"revenue30d"`
	AllTimeRevenue               *float64 `json:"allTimeRevenue"`
	DailyHoldersRevenue          *float64 `json:"dailyHoldersRevenue"`
	HoldersRevenue30d            *float64 `json:"holdersRevenue30d"`
	AllTimeHoldersRevenue        *float64 `json:"allTimeHoldersRevenue"`
	DailyBribesRevenue           *float64 `json:"dailyBribesRevenue"`
	BribesRevenue30d             *float64 `json:"bribesRevenue30d"`
	AllTimeBribesRevenue         *float64 `json:"allTimeBribesRevenue"`
	DailyTokenTaxes              *float64 `json:"dailyTokenTaxes"`
	TokenTaxesRevenue30d         *float64 `json:"tokenTaxesRevenue30d"`
	AllTimeTokenTaxesRevenue     *float64 `json:"allTimeTokenTaxesRevenue"`
	DailyVolume                  *float64 `json:"dailyVolume"`
	AllTimeVolume                *float64 `json:"allTimeVolume"`
	DailyPerpsVolume             *float64 `json:"dailyPerpsVolume"`
	AllTimePerpsVolume           *float64 `json:"allTimePerpsVolume"`
	DailyAggregatorsVolume       *float64 `json:"dailyAggregatorsVolume"`
	AllTimeAggregatorsVolume     *float64 `json:"allTimeAggregatorsVolume"`
	DailyPerpsAggregatorVolume   *float64 `json:"dailyPerpsAggregatorVolume"`
	AllTimePerpsAggregatorVolume *float64 `json:"allTimePerpsAggregatorVolume"`
	DailyOptionsPremiumVolume    *float64 `json:"dailyOptionsPremiumVolume"`
	DailyOptionsNotionalVolume   *float64 `json:"dailyOptionsNotionalVolume"`

	ControversialProposals []llama.Proposal        `json:"controversialProposals"`
	GovernanceApis         []string                `json:"governanceApis"`
	Treasury               map[string]float64      `json:"treasury"`
	Yields                 *rollup.YieldSummary    `json:"yields"`
	HelperTexts            HelperTexts             `json:"helperTexts"`
	Expenses               *llama.Expense          `json:"expenses"`
	TokenLiquidity         []merge.LiquidityRow    `json:"tokenLiquidity"`
	TokenMarket            *TokenMarket            `json:"tokenCGData"`
	NextEventDescription   *string                 `json:"nextEventDescription"`
	MethodologyURLs        MethodologyURLs         `json:"methodologyUrls"`
	ChartDenominations     []Denomination          `json:"chartDenominations"`
	Hacks                  []llama.Hack            `json:"hacksData"`
	Incentives             *Incentives             `json:"incentivesData"`
	ClientSide             bool                    `json:"clientSide"`
	Sources                map[string]guard.Status `json:"sources"`
}

type composeInput struct {
	slug       string
	raw        *llama.Protocol
	id         *protocol.Identity
	snap       *metadata.Snapshot
	endpoints  llama.Endpoints
	clientSide bool
	now        time.Time
}

// compose is a pure function of its inputs: the same payloads, identity and
// clock produce the same record.
func compose(in composeInput, f *fetched) *Protocol {
	id := in.id

	fees := merge.Overview(f.fees.Value, id)
	revenue := merge.Overview(f.revenue.Value, id)
	holdersRevenue := merge.Overview(f.holdersRevenue.Value, id)
	bribes := merge.Overview(f.bribes.Value, id)
	tokenTax := merge.Overview(f.tokenTax.Value, id)
	dexs := merge.Overview(f.dexs.Value, id)
	perps := merge.Overview(f.perps.Value, id)
	dexAggregators := merge.Overview(f.dexAggregators.Value, id)
	optionsPremium := merge.Overview(f.optionsPremium.Value, id)
	optionsNotional := merge.Overview(f.optionsNotional.Value, id)
	perpsAggregators := merge.Overview(f.perpsAggregators.Value, id)

	feesW := rollup.Windows(fees)
	revenueW := rollup.Windows(revenue)
	holdersW := rollup.Windows(holdersRevenue)
	bribesW := rollup.Windows(bribes)
	taxW := rollup.Windows(tokenTax)
	dexsW := rollup.Windows(dexs)
	perpsW := rollup.Windows(perps)
	aggW := rollup.Windows(dexAggregators)
	perpsAggW := rollup.Windows(perpsAggregators)

	p := &Protocol{
		Protocol:         in.slug,
		ProtocolData:     protocolData(in.raw, id, merge.Raises(f.raises.Value, id)),
		Articles:         nonNil(f.articles.Value),
		DevMetrics:       f.devMetrics.Value,
		NFTVolumeData:    nonNil(f.nftVolume.Value),
		NFTDataExists:    id.Flags.NFTs,
		SimilarProtocols: similarity.Rank(f.protocols.Value, id),

		DailyFees:                    feesW.Daily,
		Fees30d:                      feesW.Monthly,
		AllTimeFees:                  feesW.AllTime,
		DailyRevenue:                 revenueW.Daily,
		Revenue30d:                   revenueW.Monthly,
		AllTimeRevenue:               revenueW.AllTime,
		DailyHoldersRevenue:          holdersW.Daily,
		HoldersRevenue30d:            holdersW.Monthly,
		AllTimeHoldersRevenue:        holdersW.AllTime,
		DailyBribesRevenue:           bribesW.Daily,
		BribesRevenue30d:             bribesW.Monthly,
		AllTimeBribesRevenue:         bribesW.AllTime,
		DailyTokenTaxes:              taxW.Daily,
		TokenTaxesRevenue30d:         taxW.Monthly,
		AllTimeTokenTaxesRevenue:     taxW.AllTime,
		DailyVolume:                  dexsW.Daily,
		AllTimeVolume:                dexsW.AllTime,
		DailyPerpsVolume:             perpsW.Daily,
		AllTimePerpsVolume:           perpsW.AllTime,
		DailyAggregatorsVolume:       aggW.Daily,
		AllTimeAggregatorsVolume:     aggW.AllTime,
		DailyPerpsAggregatorVolume:   perpsAggW.Daily,
		AllTimePerpsAggregatorVolume: perpsAggW.AllTime,
		DailyOptionsPremiumVolume:    rollup.SumWindow(optionsPremium, rollup.Total24h),
		DailyOptionsNotionalVolume:   rollup.SumWindow(optionsNotional, rollup.Total24h),

		ControversialProposals: nonNil(f.governance.Value),
		GovernanceApis:         id.GovernanceURLs(in.endpoints),
		Expenses:               merge.Expenses(f.expenses.Value, id),
		Hacks:                  merge.Hacks(f.hacks.Value, id),
		ChartDenominations:     chartDenominations(id.Chains, in.snap),
		ClientSide:             in.clientSide,
		Sources:                f.statuses,
	}
	if f.nftVolume.Status != guard.StatusSkipped {
		p.NFTDataExists = len(p.NFTVolumeData) > 0
	}

	if u := f.activeUsers.Value; u != nil {
		p.Users = &Users{
			ActiveUsers:  metricValue(u.Users),
			NewUsers:     metricValue(u.NewUsers),
			Transactions: metricValue(u.Txs),
			GasUsd:       metricValue(u.GasUsd),
		}
	}

	if t := merge.Treasury(f.treasuries.Value, id); t != nil {
		p.Treasury = t.TokenBreakdowns
	}

	if f.yields.Value != nil {
		p.Yields = rollup.Yields(merge.YieldPools(f.yields.Value, in.slug, id))
	}

	var pools []llama.TokenPool
	if f.yields.Value != nil && f.yieldsConfig.Value != nil {
		pools = merge.LiquidityPools(f.liquidity.Value, id)
	}
	p.TokenLiquidity = merge.TokenLiquidity(pools, f.yieldsConfig.Value)

	var price, mcap *float64
	if m := f.tokenMarket.Value; m != nil {
		price = rollup.LatestValue(m.Prices)
		mcap = rollup.LatestValue(m.Mcaps)
		p.TokenMarket = &TokenMarket{
			Price:       price,
			MarketCap:   mcap,
			TotalVolume: rollup.LatestValue(m.TotalVolumes),
		}
	}

	var events []llama.EmissionEvent
	if inc := f.incentives.Value; inc != nil {
		p.Incentives = &Incentives{
			IncentivesChart:  []llama.Point{},
			Emissions24h:     inc.entry.Emission24h,
			Emissions7d:      inc.entry.Emission7d,
			Emissions30d:     inc.entry.Emission30d,
			EmissionsAllTime: inc.entry.EmissionsAllTime,
			Average1y:        inc.entry.EmissionsAverage1y,
		}
		if inc.emissions != nil {
			events = inc.emissions.Events
			if inc.emissions.UnlockUsdChart != nil {
				p.Incentives.IncentivesChart = inc.emissions.UnlockUsdChart
			}
		}
	}
	p.NextEventDescription = nextEventDescription(events, price, mcap, id.SymbolOr("tokens"), in.now)

	p.HelperTexts = HelperTexts{
		Fees:       helperText(fees, "fees", "Fees"),
		Revenue:    helperText(revenue, "revenue", "Revenue"),
		Users:      usersHelperText,
		Incentives: incentivesHelperText,
		Earnings:   earningsHelperText,
	}
	p.MethodologyURLs = methodologyURLs(id, fees, dexs, perps, dexAggregators, optionsPremium, optionsNotional, perpsAggregators)
	return p
}

func protocolData(raw *llama.Protocol, id *protocol.Identity, raises []llama.Raise) ProtocolData {
	return ProtocolData{
		ID:             id.ID,
		Kind:           id.Kind.String(),
		Name:           id.Name,
		Symbol:         id.Symbol,
		Category:       id.Category,
		Chains:         nonNil(id.Chains),
		URL:            raw.URL,
		Description:    raw.Description,
		Logo:           raw.Logo,
		Twitter:        raw.Twitter,
		GeckoID:        id.GeckoID,
		Github:         id.Github,
		ParentProtocol: id.ParentProtocol,
		OtherProtocols: id.OtherProtocols,
		Module:         id.Module,
		Treasury:       id.Treasury,
		Stablecoins:    id.Stablecoins,
		Raises:         raises,
		Flags:          id.Flags,
	}
}

// nextEventDescription describes the next unlock, e.g. "1.25% UNI will be
// unlocked 3 days from now". It is nil when nothing is upcoming or the
// amount cannot be described.
func nextEventDescription(events []llama.EmissionEvent, price, mcap *float64, symbol string, now time.Time) *string {
	set := rollup.UpcomingUnlocks(events, now.Unix())
	if len(set) == 0 || set[0].Timestamp == 0 {
		return nil
	}
	tokens := rollup.TokensUnlocked(set)
	value := rollup.UnlockValue(tokens, price, mcap)

	var amount string
	switch {
	case value.Percent != nil && *value.Percent != 0:
		amount = humanize.FtoaWithDigits(*value.Percent, 2) + "% " + symbol
	case tokens != 0:
		amount = humanize.CommafWithDigits(tokens, 2) + " " + symbol
	default:
		return nil
	}
	when := humanize.RelTime(time.Unix(set[0].Timestamp, 0), now, "ago", "from now")
	s := amount + " will be unlocked " + when
	return &s
}

func helperText(records []llama.DimensionProtocol, noun, methodologyKey string) *string {
	switch {
	case len(records) > 1:
		names := make([]string, len(records))
		for i, r := range records {
			names[i] = r.Name
		}
		s := "Sum of all " + noun + " from " + strings.Join(names, ",")
		return &s
	case len(records) == 1:
		if s, ok := records[0].MethodologyText(methodologyKey); ok {
			return &s
		}
	}
	return nil
}

func methodologyURLs(id *protocol.Identity, fees, dexs, perps, dexAggregators, optionsPremium, optionsNotional, perpsAggregators []llama.DimensionProtocol) MethodologyURLs {
	m := MethodologyURLs{
		Fees:            firstMethodologyURL(fees),
		Dexs:            firstMethodologyURL(dexs),
		Perps:           firstMethodologyURL(perps),
		DexAggregators:  firstMethodologyURL(dexAggregators),
		Options:         firstMethodologyURL(optionsPremium),
		PerpsAggregator: firstMethodologyURL(perpsAggregators),
	}
	if m.Options == nil {
		m.Options = firstMethodologyURL(optionsNotional)
	}
	if id.Module != "" {
		s := adaptersRepo + "/tree/main/projects/" + id.Module
		m.TVL = &s
	}
	if id.Treasury != "" {
		s := adaptersRepo + "/blob/main/projects/treasury/" + id.Treasury
		m.Treasury = &s
	}
	if id.Stablecoins != nil {
		parts := make([]string, len(id.Stablecoins))
		for i, name := range id.Stablecoins {
			parts[i] = name + "$" + peggedAdapters + "/" + name + "/index.ts"
		}
		s := strings.Join(parts, ",")
		m.Stablecoins = &s
	}
	return m
}

func firstMethodologyURL(records []llama.DimensionProtocol) *string {
	if len(records) == 0 || records[0].MethodologyURL == "" {
		return nil
	}
	s := records[0].MethodologyURL
	return &s
}

func metricValue(m *llama.UserMetric) *float64 {
	if m == nil {
		return nil
	}
	return m.Value
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
