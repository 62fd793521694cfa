package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
	"github.com/bryanwahyu/daily-movers/internal/infra/httpcache"
)

const (
	screenerURL      = "https://query1.finance.yahoo.com/v1/finance/screener/predefined/saved"
	chartURLTemplate = "https://query1.finance.yahoo.com/v8/finance/chart/%s"
)

// regionUniverses are the curated symbol lists used outside the US screener
// and as the US fallback when the screener is unavailable.
var regionUniverses = map[string][]string{
	"us":     {"AAPL", "MSFT", "NVDA", "AMZN", "TSLA", "META", "GOOGL", "AMD", "PLTR", "INTC", "SOFI", "NIO"},
	"il":     {"TEVA.TA", "NICE.TA", "ICL.TA", "DSCT.TA", "POLI.TA", "LUMI.TA"},
	"uk":     {"BP.L", "HSBA.L", "VOD.L", "BARC.L", "AZN.L", "SHEL.L"},
	"eu":     {"ASML.AS", "SAN.PA", "BMW.DE", "SIE.DE", "AIR.PA", "OR.PA"},
	"crypto": {"BTC-USD", "ETH-USD", "SOL-USD", "XRP-USD", "DOGE-USD", "BNB-USD"},
}

// MoversProvider ingests the day's most active tickers. The US region uses
// the Yahoo screener first and degrades to the curated universe via the
// chart API; other regions go straight to their universe.
type MoversProvider struct {
	Client  *httpcache.Client
	Log     zerolog.Logger
	BaseURL string // overrides both endpoints in tests
}

func NewMoversProvider(client *httpcache.Client, log zerolog.Logger) *MoversProvider {
	return &MoversProvider{Client: client, Log: log}
}

// Ingest returns the ranked ticker tasks for a region, or an IngestionError
// that aborts the run before any analysis starts.
func (p *MoversProvider) Ingest(ctx context.Context, region string, top int) ([]movers.TickerTask, error) {
	region = strings.ToLower(strings.TrimSpace(region))

	if region == "us" {
		tasks, err := p.fromScreener(ctx, top)
		if err == nil {
			return tasks, nil
		}
		p.Log.Warn().Err(err).Msg("screener ingestion failed, using universe fallback")
		tasks, uerr := p.fromUniverse(ctx, region, top, true)
		if uerr != nil {
			return nil, uerr
		}
		return tasks, nil
	}

	if _, ok := regionUniverses[region]; !ok {
		return nil, &movers.IngestionError{
			Message: fmt.Sprintf("unsupported region: %s", region),
		}
	}
	return p.fromUniverse(ctx, region, top, false)
}

type screenerResponse struct {
	Finance struct {
		Result []struct {
			Quotes []screenerQuote `json:"quotes"`
		} `json:"result"`
	} `json:"finance"`
}

type screenerQuote struct {
	Symbol    string      `json:"symbol"`
	ShortName string      `json:"shortName"`
	LongName  string      `json:"longName"`
	Currency  string      `json:"currency"`
	Exchange  string      `json:"exchange"`
	Price     json.Number `json:"regularMarketPrice"`
	AbsChange json.Number `json:"regularMarketChange"`
	PctChange json.Number `json:"regularMarketChangePercent"`
	Volume    json.Number `json:"regularMarketVolume"`
}

func (p *MoversProvider) fromScreener(ctx context.Context, top int) ([]movers.TickerTask, error) {
	body, err := p.Client.Get(ctx, p.screenerURL(), map[string]string{
		"formatted": "false",
		"scrIds":    "most_actives",
		"count":     strconv.Itoa(top),
		"start":     "0",
	})
	if err != nil {
		return nil, &movers.IngestionError{Message: err.Error(), URL: p.screenerURL()}
	}

	var parsed screenerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &movers.IngestionError{Message: "unreadable screener payload: " + err.Error(), URL: p.screenerURL()}
	}
	if len(parsed.Finance.Result) == 0 || len(parsed.Finance.Result[0].Quotes) == 0 {
		return nil, &movers.IngestionError{Message: "screener returned no quotes", URL: p.screenerURL()}
	}

	quotes := parsed.Finance.Result[0].Quotes
	if len(quotes) > top {
		quotes = quotes[:top]
	}

	tasks := make([]movers.TickerTask, 0, len(quotes))
	seen := make(map[string]bool)
	for _, q := range quotes {
		symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		if name == "" {
			name = symbol
		}
		tasks = append(tasks, movers.TickerTask{
			Symbol:          symbol,
			Name:            name,
			Ordinal:         len(tasks),
			Currency:        q.Currency,
			Exchange:        q.Exchange,
			Market:          "us",
			Price:           numberPtr(q.Price),
			AbsChange:       numberPtr(q.AbsChange),
			PctChange:       numberPtr(q.PctChange),
			Volume:          numberPtr(q.Volume),
			IngestionSource: "yahoo_screener_json",
		})
	}
	if len(tasks) == 0 {
		return nil, &movers.IngestionError{Message: "screener quotes had no usable symbols", URL: p.screenerURL()}
	}
	return tasks, nil
}

func (p *MoversProvider) fromUniverse(ctx context.Context, region string, top int, fallback bool) ([]movers.TickerTask, error) {
	universe := regionUniverses[region]
	source := fmt.Sprintf("yahoo_chart_%s_universe", region)

	tasks := make([]movers.TickerTask, 0, len(universe))
	for _, symbol := range universe {
		task := p.taskFromChart(ctx, symbol, region, source)
		task.IngestionFallbackUsed = fallback
		tasks = append(tasks, task)
	}

	// Rank by movement magnitude, then raw volume; rows that failed to
	// resolve numbers sink to the bottom.
	sort.SliceStable(tasks, func(i, j int) bool {
		return rankKey(&tasks[i]) > rankKey(&tasks[j])
	})
	if top > 0 && len(tasks) > top {
		tasks = tasks[:top]
	}
	for i := range tasks {
		tasks[i].Ordinal = i
	}
	return tasks, nil
}

func rankKey(t *movers.TickerTask) float64 {
	if t.PctChange == nil {
		return -1
	}
	pct := *t.PctChange
	if pct < 0 {
		pct = -pct
	}
	return pct
}

func (p *MoversProvider) taskFromChart(ctx context.Context, symbol, market, source string) movers.TickerTask {
	task := movers.TickerTask{
		Symbol:          symbol,
		Name:            symbol,
		Market:          market,
		IngestionSource: source,
	}

	chart, url, err := fetchChart(ctx, p.Client, p.BaseURL, symbol, "5d")
	if err != nil {
		task.Errors = append(task.Errors, movers.StageError{
			Stage:        movers.StageIngestion,
			ErrorType:    "chart_fetch_failed",
			ErrorMessage: err.Error(),
			URL:          url,
		})
		return task
	}

	if chart.Meta.ShortName != "" {
		task.Name = chart.Meta.ShortName
	} else if chart.Meta.LongName != "" {
		task.Name = chart.Meta.LongName
	}
	task.Currency = chart.Meta.Currency
	task.Exchange = chart.Meta.ExchangeName

	price := chart.Meta.price()
	closes := chart.closes()
	if price == nil && len(closes) > 0 {
		price = &closes[len(closes)-1]
	}
	prev := chart.Meta.previousClose()
	if prev == nil && len(closes) >= 2 {
		prev = &closes[len(closes)-2]
	}

	task.Price = price
	if price != nil && prev != nil {
		abs := *price - *prev
		task.AbsChange = &abs
		if *prev != 0 {
			pct := abs / *prev * 100.0
			task.PctChange = &pct
		}
	}
	if vols := chart.volumes(); len(vols) > 0 {
		task.Volume = &vols[len(vols)-1]
	}
	return task
}

func (p *MoversProvider) screenerURL() string {
	if p.BaseURL != "" {
		return p.BaseURL + "/v1/finance/screener/predefined/saved"
	}
	return screenerURL
}

func numberPtr(n json.Number) *float64 {
	if n == "" {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	return &f
}
