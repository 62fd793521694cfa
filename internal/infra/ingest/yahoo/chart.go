package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bryanwahyu/daily-movers/internal/infra/httpcache"
)

type chartPayload struct {
	Chart struct {
		Result []chartResult `json:"result"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Indicators struct {
		Quote []struct {
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartMeta struct {
	ShortName          string   `json:"shortName"`
	LongName           string   `json:"longName"`
	Currency           string   `json:"currency"`
	ExchangeName       string   `json:"exchangeName"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	ChartPreviousClose *float64 `json:"chartPreviousClose"`
}

func (m chartMeta) price() *float64         { return m.RegularMarketPrice }
func (m chartMeta) previousClose() *float64 { return m.ChartPreviousClose }

func (r *chartResult) closes() []float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	return compact(r.Indicators.Quote[0].Close)
}

func (r *chartResult) volumes() []float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	return compact(r.Indicators.Quote[0].Volume)
}

func compact(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// fetchChart pulls and decodes one symbol's chart payload. Both the movers
// universe path and price-series enrichment share it.
func fetchChart(ctx context.Context, client *httpcache.Client, baseURL, symbol, rng string) (*chartResult, string, error) {
	url := chartURL(baseURL, symbol)
	body, err := client.Get(ctx, url, map[string]string{
		"range":    rng,
		"interval": "1d",
	})
	if err != nil {
		return nil, url, err
	}

	var parsed chartPayload
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, url, fmt.Errorf("unreadable chart payload: %w", err)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, url, errors.New("missing chart result")
	}
	return &parsed.Chart.Result[0], url, nil
}

func chartURL(baseURL, symbol string) string {
	if baseURL != "" {
		return fmt.Sprintf("%s/v8/finance/chart/%s", baseURL, symbol)
	}
	return fmt.Sprintf(chartURLTemplate, symbol)
}
