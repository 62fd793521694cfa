package yahoo

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
	"github.com/bryanwahyu/daily-movers/internal/infra/httpcache"
)

const (
	rssURLTemplate   = "https://feeds.finance.yahoo.com/rss/2.0/headline"
	quoteURLTemplate = "https://finance.yahoo.com/quote/%s"

	maxHeadlines    = 3
	priceSeriesDays = 15
)

var (
	sectorPattern   = regexp.MustCompile(`\\"sector\\":\\"([^\\"]+)\\"`)
	industryPattern = regexp.MustCompile(`\\"industry\\":\\"([^\\"]+)\\"`)
)

// Enricher gathers best-effort evidence per symbol: recent closes, RSS
// headlines and profile fields. It never returns an error; failures are
// recorded on the enrichment payload so analysis can proceed with whatever
// arrived.
type Enricher struct {
	Client  *httpcache.Client
	Log     zerolog.Logger
	BaseURL string // overrides all endpoints in tests
}

func NewEnricher(client *httpcache.Client, log zerolog.Logger) *Enricher {
	return &Enricher{Client: client, Log: log}
}

func (e *Enricher) Enrich(ctx context.Context, task *movers.TickerTask) movers.Enrichment {
	var enrichment movers.Enrichment

	series, url, err := e.fetchPriceSeries(ctx, task.Symbol)
	if err != nil {
		enrichment.Errors = append(enrichment.Errors, movers.StageError{
			Stage:        movers.StageEnrichment,
			ErrorType:    "price_series_failed",
			ErrorMessage: err.Error(),
			URL:          url,
		})
	} else {
		enrichment.PriceSeries = series
		if len(series) > 0 {
			enrichment.OpenPrice = &series[0]
			enrichment.ClosePrice = &series[len(series)-1]
		}
	}

	headlines, url, err := e.fetchHeadlines(ctx, task.Symbol)
	if err != nil {
		enrichment.Errors = append(enrichment.Errors, movers.StageError{
			Stage:        movers.StageEnrichment,
			ErrorType:    "headlines_failed",
			ErrorMessage: err.Error(),
			URL:          url,
		})
	} else {
		enrichment.Headlines = headlines
	}

	// Profile fields are optional context. A blocked quote page is logged
	// but never recorded as a record error.
	sector, industry, err := e.fetchProfileFields(ctx, task.Symbol)
	if err != nil {
		e.Log.Warn().Err(err).Str("symbol", task.Symbol).Msg("optional profile enrichment failed")
	} else {
		enrichment.Sector = sector
		enrichment.Industry = industry
	}

	return enrichment
}

func (e *Enricher) fetchPriceSeries(ctx context.Context, symbol string) ([]float64, string, error) {
	chart, url, err := fetchChart(ctx, e.Client, e.BaseURL, symbol, "1mo")
	if err != nil {
		return nil, url, err
	}
	closes := chart.closes()
	if len(closes) > priceSeriesDays {
		closes = closes[len(closes)-priceSeriesDays:]
	}
	return closes, url, nil
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (e *Enricher) fetchHeadlines(ctx context.Context, symbol string) ([]movers.Headline, string, error) {
	url := e.rssURL()
	body, err := e.Client.Get(ctx, url, map[string]string{
		"s":      symbol,
		"region": "US",
		"lang":   "en-US",
	})
	if err != nil {
		return nil, url, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, url, fmt.Errorf("unreadable rss feed: %w", err)
	}

	headlines := make([]movers.Headline, 0, maxHeadlines)
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		headlines = append(headlines, movers.Headline{
			Title:       title,
			URL:         link,
			PublishedAt: normalizePubDate(item.PubDate),
		})
		if len(headlines) == maxHeadlines {
			break
		}
	}
	return headlines, url, nil
}

func (e *Enricher) fetchProfileFields(ctx context.Context, symbol string) (string, string, error) {
	url := e.quoteURL(symbol)
	body, err := e.Client.Get(ctx, url, nil)
	if err != nil {
		return "", "", err
	}

	var sector, industry string
	if m := sectorPattern.FindSubmatch(body); m != nil {
		sector = strings.TrimSpace(string(m[1]))
	}
	if m := industryPattern.FindSubmatch(body); m != nil {
		industry = strings.TrimSpace(string(m[1]))
	}
	return sector, industry, nil
}

func (e *Enricher) rssURL() string {
	if e.BaseURL != "" {
		return e.BaseURL + "/rss/2.0/headline"
	}
	return rssURLTemplate
}

func (e *Enricher) quoteURL(symbol string) string {
	if e.BaseURL != "" {
		return fmt.Sprintf("%s/quote/%s", e.BaseURL, symbol)
	}
	return fmt.Sprintf(quoteURLTemplate, symbol)
}

func normalizePubDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if at, err := time.Parse(time.RFC1123Z, raw); err == nil {
		return at.Format(time.RFC3339)
	}
	if at, err := time.Parse(time.RFC1123, raw); err == nil {
		return at.Format(time.RFC3339)
	}
	return raw
}
