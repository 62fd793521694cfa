package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
	"github.com/bryanwahyu/daily-movers/internal/infra/httpcache"
)

const screenerBody = `{"finance":{"result":[{"quotes":[
	{"symbol":"aapl","shortName":"Apple Inc.","currency":"USD","exchange":"NMS",
	 "regularMarketPrice":212.5,"regularMarketChange":10.2,"regularMarketChangePercent":5.04,"regularMarketVolume":61000000},
	{"symbol":"TSLA","shortName":"Tesla, Inc.","currency":"USD","exchange":"NMS",
	 "regularMarketPrice":244.1,"regularMarketChange":-18.3,"regularMarketChangePercent":-6.97,"regularMarketVolume":98000000},
	{"symbol":"AAPL","shortName":"Apple duplicate"}
]}]}}`

const chartBody = `{"chart":{"result":[{
	"meta":{"shortName":"Apple Inc.","currency":"USD","exchangeName":"NMS",
	        "regularMarketPrice":212.5,"chartPreviousClose":202.3},
	"indicators":{"quote":[{
		"close":[200.1,null,201.5,202.3,212.5],
		"volume":[50000000,null,52000000,53000000,61000000]
	}]}
}]}}`

const rssBody = `<?xml version="1.0"?>
<rss version="2.0"><channel>
	<item><title>Apple beats estimates</title><link>https://example.com/a</link><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>
	<item><title>  </title><link>https://example.com/skip</link></item>
	<item><title>New product event</title><link>https://example.com/b</link></item>
	<item><title>Third story</title><link>https://example.com/c</link></item>
	<item><title>Fourth story never returned</title><link>https://example.com/d</link></item>
</channel></rss>`

func testHTTPClient(t *testing.T) *httpcache.Client {
	t.Helper()
	c := httpcache.NewClient(
		httpcache.NewDiskCache(t.TempDir(), time.Hour, zerolog.Nop()),
		httpcache.NewHostThrottle(4),
		zerolog.Nop(),
	)
	c.Backoff = time.Millisecond
	c.MaxRetries = 0
	return c
}

func TestMoversProviderScreenerHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/v1/finance/screener")
		assert.Equal(t, "most_actives", r.URL.Query().Get("scrIds"))
		w.Write([]byte(screenerBody))
	}))
	defer srv.Close()

	provider := MoversProvider{Client: testHTTPClient(t), Log: zerolog.Nop(), BaseURL: srv.URL}
	tasks, err := provider.Ingest(context.Background(), "US", 25)
	require.NoError(t, err)

	require.Len(t, tasks, 2, "duplicate symbols must collapse")
	assert.Equal(t, "AAPL", tasks[0].Symbol)
	assert.Equal(t, 0, tasks[0].Ordinal)
	assert.Equal(t, "TSLA", tasks[1].Symbol)
	assert.Equal(t, 1, tasks[1].Ordinal)
	assert.Equal(t, "yahoo_screener_json", tasks[0].IngestionSource)
	assert.False(t, tasks[0].IngestionFallbackUsed)
	require.NotNil(t, tasks[0].PctChange)
	assert.InDelta(t, 5.04, *tasks[0].PctChange, 1e-9)
}

func TestMoversProviderFallsBackToUniverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/v1/finance/screener") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	provider := MoversProvider{Client: testHTTPClient(t), Log: zerolog.Nop(), BaseURL: srv.URL}
	tasks, err := provider.Ingest(context.Background(), "us", 5)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.True(t, task.IngestionFallbackUsed)
		assert.Equal(t, "yahoo_chart_us_universe", task.IngestionSource)
	}
}

func TestMoversProviderUnsupportedRegion(t *testing.T) {
	provider := MoversProvider{Client: testHTTPClient(t), Log: zerolog.Nop()}
	_, err := provider.Ingest(context.Background(), "mars", 5)
	require.Error(t, err)
	var ingErr *movers.IngestionError
	assert.ErrorAs(t, err, &ingErr)
}

func TestMoversProviderChartDerivesChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	provider := MoversProvider{Client: testHTTPClient(t), Log: zerolog.Nop(), BaseURL: srv.URL}
	task := provider.taskFromChart(context.Background(), "AAPL", "us", "test")

	assert.Equal(t, "Apple Inc.", task.Name)
	require.NotNil(t, task.AbsChange)
	assert.InDelta(t, 10.2, *task.AbsChange, 1e-9)
	require.NotNil(t, task.PctChange)
	assert.InDelta(t, 10.2/202.3*100, *task.PctChange, 1e-9)
	require.NotNil(t, task.Volume)
	assert.InDelta(t, 61000000, *task.Volume, 1e-9)
	assert.Empty(t, task.Errors)
}

func TestMoversProviderChartFailureIsRecordedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	provider := MoversProvider{Client: testHTTPClient(t), Log: zerolog.Nop(), BaseURL: srv.URL}
	task := provider.taskFromChart(context.Background(), "GHOST", "us", "test")

	assert.Equal(t, "GHOST", task.Symbol)
	require.Len(t, task.Errors, 1)
	assert.Equal(t, movers.StageIngestion, task.Errors[0].Stage)
}

func TestEnricherCollectsHeadlinesAndSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/v8/finance/chart/"):
			w.Write([]byte(chartBody))
		case strings.Contains(r.URL.Path, "/rss/"):
			assert.Equal(t, "AAPL", r.URL.Query().Get("s"))
			w.Write([]byte(rssBody))
		default:
			w.Write([]byte(`page {\"sector\":\"Technology\",\"industry\":\"Consumer Electronics\"} end`))
		}
	}))
	defer srv.Close()

	enricher := Enricher{Client: testHTTPClient(t), Log: zerolog.Nop(), BaseURL: srv.URL}
	task := movers.TickerTask{Symbol: "AAPL"}
	enrichment := enricher.Enrich(context.Background(), &task)

	assert.Empty(t, enrichment.Errors)
	require.Len(t, enrichment.Headlines, 3, "blank titles skipped, capped at three")
	assert.Equal(t, "Apple beats estimates", enrichment.Headlines[0].Title)
	assert.Equal(t, "2006-01-02T15:04:05-07:00", enrichment.Headlines[0].PublishedAt)
	assert.Equal(t, []float64{200.1, 201.5, 202.3, 212.5}, enrichment.PriceSeries)
	require.NotNil(t, enrichment.OpenPrice)
	assert.InDelta(t, 200.1, *enrichment.OpenPrice, 1e-9)
	assert.Equal(t, "Technology", enrichment.Sector)
	assert.Equal(t, "Consumer Electronics", enrichment.Industry)
}

func TestEnricherRecordsPartialFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/rss/") {
			w.Write([]byte(rssBody))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	enricher := Enricher{Client: testHTTPClient(t), Log: zerolog.Nop(), BaseURL: srv.URL}
	task := movers.TickerTask{Symbol: "AAPL"}
	enrichment := enricher.Enrich(context.Background(), &task)

	require.Len(t, enrichment.Headlines, 3)
	require.Len(t, enrichment.Errors, 1, "profile failure is optional, series failure is recorded")
	assert.Equal(t, "price_series_failed", enrichment.Errors[0].ErrorType)
	assert.Equal(t, movers.StageEnrichment, enrichment.Errors[0].Stage)
}

func TestLoadWatchlistSymbolsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols:\n  - aapl\n  - symbol: msft\n  - AAPL\n  - \"\"\n"), 0o644))

	symbols, err := LoadWatchlistSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestLoadWatchlistSymbolsJSONBareList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.json")
	require.NoError(t, os.WriteFile(path, []byte(`["nvda", {"symbol": "amd"}]`), 0o644))

	symbols, err := LoadWatchlistSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "AMD"}, symbols)
}

func TestLoadWatchlistSymbolsRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.txt")
	require.NoError(t, os.WriteFile(path, []byte("AAPL"), 0o644))
	_, err := LoadWatchlistSymbols(path)
	require.Error(t, err)
}

func TestLoadWatchlistSymbolsMissingFile(t *testing.T) {
	_, err := LoadWatchlistSymbols(filepath.Join(t.TempDir(), "absent.yaml"))
	var ingErr *movers.IngestionError
	assert.ErrorAs(t, err, &ingErr)
}

func TestLoadWatchlistSymbolsEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols: []\n"), 0o644))
	_, err := LoadWatchlistSymbols(path)
	require.Error(t, err)
}
