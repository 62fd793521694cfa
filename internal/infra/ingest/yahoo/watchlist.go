package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/daily-movers/internal/domain/movers"
	"github.com/bryanwahyu/daily-movers/internal/infra/httpcache"
)

// WatchlistProvider ingests a fixed symbol list from a YAML or JSON file
// instead of the movers screener. Rows keep file order.
type WatchlistProvider struct {
	Path    string
	Client  *httpcache.Client
	Log     zerolog.Logger
	BaseURL string
}

func NewWatchlistProvider(path string, client *httpcache.Client, log zerolog.Logger) *WatchlistProvider {
	return &WatchlistProvider{Path: path, Client: client, Log: log}
}

func (p *WatchlistProvider) Ingest(ctx context.Context, _ string, top int) ([]movers.TickerTask, error) {
	symbols, err := LoadWatchlistSymbols(p.Path)
	if err != nil {
		return nil, err
	}
	if top > 0 && len(symbols) > top {
		symbols = symbols[:top]
	}

	tasks := make([]movers.TickerTask, 0, len(symbols))
	chartProvider := MoversProvider{Client: p.Client, Log: p.Log, BaseURL: p.BaseURL}
	for i, symbol := range symbols {
		task := chartProvider.taskFromChart(ctx, symbol, "watchlist", "watchlist_chart")
		task.Ordinal = i
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// watchlistFile accepts either a bare list of symbols or an object with a
// symbols key; entries may be strings or objects carrying a symbol field.
type watchlistFile struct {
	Symbols []watchlistEntry `json:"symbols" yaml:"symbols"`
}

type watchlistEntry struct {
	Symbol string
}

func (e *watchlistEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Symbol)
	}
	var obj struct {
		Symbol string `yaml:"symbol"`
	}
	if err := node.Decode(&obj); err != nil {
		return err
	}
	e.Symbol = obj.Symbol
	return nil
}

func (e *watchlistEntry) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Symbol); err == nil {
		return nil
	}
	var obj struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Symbol = obj.Symbol
	return nil
}

// LoadWatchlistSymbols reads, normalizes and deduplicates the symbol list.
func LoadWatchlistSymbols(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &movers.IngestionError{
			Message: fmt.Sprintf("watchlist unreadable: %v", err),
			URL:     path,
		}
	}

	var entries []watchlistEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = parseWatchlist(raw, func(data []byte, v any) error { return yaml.Unmarshal(data, v) })
	case ".json":
		entries, err = parseWatchlist(raw, json.Unmarshal)
	default:
		return nil, &movers.IngestionError{
			Message: "watchlist must be yaml, yml or json",
			URL:     path,
		}
	}
	if err != nil {
		return nil, &movers.IngestionError{
			Message: fmt.Sprintf("watchlist malformed: %v", err),
			URL:     path,
		}
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, entry := range entries {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	if len(symbols) == 0 {
		return nil, &movers.IngestionError{
			Message: "watchlist has no valid symbols",
			URL:     path,
		}
	}
	return symbols, nil
}

func parseWatchlist(raw []byte, unmarshal func([]byte, any) error) ([]watchlistEntry, error) {
	var list []watchlistEntry
	if err := unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var file watchlistFile
	if err := unmarshal(raw, &file); err != nil {
		return nil, err
	}
	return file.Symbols, nil
}
