package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// RenderArchive writes the machine-readable archive: one JSON line per
// record, in ingestion order.
func (HTMLRenderer) RenderArchive(run *domain.Run, dir string) (string, error) {
	path := filepath.Join(dir, "archive.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range run.Records {
		if err := enc.Encode(&run.Records[i]); err != nil {
			return "", fmt.Errorf("encode %s: %w", run.Records[i].Task.Symbol, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return path, nil
}
