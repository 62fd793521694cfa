package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/daily-movers/internal/domain/analysis"
	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
)

// HTMLRenderer writes the standalone digest page for a run. Everything in it
// comes through html/template so upstream strings are escaped.
type HTMLRenderer struct{}

var digestTmpl = template.Must(template.New("digest").Funcs(template.FuncMap{
	"pct": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%+.2f%%", *v)
	},
	"num": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"tags": func(tags []string) string {
		return strings.Join(tags, ", ")
	},
	"reasons": func(reasons []string) string {
		return strings.Join(reasons, "; ")
	},
	"tier": analysis.TierOf,
}).Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Daily Movers Digest</title>
  <style>
    body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2rem; color: #1c2733; }
    table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
    th, td { border: 1px solid #d7dee6; padding: 6px 10px; text-align: left; font-size: 14px; }
    th { background: #f0f4f8; }
    .meta { color: #5a6b7b; font-size: 13px; }
    .review { background: #fff4e5; }
    .BUY { color: #0a7d33; font-weight: 600; }
    .SELL { color: #b42318; font-weight: 600; }
    .WATCH { color: #8a6d00; font-weight: 600; }
  </style>
</head>
<body>
  <h1>Daily Movers Digest</h1>
  <p class="meta">
    run {{.ID}} | date {{.Date}} | mode {{.Mode}} | region {{.Region}} | status {{.Status}}<br/>
    processed {{.Summary.Processed}} | errored {{.Summary.Errored}} | needs review {{.Summary.NeedsReview}}
    | tiers: agent {{.Summary.TierCounts.Agent}}, direct {{.Summary.TierCounts.DirectLLM}}, heuristics {{.Summary.TierCounts.Heuristics}}
  </p>
  <table>
    <thead>
      <tr>
        <th>#</th><th>Symbol</th><th>%</th><th>Action</th><th>Conf</th>
        <th>Tier</th><th>Why it moved</th><th>Tags</th><th>Review</th>
      </tr>
    </thead>
    <tbody>
      {{range .Records}}
      <tr{{if .NeedsReview}} class="review"{{end}}>
        <td>{{.Task.Ordinal}}</td>
        <td>{{.Task.Symbol}}</td>
        <td>{{pct .Task.PctChange}}</td>
        <td class="{{.Analysis.Action}}">{{.Analysis.Action}}</td>
        <td>{{num .Analysis.Confidence}}</td>
        <td>{{tier .Analysis.ModelUsed}}</td>
        <td>{{.Analysis.WhyItMoved}}</td>
        <td>{{tags .Tags}}</td>
        <td>{{reasons .NeedsReviewReason}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>
</body>
</html>
`))

func (HTMLRenderer) RenderDigest(run *domain.Run, dir string) (string, error) {
	path := filepath.Join(dir, "digest.html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := digestTmpl.Execute(f, run); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return path, nil
}
