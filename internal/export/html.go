package export

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dealerops/incentive-engine/internal/commission"
)

var reportTemplate = template.Must(template.New("commission").Funcs(template.FuncMap{
	"money":   money,
	"label":   RowLabel,
	"value":   func(r commission.Row, month string) float64 { return r.Value(month) },
	"ruleNo":  func(i int) int { return i + 1 },
	"isTotal": func(k commission.RowKind) bool { return k == commission.KindTotalComp },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family:Arial,sans-serif;font-size:13px">
<h2>{{.Title}}</h2>
{{- if not .Results}}
<p>No active payplan scenarios.</p>
{{- end}}
{{- range .Results}}
<h3>{{.ScenarioName}}</h3>
<table cellpadding="4" cellspacing="0" border="1" style="border-collapse:collapse">
<thead><tr>{{range $.Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
{{- $row := .}}
<tr{{if isTotal .Kind}} style="font-weight:bold"{{end}}>
<td>{{ruleNo .RuleIndex}}</td><td>{{.SourceMetric}}</td><td>{{.Description}}</td><td>{{label .Kind}}</td>
{{- range $.Months}}<td align="right">{{money (value $row .)}}</td>{{end}}
<td align="right">{{money .Total}}</td>
</tr>
{{- end}}
</tbody>
</table>
{{- end}}
</body>
</html>
`))

type htmlReport struct {
	Title   string
	Header  []string
	Months  []string
	Results []commission.Result
}

// WriteHTML renders the results as one table per scenario, suitable for an
// email body.
func WriteHTML(w io.Writer, title string, months []string, results []commission.Result) error {
	if err := reportTemplate.Execute(w, htmlReport{
		Title:   title,
		Header:  Header(months),
		Months:  months,
		Results: results,
	}); err != nil {
		return fmt.Errorf("render commission html: %w", err)
	}
	return nil
}

// money formats v with two decimals and thousands separators.
func money(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && s != "0.00" {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
