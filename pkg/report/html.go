package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/srodi/loadreaper/pkg/types"
)

// Renderer formats a report onto w.
type Renderer interface {
	Render(w io.Writer, r Report) error
}

// Row is one outcome line as shown in the artifact.
type Row struct {
	Comm       string
	PID        int
	CPUPercent string
	PPID       int
	VSZKiB     uint64
	Outcome    string
}

// Rows flattens outcomes into table rows, keeping their order.
func Rows(outcomes []types.TerminationOutcome) []Row {
	rows := make([]Row, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, Row{
			Comm:       o.Process.Comm,
			PID:        o.Process.PID,
			CPUPercent: fmt.Sprintf("%.1f", o.Process.CPUPercent),
			PPID:       o.Process.PPID,
			VSZKiB:     o.Process.VSZKiB,
			Outcome:    o.Outcome.String(),
		})
	}
	return rows
}

// HTMLRenderer writes the standalone HTML artifact.
type HTMLRenderer struct{}

type htmlView struct {
	Report
	Timestamp  string
	Rows       []Row
	Terminated int
	Denied     int
	Missing    int
}

// Render executes the report template. Commentary is escaped and kept preformatted.
func (HTMLRenderer) Render(w io.Writer, r Report) error {
	counts := r.Counts()
	return htmlTemplate.Execute(w, htmlView{
		Report:     r,
		Timestamp:  r.Generated.Format(time.RFC1123),
		Rows:       Rows(r.Outcomes),
		Terminated: counts[types.Terminated],
		Denied:     counts[types.PermissionDenied],
		Missing:    counts[types.NotFound],
	})
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>loadreaper report {{.PID}} {{.Timestamp}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 10px; text-align: left; }
pre { background: #f4f4f4; padding: 1em; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Load reduction report</h1>
<p>Generated {{.Timestamp}} by pid {{.PID}} (cycle {{.CycleID}})</p>
<h2>System load</h2>
<table>
<tr><th>1 min</th><th>5 min</th><th>15 min</th><th>Threshold</th></tr>
<tr><td>{{printf "%.2f" .Load.One}}</td><td>{{printf "%.2f" .Load.Five}}</td><td>{{printf "%.2f" .Load.Fifteen}}</td><td>{{printf "%.2f" .Threshold}} ({{.LoadWindow}} min)</td></tr>
</table>
<h2>Processes</h2>
<p>{{.Terminated}} terminated, {{.Denied}} permission denied, {{.Missing}} not found</p>
<table>
<tr><th>Name</th><th>PID</th><th>%CPU</th><th>PPID</th><th>VSZ (KiB)</th><th>Outcome</th></tr>
{{- range .Rows}}
<tr><td>{{.Comm}}</td><td>{{.PID}}</td><td>{{.CPUPercent}}</td><td>{{.PPID}}</td><td>{{.VSZKiB}}</td><td>{{.Outcome}}</td></tr>
{{- end}}
</table>
<h2>Commentary</h2>
<pre>{{.Commentary}}</pre>
</body>
</html>
`))
