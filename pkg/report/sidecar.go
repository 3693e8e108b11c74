package report

import (
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type sidecarProcess struct {
	Name       string  `yaml:"name"`
	PID        int     `yaml:"pid"`
	PPID       int     `yaml:"ppid"`
	CPUPercent float64 `yaml:"cpu_percent"`
	VSZKiB     uint64  `yaml:"vsz_kib"`
	Outcome    string  `yaml:"outcome"`
}

type sidecarDoc struct {
	CycleID    string           `yaml:"cycle_id"`
	PID        int              `yaml:"pid"`
	Generated  string           `yaml:"generated"`
	Threshold  float64          `yaml:"threshold"`
	LoadWindow int              `yaml:"load_window_minutes"`
	Load       map[string]any   `yaml:"load"`
	Processes  []sidecarProcess `yaml:"processes"`
	Commentary string           `yaml:"commentary,omitempty"`
}

// SidecarPath swaps the .html extension of an artifact for .yaml.
func SidecarPath(htmlPath string) string {
	return strings.TrimSuffix(htmlPath, ".html") + ".yaml"
}

// WriteYAML writes a machine readable copy of r.
func WriteYAML(w io.Writer, r Report) error {
	doc := sidecarDoc{
		CycleID:    r.CycleID,
		PID:        r.PID,
		Generated:  r.Generated.UTC().Format(time.RFC3339),
		Threshold:  r.Threshold,
		LoadWindow: r.LoadWindow,
		Load: map[string]any{
			"one":     r.Load.One,
			"five":    r.Load.Five,
			"fifteen": r.Load.Fifteen,
		},
		Processes:  make([]sidecarProcess, 0, len(r.Outcomes)),
		Commentary: r.Commentary,
	}
	for _, o := range r.Outcomes {
		doc.Processes = append(doc.Processes, sidecarProcess{
			Name:       o.Process.Comm,
			PID:        o.Process.PID,
			PPID:       o.Process.PPID,
			CPUPercent: o.Process.CPUPercent,
			VSZKiB:     o.Process.VSZKiB,
			Outcome:    o.Outcome.String(),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
