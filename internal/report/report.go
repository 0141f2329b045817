// Package report turns execution plans and run results into text, JSON or
// YAML for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/detectflow/internal/engine"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Summary is the serializable view of one run.
type Summary struct {
	RunID     string    `json:"runId" yaml:"runId"`
	Usage     string    `json:"usage" yaml:"usage"`
	Root      string    `json:"root" yaml:"root"`
	Start     time.Time `json:"start" yaml:"start"`
	End       time.Time `json:"end" yaml:"end"`
	Duration  string    `json:"duration" yaml:"duration"`
	Outputs   []Output  `json:"outputs" yaml:"outputs"`
	Anomalies int       `json:"anomalyCount" yaml:"anomalyCount"`
}

// Output describes one published node output. Combiner outputs are
// expanded into one entry per constituent.
type Output struct {
	Key           string           `json:"key" yaml:"key"`
	Kind          string           `json:"kind" yaml:"kind"`
	Rows          int              `json:"rows,omitempty" yaml:"rows,omitempty"`
	Item          string           `json:"item,omitempty" yaml:"item,omitempty"`
	LastTimestamp *int64           `json:"lastTimestamp,omitempty" yaml:"lastTimestamp,omitempty"`
	Anomalies     []*model.Anomaly `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
}

// Run identifies the invocation a Summary describes.
type Run struct {
	RunID    string
	Usage    model.Usage
	Root     string
	Interval model.DetectionInterval
	Duration time.Duration
}

// Summarize builds the summary of results.
func Summarize(run Run, results engine.Results) Summary {
	summary := Summary{
		RunID:    run.RunID,
		Usage:    run.Usage.String(),
		Root:     run.Root,
		Start:    run.Interval.Start,
		End:      run.Interval.End,
		Duration: run.Duration.Round(time.Millisecond).String(),
		Outputs:  []Output{},
	}
	for _, key := range results.Keys() {
		summary.Outputs = append(summary.Outputs, describe(key.String(), results[key])...)
	}
	for _, out := range summary.Outputs {
		summary.Anomalies += len(out.Anomalies)
	}
	return summary
}

func describe(key string, result model.OperatorResult) []Output {
	switch r := result.(type) {
	case *model.CombinerResult:
		var outs []Output
		for _, nested := range r.Keys() {
			value, _ := r.Get(nested)
			outs = append(outs, describe(key+"/"+nested, value)...)
		}
		if len(outs) == 0 {
			outs = append(outs, Output{Key: key, Kind: "combiner"})
		}
		return outs
	case *model.EnumerationResult:
		return []Output{{Key: key, Kind: "enumeration", Rows: len(r.Items), Item: r.String()}}
	case nil:
		return []Output{{Key: key, Kind: "empty"}}
	}

	out := Output{Key: key, Kind: "table"}
	if table, ok := model.TableOf(result); ok {
		out.Rows = table.Len()
	}
	if anomalies, ok := result.Anomalies(); ok {
		out.Kind = "anomalies"
		out.Anomalies = anomalies
	}
	if item, ok := result.EnumerationItem(); ok && item != nil {
		out.Item = item.String()
	}
	if ts, ok := result.LastTimestamp(); ok {
		out.LastTimestamp = &ts
	}
	return []Output{out}
}

// Renderer writes summaries and plans in one format.
type Renderer struct {
	Format string
	Color  bool
}

// Summary writes summary to w.
func (r Renderer) Summary(w io.Writer, summary Summary) error {
	switch r.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, r.summaryText(summary))
		return err
	default:
		return fmt.Errorf("unknown output format %q", r.Format)
	}
}

func (r Renderer) summaryText(summary Summary) string {
	s := newStyles(r.Color)
	var lines []string
	lines = append(lines,
		s.title.Render(fmt.Sprintf("Run %s (%s)", summary.RunID, summary.Usage)),
		s.muted.Render(fmt.Sprintf("Interval %s to %s, root %s, took %s",
			summary.Start.Format(time.RFC3339), summary.End.Format(time.RFC3339), summary.Root, summary.Duration)),
		"",
		s.section.Render("Outputs:"),
	)
	for _, out := range summary.Outputs {
		line := fmt.Sprintf("  %s [%s]", out.Key, out.Kind)
		if out.Rows > 0 {
			line += fmt.Sprintf(" rows=%d", out.Rows)
		}
		if out.Item != "" {
			line += " item=" + out.Item
		}
		lines = append(lines, line)
		for _, anomaly := range out.Anomalies {
			lines = append(lines, r.anomalyLine(s, anomaly))
		}
	}

	lines = append(lines, "")
	if summary.Anomalies == 0 {
		lines = append(lines, s.success.Render("No anomalies"))
	} else {
		lines = append(lines, s.failure.Render(fmt.Sprintf("%d anomalies", summary.Anomalies)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (r Renderer) anomalyLine(s styles, anomaly *model.Anomaly) string {
	start := time.UnixMilli(anomaly.StartTime).UTC().Format(time.RFC3339)
	end := time.UnixMilli(anomaly.EndTime).UTC().Format(time.RFC3339)
	line := fmt.Sprintf("    %s → %s", start, end)
	if anomaly.Metric != "" {
		line += " metric=" + anomaly.Metric
	}
	if anomaly.AvgCurrentVal != nil {
		line += fmt.Sprintf(" current=%g", *anomaly.AvgCurrentVal)
	}
	ignored := false
	var names []string
	for _, label := range anomaly.Labels {
		names = append(names, label.Name)
		ignored = ignored || label.Ignore
	}
	if len(names) > 0 {
		line += " labels=" + strings.Join(names, ",")
	}
	if ignored {
		return s.ignored.Render(line + " (ignored)")
	}
	return line
}

// Plan writes the execution plan to w.
func (r Renderer) Plan(w io.Writer, name string, plan *engine.ExecutionPlan) error {
	switch r.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(plan)
	case FormatText, "":
		s := newStyles(r.Color)
		header := s.title.Render(fmt.Sprintf("Pipeline %s: %d nodes in %d levels", name, plan.NodeCount(), len(plan.Levels)))
		_, err := fmt.Fprintf(w, "%s\n%s", header, plan.String())
		return err
	default:
		return fmt.Errorf("unknown output format %q", r.Format)
	}
}
