package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/gap"
	"github.com/mdlh/mdq/internal/plan"
	"github.com/mdlh/mdq/internal/score"
	"github.com/mdlh/mdq/internal/signal"
)

var (
	colorReady    = color.New(color.FgGreen, color.Bold)
	colorNotReady = color.New(color.FgRed, color.Bold)
	colorUnknown  = color.New(color.FgYellow, color.Bold)
	colorError    = color.New(color.FgMagenta, color.Bold)
)

// Verdict returns the status coloured for a terminal. Colour is dropped
// automatically when stdout is not a terminal or NO_COLOR is set.
func Verdict(s evaluate.Status) string {
	switch s {
	case evaluate.StatusReady:
		return colorReady.Sprint(string(s))
	case evaluate.StatusNotReady:
		return colorNotReady.Sprint(string(s))
	case evaluate.StatusUnknownHeavy:
		return colorUnknown.Sprint(string(s))
	default:
		return colorError.Sprint(string(s))
	}
}

// ColumnAlign specifies the horizontal alignment for a column.
type ColumnAlign int

const (
	AlignDefault ColumnAlign = iota
	AlignLeft
	AlignRight
)

// TableBuilder is a thin wrapper over a go-pretty table writer.
type TableBuilder struct {
	writer table.Writer
}

// NewTable returns an empty table in the light box style.
func NewTable(title string) *TableBuilder {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	if title != "" {
		w.SetTitle(title)
	}
	return &TableBuilder{writer: w}
}

// Header sets the column headers.
func (b *TableBuilder) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	b.writer.AppendHeader(row)
}

// Row appends a data row.
func (b *TableBuilder) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	b.writer.AppendRow(row)
}

// Footer appends a footer row.
func (b *TableBuilder) Footer(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	b.writer.AppendFooter(row)
}

// Align sets the alignment of 1-based column numbers.
func (b *TableBuilder) Align(align ColumnAlign, columns ...int) {
	cfgs := make([]table.ColumnConfig, len(columns))
	for i, n := range columns {
		cfgs[i] = table.ColumnConfig{Number: n, Align: toTextAlign(align)}
	}
	b.writer.SetColumnConfigs(cfgs)
}

// String renders the table.
func (b *TableBuilder) String() string {
	return b.writer.Render()
}

func toTextAlign(a ColumnAlign) text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignRight:
		return text.AlignRight
	default:
		return text.AlignDefault
	}
}

// TableFormatter renders views as terminal tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Format renders a view as tables.
func (f *TableFormatter) Format(v interface{}) (string, error) {
	return formatString(f, v)
}

// FormatToWriter writes tables for the supported views.
func (f *TableFormatter) FormatToWriter(w io.Writer, v interface{}) error {
	var tables []*TableBuilder
	var header string

	switch x := v.(type) {
	case *RunView:
		header = runHeader(x)
		if len(x.Gaps) > 0 {
			tables = append(tables, gapsTable(x.Gaps))
		}
		if len(x.Scores) > 0 {
			tables = append(tables, scoresTable(x.Scores))
		}
		if x.Plan != nil && x.Plan.TotalActions > 0 {
			tables = append(tables, planTable(x.Plan))
		}
	case *MatrixView:
		tables = append(tables, matrixTable(x))
	case *GapsView:
		header = fmt.Sprintf("%s  %s  gaps=%d  subjects=%d\n",
			x.CapabilityID, x.ScopeID, x.Summary.TotalGaps, x.Summary.AffectedSubjects)
		if len(x.Gaps) > 0 {
			tables = append(tables, gapsTable(x.Gaps))
		}
	case *plan.RemediationPlan:
		header = fmt.Sprintf("%s  actions=%d  gaps=%d  subjects=%d\n",
			x.ID, x.TotalActions, x.TotalGaps, x.DistinctSubjects)
		tables = append(tables, planTable(x))
	case *CompletenessView:
		tables = append(tables, completenessTable(x))
	case *CatalogView:
		tables = append(tables, catalogTable(x))
	case *SignalsView:
		if len(x.Assets) > 0 {
			tables = append(tables, assetSignalsTable(x.Assets))
		} else {
			tables = append(tables, signalCatalogTable(x.Signals))
		}
	default:
		return fmt.Errorf("table format does not support %T", v)
	}

	if header != "" {
		if _, err := io.WriteString(w, header); err != nil {
			return err
		}
	}
	for _, t := range tables {
		if _, err := fmt.Fprintln(w, t.String()); err != nil {
			return err
		}
	}
	return nil
}

func runHeader(v *RunView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", v.ID, Verdict(v.Status))
	fmt.Fprintf(&sb, "capability: %s  scope: %s  assets: %d\n", v.CapabilityID, v.ScopeID, v.Summary.Assets)
	fmt.Fprintf(&sb, "readiness: %.2f (threshold %.2f, gate %s)\n",
		v.Readiness.Score, v.Readiness.Threshold, passFail(v.Readiness.GatePass))
	fmt.Fprintf(&sb, "gaps: %d (missing %d, unknown %d)  actions: %d\n",
		v.Summary.Gaps, v.Summary.Missing, v.Summary.Unknown, v.Summary.Actions)
	if v.Summary.Recommendation != "" {
		fmt.Fprintf(&sb, "recommendation: %s\n", v.Summary.Recommendation)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(&sb, "warning: %s\n", w)
	}
	return sb.String()
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func gapsTable(gaps []gap.Gap) *TableBuilder {
	t := NewTable("Gaps")
	t.Header("SUBJECT", "SIGNAL", "TYPE", "SEVERITY", "WORKSTREAM")
	for _, g := range gaps {
		subject := g.SubjectName
		if subject == "" {
			subject = g.SubjectID
		}
		t.Row(subject, g.SignalType, g.GapType, g.Severity, g.Workstream)
	}
	return t
}

func scoresTable(scores []score.SubjectScore) *TableBuilder {
	t := NewTable("Scores")
	t.Header("SUBJECT", "TYPE", "IMPACT", "QUALITY", "QUADRANT")
	for _, s := range scores {
		subject := s.SubjectName
		if subject == "" {
			subject = s.SubjectID
		}
		quality := "unknown"
		if s.QualityScore != nil {
			quality = fmt.Sprintf("%.2f", *s.QualityScore)
		}
		t.Row(subject, s.SubjectType, fmt.Sprintf("%.2f", s.ImpactScore), quality, s.Quadrant)
	}
	t.Align(AlignRight, 3, 4)
	return t
}

func planTable(p *plan.RemediationPlan) *TableBuilder {
	t := NewTable("Plan")
	t.Header("PHASE", "WORKSTREAM", "ACTION", "ASSETS", "EFFORT")
	for _, ph := range p.Phases {
		for _, ws := range ph.Workstreams {
			for _, a := range ws.Actions {
				t.Row(ph.Name, ws.Workstream, a.Title, a.AssetCount, a.EffortBucket)
			}
		}
	}
	t.Footer("", "", "total", p.TotalAssets, fmt.Sprintf("%d actions", p.TotalActions))
	return t
}

func matrixTable(m *MatrixView) *TableBuilder {
	t := NewTable(fmt.Sprintf("Readiness: %s", m.ScopeID))
	t.Header("CAPABILITY", "STATUS", "SCORE", "GAPS")
	for _, r := range m.Capabilities {
		status := Verdict(r.Status)
		if r.Error != "" {
			status += " " + r.Error
		}
		t.Row(r.CapabilityID, status, fmt.Sprintf("%.2f", r.ReadinessScore), r.GapCount)
	}
	t.Footer("ready", fmt.Sprintf("%d/%d", m.Ready, m.Total), "", "")
	t.Align(AlignRight, 3, 4)
	return t
}

func completenessTable(c *CompletenessView) *TableBuilder {
	t := NewTable(fmt.Sprintf("Completeness: %s (threshold %d)", c.ScopeID, c.Threshold))
	t.Header("ASSET", "SCORE", "COMPLETE", "PHASE")
	for _, r := range c.Results {
		name := r.AssetName
		if name == "" {
			name = r.AssetID
		}
		t.Row(name, r.Score, r.IsComplete, r.Phase)
	}
	t.Footer(fmt.Sprintf("%d assets", c.Assets), fmt.Sprintf("avg %.1f", c.AverageScore),
		fmt.Sprintf("%d complete", c.Complete), "")
	t.Align(AlignRight, 2)
	return t
}

func catalogTable(c *CatalogView) *TableBuilder {
	t := NewTable(fmt.Sprintf("Capabilities (%s)", c.Version))
	t.Header("ID", "NAME", "REQUIRED", "CRITICAL")
	for _, r := range c.Capabilities {
		t.Row(r.CapabilityID, r.Name, joinSignals(r.RequiredSignals), joinSignals(r.CriticalSignals))
	}
	return t
}

func signalCatalogTable(defs []signal.Definition) *TableBuilder {
	t := NewTable("Signals")
	t.Header("SIGNAL", "SEVERITY", "WORKSTREAM", "DESCRIPTION")
	for _, d := range defs {
		t.Row(d.Signal, d.Severity, d.Workstream, d.Description)
	}
	return t
}

func assetSignalsTable(assets []AssetSignals) *TableBuilder {
	t := NewTable("Signal profiles")
	header := []string{"ASSET"}
	for _, s := range signal.All() {
		header = append(header, s.String())
	}
	t.Header(header...)
	for _, a := range assets {
		row := []any{a.AssetID}
		for _, s := range signal.All() {
			row = append(row, a.Profile.Get(s).String())
		}
		t.Row(row...)
	}
	return t
}

func joinSignals(list []signal.Signal) string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}
