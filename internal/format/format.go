// Package format renders report tables. Callers build a table once and
// render it in the Mode chosen on the command line.
package format

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
	CSV                  // Comma-separated, one table per block
)

// ParseMode maps a --format flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "text", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	default:
		return ASCII, fmt.Errorf("unknown format %q (available: text, markdown, csv)", s)
	}
}

// Align is a column's horizontal alignment.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignRight
)

// Column configures one column by 1-based index.
type Column struct {
	Number int
	Align  Align
}

// Table is the project-owned table abstraction over go-pretty.
type Table interface {
	Title(s string)
	Header(cols ...string)
	// Row appends a data row; values are rendered with fmt.
	Row(vals ...any)
	Footer(vals ...any)
	Columns(cols ...Column)
	String() string
}

// NewTable returns a Table that renders in mode m.
func NewTable(m Mode) Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &prettyTable{w: w, mode: m}
}

type prettyTable struct {
	w    table.Writer
	mode Mode
}

func (t *prettyTable) Title(s string) { t.w.SetTitle(s) }

func (t *prettyTable) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.w.AppendHeader(row)
}

func (t *prettyTable) Row(vals ...any) { t.w.AppendRow(table.Row(vals)) }

func (t *prettyTable) Footer(vals ...any) { t.w.AppendFooter(table.Row(vals)) }

func (t *prettyTable) Columns(cols ...Column) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c.Number, Align: textAlign(c.Align)}
	}
	t.w.SetColumnConfigs(cfgs)
}

func (t *prettyTable) String() string {
	switch t.mode {
	case Markdown:
		return t.w.RenderMarkdown()
	case CSV:
		return t.w.RenderCSV()
	default:
		return t.w.Render()
	}
}

func textAlign(a Align) text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignRight:
		return text.AlignRight
	default:
		return text.AlignDefault
	}
}
