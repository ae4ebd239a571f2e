// Package xlsx renders a report table into an xlsx workbook with native
// spreadsheet formulas, merged regions and number formats.
package xlsx

import (
	"fmt"
	"io"

	"Acta/internal/calc/protocol"
	"Acta/internal/calc/table"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Concrete Test"

const (
	thin  = 1
	thick = 5
)

// Write renders t and writes the workbook to w.
func Write(t *table.Table, w io.Writer) error {
	f, err := Render(t)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Render builds the workbook in memory. The caller closes it.
func Render(t *table.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, err
	}
	r := &renderer{f: f, styles: make(map[styleKey]int)}
	if err := r.render(t); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

type styleKey struct {
	bold    bool
	numeric bool
	format  protocol.Format
	border  table.Border
}

type renderer struct {
	f      *excelize.File
	styles map[styleKey]int
}

func (r *renderer) render(t *table.Table) error {
	for _, row := range t.Rows {
		for _, c := range row {
			if err := r.cell(c); err != nil {
				return fmt.Errorf("cell %d,%d: %w", c.Row, c.Col, err)
			}
		}
	}
	for _, m := range t.Merges {
		tl, err := ref(table.Pos{Row: m.Top, Col: m.Left})
		if err != nil {
			return err
		}
		br, err := ref(table.Pos{Row: m.Bottom, Col: m.Right})
		if err != nil {
			return err
		}
		if err := r.f.MergeCell(SheetName, tl, br); err != nil {
			return fmt.Errorf("merge %s:%s: %w", tl, br, err)
		}
	}
	return r.layout(t)
}

func (r *renderer) cell(c table.Cell) error {
	name, err := ref(c.Pos)
	if err != nil {
		return err
	}
	switch c.Kind {
	case table.Label:
		err = r.f.SetCellStr(SheetName, name, c.Text)
	case table.Literal:
		if c.Text != "" {
			err = r.f.SetCellStr(SheetName, name, c.Text)
		} else if v, ok := c.Number.Get(); ok {
			err = r.f.SetCellFloat(SheetName, name, v, -1, 64)
		}
	case table.FormulaRef:
		var expr string
		if expr, err = Formula(c.Formula); err == nil {
			err = r.f.SetCellFormula(SheetName, name, expr)
		}
	}
	if err != nil {
		return err
	}

	id, err := r.style(styleKey{bold: c.Style.Bold, numeric: c.Numeric, format: c.Format, border: c.Style.Thick})
	if err != nil {
		return err
	}
	return r.f.SetCellStyle(SheetName, name, name, id)
}

func (r *renderer) style(k styleKey) (int, error) {
	if id, ok := r.styles[k]; ok {
		return id, nil
	}
	edge := func(side string, isThick bool) excelize.Border {
		s := thin
		if isThick {
			s = thick
		}
		return excelize.Border{Type: side, Color: "000000", Style: s}
	}
	st := &excelize.Style{
		Font: &excelize.Font{Family: "Arial", Size: 9, Bold: k.bold},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: []excelize.Border{
			edge("left", k.border.Left),
			edge("right", k.border.Right),
			edge("top", k.border.Top),
			edge("bottom", k.border.Bottom),
		},
	}
	if k.bold {
		st.Alignment.Horizontal = "left"
	}
	if k.numeric {
		pattern := k.format.Pattern()
		st.CustomNumFmt = &pattern
	}
	id, err := r.f.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("new style: %w", err)
	}
	r.styles[k] = id
	return id, nil
}

func (r *renderer) layout(t *table.Table) error {
	widths := map[int]float64{0: 34, 1: 14, t.AverageCol: 12}
	for c := 0; c < t.Columns; c++ {
		w, ok := widths[c]
		if !ok {
			w = 10
		}
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := r.f.SetColWidth(SheetName, col, col, w); err != nil {
			return err
		}
	}
	for i := range t.Rows {
		if err := r.f.SetRowHeight(SheetName, i+1, 16); err != nil {
			return err
		}
	}
	return nil
}

// Formula translates a formula cell into spreadsheet syntax, e.g.
// "C12/C9" or "AVERAGE(C13:E13)".
func Formula(fm *table.Formula) (string, error) {
	if fm == nil {
		return "", fmt.Errorf("formula cell without formula")
	}
	if fm.Op == table.OpAverage {
		from, err := ref(table.Pos{Row: fm.Range.Top, Col: fm.Range.Left})
		if err != nil {
			return "", err
		}
		to, err := ref(table.Pos{Row: fm.Range.Bottom, Col: fm.Range.Right})
		if err != nil {
			return "", err
		}
		return "AVERAGE(" + from + ":" + to + ")", nil
	}

	names := make(map[string]string, len(fm.Operands))
	for _, op := range fm.Expr.Operands() {
		p, ok := fm.Operands[op]
		if !ok {
			return "", fmt.Errorf("operand %s has no cell", op)
		}
		name, err := ref(p)
		if err != nil {
			return "", err
		}
		names[op] = name
	}
	return fm.Expr.Format(func(op string) string { return names[op] }), nil
}

func ref(p table.Pos) (string, error) {
	return excelize.CoordinatesToCellName(p.Col+1, p.Row+1)
}
