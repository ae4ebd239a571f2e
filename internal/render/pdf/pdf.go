// Package pdf prints a report table as a static A4 page. Formula cells are
// printed with their cached values.
package pdf

import (
	"fmt"
	"io"

	"Acta/internal/calc/table"

	"github.com/phpdave11/gofpdf"
)

const (
	margin     = 10.0
	pageWidth  = 210.0
	rowHeight  = 5.0
	labelWidth = 56.0
	unitWidth  = 14.0
	thickLine  = 0.6
	thinLine   = 0.2
)

// Write renders t and writes the document to w.
func Write(t *table.Table, w io.Writer) error {
	pdf, err := Render(t)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Render lays out t on a single page.
func Render(t *table.Table) (*gofpdf.Fpdf, error) {
	if t.Columns < 3 {
		return nil, fmt.Errorf("table %s has %d columns", t.Protocol, t.Columns)
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(t.Title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	xs := columns(t)
	ys := make([]float64, len(t.Rows)+1)
	for i := range ys {
		ys[i] = margin + float64(i)*rowHeight
	}

	pdf.SetLineWidth(thinLine)
	for _, row := range t.Rows {
		for _, c := range row {
			if t.Covered(c.Pos) {
				continue
			}
			reg := region(t, c.Pos)
			style := ""
			if c.Style.Bold {
				style = "B"
			}
			align := "CM"
			if c.Col == 0 || c.Style.Bold {
				align = "LM"
			}
			pdf.SetFont("Helvetica", style, 9)
			pdf.SetXY(xs[reg.Left], ys[reg.Top])
			pdf.CellFormat(xs[reg.Right+1]-xs[reg.Left], ys[reg.Bottom+1]-ys[reg.Top],
				tr(c.Display()), "1", 0, align, false, 0, "")
		}
	}

	pdf.SetLineWidth(thickLine)
	for _, row := range t.Rows {
		for _, c := range row {
			if t.Covered(c.Pos) {
				continue
			}
			reg := region(t, c.Pos)
			b := outline(t, reg)
			x0, x1 := xs[reg.Left], xs[reg.Right+1]
			y0, y1 := ys[reg.Top], ys[reg.Bottom+1]
			if b.Top {
				pdf.Line(x0, y0, x1, y0)
			}
			if b.Bottom {
				pdf.Line(x0, y1, x1, y1)
			}
			if b.Left {
				pdf.Line(x0, y0, x0, y1)
			}
			if b.Right {
				pdf.Line(x1, y0, x1, y1)
			}
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

// columns returns the left edge of every column plus the right edge of the
// last one. Specimen and average columns share the width left after the
// label columns.
func columns(t *table.Table) []float64 {
	rest := (pageWidth - 2*margin - labelWidth - unitWidth) / float64(t.Columns-2)
	xs := make([]float64, t.Columns+1)
	xs[0] = margin
	for c := 0; c < t.Columns; c++ {
		w := rest
		switch c {
		case 0:
			w = labelWidth
		case 1:
			w = unitWidth
		}
		xs[c+1] = xs[c] + w
	}
	return xs
}

func region(t *table.Table, p table.Pos) table.Region {
	if m, ok := t.MergeAt(p); ok {
		return m
	}
	return table.Region{Top: p.Row, Left: p.Col, Bottom: p.Row, Right: p.Col}
}

// outline collects the thick flags of the cells on each edge of reg.
func outline(t *table.Table, reg table.Region) table.Border {
	var b table.Border
	for c := reg.Left; c <= reg.Right; c++ {
		b.Top = b.Top || t.Rows[reg.Top][c].Style.Thick.Top
		b.Bottom = b.Bottom || t.Rows[reg.Bottom][c].Style.Thick.Bottom
	}
	for r := reg.Top; r <= reg.Bottom; r++ {
		b.Left = b.Left || t.Rows[r][reg.Left].Style.Thick.Left
		b.Right = b.Right || t.Rows[r][reg.Right].Style.Thick.Right
	}
	return b
}
