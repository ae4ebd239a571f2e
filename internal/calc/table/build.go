package table

import (
	"strconv"

	"Acta/internal/calc/derive"
	"Acta/internal/calc/measure"
	"Acta/internal/calc/protocol"
)

const (
	DefaultInstrument = "PILOT 4, MODEL 50 - C4642 Nr. Serial"
	DefaultCaption    = "Test results:"
)

// Options carries the lab-specific header lines.
type Options struct {
	Instrument string
	Caption    string
}

// Build lays out the report with the default header lines.
func Build(spec protocol.Spec, meta measure.Metadata, values derive.ValueSet) (*Table, error) {
	return Options{}.Build(spec, meta, values)
}

// Build lays out the report. It fails without a table when the metadata,
// the value set and the protocol disagree on the specimen count.
func (o Options) Build(spec protocol.Spec, meta measure.Metadata, values derive.ValueSet) (*Table, error) {
	if err := checkCounts(spec, meta, values); err != nil {
		return nil, err
	}
	if o.Instrument == "" {
		o.Instrument = DefaultInstrument
	}
	if o.Caption == "" {
		o.Caption = DefaultCaption
	}

	n := spec.SpecimenCount
	b := &builder{t: &Table{
		Protocol:    spec.ID,
		Title:       spec.Title,
		Columns:     n + 3,
		FirstSample: 2,
		AverageCol:  n + 2,
		RowIndex:    make(map[string]int),
	}}
	last := b.t.AverageCol

	b.banner(o.Instrument, true)
	b.banner(o.Caption, true)
	for c := range b.t.Rows[1] {
		b.t.Rows[1][c].Style.Thick.Bottom = true
	}
	b.banner("", false)
	b.metaRow("Casting date", meta.CastingDate)
	b.metaRow("Testing date", meta.TestingDate)

	r := b.row()
	b.set(r, 0, Cell{Kind: Label, Text: "Set " + meta.SetID})
	b.merge(Region{Top: r, Left: 0, Bottom: r, Right: 1})
	for i := 0; i < n; i++ {
		b.set(r, 2+i, Cell{Kind: Label, Text: strconv.Itoa(i + 1)})
	}
	b.set(r, last, Cell{Kind: Label, Text: "Average"})

	first := len(b.t.Rows)
	for j, d := range spec.Dimensions {
		r := b.row()
		b.t.RowIndex[d.Name] = r
		if j == 0 {
			b.set(r, 0, Cell{Kind: Label, Text: spec.DimensionLabel})
		}
		b.set(r, 1, Cell{Kind: Label, Text: d.Label})
		b.values(r, values.Dimensions[j], nil, protocol.Integer)
	}
	if len(spec.Dimensions) > 1 {
		b.merge(Region{Top: first, Left: 0, Bottom: first + len(spec.Dimensions) - 1, Right: 0})
	}

	for j, q := range spec.Quantities {
		r := b.row()
		b.t.RowIndex[q.Name] = r
		b.set(r, 0, Cell{Kind: Label, Text: q.Caption()})
		b.merge(Region{Top: r, Left: 0, Bottom: r, Right: 1})
		b.values(r, values.Quantities[j], &q, q.Format)
	}

	b.borders()
	return b.t, nil
}

func checkCounts(spec protocol.Spec, meta measure.Metadata, values derive.ValueSet) error {
	n := meta.SpecimenCount
	mismatch := func(field string, got int) error {
		return &MismatchError{Protocol: spec.ID, Field: field, Want: n, Got: got}
	}
	if values.SpecimenCount != n {
		return mismatch("value set", values.SpecimenCount)
	}
	if spec.SpecimenCount != n {
		return mismatch("protocol", spec.SpecimenCount)
	}
	if len(values.Dimensions) != len(spec.Dimensions) {
		return &MismatchError{Protocol: spec.ID, Field: "dimension rows", Want: len(spec.Dimensions), Got: len(values.Dimensions)}
	}
	if len(values.Quantities) != len(spec.Quantities) {
		return &MismatchError{Protocol: spec.ID, Field: "quantity rows", Want: len(spec.Quantities), Got: len(values.Quantities)}
	}
	for _, rows := range [][]derive.Row{values.Dimensions, values.Quantities} {
		for _, row := range rows {
			if len(row.Values) != n {
				return mismatch(row.Name+" row", len(row.Values))
			}
		}
	}
	return nil
}

type builder struct {
	t *Table
}

// row appends a row pre-filled with empty literal cells.
func (b *builder) row() int {
	r := len(b.t.Rows)
	cells := make([]Cell, b.t.Columns)
	for c := range cells {
		cells[c] = Cell{Pos: Pos{Row: r, Col: c}, Kind: Literal}
	}
	b.t.Rows = append(b.t.Rows, cells)
	return r
}

func (b *builder) set(r, c int, cell Cell) {
	cell.Pos = Pos{Row: r, Col: c}
	b.t.Rows[r][c] = cell
}

// merge records the region and turns every covered cell into a placeholder.
func (b *builder) merge(m Region) {
	for _, other := range b.t.Merges {
		if other.overlaps(m) {
			panic("table: overlapping merge regions")
		}
	}
	b.t.Merges = append(b.t.Merges, m)
	for r := m.Top; r <= m.Bottom; r++ {
		for c := m.Left; c <= m.Right; c++ {
			if r != m.Top || c != m.Left {
				b.t.Rows[r][c] = Cell{Pos: Pos{Row: r, Col: c}, Kind: Merged}
			}
		}
	}
}

func (b *builder) banner(text string, bold bool) {
	r := b.row()
	b.set(r, 0, Cell{Kind: Label, Text: text, Style: Style{Bold: bold}})
	b.merge(Region{Top: r, Left: 0, Bottom: r, Right: b.t.AverageCol})
}

func (b *builder) metaRow(label, value string) {
	r := b.row()
	b.set(r, 0, Cell{Kind: Label, Text: label})
	b.merge(Region{Top: r, Left: 0, Bottom: r, Right: 1})
	b.set(r, 2, Cell{Kind: Literal, Text: value})
	b.merge(Region{Top: r, Left: 2, Bottom: r, Right: b.t.AverageCol})
}

// values fills the specimen and average columns of row r. Raw readings and
// dimensions become literals, formula quantities become formula cells with
// their operands resolved to rows already laid out. Missing values stay as
// empty literals carrying the row's format.
func (b *builder) values(r int, row derive.Row, q *protocol.Quantity, format protocol.Format) {
	for i, v := range row.Values {
		c := b.t.FirstSample + i
		cell := Cell{Kind: Literal, Number: v, Numeric: true, Format: format}
		if v.Present() && q != nil && q.Formula != nil {
			operands := make(map[string]Pos)
			for _, name := range q.Formula.Operands() {
				operands[name] = Pos{Row: b.t.RowIndex[name], Col: c}
			}
			cell.Kind = FormulaRef
			cell.Formula = &Formula{Op: OpExpr, Expr: q.Formula, Operands: operands}
		}
		b.set(r, c, cell)
	}

	avg := Cell{Kind: Literal, Number: row.Average, Numeric: true, Format: format}
	if row.Average.Present() {
		avg.Kind = FormulaRef
		avg.Formula = &Formula{Op: OpAverage, Range: Region{
			Top: r, Left: b.t.FirstSample, Bottom: r, Right: b.t.AverageCol - 1,
		}}
	}
	b.set(r, b.t.AverageCol, avg)
}

// borders applies the outline: thick top on the first row, thick bottom on
// the last, thick left on column 0 and the first specimen column, thick right
// on the average column.
func (b *builder) borders() {
	lastRow := len(b.t.Rows) - 1
	for r, cells := range b.t.Rows {
		for c := range cells {
			th := &cells[c].Style.Thick
			th.Top = th.Top || r == 0
			th.Bottom = th.Bottom || r == lastRow
			th.Left = th.Left || c == 0 || c == b.t.FirstSample
			th.Right = th.Right || c == b.t.AverageCol
		}
	}
}
