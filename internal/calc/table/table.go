// Package table lays a derived value set out as a renderer-agnostic report
// table: rows of cells, merged regions, numeric format classes and border
// flags. Renderers translate formula cells into their own syntax.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"Acta/internal/calc/formula"
	"Acta/internal/calc/measure"
	"Acta/internal/calc/protocol"
)

var ErrSpecimenCountMismatch = errors.New("specimen count mismatch")

// MismatchError reports disagreeing specimen counts between the inputs of
// Build. It always indicates a bug upstream.
type MismatchError struct {
	Protocol protocol.ID
	Field    string
	Want     int
	Got      int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s for %s: %s has %d, expected %d", ErrSpecimenCountMismatch, e.Protocol, e.Field, e.Got, e.Want)
}

func (e *MismatchError) Unwrap() error { return ErrSpecimenCountMismatch }

type Kind int

const (
	Label Kind = iota
	Literal
	FormulaRef
	Merged
)

var kindNames = [...]string{"label", "literalValue", "derivedFormulaRef", "mergedPlaceholder"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Region is an inclusive rectangle of cells.
type Region struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

func (r Region) Contains(p Pos) bool {
	return p.Row >= r.Top && p.Row <= r.Bottom && p.Col >= r.Left && p.Col <= r.Right
}

func (r Region) overlaps(o Region) bool {
	return r.Left <= o.Right && o.Left <= r.Right && r.Top <= o.Bottom && o.Top <= r.Bottom
}

type Op int

const (
	// OpExpr evaluates Expr over cells of the same specimen column.
	OpExpr Op = iota
	// OpAverage is the mean of the non-empty cells in Range.
	OpAverage
)

type Formula struct {
	Op       Op
	Expr     formula.Expr
	Operands map[string]Pos
	Range    Region
}

func (f *Formula) MarshalJSON() ([]byte, error) {
	if f.Op == OpAverage {
		return json.Marshal(struct {
			Op    string `json:"op"`
			Range Region `json:"range"`
		}{"average", f.Range})
	}
	return json.Marshal(struct {
		Op         string         `json:"op"`
		Expression string         `json:"expression"`
		Operands   map[string]Pos `json:"operands"`
	}{"expr", f.Expr.Format(func(name string) string { return name }), f.Operands})
}

// Border flags thick cell edges.
type Border struct {
	Top    bool `json:"top,omitempty"`
	Bottom bool `json:"bottom,omitempty"`
	Left   bool `json:"left,omitempty"`
	Right  bool `json:"right,omitempty"`
}

type Style struct {
	Bold  bool   `json:"bold,omitempty"`
	Thick Border `json:"thick"`
}

// Cell is one table position. Number holds the literal value or the cached
// result of a formula; a Literal with neither Text nor Number renders as a
// styled empty cell.
type Cell struct {
	Pos
	Kind    Kind            `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Number  measure.Value   `json:"number"`
	Numeric bool            `json:"numeric,omitempty"`
	Format  protocol.Format `json:"format"`
	Formula *Formula        `json:"formula,omitempty"`
	Style   Style           `json:"style"`
}

// Empty reports a cell with no content to render.
func (c Cell) Empty() bool {
	return c.Kind == Merged || (c.Text == "" && !c.Number.Present())
}

type Table struct {
	Protocol    protocol.ID `json:"protocol"`
	Title       string      `json:"title"`
	Columns     int         `json:"columns"`
	FirstSample int         `json:"first_specimen_col"`
	AverageCol  int         `json:"average_col"`
	Rows        [][]Cell    `json:"rows"`
	Merges      []Region    `json:"merges"`
	// RowIndex maps dimension and quantity names to their row.
	RowIndex map[string]int `json:"row_index"`
}

func (t *Table) Cell(row, col int) Cell { return t.Rows[row][col] }

// MergeAt returns the merged region whose top-left corner is p.
func (t *Table) MergeAt(p Pos) (Region, bool) {
	for _, m := range t.Merges {
		if m.Top == p.Row && m.Left == p.Col {
			return m, true
		}
	}
	return Region{}, false
}

// Covered reports whether p lies inside a merge but is not its corner.
func (t *Table) Covered(p Pos) bool {
	for _, m := range t.Merges {
		if m.Contains(p) && (m.Top != p.Row || m.Left != p.Col) {
			return true
		}
	}
	return false
}

// Display is the text a static renderer prints: the label or literal text,
// or the number in the cell's format class.
func (c Cell) Display() string {
	if c.Kind == Merged {
		return ""
	}
	if c.Text != "" {
		return c.Text
	}
	v, ok := c.Number.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', c.Format.Decimals(), 64)
}
