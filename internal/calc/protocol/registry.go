// Package protocol is the registry of supported test protocols. A Spec fixes
// how many specimens a protocol tests, which dimensions describe a specimen
// and which quantities are derived from the readings, in which order.
package protocol

import (
	"errors"
	"fmt"
	"slices"

	"Acta/internal/calc/formula"
)

type ID string

const (
	CubeCompression  ID = "cube_compression_testing"
	CubeCompression6 ID = "cube_compression_testing_6"
	CubeFrost        ID = "cube_frost_testing"
	CubeFrost6       ID = "cube_frost_testing_6"
	BeamCompression  ID = "beam_compression_testing"
	BeamFlexural     ID = "beam_flexural_testing"
)

var ErrUnknownProtocol = errors.New("unknown protocol")

// Format is the numeric format class of a row.
type Format int

const (
	Integer Format = iota
	OneDecimal
	TwoDecimal
	ThreeDecimal
)

// Decimals returns the number of fraction digits the class prints.
func (f Format) Decimals() int { return int(f) }

// Pattern is the spreadsheet number format of the class.
func (f Format) Pattern() string {
	switch f {
	case OneDecimal:
		return "0.0"
	case TwoDecimal:
		return "0.00"
	case ThreeDecimal:
		return "0.000"
	}
	return "0"
}

// Reading is the kind of raw measurement row a quantity is read from.
type Reading string

const (
	NoReading   Reading = ""
	Mass        Reading = "mass"
	FailureLoad Reading = "failure_load"
)

// Dimension is one named specimen dimension in millimetres.
type Dimension struct {
	Name    string
	Label   string
	Nominal float64
	// PerSpecimen dimensions may be overridden by a measured reading;
	// the others always take the nominal value.
	PerSpecimen bool
}

// Quantity is a row of the report. Exactly one of Reading and Formula is set.
type Quantity struct {
	Name    string
	Label   string
	Unit    string
	Format  Format
	Reading Reading
	Formula formula.Expr
}

// Caption is the row label printed in the report, e.g. "Failure load [N]".
func (q Quantity) Caption() string {
	if q.Unit == "" {
		return q.Label
	}
	return q.Label + " [" + q.Unit + "]"
}

type Spec struct {
	ID             ID
	Title          string
	SpecimenCount  int
	DimensionLabel string
	Dimensions     []Dimension
	Quantities     []Quantity
	RequiresMass   bool
}

// Dimension looks up a dimension by name.
func (s Spec) Dimension(name string) (Dimension, bool) {
	for _, d := range s.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// Readings lists the raw reading kinds the protocol consumes, in source order.
func (s Spec) Readings() []Reading {
	var out []Reading
	for _, q := range s.Quantities {
		if q.Reading != NoReading && !slices.Contains(out, q.Reading) {
			out = append(out, q.Reading)
		}
	}
	return out
}

// Resolve returns a copy of the protocol spec so callers cannot alter the
// registry.
func Resolve(id ID) (Spec, error) {
	s, ok := registry[id]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownProtocol, string(id))
	}
	s.Dimensions = slices.Clone(s.Dimensions)
	s.Quantities = slices.Clone(s.Quantities)
	return s, nil
}

// IDs lists every registered protocol in a stable order.
func IDs() []ID {
	return []ID{CubeCompression, CubeCompression6, CubeFrost, CubeFrost6, BeamCompression, BeamFlexural}
}

const (
	cubeSide   = 150.0
	beamLength = 600.0
	// distance between the supports of the flexural rig, mm
	flexuralSpan = 450.0
	// mm³ to m³ with mass kept in kg
	densityScale = 1e9
)

var (
	// load is applied along x, so the loaded face is y by z
	area = Quantity{
		Name: "area", Label: "Compression area", Unit: "mm²", Format: Integer,
		Formula: formula.Mul(formula.Ref("y"), formula.Ref("z")),
	}
	mass = Quantity{
		Name: "mass", Label: "Specimen mass", Unit: "kg", Format: ThreeDecimal,
		Reading: Mass,
	}
	density = Quantity{
		Name: "density", Label: "Apparent density", Unit: "kg/m³", Format: OneDecimal,
		Formula: formula.Mul(
			formula.Div(formula.Ref("mass"), formula.Mul(formula.Ref("x"), formula.Ref("y"), formula.Ref("z"))),
			formula.Const(densityScale),
		),
	}
	load = Quantity{
		Name: "load", Label: "Failure load", Unit: "N", Format: Integer,
		Reading: FailureLoad,
	}
	compressive = Quantity{
		Name: "strength", Label: "Compressive strength", Unit: "N/mm²", Format: TwoDecimal,
		Formula: formula.Div(formula.Ref("load"), formula.Ref("area")),
	}
	// three-point bending on a square section: span over the cubed section side
	flexural = Quantity{
		Name: "strength", Label: "Flexural strength", Unit: "N/mm²", Format: TwoDecimal,
		Formula: formula.Div(formula.Mul(formula.Ref("load"), formula.Const(flexuralSpan)), formula.Pow(formula.Ref("x"), 3)),
	}
)

func measured(name string, nominal float64) Dimension {
	return Dimension{Name: name, Label: name + " [mm]", Nominal: nominal, PerSpecimen: true}
}

func fixed(name string, nominal float64) Dimension {
	return Dimension{Name: name, Label: name + " [mm]", Nominal: nominal}
}

func cube(id ID, title string, count int) Spec {
	return Spec{
		ID:             id,
		Title:          title,
		SpecimenCount:  count,
		DimensionLabel: "Cube dimensions [mm]",
		Dimensions:     []Dimension{measured("x", cubeSide), measured("y", cubeSide), measured("z", cubeSide)},
		Quantities:     []Quantity{area, mass, density, load, compressive},
		RequiresMass:   true,
	}
}

var registry = map[ID]Spec{
	CubeCompression:  cube(CubeCompression, "Cube compressive strength", 3),
	CubeCompression6: cube(CubeCompression6, "Cube compressive strength", 6),
	CubeFrost:        cube(CubeFrost, "Cube frost resistance", 3),
	CubeFrost6:       cube(CubeFrost6, "Cube frost resistance", 6),
	BeamCompression: {
		ID:             BeamCompression,
		Title:          "Beam compressive strength",
		SpecimenCount:  6,
		DimensionLabel: "Beam dimensions [mm]",
		Dimensions:     []Dimension{measured("x", cubeSide), measured("y", cubeSide), measured("z", cubeSide)},
		Quantities:     []Quantity{area, load, compressive},
	},
	BeamFlexural: {
		ID:             BeamFlexural,
		Title:          "Beam flexural strength",
		SpecimenCount:  3,
		DimensionLabel: "Beam dimensions [mm]",
		Dimensions:     []Dimension{fixed("x", cubeSide), fixed("y", cubeSide), measured("z", beamLength)},
		Quantities:     []Quantity{load, flexural},
	},
}
