// Package derive computes every per-specimen quantity a protocol declares,
// plus the cross-specimen average of each row.
package derive

import (
	"fmt"

	"Acta/internal/calc/measure"
	"Acta/internal/calc/protocol"

	"github.com/montanaflynn/stats"
)

// Row holds one dimension or quantity across all specimens.
type Row struct {
	Name    string          `json:"name"`
	Values  []measure.Value `json:"values"`
	Average measure.Value   `json:"average"`
}

type ValueSet struct {
	Protocol      protocol.ID `json:"protocol"`
	SpecimenCount int         `json:"specimen_count"`
	Dimensions    []Row       `json:"dimensions"`
	Quantities    []Row       `json:"quantities"`
}

// Quantity looks up a derived row by name.
func (vs ValueSet) Quantity(name string) (Row, bool) {
	for _, r := range vs.Quantities {
		if r.Name == name {
			return r, true
		}
	}
	return Row{}, false
}

// Derive evaluates the protocol's quantities in declared order. An absent
// reading row counts as all-missing; a formula with a missing operand yields
// Missing for that specimen only. A dimension without a row takes its nominal
// value; a supplied dimension row is used as is.
func Derive(spec protocol.Spec, readings []measure.RawReading) (ValueSet, error) {
	n := spec.SpecimenCount
	byKind := make(map[protocol.Reading][]measure.Value)
	byDim := make(map[string][]measure.Value)

	for _, r := range readings {
		if len(r.Values) != n {
			return ValueSet{}, &measure.SourceError{
				Protocol: spec.ID,
				Reason:   fmt.Sprintf("%s row has %d values for %d specimens", readingName(r), len(r.Values), n),
			}
		}
		switch {
		case r.Dimension != "":
			d, ok := spec.Dimension(r.Dimension)
			if !ok || !d.PerSpecimen {
				return ValueSet{}, &measure.SourceError{Protocol: spec.ID, Reason: fmt.Sprintf("dimension %s is not measured", r.Dimension)}
			}
			byDim[d.Name] = r.Values
		case r.Kind != protocol.NoReading:
			byKind[r.Kind] = r.Values
		default:
			return ValueSet{}, &measure.SourceError{Protocol: spec.ID, Reason: "reading without kind"}
		}
	}

	vs := ValueSet{
		Protocol:      spec.ID,
		SpecimenCount: n,
		Dimensions:    make([]Row, len(spec.Dimensions)),
		Quantities:    make([]Row, len(spec.Quantities)),
	}
	for j, d := range spec.Dimensions {
		vs.Dimensions[j] = Row{Name: d.Name, Values: make([]measure.Value, n)}
	}
	for j, q := range spec.Quantities {
		vs.Quantities[j] = Row{Name: q.Name, Values: make([]measure.Value, n)}
	}

	for i := 0; i < n; i++ {
		env := make(map[string]measure.Value, len(spec.Dimensions)+len(spec.Quantities))
		for j, d := range spec.Dimensions {
			v := measure.Of(d.Nominal)
			if m, ok := byDim[d.Name]; ok {
				v = m[i]
			}
			env[d.Name] = v
			vs.Dimensions[j].Values[i] = v
		}
		lookup := func(name string) (float64, bool) { return env[name].Get() }

		for j, q := range spec.Quantities {
			var v measure.Value
			if q.Reading != protocol.NoReading {
				if raw, ok := byKind[q.Reading]; ok {
					v = raw[i]
				}
			} else if f, ok := q.Formula.Eval(lookup); ok {
				v = measure.Of(f)
			}
			env[q.Name] = v
			vs.Quantities[j].Values[i] = v
		}
	}

	for j := range vs.Dimensions {
		vs.Dimensions[j].Average = Average(vs.Dimensions[j].Values)
	}
	for j := range vs.Quantities {
		vs.Quantities[j].Average = Average(vs.Quantities[j].Values)
	}
	return vs, nil
}

// Average is the arithmetic mean of the present values, Missing when none is.
func Average(values []measure.Value) measure.Value {
	data := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if f, ok := v.Get(); ok {
			data = append(data, f)
		}
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return measure.Missing
	}
	return measure.Of(mean)
}

func readingName(r measure.RawReading) string {
	if r.Dimension != "" {
		return r.Dimension
	}
	return string(r.Kind)
}
