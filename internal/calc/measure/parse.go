// Package measure reads the delimited measurement source exported by the
// scale and the press: three metadata lines followed by one row per reading
// kind, each row `<label>,<v1>,...,<vN>`.
package measure

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"Acta/internal/calc/protocol"
)

var ErrMalformedSource = errors.New("malformed measurement source")

// SourceError locates a fatal problem in the measurement source.
type SourceError struct {
	Protocol protocol.ID
	Line     int
	Reason   string
}

func (e *SourceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s for %s: line %d: %s", ErrMalformedSource, e.Protocol, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s for %s: %s", ErrMalformedSource, e.Protocol, e.Reason)
}

func (e *SourceError) Unwrap() error { return ErrMalformedSource }

type Metadata struct {
	Protocol      protocol.ID `json:"protocol"`
	SetID         string      `json:"set_id"`
	CastingDate   string      `json:"casting_date"`
	TestingDate   string      `json:"testing_date"`
	SpecimenCount int         `json:"specimen_count"`
}

// RawReading is one measurement row. Dimension is set for dimension rows, Kind
// for mass and failure-load rows. len(Values) always equals the protocol's
// specimen count.
type RawReading struct {
	Kind      protocol.Reading `json:"kind,omitempty"`
	Dimension string           `json:"dimension,omitempty"`
	Values    []Value          `json:"values"`
}

// Record is one delimited line with its 1-based source line number.
type Record struct {
	Line   int
	Fields []string
}

var (
	massLabels = []string{"mass", "greutate", "masa", "weight"}
	loadLabels = []string{"failure_load", "load", "kn", "n", "sarcina", "force"}
)

// Parse reads a comma-delimited source.
func Parse(spec protocol.Spec, r io.Reader) (Metadata, []RawReading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var records []Record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return Metadata{}, nil, &SourceError{Protocol: spec.ID, Line: perr.Line, Reason: perr.Err.Error()}
			}
			return Metadata{}, nil, fmt.Errorf("read measurement source: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(records) == 0 && len(fields) > 0 {
			fields[0] = strings.TrimPrefix(fields[0], "\ufeff")
		}
		records = append(records, Record{Line: line, Fields: fields})
	}
	return ParseRecords(spec, records)
}

// ParseLines parses already split source lines.
func ParseLines(spec protocol.Spec, lines []string) (Metadata, []RawReading, error) {
	return Parse(spec, strings.NewReader(strings.Join(lines, "\n")))
}

// ParseRecords turns records into metadata and readings. Unparseable tokens
// become Missing. Empty tokens in a dimension row take the nominal dimension,
// elsewhere they are Missing. Structural problems are fatal.
func ParseRecords(spec protocol.Spec, records []Record) (Metadata, []RawReading, error) {
	fail := func(line int, format string, args ...any) error {
		return &SourceError{Protocol: spec.ID, Line: line, Reason: fmt.Sprintf(format, args...)}
	}

	records = slices.DeleteFunc(slices.Clone(records), blank)
	if len(records) < 3 {
		return Metadata{}, nil, fail(0, "need 3 metadata lines, got %d", len(records))
	}

	meta := Metadata{Protocol: spec.ID, SpecimenCount: spec.SpecimenCount}
	targets := []*string{&meta.SetID, &meta.CastingDate, &meta.TestingDate}
	for i, name := range []string{"set identifier", "casting date", "testing date"} {
		rec := records[i]
		if len(rec.Fields) < 2 || strings.TrimSpace(rec.Fields[1]) == "" {
			return Metadata{}, nil, fail(rec.Line, "%s is absent", name)
		}
		*targets[i] = strings.TrimSpace(rec.Fields[1])
	}

	expected := spec.Readings()
	byKind := make(map[protocol.Reading]RawReading)
	var dims []RawReading
	seenDims := make(map[string]bool)

	for _, rec := range records[3:] {
		label := strings.ToLower(strings.TrimSpace(rec.Fields[0]))

		if d, ok := spec.Dimension(label); ok {
			if !d.PerSpecimen {
				return Metadata{}, nil, fail(rec.Line, "dimension %s is fixed at %g mm", d.Name, d.Nominal)
			}
			if seenDims[d.Name] {
				return Metadata{}, nil, fail(rec.Line, "duplicate %s row", d.Name)
			}
			values, err := parseValues(rec.Fields[1:], spec.SpecimenCount, Of(d.Nominal))
			if err != nil {
				return Metadata{}, nil, fail(rec.Line, "%v", err)
			}
			seenDims[d.Name] = true
			dims = append(dims, RawReading{Dimension: d.Name, Values: values})
			continue
		}

		values, err := parseValues(rec.Fields[1:], spec.SpecimenCount, Missing)
		if err != nil {
			return Metadata{}, nil, fail(rec.Line, "%v", err)
		}

		var kind protocol.Reading
		switch {
		case slices.Contains(massLabels, label):
			kind = protocol.Mass
		case slices.Contains(loadLabels, label):
			kind = protocol.FailureLoad
		default:
			kind = nextExpected(expected, byKind)
			if kind == protocol.NoReading {
				return Metadata{}, nil, fail(rec.Line, "unexpected row %q", rec.Fields[0])
			}
		}

		if !slices.Contains(expected, kind) {
			// the export always carries a mass row, even for beams
			continue
		}
		if _, dup := byKind[kind]; dup {
			return Metadata{}, nil, fail(rec.Line, "duplicate %s row", kind)
		}
		if idx := slices.Index(expected, kind); idx < len(expected)-1 {
			if _, later := byKind[expected[idx+1]]; later {
				return Metadata{}, nil, fail(rec.Line, "%s row must precede %s row", kind, expected[idx+1])
			}
		}
		byKind[kind] = RawReading{Kind: kind, Values: values}
	}

	readings := make([]RawReading, 0, len(expected)+len(dims))
	for _, kind := range expected {
		r, ok := byKind[kind]
		if !ok {
			return Metadata{}, nil, fail(0, "%s row is absent", kind)
		}
		readings = append(readings, r)
	}
	return meta, append(readings, dims...), nil
}

func nextExpected(expected []protocol.Reading, have map[protocol.Reading]RawReading) protocol.Reading {
	for _, k := range expected {
		if _, ok := have[k]; !ok {
			return k
		}
	}
	return protocol.NoReading
}

// parseValues fills empty and absent tokens with empty and rejects rows
// carrying more values than there are specimens.
func parseValues(tokens []string, count int, empty Value) ([]Value, error) {
	for len(tokens) > 0 && strings.TrimSpace(tokens[len(tokens)-1]) == "" {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) > count {
		return nil, fmt.Errorf("%d values for %d specimens", len(tokens), count)
	}
	values := make([]Value, count)
	for i := range values {
		if i >= len(tokens) || strings.TrimSpace(tokens[i]) == "" {
			values[i] = empty
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(tokens[i]), 64)
		if err != nil {
			continue
		}
		values[i] = Of(f)
	}
	return values, nil
}

func blank(r Record) bool {
	for _, f := range r.Fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
