package measure

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"Acta/internal/calc/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func spec(t *testing.T, id protocol.ID) protocol.Spec {
	t.Helper()
	s, err := protocol.Resolve(id)
	require.NoError(t, err)
	return s
}

func floats(t *testing.T, vs []Value) []any {
	t.Helper()
	out := make([]any, len(vs))
	for i, v := range vs {
		if f, ok := v.Get(); ok {
			out[i] = f
		} else {
			out[i] = nil
		}
	}
	return out
}

func TestParseCubeSource(t *testing.T) {
	src := strings.Join([]string{
		"indicativ_serie,S-12",
		"data_confectionarii,01.09.2026",
		"data_incercarii,29.09.2026",
		"greutate,8.105,,abc",
		"kN,300000,305000",
	}, "\n")

	meta, readings, err := Parse(spec(t, protocol.CubeCompression), strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, Metadata{
		Protocol:      protocol.CubeCompression,
		SetID:         "S-12",
		CastingDate:   "01.09.2026",
		TestingDate:   "29.09.2026",
		SpecimenCount: 3,
	}, meta)

	require.Len(t, readings, 2)
	assert.Equal(t, protocol.Mass, readings[0].Kind)
	assert.Equal(t, []any{8.105, nil, nil}, floats(t, readings[0].Values))
	assert.Equal(t, protocol.FailureLoad, readings[1].Kind)
	assert.Equal(t, []any{300000.0, 305000.0, nil}, floats(t, readings[1].Values))
}

func TestParseDimensionRows(t *testing.T) {
	_, readings, err := ParseLines(spec(t, protocol.CubeCompression), []string{
		"set,S1", "cast,01.09.2026", "test,29.09.2026",
		"z,,,149",
		"mass,8.1,8.1,8.1",
		"load,300000,305000,",
	})
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, "z", readings[2].Dimension)
	assert.Equal(t, []any{150.0, 150.0, 149.0}, floats(t, readings[2].Values))
}

func TestParseDimensionGarbleIsMissing(t *testing.T) {
	_, readings, err := ParseLines(spec(t, protocol.CubeCompression), []string{
		"set,S1", "cast,01.09.2026", "test,29.09.2026",
		"z,150,,14x9",
		"mass,8.1,8.1,8.1",
		"load,300000,305000,310000",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{150.0, 150.0, nil}, floats(t, readings[2].Values))
	assert.Equal(t, []any{8.1, 8.1, 8.1}, floats(t, readings[0].Values))
}

func TestParseToleratesStrayQuote(t *testing.T) {
	_, readings, err := ParseLines(spec(t, protocol.BeamFlexural), []string{
		"s,B1", "c,01.09.2026", "t,29.09.2026",
		`kN,18000,18"000,17000`,
	})
	require.NoError(t, err)
	assert.Equal(t, []any{18000.0, nil, 17000.0}, floats(t, readings[0].Values))
}

func TestParsePositionalRows(t *testing.T) {
	_, readings, err := ParseLines(spec(t, protocol.CubeCompression6), []string{
		"a,S1", "b,01.09.2026", "c,29.09.2026",
		"row1,8.1,8.2,8.3,8.4,8.5,8.6",
		"row2,1,2,3,4,5,6",
	})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, protocol.Mass, readings[0].Kind)
	assert.Equal(t, protocol.FailureLoad, readings[1].Kind)
	assert.Len(t, readings[1].Values, 6)
}

func TestParseBeamIgnoresMassRow(t *testing.T) {
	_, readings, err := ParseLines(spec(t, protocol.BeamCompression), []string{
		"indicativ_serie,B1", "data_confectionarii,01.09.2026", "data_incercarii,29.09.2026",
		"greutate,,,,,,",
		"kN,500000,510000,,,,",
	})
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, protocol.FailureLoad, readings[0].Kind)
	assert.Equal(t, []any{500000.0, 510000.0, nil, nil, nil, nil}, floats(t, readings[0].Values))
}

func TestParseNonFiniteTokensAreMissing(t *testing.T) {
	_, readings, err := ParseLines(spec(t, protocol.BeamFlexural), []string{
		"s,B1", "c,01.09.2026", "t,29.09.2026",
		"load,NaN,+Inf,18000",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, 18000.0}, floats(t, readings[0].Values))
}

func TestParseMalformed(t *testing.T) {
	base := []string{"set,S1", "cast,01.09.2026", "test,29.09.2026"}
	with := func(lines ...string) []string { return append(append([]string{}, base...), lines...) }

	tests := []struct {
		name  string
		id    protocol.ID
		lines []string
		line  int
	}{
		{"too few lines", protocol.CubeCompression, []string{"set,S1", "cast,01.09.2026"}, 0},
		{"absent set id", protocol.CubeCompression, []string{"set,", "cast,01.09.2026", "test,29.09.2026", "mass,1", "load,1"}, 1},
		{"absent testing date", protocol.CubeCompression, []string{"set,S1", "cast,01.09.2026", "test", "mass,1", "load,1"}, 3},
		{"too many values", protocol.CubeCompression, with("mass,1,2,3,4", "load,1"), 4},
		{"missing load row", protocol.CubeCompression, with("mass,1,2,3"), 0},
		{"missing mass row", protocol.CubeCompression, with("load,1,2,3"), 0},
		{"mass after load", protocol.CubeCompression, with("load,1,2,3", "mass,1,2,3"), 5},
		{"duplicate load", protocol.BeamFlexural, with("load,1", "kN,2"), 5},
		{"fixed dimension", protocol.BeamFlexural, with("x,150,150,150", "load,1"), 4},
		{"extra row", protocol.BeamFlexural, with("load,1", "other,2"), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseLines(spec(t, tt.id), tt.lines)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSource))

			var serr *SourceError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.id, serr.Protocol)
			assert.Equal(t, tt.line, serr.Line)
			assert.Contains(t, err.Error(), string(tt.id))
		})
	}
}

func TestReadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"indicativ_serie", "W-7"},
		{"data_confectionarii", "01.09.2026"},
		{"data_incercarii", "29.09.2026"},
		{"kN", 18000, 18500, ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	meta, readings, err := ReadWorkbook(spec(t, protocol.BeamFlexural), &buf)
	require.NoError(t, err)
	assert.Equal(t, "W-7", meta.SetID)
	require.Len(t, readings, 1)
	assert.Equal(t, []any{18000.0, 18500.0, nil}, floats(t, readings[0].Values))
}

func TestReadWorkbookIgnoresNumberFormats(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"set", "C-3"},
		{"cast", "01.09.2026"},
		{"test", "29.09.2026"},
		{"mass", 8.16, 8.2, 8.0},
		{"load", 300000.6, 305000, 310000},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	oneDecimal := "0.0"
	massStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &oneDecimal})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B4", "D4", massStyle))
	loadStyle, err := f.NewStyle(&excelize.Style{NumFmt: 1})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B5", "D5", loadStyle))

	shown, err := f.GetCellValue(sheet, "B4")
	require.NoError(t, err)
	require.Equal(t, "8.2", shown)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	meta, readings, err := ReadWorkbook(spec(t, protocol.CubeCompression), &buf)
	require.NoError(t, err)
	assert.Equal(t, "01.09.2026", meta.CastingDate)
	require.Len(t, readings, 2)
	assert.Equal(t, []any{8.16, 8.2, 8.0}, floats(t, readings[0].Values))
	assert.Equal(t, []any{300000.6, 305000.0, 310000.0}, floats(t, readings[1].Values))
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, _, err := ReadWorkbook(spec(t, protocol.BeamFlexural), strings.NewReader("not a workbook"))
	assert.True(t, errors.Is(err, ErrMalformedSource))
}

func TestValueJSON(t *testing.T) {
	b, err := Of(1.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(b))

	b, err = Missing.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("null")))
	assert.False(t, v.Present())
	_, ok := v.Get()
	assert.False(t, ok)
}
