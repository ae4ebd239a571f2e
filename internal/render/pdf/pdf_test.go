package pdf

import (
	"bytes"
	"testing"

	"Acta/internal/calc/derive"
	"Acta/internal/calc/measure"
	"Acta/internal/calc/protocol"
	"Acta/internal/calc/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, id protocol.ID) *table.Table {
	t.Helper()
	spec, err := protocol.Resolve(id)
	require.NoError(t, err)
	loads := make([]measure.Value, spec.SpecimenCount)
	for i := range loads {
		loads[i] = measure.Of(300000)
	}
	values, err := derive.Derive(spec, []measure.RawReading{{Kind: protocol.FailureLoad, Values: loads}})
	require.NoError(t, err)
	tbl, err := table.Build(spec, measure.Metadata{SetID: "Ş-1", SpecimenCount: spec.SpecimenCount}, values)
	require.NoError(t, err)
	return tbl
}

func TestWrite(t *testing.T) {
	for _, id := range protocol.IDs() {
		t.Run(string(id), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(build(t, id), &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
			assert.Contains(t, buf.String(), "%%EOF")
		})
	}
}

func TestColumnsFillPage(t *testing.T) {
	tbl := build(t, protocol.CubeCompression6)
	xs := columns(tbl)
	require.Len(t, xs, tbl.Columns+1)
	assert.InDelta(t, margin, xs[0], 1e-9)
	assert.InDelta(t, pageWidth-margin, xs[len(xs)-1], 1e-9)
	assert.InDelta(t, labelWidth, xs[1]-xs[0], 1e-9)
}

func TestOutline(t *testing.T) {
	tbl := build(t, protocol.CubeCompression)

	caption := outline(tbl, region(tbl, table.Pos{Row: 1, Col: 0}))
	assert.True(t, caption.Bottom)
	assert.True(t, caption.Left)
	assert.True(t, caption.Right)

	inner := outline(tbl, region(tbl, table.Pos{Row: 9, Col: 3}))
	assert.Equal(t, table.Border{}, inner)

	first := outline(tbl, region(tbl, table.Pos{Row: 9, Col: 2}))
	assert.True(t, first.Left)
	assert.False(t, first.Right)
}

func TestRenderRejectsNarrowTable(t *testing.T) {
	_, err := Render(&table.Table{Protocol: "x", Columns: 2})
	assert.Error(t, err)
}
