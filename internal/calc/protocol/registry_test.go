package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(qs []Quantity) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Name
	}
	return out
}

func TestResolveReferenceTable(t *testing.T) {
	tests := []struct {
		id           ID
		count        int
		quantities   []string
		requiresMass bool
	}{
		{CubeCompression, 3, []string{"area", "mass", "density", "load", "strength"}, true},
		{CubeCompression6, 6, []string{"area", "mass", "density", "load", "strength"}, true},
		{CubeFrost, 3, []string{"area", "mass", "density", "load", "strength"}, true},
		{CubeFrost6, 6, []string{"area", "mass", "density", "load", "strength"}, true},
		{BeamCompression, 6, []string{"area", "load", "strength"}, false},
		{BeamFlexural, 3, []string{"load", "strength"}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			spec, err := Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.id, spec.ID)
			assert.Equal(t, tt.count, spec.SpecimenCount)
			assert.Equal(t, tt.quantities, names(spec.Quantities))
			assert.Equal(t, tt.requiresMass, spec.RequiresMass)
			assert.Len(t, spec.Dimensions, 3)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("cylinder_testing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProtocol))
	assert.Contains(t, err.Error(), "cylinder_testing")
}

func TestResolveReturnsCopy(t *testing.T) {
	spec, err := Resolve(CubeCompression)
	require.NoError(t, err)
	spec.Dimensions[0].Nominal = 100
	spec.Quantities[0].Name = "changed"

	again, err := Resolve(CubeCompression)
	require.NoError(t, err)
	assert.Equal(t, 150.0, again.Dimensions[0].Nominal)
	assert.Equal(t, "area", again.Quantities[0].Name)
}

func TestIDsAreResolvable(t *testing.T) {
	for _, id := range IDs() {
		_, err := Resolve(id)
		assert.NoError(t, err, id)
	}
	assert.Len(t, IDs(), len(registry))
}

func TestFlexuralDimensionModel(t *testing.T) {
	spec, err := Resolve(BeamFlexural)
	require.NoError(t, err)

	x, ok := spec.Dimension("x")
	require.True(t, ok)
	assert.False(t, x.PerSpecimen)
	assert.Equal(t, 150.0, x.Nominal)

	z, ok := spec.Dimension("z")
	require.True(t, ok)
	assert.True(t, z.PerSpecimen)
	assert.Equal(t, 600.0, z.Nominal)

	assert.Equal(t, []Reading{FailureLoad}, spec.Readings())
}

func TestReadingsOrder(t *testing.T) {
	spec, err := Resolve(CubeFrost6)
	require.NoError(t, err)
	assert.Equal(t, []Reading{Mass, FailureLoad}, spec.Readings())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0", Integer.Pattern())
	assert.Equal(t, "0.000", ThreeDecimal.Pattern())
	assert.Equal(t, 2, TwoDecimal.Decimals())
	assert.Equal(t, "Compressive strength [N/mm²]", compressive.Caption())
}
