package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]float64) Env {
	return func(name string) (float64, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestEval(t *testing.T) {
	density := Mul(Div(Ref("mass"), Mul(Ref("x"), Ref("y"), Ref("z"))), Const(1e9))

	tests := []struct {
		name   string
		expr   Expr
		values map[string]float64
		want   float64
		ok     bool
	}{
		{"product", Mul(Ref("x"), Ref("y")), map[string]float64{"x": 150, "y": 149}, 22350, true},
		{"quotient", Div(Ref("load"), Ref("area")), map[string]float64{"load": 300000, "area": 22500}, 13.333333333333334, true},
		{"density", density, map[string]float64{"mass": 8.1, "x": 150, "y": 150, "z": 150}, 2400, true},
		{"flexural", Div(Mul(Ref("load"), Const(450)), Pow(Ref("x"), 3)), map[string]float64{"load": 18000, "x": 150}, 2.4, true},
		{"missing operand", Div(Ref("load"), Ref("area")), map[string]float64{"area": 22500}, 0, false},
		{"zero divisor", Div(Ref("load"), Ref("area")), map[string]float64{"load": 1, "area": 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.expr.Eval(env(tt.values))
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestOperands(t *testing.T) {
	e := Div(Mul(Ref("load"), Const(450)), Mul(Ref("x"), Pow(Ref("x"), 2), Ref("load")))
	assert.Equal(t, []string{"load", "x"}, e.Operands())
	assert.Empty(t, Const(1).Operands())
}

func TestFormat(t *testing.T) {
	cells := map[string]string{"mass": "C10", "x": "C6", "y": "C7", "z": "C8", "load": "C12", "area": "C9"}
	ref := func(name string) string { return cells[name] }

	assert.Equal(t, "C6*C7", Mul(Ref("x"), Ref("y")).Format(ref))
	assert.Equal(t, "C12/C9", Div(Ref("load"), Ref("area")).Format(ref))
	assert.Equal(t, "(C10/(C6*C7*C8))*1000000000",
		Mul(Div(Ref("mass"), Mul(Ref("x"), Ref("y"), Ref("z"))), Const(1e9)).Format(ref))
	assert.Equal(t, "(C12*450)/(C6^3)", Div(Mul(Ref("load"), Const(450)), Pow(Ref("x"), 3)).Format(ref))
}
