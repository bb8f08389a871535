package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"missing becomes empty cell", math.NaN(), ""},
		{"integral value drops the fraction", 150.0, "150"},
		{"fractional value keeps full precision", 12.5, "12.5"},
		{"zero is a value, not missing", 0, "0"},
		{"negative value", -3.25, "-3.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestFormatWeight(t *testing.T) {
	assert.Equal(t, "1.0", formatWeight(1))
	assert.Equal(t, "0.5", formatWeight(0.5))
	assert.Equal(t, "2.0", formatWeight(2))
}
