package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscount(t *testing.T) {
	tests := []struct {
		name      string
		startCost float64
		dealCost  float64
		want      float64
	}{
		{"ten percent", 1_000_000, 900_000, 10.00},
		{"corrected price", 1_000_000, 850_000, 15.00},
		{"zero start cost", 0, 900_000, 0},
		{"negative start cost", -5, 900_000, 0},
		{"no discount", 500_000, 500_000, 0},
		{"premium over start", 100, 110, -10.00},
		{"fractional", 3, 2, 33.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Discount(tt.startCost, tt.dealCost))
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, Round2(10.556))
	assert.Equal(t, -10.56, Round2(-10.556))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, 33.33, Round2(33.3333))
}
