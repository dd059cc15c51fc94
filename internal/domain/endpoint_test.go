package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChargeAmount(t *testing.T) {
	tests := []struct {
		cost float64
		want int64
	}{
		{0, 0},
		{-1, 0},
		{1, 1},
		{0.1, 1},
		{1.5, 2},
		{2.01, 3},
		{10, 10},
	}
	for _, tt := range tests {
		e := &Endpoint{CreditCost: tt.cost}
		assert.Equal(t, tt.want, e.ChargeAmount(), "cost %v", tt.cost)
	}
}

func TestErrorRateAndAvgResponseTime(t *testing.T) {
	e := &Endpoint{}
	assert.Equal(t, 0.0, e.ErrorRate(), "no calls yet")
	assert.Equal(t, 0.0, e.AvgResponseTime(), "no calls yet")

	e = &Endpoint{TotalCalls: 200, ErrorCount: 10, TotalLatencyMs: 25000}
	assert.InDelta(t, 0.05, e.ErrorRate(), 1e-9)
	assert.InDelta(t, 125.0, e.AvgResponseTime(), 1e-9)
}

func TestAllowsPlan(t *testing.T) {
	open := &Endpoint{}
	assert.True(t, open.AllowsPlan("free"), "empty allow-list means every plan")

	gated := &Endpoint{AllowedPlans: []string{"professional", "enterprise"}}
	assert.True(t, gated.AllowsPlan("professional"))
	assert.True(t, gated.AllowsPlan("enterprise"))
	assert.False(t, gated.AllowsPlan("free"))
	assert.False(t, gated.AllowsPlan(""))
}
