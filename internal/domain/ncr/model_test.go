package ncr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"provision/internal/core/id"
	"provision/internal/core/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusOpen, StatusSent, true},
		{StatusOpen, StatusResolved, true},
		{StatusOpen, StatusCredited, false},
		{StatusSent, StatusCredited, true},
		{StatusSent, StatusRejected, true},
		{StatusCredited, StatusResolved, true},
		{StatusRejected, StatusResolved, true},
		{StatusResolved, StatusOpen, false},
		{StatusResolved, StatusSent, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestNewPriceVariance_ValueIsVarianceTimesQty(t *testing.T) {
	report := NewPriceVariance(
		id.New(), id.New(), id.New(), id.New(), id.New(), id.New(),
		types.MustDecimal("1.20"), types.MustDecimal("1.50"), types.MustDecimal("100"),
	)

	assert.Equal(t, TypePriceVariance, report.Type)
	assert.True(t, report.AutoGenerated)
	assert.Equal(t, StatusOpen, report.Status)
	assert.True(t, report.Variance.Equal(types.MustDecimal("0.30")), "variance = %s", report.Variance)
	assert.True(t, report.Value.Equal(types.MustDecimal("30.00")), "value = %s", report.Value)
}

func TestNewPriceVariance_NegativeVariance(t *testing.T) {
	report := NewPriceVariance(
		id.New(), id.New(), id.New(), id.New(), id.New(), id.New(),
		types.MustDecimal("2.00"), types.MustDecimal("1.75"), types.MustDecimal("40"),
	)

	assert.True(t, report.Variance.Equal(types.MustDecimal("-0.25")))
	assert.True(t, report.Value.Equal(types.MustDecimal("-10.00")))
}
