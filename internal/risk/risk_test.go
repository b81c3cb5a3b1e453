package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLimits() Limits {
	return Limits{
		MaxPositionSize: 0.5,
		MaxRiskPerTrade: 0.02,
		MaxDrawdown:     0.15,
		MaxDailyLoss:    0.03,
		MaxPositions:    2,
		StopLossPct:     0.08,
	}
}

func healthyAccount() Account {
	return Account{
		Cash:          10000,
		Equity:        10000,
		PeakEquity:    10000,
		InitialEquity: 10000,
	}
}

func TestSize_RiskFractionSizing(t *testing.T) {
	m := NewManager(testLimits())

	// floor((10000 × 0.02) / (100 × 0.08)) = 25 shares.
	d := m.Size(100, healthyAccount())
	assert.True(t, d.Approved)
	assert.Equal(t, 25.0, d.Quantity)
	assert.Equal(t, 2500.0, d.Cost)
	assert.Empty(t, d.Reason)
}

func TestSize_PositionWeightCap(t *testing.T) {
	limits := testLimits()
	limits.MaxPositionSize = 0.10
	m := NewManager(limits)

	// Risk sizing alone would give 25 shares; the 10% weight cap
	// allows at most floor(1000/100) = 10.
	d := m.Size(100, healthyAccount())
	assert.True(t, d.Approved)
	assert.Equal(t, 10.0, d.Quantity)
	assert.Equal(t, 1000.0, d.Cost)
}

func TestSize_Vetoes(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		mutate func(*Account)
		reason string
	}{
		{
			name:   "existing position",
			price:  100,
			mutate: func(a *Account) { a.HasPosition = true },
			reason: ReasonPositionExists,
		},
		{
			name:   "max positions reached",
			price:  100,
			mutate: func(a *Account) { a.OpenPositions = 2 },
			reason: ReasonMaxPositions,
		},
		{
			name:  "drawdown breached",
			price: 100,
			mutate: func(a *Account) {
				a.PeakEquity = 20000 // 50% under water
			},
			reason: ReasonDrawdownBreached,
		},
		{
			name:   "daily loss breached",
			price:  100,
			mutate: func(a *Account) { a.DailyRealized = -400 }, // limit is 300
			reason: ReasonDailyLossBreached,
		},
		{
			name:   "price too high to size a single share",
			price:  100000,
			mutate: func(a *Account) {},
			reason: ReasonZeroQuantity,
		},
		{
			name:   "insufficient cash",
			price:  100,
			mutate: func(a *Account) { a.Cash = 1000 },
			reason: ReasonInsufficientCash,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(testLimits())
			acct := healthyAccount()
			tt.mutate(&acct)

			d := m.Size(tt.price, acct)
			assert.False(t, d.Approved)
			assert.Zero(t, d.Quantity)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestSize_LimitsAreExclusive(t *testing.T) {
	m := NewManager(testLimits())

	t.Run("drawdown exactly at limit passes", func(t *testing.T) {
		acct := healthyAccount()
		acct.Equity = 8500 // drawdown exactly 0.15
		acct.Cash = 8500
		d := m.Size(100, acct)
		assert.True(t, d.Approved)
	})

	t.Run("daily loss exactly at limit passes", func(t *testing.T) {
		acct := healthyAccount()
		acct.DailyRealized = -300
		d := m.Size(100, acct)
		assert.True(t, d.Approved)
	})

	t.Run("one open slot left still sizes", func(t *testing.T) {
		acct := healthyAccount()
		acct.OpenPositions = 1
		d := m.Size(100, acct)
		assert.True(t, d.Approved)
	})
}

func TestSize_QuantityIsWholeShares(t *testing.T) {
	m := NewManager(testLimits())

	// floor((10000 × 0.02) / (107 × 0.08)) = floor(23.36) = 23.
	d := m.Size(107, healthyAccount())
	assert.True(t, d.Approved)
	assert.Equal(t, 23.0, d.Quantity)
	assert.InDelta(t, 2461.0, d.Cost, 1e-9)
}
