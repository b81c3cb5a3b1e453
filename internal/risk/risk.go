package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// Veto reasons. A veto is a normal decision outcome, not an error.
const (
	ReasonPositionExists    = "position already open"
	ReasonMaxPositions      = "max positions reached"
	ReasonDrawdownBreached  = "drawdown limit breached"
	ReasonDailyLossBreached = "daily loss limit breached"
	ReasonZeroQuantity      = "sized quantity is zero"
	ReasonInsufficientCash  = "insufficient cash"
)

// Limits are the risk parameters one sizing decision runs against.
type Limits struct {
	MaxPositionSize float64
	MaxRiskPerTrade float64
	MaxDrawdown     float64
	MaxDailyLoss    float64
	MaxPositions    int
	StopLossPct     float64
}

// Account is the slice of engine state the sizing rules read.
type Account struct {
	Cash          float64
	Equity        float64
	PeakEquity    float64
	InitialEquity float64
	DailyRealized float64 // today's realized PnL, negative on a losing day
	OpenPositions int
	HasPosition   bool // an open position already exists for the candidate symbol
}

// Decision is the outcome of sizing one candidate entry.
type Decision struct {
	Approved bool
	Quantity float64
	Cost     float64
	Reason   string
}

// Manager sizes prospective long entries and vetoes them when account
// limits are breached.
type Manager struct {
	limits Limits
}

func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Size computes quantity so a stop-loss hit loses MaxRiskPerTrade of
// equity, then caps cost at MaxPositionSize of equity. Checks run in a
// fixed order, so the reported reason is the first limit breached.
func (m *Manager) Size(price float64, acct Account) Decision {
	if acct.HasPosition {
		return veto(ReasonPositionExists)
	}
	if m.limits.MaxPositions > 0 && acct.OpenPositions >= m.limits.MaxPositions {
		return veto(ReasonMaxPositions)
	}
	if acct.PeakEquity > 0 {
		drawdown := (acct.PeakEquity - acct.Equity) / acct.PeakEquity
		if drawdown > m.limits.MaxDrawdown {
			return veto(ReasonDrawdownBreached)
		}
	}
	if acct.DailyRealized < 0 && -acct.DailyRealized > m.limits.MaxDailyLoss*acct.InitialEquity {
		return veto(ReasonDailyLossBreached)
	}
	if price <= 0 || m.limits.StopLossPct <= 0 {
		return veto(ReasonZeroQuantity)
	}

	equity := decFromFloat(acct.Equity)
	entry := decFromFloat(price)
	riskBudget := equity.Mul(decFromFloat(m.limits.MaxRiskPerTrade))
	perShareRisk := entry.Mul(decFromFloat(m.limits.StopLossPct))
	qty := riskBudget.Div(perShareRisk).Floor()
	if maxQty := equity.Mul(decFromFloat(m.limits.MaxPositionSize)).Div(entry).Floor(); qty.GreaterThan(maxQty) {
		qty = maxQty
	}
	if qty.Sign() <= 0 {
		return veto(ReasonZeroQuantity)
	}
	cost := qty.Mul(entry)
	if cost.GreaterThan(decFromFloat(acct.Cash)) {
		return veto(ReasonInsufficientCash)
	}
	return Decision{
		Approved: true,
		Quantity: float64(qty.IntPart()),
		Cost:     decToFloat(cost),
	}
}

func veto(reason string) Decision {
	return Decision{Reason: reason}
}

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}
