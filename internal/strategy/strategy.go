package strategy

import (
	"time"

	"autotrader/internal/indicator"
)

// Direction is the discrete outcome of one evaluation.
type Direction string

const (
	EnterLong Direction = "ENTER_LONG"
	Exit      Direction = "EXIT"
	Hold      Direction = "HOLD"
)

// Signal pairs a direction with the snapshot that produced it. Signals
// are consumed within the cycle that created them; the snapshot rides
// along for audit records.
type Signal struct {
	Symbol    string             `json:"symbol"`
	Direction Direction          `json:"direction"`
	At        time.Time          `json:"at"`
	Snapshot  indicator.Snapshot `json:"snapshot"`
}

// Generator turns consecutive indicator snapshots into signals using
// an SMA crossover gated by an RSI band. Crossovers compare against
// the previous snapshot, so the first evaluation per symbol always
// holds.
type Generator struct {
	rsiLower float64
	rsiUpper float64
	prev     map[string]indicator.Snapshot
}

func NewGenerator(rsiLower, rsiUpper float64) *Generator {
	return &Generator{
		rsiLower: rsiLower,
		rsiUpper: rsiUpper,
		prev:     make(map[string]indicator.Snapshot),
	}
}

// Evaluate emits ENTER_LONG when the fast SMA crosses above the slow
// SMA on this evaluation and RSI sits strictly inside the band, EXIT
// on the opposite cross, HOLD otherwise. A cross requires strict
// inequality on the current snapshot only, so ticks where the averages
// merely stay equal never re-fire.
func (g *Generator) Evaluate(snap indicator.Snapshot) Signal {
	sig := Signal{
		Symbol:    snap.Symbol,
		Direction: Hold,
		At:        snap.Timestamp,
		Snapshot:  snap,
	}
	prev, ok := g.prev[snap.Symbol]
	g.prev[snap.Symbol] = snap
	if !ok {
		return sig
	}
	crossedUp := prev.SMAFast <= prev.SMASlow && snap.SMAFast > snap.SMASlow
	crossedDown := prev.SMAFast >= prev.SMASlow && snap.SMAFast < snap.SMASlow
	switch {
	case crossedUp && snap.RSI > g.rsiLower && snap.RSI < g.rsiUpper:
		sig.Direction = EnterLong
	case crossedDown:
		sig.Direction = Exit
	}
	return sig
}

// Reset forgets all previous snapshots.
func (g *Generator) Reset() {
	g.prev = make(map[string]indicator.Snapshot)
}
