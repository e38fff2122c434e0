// Package resource implements the simulated physical costs every
// component method pays: energy draw, heat generation, call-budget
// consumption, and busy-wait latency, grounded in computer.c's
// nn_removeEnergy/nn_addHeat/nn_callCost trio plus neonucleus.h's
// nn_busySleep/nn_randomLatency.
package resource

import (
	"math/rand"
	"time"

	"github.com/speedy-lex/neonucleus/computer"
)

// Charge bundles every resource cost a single component method call may
// incur.
type Charge struct {
	Energy     float64 // drawn via RemoveEnergy; may cause a blackout
	Heat       float64 // added via AddHeat, scaled by the computer's thermal coefficient
	LatencyMin float64 // seconds; busy-waited before charges are applied
	LatencyMax float64
	CallCost   float64 // accumulated via ChargeCallCost; may trigger Overworked
}

// Apply busy-waits a randomized latency in [LatencyMin, LatencyMax], then
// draws energy, adds heat, and charges call cost against c, in that
// order — matching the sequence a reference backend method follows
// after a successful (or failed) operation.
func Apply(c *computer.Computer, ch Charge) {
	if ch.LatencyMax > 0 {
		BusySleep(RandomLatency(ch.LatencyMin, ch.LatencyMax))
	}
	if ch.Energy != 0 {
		c.RemoveEnergy(ch.Energy)
	}
	if ch.Heat != 0 {
		c.AddHeat(ch.Heat)
	}
	if ch.CallCost != 0 {
		c.ChargeCallCost(ch.CallCost)
	}
}

// RandomLatency returns a uniformly distributed duration in [min, max]
// seconds, matching nn_randomLatency's distribution.
func RandomLatency(min, max float64) time.Duration {
	if max <= min {
		return time.Duration(min * float64(time.Second))
	}
	span := max - min
	t := min + rand.Float64()*span
	return time.Duration(t * float64(time.Second))
}

// BusySleep spins until d has elapsed, matching nn_busySleep's deliberate
// choice to busy-wait rather than cooperatively yield: components model
// hardware latency, and a real computer's bus doesn't context-switch
// while it waits.
func BusySleep(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		// intentionally busy
	}
}
