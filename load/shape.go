package load

import (
	"math"
	"time"
)

// Shape maps elapsed time within a cycle to an agent count.
//
// The curve is base + amplitude·sin(2π·elapsed/cycle − π/2) with
// base = (min+max)/2 and amplitude = (max−min)/2, so the minimum sits at
// elapsed = 0 and the maximum at the cycle midpoint. The result is rounded and
// clamped to [1, maxAgents].
func Shape(elapsed, cycle time.Duration, minAgents, maxAgents int) int {
	base := float64(minAgents+maxAgents) / 2
	amplitude := float64(maxAgents-minAgents) / 2

	phase := -math.Pi / 2
	if cycle > 0 {
		phase += 2 * math.Pi * elapsed.Seconds() / cycle.Seconds()
	}
	agents := int(math.Round(base + amplitude*math.Sin(phase)))

	if agents > maxAgents {
		agents = maxAgents
	}
	if agents < 1 {
		agents = 1
	}
	return agents
}
