// Package mastery derives statistics from tracked progress: total experience,
// the rank that experience converts to, and the raw components still needed
// to build every item that has not been mastered.
//
// Everything in this package is a pure function of its inputs.
package mastery

import "math"

// Counter identifies one of the manually entered progress counters.
type Counter string

const (
	CounterMissions   Counter = "missions"
	CounterJunctions  Counter = "junctions"
	CounterIntrinsics Counter = "intrinsics"
)

// Counters lists every counter in display order.
var Counters = []Counter{CounterMissions, CounterJunctions, CounterIntrinsics}

// Valid reports whether c names a known counter.
func (c Counter) Valid() bool {
	for _, k := range Counters {
		if k == c {
			return true
		}
	}
	return false
}

// Maximum counter values.
const (
	TotalMissions   = 454
	TotalJunctions  = 26
	TotalIntrinsics = 100
)

// Experience granted per counter unit.
const (
	xpPerMission       = 63
	xpPerJunction      = 1000
	xpPerIntrinsicRank = 1500
)

// Rank curve constants.
const (
	xpRankFactor       = 2500
	legendaryThreshold = 2_250_000 // experience at rank 30
	legendaryRank      = 30
	xpPerLegendaryRank = 147_500
)

// Total returns the maximum value of a counter, used for completion
// percentages.
func (c Counter) Total() int {
	switch c {
	case CounterMissions:
		return TotalMissions
	case CounterJunctions:
		return TotalJunctions
	case CounterIntrinsics:
		return TotalIntrinsics
	default:
		return 0
	}
}

// Experience converts a counter value to experience.
func (c Counter) Experience(value int) float64 {
	switch c {
	case CounterMissions:
		return float64(value) * xpPerMission
	case CounterJunctions:
		return float64(value) * xpPerJunction
	case CounterIntrinsics:
		return float64(value) * xpPerIntrinsicRank
	default:
		return 0
	}
}

// CounterValues holds the current value of every counter.
type CounterValues map[Counter]int

// Experience sums the experience of every counter.
func (v CounterValues) Experience() float64 {
	var xp float64
	for _, c := range Counters {
		xp += c.Experience(v[c])
	}
	return xp
}

// maxCounterExperience is the experience of every counter at its total.
func maxCounterExperience() float64 {
	var xp float64
	for _, c := range Counters {
		xp += c.Experience(c.Total())
	}
	return xp
}

// XPToRank converts experience to a fractional rank. The curve is quadratic
// up to rank 30 and linear afterwards.
func XPToRank(xp float64) float64 {
	if xp <= 0 {
		return 0
	}
	if xp < legendaryThreshold {
		return math.Sqrt(xp / xpRankFactor)
	}
	return legendaryRank + (xp-legendaryThreshold)/xpPerLegendaryRank
}

// RankToXP returns the experience required to reach rank.
func RankToXP(rank int) float64 {
	if rank <= legendaryRank {
		return float64(xpRankFactor * rank * rank)
	}
	return legendaryThreshold + float64(rank-legendaryRank)*xpPerLegendaryRank
}

// Rank converts experience to a whole rank.
func Rank(xp float64) int {
	return int(math.Floor(XPToRank(xp)))
}
