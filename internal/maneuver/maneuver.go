// Package maneuver implements the first-order avoidance-burn heuristic of
// spec §4.9. It is an operator-visible placeholder, not a trajectory
// optimizer: the contract is that every field is populated and
// self-consistent, not that the numbers are physically authoritative.
package maneuver

import "time"

// BurnType names the recommended burn direction.
type BurnType string

const (
	RadialPlus  BurnType = "RADIAL+"
	RadialMinus BurnType = "RADIAL-"
	InTrack     BurnType = "IN-TRACK"
)

// Maneuver is the recommended avoidance burn for one conjunction event.
type Maneuver struct {
	DeltaVMS            float64
	BurnType            BurnType
	ExecutionTime       time.Time
	WindowStart         time.Time
	WindowEnd           time.Time
	PostManeuverMissKm  float64
	FuelCostKg          float64
}

// Plan computes the avoidance maneuver per spec §4.9. radialKm is the RIC
// radial component at TCA; missKm is the grid-minimum miss distance; tca is
// the time of closest approach.
func Plan(radialKm, missKm float64, tca time.Time) Maneuver {
	var (
		deltaV      float64
		burn        BurnType
		leadTimeH   float64
		postMiss    float64
	)

	if absf(radialKm) < 1 {
		const targetSeparationKm = 10.0
		deltaRNeeded := targetSeparationKm - absf(radialKm)
		deltaV = absf(deltaRNeeded) * 100 // m/s per km of radial separation, spec §9
		if radialKm < 0 {
			burn = RadialPlus
		} else {
			burn = RadialMinus
		}
		leadTimeH = 1.5
		postMiss = absf(radialKm) + deltaRNeeded
	} else {
		deltaV = 50
		burn = InTrack
		leadTimeH = 0.5
		postMiss = missKm * 1.5
	}

	executionTime := tca.Add(-time.Duration(leadTimeH * float64(time.Hour)))
	return Maneuver{
		DeltaVMS:           deltaV,
		BurnType:           burn,
		ExecutionTime:      executionTime,
		WindowStart:        executionTime.Add(-30 * time.Minute),
		WindowEnd:          executionTime.Add(30 * time.Minute),
		PostManeuverMissKm: postMiss,
		FuelCostKg:         deltaV * 0.001, // rough 1000-kg satellite estimate, spec §4.9
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
