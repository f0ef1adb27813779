// sim/nav.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"slices"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
)

// Kinematic limits shared by all aircraft; climb, descent, and approach
// speeds come from the per-type performance data instead.
const (
	turnRate        = 3 // degrees / second
	speedChangeRate = 5 // knots / second

	// Passing within this distance of a waypoint records it as crossed.
	waypointCaptureDistance = 0.5 // nm
)

// updateNav integrates one tick of kinematics: steer toward the target
// waypoint if there is one, then turn, climb or descend, change speed,
// move along the heading, and record any waypoints just crossed.
func (fl *Flight) updateNav(sc *av.Scenario, dt float32) {
	if wp, ok := sc.Waypoints.Get(fl.TargetWaypoint); ok {
		fl.TargetHeading = math.Heading2NM(fl.Position, wp.Location)
	}

	fl.updateHeading(dt)
	fl.updateAltitude(sc, dt)
	fl.updateSpeed(dt)
	fl.updatePosition(dt)
	fl.updateWaypoints(sc)
}

// updateHeading turns toward the target heading, always the short way
// around.
func (fl *Flight) updateHeading(dt float32) {
	diff := math.HeadingSignedTurn(fl.Heading, fl.TargetHeading)
	if math.Abs(diff) <= 0.5 {
		fl.Heading = math.NormalizeHeading(fl.TargetHeading)
	} else {
		turn := math.Clamp(diff, -turnRate*dt, turnRate*dt)
		fl.Heading = math.NormalizeHeading(fl.Heading + turn)
	}
}

// updateAltitude climbs or descends toward the target altitude at the
// aircraft's performance-limited rate, without overshooting.
func (fl *Flight) updateAltitude(sc *av.Scenario, dt float32) {
	if math.Abs(fl.Altitude-fl.TargetAltitude) <= 10 {
		fl.Altitude = fl.TargetAltitude
	} else {
		perf, _ := sc.Performance(fl.AircraftType)
		if fl.Altitude < fl.TargetAltitude {
			fl.Altitude = math.Min(fl.Altitude+perf.Rate.Climb*dt/60, fl.TargetAltitude)
		} else {
			fl.Altitude = math.Max(fl.Altitude-perf.Rate.Descent*dt/60, fl.TargetAltitude)
		}
	}
	fl.Altitude = math.Max(fl.Altitude, 0)
}

func (fl *Flight) updateSpeed(dt float32) {
	if math.Abs(fl.Speed-fl.TargetSpeed) <= 1 {
		fl.Speed = fl.TargetSpeed
	} else if fl.Speed < fl.TargetSpeed {
		fl.Speed = math.Min(fl.Speed+speedChangeRate*dt, fl.TargetSpeed)
	} else {
		fl.Speed = math.Max(fl.Speed-speedChangeRate*dt, fl.TargetSpeed)
	}
	fl.Speed = math.Max(fl.Speed, 0)
}

// updatePosition moves along the current heading; 1 kt covers 1/3600 nm
// per second.
func (fl *Flight) updatePosition(dt float32) {
	fl.Position = math.Offset2NM(fl.Position, fl.Heading, fl.Speed*dt/3600)
}

// updateWaypoints records waypoints the flight has just crossed. Reaching
// the target waypoint clears it and holds the current heading until the
// next instruction.
func (fl *Flight) updateWaypoints(sc *av.Scenario) {
	for _, wp := range sc.Waypoints.Waypoints() {
		if math.Distance2NM(fl.Position, wp.Location) >= waypointCaptureDistance {
			continue
		}
		if !slices.Contains(fl.PassedWaypoints, wp.Name) {
			fl.PassedWaypoints = append(fl.PassedWaypoints, wp.Name)
		}
		if fl.TargetWaypoint == wp.Name {
			fl.TargetWaypoint = ""
			fl.TargetHeading = fl.Heading
		}
	}
}
