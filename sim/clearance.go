// sim/clearance.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"slices"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
)

// checkLandingRules runs the landing clearance checks in a fixed order
// and returns the reason for the first one that fails. The reason strings
// are part of the control interface; controllers see them verbatim.
func checkLandingRules(fl *Flight, sc *av.Scenario) (ok bool, reason string) {
	rules := sc.Landing

	if fl.Altitude > rules.MaxAltitude {
		return false, fmt.Sprintf("Altitude %dft exceeds max %dft",
			int(fl.Altitude), int(rules.MaxAltitude))
	}
	if fl.Speed < rules.MinSpeed {
		return false, fmt.Sprintf("Speed %dkt below min %dkt",
			int(fl.Speed), int(rules.MinSpeed))
	}
	if fl.Speed > rules.MaxSpeed {
		return false, fmt.Sprintf("Speed %dkt exceeds max %dkt",
			int(fl.Speed), int(rules.MaxSpeed))
	}
	if d := math.Distance2NM(fl.Position, sc.Airport.Runway.Threshold); d > rules.MaxDistance {
		return false, fmt.Sprintf("Distance %.1fnm exceeds max %dnm", d, int(rules.MaxDistance))
	}
	if !slices.Contains(fl.PassedWaypoints, rules.RequiredFix) {
		return false, fmt.Sprintf("Must pass %s waypoint first", rules.RequiredFix)
	}
	if math.HeadingDifference(fl.Heading, sc.Airport.Runway.Heading) > rules.HeadingTolerance {
		return false, fmt.Sprintf("Heading %d not within %d degrees of runway heading %d",
			int(fl.Heading), int(rules.HeadingTolerance), int(sc.Airport.Runway.Heading))
	}
	return true, ""
}
