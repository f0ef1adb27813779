// sim/runway.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"slices"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/util"
)

// The runway is exclusive: at most one flight is landing or taking off at
// any time. Takeoffs additionally yield to traffic on final, since an
// arrival on final has nowhere else to go.

// runwayBlocker returns the first flight, in callsign order, holding one
// of the given statuses. Callsign order keeps the reported blocker
// deterministic when more than one flight holds the runway's attention.
func (s *Sim) runwayBlocker(except av.Callsign, statuses ...FlightStatus) (*Flight, bool) {
	for _, cs := range util.SortedMapKeys(s.State.Flights) {
		if cs == except {
			continue
		}
		if fl := s.State.Flights[cs]; slices.Contains(statuses, fl.Status) {
			return fl, true
		}
	}
	return nil, false
}

// takeoffBlocker is anything that makes a takeoff clearance unsafe.
func (s *Sim) takeoffBlocker(except av.Callsign) (*Flight, bool) {
	return s.runwayBlocker(except, StatusOnFinal, StatusLanding, StatusTakingOff)
}

// landingBlocker is anything that keeps an arrival from starting its
// landing roll.
func (s *Sim) landingBlocker(except av.Callsign) (*Flight, bool) {
	return s.runwayBlocker(except, StatusLanding, StatusTakingOff)
}

func runwayOccupiedReason(fl *Flight) string {
	return fmt.Sprintf("Runway occupied: %s is %s", fl.Callsign, fl.Status)
}
