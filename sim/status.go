// sim/status.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/towersim/tower/math"
)

// Status transition thresholds. Horizontal distances are nm from the
// runway threshold, vertical ones feet.
const (
	onFinalMaxAltitude = 2000 // approaching becomes on_final below this
	landingMaxDistance = 0.5  // where a cleared arrival starts its landing roll
	landingMaxAltitude = 300
	touchdownDistance  = 0.1
	touchdownHeight    = 20 // above field elevation

	departedMinAltitude = 5900 // climbouts past the exit fix above this are gone

	climboutSpeed    = 180  // kt, initial takeoff target
	climboutAltitude = 6000 // ft, initial takeoff target

	gateHoldTime         = 60 * time.Second // sim time pushing back before ready
	completedFlightDelay = 3 * time.Second  // sim time completed flights linger
)

// updateStatus advances the flight state machine, at most one transition
// per tick. Transitions into landing and taking_off are gated on the
// runway being free; a held transition just tries again next tick.
func (s *Sim) updateStatus(fl *Flight) {
	switch fl.Status {
	case StatusApproaching:
		if slices.Contains(fl.PassedWaypoints, s.scenario.Landing.RequiredFix) &&
			fl.Altitude < onFinalMaxAltitude {
			s.setStatus(fl, StatusOnFinal)
		}

	case StatusOnFinal:
		if fl.ClearedToLand && fl.Altitude < landingMaxAltitude &&
			math.Distance2NM(fl.Position, s.scenario.Airport.Runway.Threshold) < landingMaxDistance {
			if _, blocked := s.landingBlocker(fl.Callsign); !blocked {
				s.setStatus(fl, StatusLanding)
			}
		}

	case StatusLanding:
		elev := s.scenario.Airport.Elevation
		if fl.Altitude <= elev+touchdownHeight ||
			math.Distance2NM(fl.Position, s.scenario.Airport.Runway.Threshold) < touchdownDistance {
			fl.Altitude = elev
			fl.Speed = 0
			fl.TargetAltitude = elev
			fl.TargetSpeed = 0
			s.completeFlight(fl, StatusLanded)
		}

	case StatusAtGate:
		if s.State.SimTime.Sub(fl.SpawnedAt) >= gateHoldTime {
			s.setStatus(fl, StatusReadyForTakeoff)
		}

	case StatusReadyForTakeoff:
		if fl.ClearedForTakeoff {
			if _, blocked := s.takeoffBlocker(fl.Callsign); !blocked {
				s.setStatus(fl, StatusTakingOff)
				fl.Heading = s.scenario.Airport.Runway.Heading
				fl.TargetHeading = s.scenario.Airport.Runway.Heading
				fl.TargetSpeed = climboutSpeed
				fl.TargetAltitude = climboutAltitude
				fl.TargetWaypoint = s.scenario.Spawn.ExitFix
			}
		}

	case StatusTakingOff:
		if fl.Altitude >= departedMinAltitude &&
			slices.Contains(fl.PassedWaypoints, s.scenario.Spawn.ExitFix) {
			s.completeFlight(fl, StatusDeparted)
		}
	}
}

func (s *Sim) setStatus(fl *Flight, status FlightStatus) {
	s.lg.Debug("flight status", slog.Any("flight", fl), slog.String("to", status.String()))
	fl.Status = status
	s.eventStream.Post(Event{
		Type:     StatusChangedEvent,
		Callsign: fl.Callsign,
		Message:  fmt.Sprintf("%s is %s", fl.Callsign, status),
	})
}

// completeFlight moves a flight to its terminal status, bumps the session
// counters, and records it in the completed history. The flight itself
// sticks around briefly so clients see its final state before it goes.
func (s *Sim) completeFlight(fl *Flight, status FlightStatus) {
	fl.CompletedAt = s.State.SimTime
	s.setStatus(fl, status)

	if status == StatusLanded {
		s.State.LandedCount++
		s.State.LandedHistory.Add(fl.completed())
	} else {
		s.State.DepartedCount++
		s.State.DepartedHistory.Add(fl.completed())
	}
	s.lg.Info("flight completed", slog.Any("flight", fl))
}
