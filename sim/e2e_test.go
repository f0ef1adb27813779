// sim/e2e_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"slices"
	"testing"
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
)

// stepUntil ticks the sim a second at a time until the condition holds.
func stepUntil(t *testing.T, s *Sim, fl *Flight, maxTicks int, what string, cond func() bool) {
	t.Helper()
	for range maxTicks {
		if cond() {
			return
		}
		s.Step(time.Second)
	}
	if !cond() {
		t.Fatalf("timed out waiting for %s: status %s position %v altitude %.0f speed %.0f heading %.0f",
			what, fl.Status, fl.Position, fl.Altitude, fl.Speed, fl.Heading)
	}
}

// An arrival flown around the pattern: downwind, base, extended final,
// cleared to land, touchdown, and cleanup.
func TestArrivalLifecycle(t *testing.T) {
	s := makeTestSim(t)
	sub := s.Subscribe()
	defer sub.Unsubscribe()

	fl := &Flight{
		Callsign:       "UAL400",
		Type:           av.FlightTypeArrival,
		AircraftType:   "B738",
		Status:         StatusApproaching,
		Position:       math.Point2NM{-9, 12},
		Altitude:       3000,
		Speed:          250,
		Heading:        180,
		TargetAltitude: 2000,
		TargetSpeed:    200,
		TargetHeading:  180,
		TargetWaypoint: "DOWNWIND",
		SpawnedAt:      s.State.SimTime,
	}
	s.State.Flights[fl.Callsign] = fl

	command := func(cmd Command) {
		t.Helper()
		if res := s.applyCommand(fl.Callsign, cmd); !res.Success {
			t.Fatalf("command %+v: %+v", cmd, res)
		}
	}
	passed := func(wp string) func() bool {
		return func() bool { return slices.Contains(fl.PassedWaypoints, wp) }
	}

	stepUntil(t, s, fl, 300, "DOWNWIND", passed("DOWNWIND"))
	command(Command{Waypoint: ptr("BASE"), Altitude: ptr(float32(1500)), Speed: ptr(float32(160))})

	stepUntil(t, s, fl, 600, "BASE", passed("BASE"))
	command(Command{Waypoint: ptr("ECHO"), Altitude: ptr(float32(1200)), Speed: ptr(float32(140))})

	stepUntil(t, s, fl, 600, "ECHO", passed("ECHO"))
	command(Command{Waypoint: ptr("FINAL"), Altitude: ptr(float32(1000))})

	stepUntil(t, s, fl, 600, "final approach", func() bool { return fl.Status == StatusOnFinal })

	// Inbound from ECHO the flight is pointed straight up the runway, so
	// the clearance checks all pass.
	command(Command{ClearToLand: ptr(true)})
	if !fl.ClearedToLand || fl.TargetWaypoint != "RUNWAY" {
		t.Fatalf("cleared %v target %q after clearance", fl.ClearedToLand, fl.TargetWaypoint)
	}

	stepUntil(t, s, fl, 600, "touchdown", func() bool { return fl.Status == StatusLanded })

	if s.State.LandedCount != 1 {
		t.Errorf("landed count %d, want 1", s.State.LandedCount)
	}
	if h := s.State.LandedHistory.Slice(); len(h) != 1 || h[0].Callsign != "UAL400" {
		t.Errorf("landed history %+v", h)
	}

	// The flight lingers for a few seconds, then it's cleaned up.
	s.Step(4 * time.Second)
	if _, ok := s.State.Flights["UAL400"]; ok {
		t.Error("flight still present after the completion delay")
	}
	if _, err := s.GetFlight("UAL400"); !errors.Is(err, ErrFlightAlreadyCompleted) {
		t.Errorf("GetFlight after cleanup: err %v, want ErrFlightAlreadyCompleted", err)
	}

	var messages []string
	for _, ev := range sub.Get() {
		messages = append(messages, ev.Message)
	}
	for _, want := range []string{
		"UAL400 is on_final",
		"UAL400 is landing",
		"UAL400 is landed",
		"UAL400 removed (landed)",
	} {
		if !slices.Contains(messages, want) {
			t.Errorf("no %q event in %v", want, messages)
		}
	}
}

// A departure pushed through its whole lifecycle: gate hold, takeoff
// clearance, climbout to the exit fix, and cleanup.
func TestDepartureLifecycle(t *testing.T) {
	s := makeTestSim(t)

	fl := &Flight{
		Callsign:       "SWA700",
		Type:           av.FlightTypeDeparture,
		AircraftType:   "B738",
		Status:         StatusAtGate,
		Position:       s.Scenario().Spawn.GatePosition,
		Altitude:       32,
		Heading:        340,
		TargetAltitude: 32,
		TargetHeading:  340,
		SpawnedAt:      s.State.SimTime,
	}
	s.State.Flights[fl.Callsign] = fl

	// Clearance can come while still at the gate; the roll starts once
	// the pushback hold is over.
	if res := s.applyCommand(fl.Callsign, Command{ClearForTakeoff: ptr(true)}); !res.Success {
		t.Fatalf("takeoff clearance: %+v", res)
	}

	stepUntil(t, s, fl, 70, "takeoff roll", func() bool { return fl.Status == StatusTakingOff })
	if fl.TargetWaypoint != "NORTH" || fl.TargetAltitude != climboutAltitude ||
		fl.TargetSpeed != climboutSpeed {
		t.Fatalf("climbout targets %q/%f/%f", fl.TargetWaypoint, fl.TargetAltitude, fl.TargetSpeed)
	}

	stepUntil(t, s, fl, 900, "departure", func() bool { return fl.Status == StatusDeparted })

	if s.State.DepartedCount != 1 {
		t.Errorf("departed count %d, want 1", s.State.DepartedCount)
	}
	if h := s.State.DepartedHistory.Slice(); len(h) != 1 || h[0].Callsign != "SWA700" {
		t.Errorf("departed history %+v", h)
	}

	s.Step(4 * time.Second)
	if _, ok := s.State.Flights["SWA700"]; ok {
		t.Error("flight still present after the completion delay")
	}
}
