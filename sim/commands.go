// sim/commands.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	gomath "math"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
)

// Command is a control instruction for a single flight. Only the fields
// that are set are applied, so one command can combine instructions, say
// an altitude with a speed.
type Command struct {
	Altitude        *float32 `json:"altitude,omitempty"`
	Speed           *float32 `json:"speed,omitempty"`
	Heading         *float32 `json:"heading,omitempty"`
	Waypoint        *string  `json:"waypoint,omitempty"`
	ClearToLand     *bool    `json:"clear_to_land,omitempty"`
	ClearForTakeoff *bool    `json:"clear_for_takeoff,omitempty"`
}

func (c Command) LogValue() slog.Value {
	var attrs []slog.Attr
	if c.Altitude != nil {
		attrs = append(attrs, slog.Float64("altitude", float64(*c.Altitude)))
	}
	if c.Speed != nil {
		attrs = append(attrs, slog.Float64("speed", float64(*c.Speed)))
	}
	if c.Heading != nil {
		attrs = append(attrs, slog.Float64("heading", float64(*c.Heading)))
	}
	if c.Waypoint != nil {
		attrs = append(attrs, slog.String("waypoint", *c.Waypoint))
	}
	if c.ClearToLand != nil {
		attrs = append(attrs, slog.Bool("clear_to_land", *c.ClearToLand))
	}
	if c.ClearForTakeoff != nil {
		attrs = append(attrs, slog.Bool("clear_for_takeoff", *c.ClearForTakeoff))
	}
	return slog.GroupValue(attrs...)
}

// CommandResult reports what a command did. A denied clearance is an
// ordinary result with Success false and the reason in Message, not an
// error; errors are reserved for not being able to answer at all.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type pendingCommand struct {
	callsign av.Callsign
	cmd      Command
	result   chan<- CommandResult
}

// PostCommand queues a command for the given flight and waits for the
// sim loop to pick it up at the next update. Commands from concurrent
// callers are applied in arrival order, each between ticks, never in the
// middle of one.
func (s *Sim) PostCommand(callsign av.Callsign, cmd Command) CommandResult {
	ch := make(chan CommandResult, 1)

	s.mu.Lock(s.lg)
	if s.destroyed {
		s.mu.Unlock(s.lg)
		return CommandResult{Success: false, Message: "Simulation has ended"}
	}
	s.pendingCommands = append(s.pendingCommands, pendingCommand{callsign: callsign, cmd: cmd, result: ch})
	s.mu.Unlock(s.lg)

	return <-ch
}

// drainCommands applies the queued commands in order. Called with the
// lock held at the top of every update, including while paused or failed,
// so results don't wait on the sim clock.
func (s *Sim) drainCommands() {
	for _, pc := range s.pendingCommands {
		pc.result <- s.applyCommand(pc.callsign, pc.cmd)
	}
	s.pendingCommands = nil
}

func (s *Sim) applyCommand(callsign av.Callsign, cmd Command) CommandResult {
	deny := func(format string, args ...any) CommandResult {
		return CommandResult{Success: false, Message: fmt.Sprintf(format, args...)}
	}

	if s.State.Failed {
		return deny("Simulation has failed - restart required")
	}

	fl, ok := s.State.Flights[callsign]
	if !ok {
		if _, completed := s.recentlyCompleted.Get(callsign); completed {
			return deny("Flight %s already completed", callsign)
		}
		return deny("Flight %s not found", callsign)
	}

	// Validate everything up front so a bad command changes nothing.
	if cmd.Altitude != nil && !validValue(*cmd.Altitude, 0) {
		return deny("Invalid altitude: %v", *cmd.Altitude)
	}
	if cmd.Speed != nil && !validValue(*cmd.Speed, 0) {
		return deny("Invalid speed: %v", *cmd.Speed)
	}
	if cmd.Heading != nil && !validValue(*cmd.Heading, gomath.Inf(-1)) {
		return deny("Invalid heading: %v", *cmd.Heading)
	}
	if cmd.Waypoint != nil {
		if _, ok := s.scenario.Waypoints.Get(*cmd.Waypoint); !ok {
			return deny("Unknown waypoint: %s", *cmd.Waypoint)
		}
	}

	result := CommandResult{Success: true, Message: "Command accepted"}

	if cmd.Altitude != nil {
		fl.TargetAltitude = *cmd.Altitude
	}
	if cmd.Speed != nil {
		fl.TargetSpeed = *cmd.Speed
	}
	if cmd.Heading != nil {
		// A heading instruction takes the flight off waypoint navigation.
		fl.TargetHeading = math.NormalizeHeading(*cmd.Heading)
		fl.TargetWaypoint = ""
	}
	if cmd.Waypoint != nil {
		fl.TargetWaypoint = *cmd.Waypoint
	}
	if cmd.ClearForTakeoff != nil {
		result = s.applyTakeoffClearance(fl, *cmd.ClearForTakeoff, result)
	}
	if cmd.ClearToLand != nil {
		result = s.applyLandingClearance(fl, *cmd.ClearToLand, result)
	}

	s.lg.Info("command", slog.String("callsign", string(callsign)),
		slog.Any("command", cmd), slog.Bool("success", result.Success),
		slog.String("message", result.Message))
	return result
}

// validValue rejects NaNs, infinities, and anything below min.
func validValue(v float32, min float64) bool {
	f := float64(v)
	return !gomath.IsNaN(f) && !gomath.IsInf(f, 0) && f >= min
}

// applyLandingClearance handles clear_to_land. A denial is recorded on
// the flight so the reason shows up in state snapshots until it's
// superseded; a grant points the flight at the runway on approach speed.
func (s *Sim) applyLandingClearance(fl *Flight, clear bool, result CommandResult) CommandResult {
	if !clear {
		fl.ClearedToLand = false
		fl.DenialReason = ""
		return result
	}

	ok, reason := checkLandingRules(fl, s.scenario)
	if ok {
		if blocker, blocked := s.landingBlocker(fl.Callsign); blocked {
			ok, reason = false, runwayOccupiedReason(blocker)
		}
	}
	if !ok {
		fl.ClearedToLand = false
		fl.DenialReason = reason
		return CommandResult{Success: false, Message: "Cannot clear to land: " + reason}
	}

	fl.ClearedToLand = true
	fl.DenialReason = ""
	fl.TargetWaypoint = s.scenario.Airport.Runway.Fix
	fl.TargetAltitude = s.scenario.Airport.Elevation
	if perf, ok := s.scenario.Performance(fl.AircraftType); ok {
		fl.TargetSpeed = perf.Speed.Approach
	}
	return result
}

// applyTakeoffClearance handles clear_for_takeoff. The runway check
// happens here at grant time; the roll itself starts in updateStatus once
// the flight is ready and the runway is still free.
func (s *Sim) applyTakeoffClearance(fl *Flight, clear bool, result CommandResult) CommandResult {
	if !clear {
		fl.ClearedForTakeoff = false
		return result
	}

	if blocker, blocked := s.takeoffBlocker(fl.Callsign); blocked {
		fl.ClearedForTakeoff = false
		reason := runwayOccupiedReason(blocker)
		fl.DenialReason = reason
		return CommandResult{Success: false, Message: "Cannot clear for takeoff: " + reason}
	}

	fl.ClearedForTakeoff = true
	fl.DenialReason = ""
	return result
}
