// sim/spawn.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
	"github.com/towersim/tower/rand"

	"github.com/brunoga/deep"
)

// Arrivals spawn making for an entry fix at this speed.
const arrivalSpawnSpeed = 250 // kt

// SpawnArrival creates an arrival a few miles outside a random entry fix,
// pointed at the fix, and returns a copy of the new flight that is safe
// to hold while the sim keeps running.
func (s *Sim) SpawnArrival() (*Flight, error) {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	fl, err := s.spawnArrival()
	if err != nil {
		return nil, err
	}
	return deep.MustCopy(fl), nil
}

func (s *Sim) spawnArrival() (*Flight, error) {
	if s.State.Failed {
		return nil, ErrSimulationFailed
	}

	callsign, ok := s.sampleCallsign()
	if !ok {
		return nil, ErrNoCallsignAvailable
	}

	spawn := s.scenario.Spawn
	entry := rand.SampleSlice(s.rand, s.scenario.EntryWaypoints())

	// Some distance out from the entry fix in a random direction, so
	// successive arrivals to the same fix don't stack up.
	dir := 360 * s.rand.Float32()
	dist := math.Lerp(s.rand.Float32(), spawn.MinOffset, spawn.MaxOffset)
	pos := math.Offset2NM(entry.Location, dir, dist)

	actype := rand.SampleSlice(s.rand, s.scenario.AircraftTypes())
	perf, _ := s.scenario.Performance(actype)
	heading := math.Heading2NM(pos, entry.Location)

	fl := &Flight{
		Callsign:       callsign,
		Type:           av.FlightTypeArrival,
		AircraftType:   actype,
		Origin:         rand.SampleSlice(s.rand, s.scenario.AirportPool),
		Destination:    s.scenario.Airport.ICAO,
		Status:         StatusApproaching,
		Position:       pos,
		Altitude:       math.Lerp(s.rand.Float32(), spawn.MinAltitude, spawn.MaxAltitude),
		Speed:          0.7 * perf.Speed.Cruise,
		Heading:        heading,
		TargetAltitude: entry.AltitudeRestriction,
		TargetSpeed:    arrivalSpawnSpeed,
		TargetHeading:  heading,
		TargetWaypoint: entry.Name,
		SpawnedAt:      s.State.SimTime,
	}

	s.State.Flights[callsign] = fl
	s.lg.Info("spawned arrival", slog.Any("flight", fl))
	s.eventStream.Post(Event{
		Type:     FlightSpawnedEvent,
		Callsign: callsign,
		Position: pos,
		Message:  fmt.Sprintf("%s inbound from %s via %s", callsign, fl.Origin, entry.Name),
	})
	return fl, nil
}

// SpawnDeparture creates a departure at the gate. It sits out the gate
// hold time, then waits for a takeoff clearance.
func (s *Sim) SpawnDeparture() (*Flight, error) {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	fl, err := s.spawnDeparture()
	if err != nil {
		return nil, err
	}
	return deep.MustCopy(fl), nil
}

func (s *Sim) spawnDeparture() (*Flight, error) {
	if s.State.Failed {
		return nil, ErrSimulationFailed
	}

	callsign, ok := s.sampleCallsign()
	if !ok {
		return nil, ErrNoCallsignAvailable
	}

	elev := s.scenario.Airport.Elevation
	rwyHeading := s.scenario.Airport.Runway.Heading

	fl := &Flight{
		Callsign:       callsign,
		Type:           av.FlightTypeDeparture,
		AircraftType:   rand.SampleSlice(s.rand, s.scenario.AircraftTypes()),
		Origin:         s.scenario.Airport.ICAO,
		Destination:    rand.SampleSlice(s.rand, s.scenario.AirportPool),
		Status:         StatusAtGate,
		Position:       s.scenario.Spawn.GatePosition,
		Altitude:       elev,
		Heading:        rwyHeading,
		TargetAltitude: elev,
		TargetHeading:  rwyHeading,
		SpawnedAt:      s.State.SimTime,
	}

	s.State.Flights[callsign] = fl
	s.lg.Info("spawned departure", slog.Any("flight", fl))
	s.eventStream.Post(Event{
		Type:     FlightSpawnedEvent,
		Callsign: callsign,
		Position: fl.Position,
		Message:  fmt.Sprintf("%s at the gate for %s", callsign, fl.Destination),
	})
	return fl, nil
}

func (s *Sim) sampleCallsign() (av.Callsign, bool) {
	return av.SampleCallsign(s.rand, s.scenario.Airlines, func(cs av.Callsign) bool {
		_, inUse := s.State.Flights[cs]
		return inUse
	})
}
