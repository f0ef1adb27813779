// client/state.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package client

import (
	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/sim"
)

// SimState is the client's view of the session: the static reference
// data from sign on plus the most recently applied state update.
type SimState struct {
	Airport       av.Airport
	Waypoints     av.WaypointTable
	Landing       av.LandingRules
	Separation    av.SeparationRules
	AircraftTypes []string

	sim.StateUpdate
}

// Apply folds a server state update into the client state. The update's
// events are re-posted on the local stream so subscribers here see the
// same events a server-side subscriber would.
func (ss *SimState) Apply(u *sim.StateUpdate, es *sim.EventStream) {
	events := u.Events
	u.Events = nil
	ss.StateUpdate = *u

	if es != nil {
		for _, ev := range events {
			es.Post(ev)
		}
	}
}

func (ss *SimState) FindFlight(callsign av.Callsign) (*sim.Flight, bool) {
	fl, ok := ss.Flights[callsign]
	return fl, ok
}

func (ss *SimState) ActiveArrivals() int {
	var n int
	for _, fl := range ss.Flights {
		if fl.Type == av.FlightTypeArrival {
			n++
		}
	}
	return n
}

func (ss *SimState) ActiveDepartures() int {
	var n int
	for _, fl := range ss.Flights {
		if fl.Type == av.FlightTypeDeparture {
			n++
		}
	}
	return n
}
