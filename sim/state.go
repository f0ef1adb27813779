// sim/state.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/util"
)

// How many completed flights each history keeps before the oldest roll
// off.
const completedHistoryLimit = 50

// State is the complete mutable world of one session. The Sim owns it
// and touches it only with the Sim's mutex held; everything handed to
// callers goes through StateUpdate snapshots.
type State struct {
	Flights map[av.Callsign]*Flight

	SimTime   time.Time // the sim clock, advanced a second per tick
	StartTime time.Time // wallclock when the session began
	SimRate   float32
	Paused    bool

	Failed        bool
	FailureReason string
	CollisionPair *FlightPair

	LandedCount   int
	DepartedCount int

	NearMisses []NearMiss // every near miss this session, in order

	LandedHistory   *util.RingBuffer[CompletedFlight]
	DepartedHistory *util.RingBuffer[CompletedFlight]

	// Pairs currently inside the near-miss minimum, with how long
	// they've been there. Membership drives the count-once semantics.
	activeNearMisses map[FlightPair]util.TimeInterval
	activeConflicts  map[FlightPair]Conflict
}

func newState(simRate float32, now time.Time) *State {
	return &State{
		Flights:          make(map[av.Callsign]*Flight),
		SimTime:          now,
		StartTime:        now,
		SimRate:          simRate,
		LandedHistory:    util.NewRingBuffer[CompletedFlight](completedHistoryLimit),
		DepartedHistory:  util.NewRingBuffer[CompletedFlight](completedHistoryLimit),
		activeNearMisses: make(map[FlightPair]util.TimeInterval),
		activeConflicts:  make(map[FlightPair]Conflict),
	}
}

// StateUpdate is the client-facing snapshot of a session. It is deep
// copied from the live state so the caller can hold it as long as it
// likes without racing the sim loop.
type StateUpdate struct {
	Flights map[av.Callsign]*Flight

	SimTime   time.Time
	StartTime time.Time
	SimRate   float32
	Paused    bool

	Failed        bool
	FailureReason string
	CollisionPair *FlightPair

	LandedCount   int
	DepartedCount int
	NearMissCount int

	NearMisses []NearMiss
	Conflicts  []Conflict

	LandedHistory   []CompletedFlight
	DepartedHistory []CompletedFlight

	// Events posted since the subscription's last update.
	Events []Event
}
