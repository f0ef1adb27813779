// sim/flight.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
)

// FlightStatus tracks a flight through its lifecycle: arrivals run
// approaching -> on_final -> landing -> landed and departures run at_gate
// -> ready_for_takeoff -> taking_off -> departed. Transitions happen in
// updateStatus, at most one per tick.
type FlightStatus int

const (
	StatusApproaching FlightStatus = iota
	StatusOnFinal
	StatusLanding
	StatusLanded
	StatusAtGate
	StatusReadyForTakeoff
	StatusTakingOff
	StatusDeparted
	NumStatuses
)

func (s FlightStatus) String() string {
	return [...]string{"approaching", "on_final", "landing", "landed", "at_gate",
		"ready_for_takeoff", "taking_off", "departed"}[s]
}

func (s FlightStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FlightStatus) UnmarshalText(b []byte) error {
	for st := range NumStatuses {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("%s: unknown flight status", b)
}

// Airborne reports whether the status is subject to separation: airborne
// and under active control. Flights at the gate or holding short aren't,
// nor are completed flights lingering before cleanup.
func (s FlightStatus) Airborne() bool {
	return s == StatusApproaching || s == StatusOnFinal || s == StatusLanding || s == StatusTakingOff
}

// Completed reports whether the flight has finished its lifecycle.
func (s FlightStatus) Completed() bool {
	return s == StatusLanded || s == StatusDeparted
}

// Flight is a single aircraft in the pattern. Altitudes are in feet,
// speeds in knots, headings in degrees, and positions in nm east/north of
// the runway threshold.
type Flight struct {
	Callsign     av.Callsign     `json:"callsign"`
	Type         av.TypeOfFlight `json:"flight_type"`
	AircraftType string          `json:"aircraft_type"`
	Origin       string          `json:"origin,omitempty"`
	Destination  string          `json:"destination,omitempty"`

	Status   FlightStatus  `json:"status"`
	Position math.Point2NM `json:"position"`
	Altitude float32       `json:"altitude"`
	Speed    float32       `json:"speed"`
	Heading  float32       `json:"heading"`

	// Where the flight is trying to get to; updateNav chases these each
	// tick. A set TargetWaypoint overrides TargetHeading until the
	// waypoint is reached or a heading instruction clears it.
	TargetAltitude float32 `json:"target_altitude"`
	TargetSpeed    float32 `json:"target_speed"`
	TargetHeading  float32 `json:"target_heading"`
	TargetWaypoint string  `json:"target_waypoint,omitempty"`

	PassedWaypoints []string `json:"passed_waypoints"`

	ClearedToLand     bool   `json:"cleared_to_land"`
	ClearedForTakeoff bool   `json:"cleared_for_takeoff"`
	DenialReason      string `json:"clearance_denial_reason,omitempty"`

	SpawnedAt   time.Time `json:"-"`
	CompletedAt time.Time `json:"-"`
}

func (fl *Flight) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("callsign", string(fl.Callsign)),
		slog.String("type", fl.Type.String()),
		slog.String("status", fl.Status.String()),
		slog.String("position", fl.Position.String()),
		slog.Float64("altitude", float64(fl.Altitude)),
		slog.Float64("speed", float64(fl.Speed)),
		slog.Float64("heading", float64(fl.Heading)))
}

// CompletedFlight is the history record kept once a flight lands or
// departs and is removed from the active set.
type CompletedFlight struct {
	Callsign     av.Callsign     `json:"callsign"`
	Type         av.TypeOfFlight `json:"flight_type"`
	AircraftType string          `json:"aircraft_type"`
	Origin       string          `json:"origin,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	Status       FlightStatus    `json:"status"`
	CompletedAt  time.Time       `json:"completed_at"`
}

func (fl *Flight) completed() CompletedFlight {
	return CompletedFlight{
		Callsign:     fl.Callsign,
		Type:         fl.Type,
		AircraftType: fl.AircraftType,
		Origin:       fl.Origin,
		Destination:  fl.Destination,
		Status:       fl.Status,
		CompletedAt:  fl.CompletedAt,
	}
}
