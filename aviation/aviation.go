// aviation/aviation.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"strings"

	"github.com/towersim/tower/math"
	"github.com/towersim/tower/rand"
)

type Callsign string

func (c Callsign) String() string { return string(c) }

// Airline returns the callsign's leading letters, e.g. "UAL" for UAL2431.
func (c Callsign) Airline() string {
	cs := string(c)
	if i := strings.IndexFunc(cs, func(r rune) bool { return r >= '0' && r <= '9' }); i != -1 {
		return cs[:i]
	}
	return cs
}

type TypeOfFlight int

const (
	FlightTypeUnknown TypeOfFlight = iota
	FlightTypeArrival
	FlightTypeDeparture
)

func (t TypeOfFlight) String() string {
	return [...]string{"unknown", "arrival", "departure"}[t]
}

func (t TypeOfFlight) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TypeOfFlight) UnmarshalText(b []byte) error {
	switch string(b) {
	case "arrival":
		*t = FlightTypeArrival
	case "departure":
		*t = FlightTypeDeparture
	case "unknown", "":
		*t = FlightTypeUnknown
	default:
		return fmt.Errorf("%s: unknown flight type", b)
	}
	return nil
}

type Waypoint struct {
	Name                string        `json:"name"`
	Location            math.Point2NM `json:"position"`
	AltitudeRestriction float32       `json:"altitude_restriction"` // feet
	Description         string        `json:"description,omitempty"`
}

type Runway struct {
	Id        string        `json:"id"`
	Heading   float32       `json:"heading"`
	Threshold math.Point2NM `json:"threshold"`
	Length    float32       `json:"length"` // nm
	Fix       string        `json:"fix"`    // waypoint at the threshold; cleared arrivals steer to it
}

type Airport struct {
	ICAO      string  `json:"icao"`
	Name      string  `json:"name"`
	Elevation float32 `json:"elevation"` // feet
	Runway    Runway  `json:"runway"`
}

type AircraftPerformance struct {
	Name string `json:"name"`
	Rate struct {
		Climb   float32 `json:"climb"`   // ft / minute
		Descent float32 `json:"descent"` // ft / minute
	} `json:"rate"`
	Speed struct {
		Cruise      float32 `json:"cruise"`
		Approach    float32 `json:"approach"`
		MinApproach float32 `json:"min_approach"`
		MaxApproach float32 `json:"max_approach"`
	} `json:"speed"`
}

type Airline struct {
	ICAO      string `json:"icao"`
	Name      string `json:"name"`
	Telephony string `json:"telephony,omitempty"`
}

// LandingRules gives the conditions that must all hold for a flight to be
// cleared to land.
type LandingRules struct {
	MaxAltitude      float32 `json:"max_altitude"`      // feet
	MinSpeed         float32 `json:"min_speed"`         // knots
	MaxSpeed         float32 `json:"max_speed"`         // knots
	MaxDistance      float32 `json:"max_distance"`      // nm from the threshold
	RequiredFix      string  `json:"required_waypoint"` // must be in passed waypoints
	HeadingTolerance float32 `json:"heading_tolerance"` // degrees from runway heading
}

// SeparationRules gives the distances that define loss-of-separation
// events as well as the configuration for short-horizon conflict
// prediction.
type SeparationRules struct {
	NearMissDistance  float32 `json:"near_miss_distance"` // nm, any altitude
	CollisionDistance float32 `json:"collision_distance"` // nm
	CollisionAltitude float32 `json:"collision_altitude"` // feet

	PredictionHorizon  float32 `json:"prediction_horizon"`  // minutes
	PredictionStep     float32 `json:"prediction_step"`     // minutes
	PredictionDistance float32 `json:"prediction_distance"` // nm
	PredictionAltitude float32 `json:"prediction_altitude"` // feet
}

// SpawnConfig controls where new flights enter the simulation.
type SpawnConfig struct {
	EntryFixes   []string      `json:"entry_fixes"`
	ExitFix      string        `json:"exit_fix"`
	MinAltitude  float32       `json:"min_altitude"` // feet, arrivals
	MaxAltitude  float32       `json:"max_altitude"`
	MinOffset    float32       `json:"min_offset"` // nm beyond the entry fix
	MaxOffset    float32       `json:"max_offset"`
	GatePosition math.Point2NM `json:"gate_position"`
}

// SampleCallsign returns a callsign for a random airline from the given
// set with a flight number in [100, 9999], retrying while the proposed
// callsign is reported as already in use.
func SampleCallsign(r *rand.Rand, airlines []Airline, inUse func(Callsign) bool) (Callsign, bool) {
	if len(airlines) == 0 {
		return "", false
	}
	for range 100 {
		al := rand.SampleSlice(r, airlines)
		cs := Callsign(fmt.Sprintf("%s%d", al.ICAO, 100+r.Intn(9900)))
		if inUse == nil || !inUse(cs) {
			return cs, true
		}
	}
	return "", false
}
