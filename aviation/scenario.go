// aviation/scenario.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	_ "embed"
	"encoding/json"
	"os"

	"github.com/towersim/tower/util"

	"github.com/iancoleman/orderedmap"
)

// Scenario is the static reference data for a simulation session: the
// airport, the waypoint table, aircraft performance, airlines, and the
// rules that govern clearances and separation. It is immutable once
// loaded; the engine and all of its components share a single instance.
type Scenario struct {
	Airport     Airport                        `json:"airport"`
	Waypoints   WaypointTable                  `json:"waypoints"`
	Aircraft    map[string]AircraftPerformance `json:"aircraft"`
	Airlines    []Airline                      `json:"airlines"`
	AirportPool []string                       `json:"airport_pool"`
	Landing     LandingRules                   `json:"landing_rules"`
	Separation  SeparationRules                `json:"separation"`
	Spawn       SpawnConfig                    `json:"spawn"`
}

//go:embed scenarios/krnt.json
var defaultScenarioJSON []byte

// DefaultScenario returns the built-in single-runway scenario.
func DefaultScenario(e *util.ErrorLogger) *Scenario {
	return LoadScenarioBytes(defaultScenarioJSON, "builtin", e)
}

// LoadScenarioFile loads and validates a scenario from a JSON file.
func LoadScenarioFile(path string, e *util.ErrorLogger) *Scenario {
	contents, err := os.ReadFile(path)
	if err != nil {
		e.Error(err)
		return nil
	}
	return LoadScenarioBytes(contents, path, e)
}

// LoadScenarioBytes parses, typechecks, and validates scenario JSON.
// All problems found are accumulated in the ErrorLogger; nil is returned
// if there were any.
func LoadScenarioBytes(contents []byte, name string, e *util.ErrorLogger) *Scenario {
	defer e.CheckDepth(e.CurrentDepth())

	e.Push("Scenario " + name)
	defer e.Pop()

	for _, dup := range util.FindDuplicateJSONKeys(contents) {
		if dup.Path == "" {
			e.ErrorString("duplicate JSON key %q", dup.Key)
		} else {
			e.ErrorString("duplicate JSON key %q inside %q", dup.Key, dup.Path)
		}
	}

	util.CheckJSON[Scenario](contents, e)
	if e.HaveErrors() {
		return nil
	}

	var s Scenario
	if err := util.UnmarshalJSONBytes(contents, &s); err != nil {
		e.Error(err)
		return nil
	}

	s.PostDeserialize(e)
	if e.HaveErrors() {
		return nil
	}
	return &s
}

// PostDeserialize validates the scenario's internal consistency after it
// has been unmarshaled.
func (s *Scenario) PostDeserialize(e *util.ErrorLogger) {
	defer e.CheckDepth(e.CurrentDepth())

	e.Push("airport " + s.Airport.ICAO)
	if s.Airport.ICAO == "" {
		e.ErrorString("no \"icao\" specified")
	}
	if s.Airport.Elevation < 0 {
		e.ErrorString("elevation %.0f is negative", s.Airport.Elevation)
	}
	if s.Airport.Runway.Id == "" {
		e.ErrorString("no runway \"id\" specified")
	}
	if s.Airport.Runway.Heading <= 0 || s.Airport.Runway.Heading > 360 {
		e.ErrorString("runway heading %.0f isn't between 1 and 360", s.Airport.Runway.Heading)
	}
	if s.Airport.Runway.Length <= 0 {
		e.ErrorString("runway length %.2f must be positive", s.Airport.Runway.Length)
	}
	if _, ok := s.Waypoints.Get(s.Airport.Runway.Fix); !ok {
		e.ErrorString("runway fix %q isn't in \"waypoints\"", s.Airport.Runway.Fix)
	}
	e.Pop()

	e.Push("waypoints")
	if s.Waypoints.Len() == 0 {
		e.ErrorString("no waypoints specified")
	}
	for _, wp := range s.Waypoints.Waypoints() {
		if wp.AltitudeRestriction < 0 {
			e.Push(wp.Name)
			e.ErrorString("altitude restriction %.0f is negative", wp.AltitudeRestriction)
			e.Pop()
		}
	}
	e.Pop()

	e.Push("aircraft")
	if len(s.Aircraft) == 0 {
		e.ErrorString("no aircraft types specified")
	}
	for icao, perf := range util.SortedMap(s.Aircraft) {
		e.Push(icao)
		if perf.Speed.Cruise <= 0 {
			e.ErrorString("cruise speed %.0f must be positive", perf.Speed.Cruise)
		}
		if perf.Speed.MinApproach <= 0 || perf.Speed.MinApproach > perf.Speed.Approach ||
			perf.Speed.Approach > perf.Speed.MaxApproach {
			e.ErrorString("approach speeds must satisfy 0 < min %.0f <= approach %.0f <= max %.0f",
				perf.Speed.MinApproach, perf.Speed.Approach, perf.Speed.MaxApproach)
		}
		if perf.Rate.Climb <= 0 || perf.Rate.Descent <= 0 {
			e.ErrorString("climb %.0f and descent %.0f rates must be positive",
				perf.Rate.Climb, perf.Rate.Descent)
		}
		e.Pop()
	}
	e.Pop()

	e.Push("airlines")
	if len(s.Airlines) == 0 {
		e.ErrorString("no airlines specified")
	}
	for _, al := range s.Airlines {
		if al.ICAO == "" {
			e.ErrorString("airline with no \"icao\" specified")
		}
	}
	e.Pop()

	if len(s.AirportPool) == 0 {
		e.ErrorString("no \"airport_pool\" airports specified")
	}

	e.Push("landing_rules")
	if s.Landing.MaxAltitude <= 0 {
		e.ErrorString("\"max_altitude\" %.0f must be positive", s.Landing.MaxAltitude)
	}
	if s.Landing.MinSpeed <= 0 || s.Landing.MinSpeed >= s.Landing.MaxSpeed {
		e.ErrorString("speed band [%.0f, %.0f] is invalid", s.Landing.MinSpeed, s.Landing.MaxSpeed)
	}
	if s.Landing.MaxDistance <= 0 {
		e.ErrorString("\"max_distance\" %.1f must be positive", s.Landing.MaxDistance)
	}
	if _, ok := s.Waypoints.Get(s.Landing.RequiredFix); !ok {
		e.ErrorString("required waypoint %q isn't in \"waypoints\"", s.Landing.RequiredFix)
	}
	if s.Landing.HeadingTolerance <= 0 || s.Landing.HeadingTolerance > 180 {
		e.ErrorString("\"heading_tolerance\" %.0f isn't between 1 and 180", s.Landing.HeadingTolerance)
	}
	e.Pop()

	e.Push("separation")
	if s.Separation.CollisionDistance <= 0 ||
		s.Separation.CollisionDistance >= s.Separation.NearMissDistance {
		e.ErrorString("collision distance %.2f must be positive and below near miss distance %.2f",
			s.Separation.CollisionDistance, s.Separation.NearMissDistance)
	}
	if s.Separation.CollisionAltitude <= 0 {
		e.ErrorString("\"collision_altitude\" %.0f must be positive", s.Separation.CollisionAltitude)
	}
	if s.Separation.PredictionHorizon <= 0 || s.Separation.PredictionStep <= 0 ||
		s.Separation.PredictionStep > s.Separation.PredictionHorizon {
		e.ErrorString("prediction step %.2f and horizon %.2f are invalid",
			s.Separation.PredictionStep, s.Separation.PredictionHorizon)
	}
	if s.Separation.PredictionDistance <= 0 || s.Separation.PredictionAltitude <= 0 {
		e.ErrorString("prediction thresholds %.1f nm / %.0f ft must be positive",
			s.Separation.PredictionDistance, s.Separation.PredictionAltitude)
	}
	e.Pop()

	e.Push("spawn")
	if len(s.Spawn.EntryFixes) == 0 {
		e.ErrorString("no \"entry_fixes\" specified")
	}
	for _, fix := range s.Spawn.EntryFixes {
		if _, ok := s.Waypoints.Get(fix); !ok {
			e.ErrorString("entry fix %q isn't in \"waypoints\"", fix)
		}
	}
	if _, ok := s.Waypoints.Get(s.Spawn.ExitFix); !ok {
		e.ErrorString("exit fix %q isn't in \"waypoints\"", s.Spawn.ExitFix)
	}
	if s.Spawn.MinAltitude <= 0 || s.Spawn.MinAltitude > s.Spawn.MaxAltitude {
		e.ErrorString("altitude range [%.0f, %.0f] is invalid", s.Spawn.MinAltitude, s.Spawn.MaxAltitude)
	}
	if s.Spawn.MinOffset <= 0 || s.Spawn.MinOffset > s.Spawn.MaxOffset {
		e.ErrorString("offset range [%.1f, %.1f] is invalid", s.Spawn.MinOffset, s.Spawn.MaxOffset)
	}
	e.Pop()
}

// EntryWaypoints returns the waypoints arrivals may be spawned inbound to.
func (s *Scenario) EntryWaypoints() []Waypoint {
	var wps []Waypoint
	for _, fix := range s.Spawn.EntryFixes {
		if wp, ok := s.Waypoints.Get(fix); ok {
			wps = append(wps, wp)
		}
	}
	return wps
}

// AircraftTypes returns the scenario's aircraft type designators, sorted.
func (s *Scenario) AircraftTypes() []string {
	return util.SortedMapKeys(s.Aircraft)
}

// Performance returns the performance record for the given aircraft type;
// ok is false if the type isn't in the scenario.
func (s *Scenario) Performance(actype string) (AircraftPerformance, bool) {
	perf, ok := s.Aircraft[actype]
	return perf, ok
}

///////////////////////////////////////////////////////////////////////////
// WaypointTable

// WaypointTable is the scenario's waypoint set. Declaration order in the
// scenario file is preserved: listings report waypoints in the order the
// file defines them.
type WaypointTable struct {
	wps []Waypoint
	idx map[string]int
}

// MakeWaypointTable builds a table from waypoints in the given order.
func MakeWaypointTable(wps []Waypoint) WaypointTable {
	t := WaypointTable{idx: make(map[string]int)}
	for _, wp := range wps {
		if _, ok := t.idx[wp.Name]; ok {
			continue
		}
		t.idx[wp.Name] = len(t.wps)
		t.wps = append(t.wps, wp)
	}
	return t
}

// Get returns the named waypoint.
func (t *WaypointTable) Get(name string) (Waypoint, bool) {
	if i, ok := t.idx[name]; ok {
		return t.wps[i], true
	}
	return Waypoint{}, false
}

// Names returns all waypoint names in declaration order.
func (t *WaypointTable) Names() []string {
	return util.MapSlice(t.wps, func(wp Waypoint) string { return wp.Name })
}

// Waypoints returns all waypoints in declaration order. The returned
// slice is the table's own storage and must not be mutated.
func (t *WaypointTable) Waypoints() []Waypoint {
	return t.wps
}

func (t *WaypointTable) Len() int {
	return len(t.wps)
}

// Waypoint tables are stored in JSON as an object of name -> waypoint
// entries; the entries' declaration order is significant and so is
// maintained through unmarshal/marshal round trips.
func (t *WaypointTable) UnmarshalJSON(b []byte) error {
	om := orderedmap.New()
	if err := json.Unmarshal(b, om); err != nil {
		return err
	}

	t.wps = nil
	t.idx = make(map[string]int)
	for _, name := range om.Keys() {
		v, _ := om.Get(name)
		wb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var wp Waypoint
		if err := json.Unmarshal(wb, &wp); err != nil {
			return err
		}
		wp.Name = name
		t.idx[name] = len(t.wps)
		t.wps = append(t.wps, wp)
	}
	return nil
}

func (t WaypointTable) MarshalJSON() ([]byte, error) {
	om := orderedmap.New()
	for _, wp := range t.wps {
		om.Set(wp.Name, wp)
	}
	return json.Marshal(om)
}

// CheckJSON accepts an object of name -> waypoint entries as raw
// unmarshaled JSON for a WaypointTable.
func (t WaypointTable) CheckJSON(json interface{}) bool {
	m, ok := json.(map[string]interface{})
	if !ok {
		return false
	}
	return !util.MapContains(m, func(name string, v interface{}) bool {
		_, ok := v.(map[string]interface{})
		return !ok
	})
}

