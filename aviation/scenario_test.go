// aviation/scenario_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/towersim/tower/util"
)

func TestDefaultScenario(t *testing.T) {
	var e util.ErrorLogger
	s := DefaultScenario(&e)
	if e.HaveErrors() {
		t.Fatalf("built-in scenario has errors:\n%s", e.String())
	}

	if s.Airport.ICAO != "KRNT" {
		t.Errorf("got airport %q, expected KRNT", s.Airport.ICAO)
	}
	if s.Airport.Runway.Heading != 340 {
		t.Errorf("got runway heading %.0f, expected 340", s.Airport.Runway.Heading)
	}

	expected := []string{"NORTH", "SOUTH", "EAST", "SHORT_EAST", "WEST", "DOWNWIND",
		"BASE", "FINAL", "RUNWAY", "ALPHA", "BRAVO", "CHARLIE", "DELTA", "ECHO", "HOTEL"}
	if names := s.Waypoints.Names(); !slices.Equal(names, expected) {
		t.Errorf("waypoints out of declaration order: %v", names)
	}

	if wp, ok := s.Waypoints.Get("FINAL"); !ok {
		t.Errorf("FINAL missing from waypoint table")
	} else if wp.AltitudeRestriction != 1000 {
		t.Errorf("FINAL altitude restriction %.0f, expected 1000", wp.AltitudeRestriction)
	}

	if s.Landing.RequiredFix != "FINAL" {
		t.Errorf("got required fix %q, expected FINAL", s.Landing.RequiredFix)
	}
	if s.Separation.NearMissDistance != 0.5 || s.Separation.CollisionDistance != 0.15 {
		t.Errorf("unexpected separation distances: %+v", s.Separation)
	}

	if perf, ok := s.Performance("C172"); !ok {
		t.Errorf("C172 missing from aircraft table")
	} else if perf.Speed.Cruise != 120 || perf.Rate.Climb != 700 {
		t.Errorf("unexpected C172 performance: %+v", perf)
	}

	if n := len(s.EntryWaypoints()); n != 4 {
		t.Errorf("got %d entry waypoints, expected 4", n)
	}
}

func TestWaypointTableOrder(t *testing.T) {
	contents := []byte(`{
        "ZULU":  { "position": { "x": 1, "y": 2 }, "altitude_restriction": 3000 },
        "ALPHA": { "position": { "x": -4, "y": 0 }, "altitude_restriction": 2000 },
        "MIKE":  { "position": [ 5, 6 ], "altitude_restriction": 1000 }
    }`)

	var tab WaypointTable
	if err := json.Unmarshal(contents, &tab); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !slices.Equal(tab.Names(), []string{"ZULU", "ALPHA", "MIKE"}) {
		t.Errorf("declaration order not preserved: %v", tab.Names())
	}

	if wp, ok := tab.Get("MIKE"); !ok {
		t.Errorf("MIKE not found")
	} else if wp.Location[0] != 5 || wp.Location[1] != 6 {
		t.Errorf("array-form position gave %v", wp.Location)
	}

	// Order survives a marshal/unmarshal round trip.
	b, err := json.Marshal(tab)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var tab2 WaypointTable
	if err := json.Unmarshal(b, &tab2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !slices.Equal(tab2.Names(), tab.Names()) {
		t.Errorf("round trip reordered waypoints: %v", tab2.Names())
	}
}

func TestScenarioDuplicateKeys(t *testing.T) {
	contents := []byte(`{
        "waypoints": {
            "NORTH": { "position": { "x": 0, "y": 25 }, "altitude_restriction": 6000 },
            "NORTH": { "position": { "x": 0, "y": -25 }, "altitude_restriction": 6000 }
        }
    }`)

	var e util.ErrorLogger
	if s := LoadScenarioBytes(contents, "test", &e); s != nil {
		t.Errorf("expected nil scenario for duplicate keys")
	}
	if !e.HaveErrors() || !strings.Contains(e.String(), "duplicate") {
		t.Errorf("duplicate key not reported: %s", e.String())
	}
}

func TestScenarioUnknownKey(t *testing.T) {
	contents := []byte(`{
        "airprot": { "icao": "KRNT" }
    }`)

	var e util.ErrorLogger
	if s := LoadScenarioBytes(contents, "test", &e); s != nil {
		t.Errorf("expected nil scenario for unknown key")
	}
	if !e.HaveErrors() || !strings.Contains(e.String(), "airprot") {
		t.Errorf("misspelled key not reported: %s", e.String())
	}
}

func TestScenarioValidation(t *testing.T) {
	load := func() *Scenario {
		var e util.ErrorLogger
		s := DefaultScenario(&e)
		if e.HaveErrors() {
			t.Fatalf("built-in scenario has errors:\n%s", e.String())
		}
		return s
	}

	for _, c := range []struct {
		name   string
		mutate func(*Scenario)
		expect string
	}{
		{
			name:   "unknown entry fix",
			mutate: func(s *Scenario) { s.Spawn.EntryFixes = append(s.Spawn.EntryFixes, "NOWHERE") },
			expect: "NOWHERE",
		},
		{
			name:   "unknown exit fix",
			mutate: func(s *Scenario) { s.Spawn.ExitFix = "XYZZY" },
			expect: "XYZZY",
		},
		{
			name:   "collision distance above near miss",
			mutate: func(s *Scenario) { s.Separation.CollisionDistance = 1 },
			expect: "collision distance",
		},
		{
			name:   "required fix not in table",
			mutate: func(s *Scenario) { s.Landing.RequiredFix = "SHORT_FINAL" },
			expect: "SHORT_FINAL",
		},
		{
			name:   "inverted speed band",
			mutate: func(s *Scenario) { s.Landing.MinSpeed = 200 },
			expect: "speed band",
		},
		{
			name:   "heading tolerance out of range",
			mutate: func(s *Scenario) { s.Landing.HeadingTolerance = 270 },
			expect: "heading_tolerance",
		},
		{
			name: "inverted approach speeds",
			mutate: func(s *Scenario) {
				perf := s.Aircraft["B738"]
				perf.Speed.MinApproach = 500
				s.Aircraft["B738"] = perf
			},
			expect: "approach",
		},
		{
			name:   "inverted spawn altitudes",
			mutate: func(s *Scenario) { s.Spawn.MinAltitude = 20000 },
			expect: "altitude range",
		},
		{
			name:   "runway heading out of range",
			mutate: func(s *Scenario) { s.Airport.Runway.Heading = 380 },
			expect: "runway heading",
		},
		{
			name:   "runway fix not in table",
			mutate: func(s *Scenario) { s.Airport.Runway.Fix = "THRESHOLD" },
			expect: "THRESHOLD",
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			s := load()
			c.mutate(s)

			var e util.ErrorLogger
			s.PostDeserialize(&e)
			if !e.HaveErrors() {
				t.Fatalf("expected validation errors")
			}
			if !strings.Contains(e.String(), c.expect) {
				t.Errorf("errors don't mention %q:\n%s", c.expect, e.String())
			}
		})
	}
}
