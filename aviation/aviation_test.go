// aviation/aviation_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/towersim/tower/rand"
)

func TestCallsignAirline(t *testing.T) {
	for _, c := range []struct {
		callsign Callsign
		airline  string
	}{
		{callsign: "UAL2431", airline: "UAL"},
		{callsign: "SWA104", airline: "SWA"},
		{callsign: "TOWER", airline: "TOWER"},
		{callsign: "", airline: ""},
	} {
		if a := c.callsign.Airline(); a != c.airline {
			t.Errorf("%q: got airline %q, expected %q", c.callsign, a, c.airline)
		}
	}
}

func TestTypeOfFlightText(t *testing.T) {
	for _, c := range []struct {
		ty  TypeOfFlight
		str string
	}{
		{ty: FlightTypeArrival, str: "arrival"},
		{ty: FlightTypeDeparture, str: "departure"},
		{ty: FlightTypeUnknown, str: "unknown"},
	} {
		b, err := c.ty.MarshalText()
		if err != nil {
			t.Fatalf("%v: %v", c.ty, err)
		}
		if string(b) != c.str {
			t.Errorf("%v: got %q, expected %q", c.ty, b, c.str)
		}

		var ty TypeOfFlight
		if err := ty.UnmarshalText(b); err != nil {
			t.Fatalf("%q: %v", b, err)
		}
		if ty != c.ty {
			t.Errorf("%q: round trip gave %v, expected %v", b, ty, c.ty)
		}
	}

	var ty TypeOfFlight
	if err := ty.UnmarshalText([]byte("overflight")); err == nil {
		t.Errorf("expected error for unknown flight type")
	}
}

func TestSampleCallsign(t *testing.T) {
	airlines := []Airline{
		{ICAO: "UAL", Name: "United Airlines"},
		{ICAO: "DAL", Name: "Delta Air Lines"},
	}
	icaos := []string{"UAL", "DAL"}

	r := rand.Make()
	r.Seed(1)

	for range 100 {
		cs, ok := SampleCallsign(r, airlines, nil)
		if !ok {
			t.Fatalf("callsign generation failed with no callsigns in use")
		}
		if !slices.Contains(icaos, cs.Airline()) {
			t.Errorf("%q: airline %q not from the provided set", cs, cs.Airline())
		}
		num, err := strconv.Atoi(strings.TrimPrefix(string(cs), cs.Airline()))
		if err != nil {
			t.Errorf("%q: flight number doesn't parse: %v", cs, err)
		} else if num < 100 || num > 9999 {
			t.Errorf("%q: flight number %d outside [100, 9999]", cs, num)
		}
	}

	// Generation must retry past callsigns that are in use.
	taken := make(map[Callsign]interface{})
	for range 50 {
		cs, ok := SampleCallsign(r, airlines, func(c Callsign) bool {
			_, ok := taken[c]
			return ok
		})
		if !ok {
			t.Fatalf("callsign generation failed with %d in use", len(taken))
		}
		if _, dupe := taken[cs]; dupe {
			t.Errorf("%q: returned an in-use callsign", cs)
		}
		taken[cs] = nil
	}

	// If everything is reported in use, generation gives up.
	if _, ok := SampleCallsign(r, airlines, func(Callsign) bool { return true }); ok {
		t.Errorf("expected failure when all callsigns are in use")
	}

	if _, ok := SampleCallsign(r, nil, nil); ok {
		t.Errorf("expected failure with no airlines")
	}
}
