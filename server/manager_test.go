// server/manager_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"errors"
	"slices"
	"testing"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/sim"
	"github.com/towersim/tower/util"
)

func makeTestManager(t *testing.T) *SimManager {
	t.Helper()
	var e util.ErrorLogger
	sc := av.DefaultScenario(&e)
	if sc == nil {
		t.Fatalf("default scenario: %s", e.String())
	}
	sm := NewSimManager(sc, nil, 1, nil)
	t.Cleanup(sm.Stop)
	return sm
}

func signOn(t *testing.T, sm *SimManager) *SignOnResult {
	t.Helper()
	var result SignOnResult
	if err := sm.SignOn(TowerRPCVersion, &result); err != nil {
		t.Fatalf("sign on: %v", err)
	}
	return &result
}

func ptr[T any](v T) *T { return &v }

func TestSignOnVersionMismatch(t *testing.T) {
	sm := makeTestManager(t)

	var result SignOnResult
	if err := sm.SignOn(TowerRPCVersion+1, &result); !errors.Is(err, ErrRPCVersionMismatch) {
		t.Errorf("got %v, want ErrRPCVersionMismatch", err)
	}
}

func TestSignOn(t *testing.T) {
	sm := makeTestManager(t)
	result := signOn(t, sm)

	if result.ControllerToken == "" {
		t.Error("empty controller token")
	}
	if result.Airport.ICAO == "" {
		t.Error("no airport in sign on result")
	}
	if len(result.Waypoints) == 0 {
		t.Error("no waypoints in sign on result")
	}
	if len(result.AircraftTypes) == 0 {
		t.Error("no aircraft types in sign on result")
	}
	if result.Update.Flights == nil {
		t.Error("no initial state update")
	}

	// Controllers get their own tokens.
	if other := signOn(t, sm); other.ControllerToken == result.ControllerToken {
		t.Error("two controllers got the same token")
	}
}

func TestSignOff(t *testing.T) {
	sm := makeTestManager(t)
	token := signOn(t, sm).ControllerToken

	if err := sm.SignOff(token); err != nil {
		t.Fatalf("sign off: %v", err)
	}
	if err := sm.SignOff(token); !errors.Is(err, ErrNoSimForControllerToken) {
		t.Errorf("second sign off: got %v, want ErrNoSimForControllerToken", err)
	}
}

func TestGetStateUpdateUnknownToken(t *testing.T) {
	sm := makeTestManager(t)

	if _, err := sm.GetStateUpdate("no such token"); !errors.Is(err, ErrNoSimForControllerToken) {
		t.Errorf("got %v, want ErrNoSimForControllerToken", err)
	}
}

func TestStateUpdateReportsSpawns(t *testing.T) {
	sm := makeTestManager(t)
	token := signOn(t, sm).ControllerToken

	fl, err := sm.sim.SpawnArrival()
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	u, err := sm.GetStateUpdate(token)
	if err != nil {
		t.Fatalf("state update: %v", err)
	}
	if _, ok := u.Flights[fl.Callsign]; !ok {
		t.Errorf("update missing spawned flight %s", fl.Callsign)
	}
	if !slices.ContainsFunc(u.Events, func(ev sim.Event) bool {
		return ev.Type == sim.FlightSpawnedEvent && ev.Callsign == fl.Callsign
	}) {
		t.Errorf("no spawn event for %s in %v", fl.Callsign, u.Events)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sm := makeTestManager(t)
	sm.Stop()
	sm.Stop()

	if r := sm.sim.PostCommand("N123AB", sim.Command{Altitude: ptr(float32(3000))}); r.Success {
		t.Error("command accepted after stop")
	}
}

func TestTryDecodeError(t *testing.T) {
	for _, tc := range []struct {
		msg  string
		want error
	}{
		{msg: sim.ErrNoFlightForCallsign.Error(), want: sim.ErrNoFlightForCallsign},
		{msg: sim.ErrFlightAlreadyCompleted.Error(), want: sim.ErrFlightAlreadyCompleted},
		{msg: sim.ErrSimulationFailed.Error(), want: sim.ErrSimulationFailed},
		{msg: ErrInvalidControllerToken.Error(), want: ErrInvalidControllerToken},
		{msg: ErrNoSimForControllerToken.Error(), want: ErrNoSimForControllerToken},
		{msg: ErrRPCVersionMismatch.Error(), want: ErrRPCVersionMismatch},
	} {
		if got := TryDecodeErrorString(tc.msg); !errors.Is(got, tc.want) {
			t.Errorf("%q decoded to %v, want %v", tc.msg, got, tc.want)
		}
	}

	err := errors.New("some other problem")
	if got := TryDecodeError(err); got != err {
		t.Errorf("unrelated error remapped to %v", got)
	}
	if got := TryDecodeError(nil); got != nil {
		t.Errorf("nil error remapped to %v", got)
	}
}
