// server/gateway_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/towersim/tower/sim"

	"github.com/gorilla/websocket"
)

func makeTestGateway(t *testing.T) (*SimManager, *httptest.Server) {
	t.Helper()
	sm := makeTestManager(t)
	ts := httptest.NewServer(sm.gatewayHandler())
	t.Cleanup(ts.Close)
	return sm, ts
}

func getJSON(t *testing.T, url string, wantCode int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantCode {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("GET %s: decode: %v", url, err)
	}
}

func postJSON(t *testing.T, url string, body any, wantCode int, v any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantCode {
		t.Fatalf("POST %s: status %d, want %d", url, resp.StatusCode, wantCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("POST %s: decode: %v", url, err)
	}
}

func TestGatewayAirport(t *testing.T) {
	sm, ts := makeTestGateway(t)

	var ap airportResponse
	getJSON(t, ts.URL+"/api/airport", http.StatusOK, &ap)

	sc := sm.sim.Scenario()
	if ap.ICAO != sc.Airport.ICAO {
		t.Errorf("icao %q, want %q", ap.ICAO, sc.Airport.ICAO)
	}
	if ap.Runway != sc.Airport.Runway.Id {
		t.Errorf("runway %q, want %q", ap.Runway, sc.Airport.Runway.Id)
	}
	if ap.RunwayHeading != sc.Airport.Runway.Heading {
		t.Errorf("runway heading %v, want %v", ap.RunwayHeading, sc.Airport.Runway.Heading)
	}
}

func TestGatewayWaypoints(t *testing.T) {
	sm, ts := makeTestGateway(t)

	var wps map[string]struct {
		Name string `json:"name"`
	}
	getJSON(t, ts.URL+"/api/waypoints", http.StatusOK, &wps)

	for _, name := range sm.sim.Scenario().Waypoints.Names() {
		if wp, ok := wps[name]; !ok {
			t.Errorf("waypoint %s missing from response", name)
		} else if wp.Name != name {
			t.Errorf("waypoint %s has name %q", name, wp.Name)
		}
	}
}

func TestGatewayFlightNotFound(t *testing.T) {
	_, ts := makeTestGateway(t)

	var e errorResponse
	getJSON(t, ts.URL+"/api/flights/XY123", http.StatusNotFound, &e)
	if want := "Flight XY123 not found"; e.Error != want {
		t.Errorf("error %q, want %q", e.Error, want)
	}
}

func TestGatewaySpawnAndCommand(t *testing.T) {
	_, ts := makeTestGateway(t)

	var spawn spawnResponse
	postJSON(t, ts.URL+"/api/simulation/spawn/arrival", nil, http.StatusOK, &spawn)
	if spawn.Status != "ok" || spawn.Flight == nil {
		t.Fatalf("spawn: %+v", spawn)
	}
	cs := string(spawn.Flight.Callsign)

	var cr commandResponse
	postJSON(t, ts.URL+"/api/flights/"+cs+"/command",
		map[string]any{"altitude": 3000}, http.StatusOK, &cr)
	if cr.Status != "ok" || !cr.Result.Success {
		t.Fatalf("command: %+v", cr)
	}

	var fl sim.Flight
	getJSON(t, ts.URL+"/api/flights/"+cs, http.StatusOK, &fl)
	if fl.TargetAltitude != 3000 {
		t.Errorf("target altitude %v after command, want 3000", fl.TargetAltitude)
	}

	// Commands to unknown flights 404 with the reason in the result.
	postJSON(t, ts.URL+"/api/flights/ZZ999/command",
		map[string]any{"altitude": 3000}, http.StatusNotFound, &cr)
	if cr.Status != "error" || !strings.Contains(cr.Result.Message, "not found") {
		t.Errorf("command to unknown flight: %+v", cr)
	}
}

func TestGatewayFlightFilters(t *testing.T) {
	_, ts := makeTestGateway(t)

	var spawn spawnResponse
	postJSON(t, ts.URL+"/api/simulation/spawn/arrival", nil, http.StatusOK, &spawn)
	arrival := spawn.Flight.Callsign
	postJSON(t, ts.URL+"/api/simulation/spawn/departure", nil, http.StatusOK, &spawn)

	var all, landing, takeoff []sim.Flight
	getJSON(t, ts.URL+"/api/flights", http.StatusOK, &all)
	getJSON(t, ts.URL+"/api/flights/landing", http.StatusOK, &landing)
	getJSON(t, ts.URL+"/api/flights/takeoff", http.StatusOK, &takeoff)

	if len(all) != 2 {
		t.Errorf("%d flights, want 2", len(all))
	}
	if len(landing) != 1 || landing[0].Callsign != arrival {
		t.Errorf("landing flights %+v, want just %s", landing, arrival)
	}
	// The departure is still pushing back at the gate.
	if len(takeoff) != 0 {
		t.Errorf("takeoff flights %+v, want none", takeoff)
	}
}

func TestGatewayStatusAndStats(t *testing.T) {
	_, ts := makeTestGateway(t)

	var spawn spawnResponse
	postJSON(t, ts.URL+"/api/simulation/spawn/arrival", nil, http.StatusOK, &spawn)
	postJSON(t, ts.URL+"/api/simulation/spawn/departure", nil, http.StatusOK, &spawn)

	var status statusResponse
	getJSON(t, ts.URL+"/api/simulation/status", http.StatusOK, &status)
	if !status.Running || status.Paused || status.Failed {
		t.Errorf("status %+v, want running", status)
	}
	if status.TotalFlights != 2 || status.Arrivals != 1 || status.Departures != 1 {
		t.Errorf("counts %d/%d/%d, want 2/1/1",
			status.TotalFlights, status.Arrivals, status.Departures)
	}

	var stats simStats
	getJSON(t, ts.URL+"/api/simulation/stats", http.StatusOK, &stats)
	if stats.Landed != 0 || stats.Departed != 0 || stats.Failed {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.SessionDuration < 0 {
		t.Errorf("negative session duration %v", stats.SessionDuration)
	}
}

func TestGatewaySpeed(t *testing.T) {
	_, ts := makeTestGateway(t)

	var sr speedResponse
	postJSON(t, ts.URL+"/api/simulation/speed", map[string]any{"multiplier": 4}, http.StatusOK, &sr)
	if sr.Status != "ok" || sr.SpeedMultiplier != 4 {
		t.Errorf("speed: %+v", sr)
	}

	// Rates outside [0.5, 10] clamp rather than fail.
	postJSON(t, ts.URL+"/api/simulation/speed", map[string]any{"multiplier": 50}, http.StatusOK, &sr)
	if sr.SpeedMultiplier != 10 {
		t.Errorf("clamped multiplier %v, want 10", sr.SpeedMultiplier)
	}

	resp, err := http.Post(ts.URL+"/api/simulation/speed", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status %d, want 400", resp.StatusCode)
	}
}

func TestGatewayRestart(t *testing.T) {
	_, ts := makeTestGateway(t)

	var spawn spawnResponse
	postJSON(t, ts.URL+"/api/simulation/spawn/arrival", nil, http.StatusOK, &spawn)

	var sr scoreResponse
	postJSON(t, ts.URL+"/api/simulation/restart", nil, http.StatusOK, &sr)
	if sr.Status != "ok" {
		t.Fatalf("restart: %+v", sr)
	}

	var status statusResponse
	getJSON(t, ts.URL+"/api/simulation/status", http.StatusOK, &status)
	if status.TotalFlights != 0 {
		t.Errorf("%d flights after restart, want 0", status.TotalFlights)
	}
}

func TestGatewayEmptyCollections(t *testing.T) {
	_, ts := makeTestGateway(t)

	// Empty collections marshal as [], not null.
	for _, path := range []string{"/api/simulation/near-misses", "/api/scores", "/api/flights"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var body bytes.Buffer
		body.ReadFrom(resp.Body)
		resp.Body.Close()
		if got := strings.TrimSpace(body.String()); got != "[]" {
			t.Errorf("GET %s: body %q, want []", path, got)
		}
	}

	var raw map[string]json.RawMessage
	getJSON(t, ts.URL+"/api/flights/history", http.StatusOK, &raw)
	for _, key := range []string{"landed", "departed"} {
		if got := strings.TrimSpace(string(raw[key])); got != "[]" {
			t.Errorf("history %s is %s, want []", key, got)
		}
	}
}

func TestGatewayWebsocketUpdates(t *testing.T) {
	_, ts := makeTestGateway(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/updates"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read update: %v", err)
	}

	var update struct {
		Type    string          `json:"type"`
		Flights json.RawMessage `json:"flights"`
		Stats   simStats        `json:"stats"`
	}
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if update.Type != "update" {
		t.Errorf("message type %q, want update", update.Type)
	}
	if update.Flights == nil {
		t.Error("no flights field in update")
	}
}
