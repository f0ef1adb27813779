// client/client_test.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package client

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/towersim/tower/server"
	"github.com/towersim/tower/sim"
)

func ptr[T any](v T) *T { return &v }

// launchTestServer starts a full server on an ephemeral port and returns
// its address. The server's goroutines run until the test binary exits.
func launchTestServer(t *testing.T) string {
	t.Helper()

	config := server.ServerLaunchConfig{
		ScoresPath: filepath.Join(t.TempDir(), "scores.json"),
		Seed:       1,
	}
	port, e := server.LaunchServerAsync(config, nil)
	if e.HaveErrors() {
		t.Fatalf("LaunchServerAsync: %s", e.String())
	}
	return net.JoinHostPort("localhost", strconv.Itoa(port))
}

func connectTestClient(t *testing.T) (*ControlClient, *Server) {
	t.Helper()

	address := launchTestServer(t)
	conn := <-TryConnectServer(address, nil)
	if conn.Err != nil {
		t.Fatalf("TryConnectServer: %v", conn.Err)
	}

	c := NewControlClient(*conn.SignOn, conn.Server.RPCClient, nil)
	t.Cleanup(c.Disconnect)
	return c, conn.Server
}

func TestClientSignOn(t *testing.T) {
	c, _ := connectTestClient(t)

	if !c.Connected() {
		t.Error("client reports disconnected after sign on")
	}
	if c.State.Airport.ICAO == "" {
		t.Error("no airport in client state")
	}
	if c.State.Waypoints.Len() == 0 {
		t.Error("no waypoints in client state")
	}
	if len(c.State.AircraftTypes) == 0 {
		t.Error("no aircraft types in client state")
	}
	if rate := c.GetSimRate(); rate != 1 {
		t.Errorf("initial sim rate %v, want 1", rate)
	}
	if s := c.Status(); !strings.Contains(s, string(c.State.Airport.ICAO)) {
		t.Errorf("status %q does not name the airport", s)
	}
}

func TestClientWireErrorDecode(t *testing.T) {
	c, _ := connectTestClient(t)

	// The RPC layer flattens errors to strings; make sure the client maps
	// them back to the sentinel values callers check against.
	if _, err := c.GetFlight("ZZ999"); !errors.Is(err, sim.ErrNoFlightForCallsign) {
		t.Errorf("unknown flight error %v, want ErrNoFlightForCallsign", err)
	}
}

func TestClientCommandPump(t *testing.T) {
	c, srv := connectTestClient(t)

	var fl sim.Flight
	if err := srv.callWithTimeout(server.SpawnArrivalRPC, c.controllerToken, &fl); err != nil {
		t.Fatalf("spawn arrival: %v", err)
	}

	es := sim.NewEventStream(nil)
	var result sim.CommandResult
	done := make(chan error, 1)
	c.PostCommand(fl.Callsign, sim.Command{Altitude: ptr(float32(3000))}, &result,
		func(err error) { done <- err })

	deadline := time.After(10 * time.Second)
	var cbErr error
wait:
	for {
		c.GetUpdates(es, nil)
		select {
		case cbErr = <-done:
			break wait
		case <-deadline:
			t.Fatal("timed out waiting for command callback")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if cbErr != nil {
		t.Fatalf("post command: %v", cbErr)
	}
	if !result.Success {
		t.Fatalf("command denied: %s", result.Message)
	}

	got, err := c.GetFlight(fl.Callsign)
	if err != nil {
		t.Fatalf("get flight: %v", err)
	}
	if got.TargetAltitude != 3000 {
		t.Errorf("target altitude %v, want 3000", got.TargetAltitude)
	}

	// Keep pumping until a state update carries the flight and the session
	// stats have caught up with it.
	for c.SessionStats.Arrivals == 0 {
		c.GetUpdates(es, nil)
		select {
		case <-deadline:
			gotFl, ok := c.State.FindFlight(fl.Callsign)
			t.Fatalf("timed out waiting for state update; flight present %v (%+v)", ok, gotFl)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if _, ok := c.State.FindFlight(fl.Callsign); !ok {
		t.Errorf("flight %s missing from client state", fl.Callsign)
	}
}

func TestClientCurrentTime(t *testing.T) {
	c, _ := connectTestClient(t)

	t0 := c.CurrentTime()
	time.Sleep(10 * time.Millisecond)
	t1 := c.CurrentTime()
	if t1.Before(t0) {
		t.Errorf("current time went backwards: %v then %v", t0, t1)
	}
}

func TestClientDisconnect(t *testing.T) {
	c, _ := connectTestClient(t)

	c.Disconnect()
	if c.Connected() {
		t.Error("client reports connected after disconnect")
	}
	if len(c.State.Flights) != 0 {
		t.Error("flights remain in state after disconnect")
	}
}
