// server/gateway.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/log"
	"github.com/towersim/tower/scores"
	"github.com/towersim/tower/sim"
	"github.com/towersim/tower/util"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// The gateway is the REST and websocket face of the server, for agents
// and UIs that don't speak the msgpack RPC protocol. Mutating endpoints
// go through the same command queue as RPC clients, so ordering
// guarantees hold across both.

func (sm *SimManager) launchGateway(port int) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		sm.lg.Warnf("unable to start gateway: %v", err)
		return
	}

	fmt.Printf("Launching gateway on port %d\n", port)
	go func() {
		if err := http.Serve(listener, sm.gatewayHandler()); err != nil {
			sm.lg.Errorf("gateway server error: %v", err)
		}
	}()
}

func (sm *SimManager) gatewayHandler() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/airport", sm.handleAirport)
		r.Get("/waypoints", sm.handleWaypoints)
		r.Get("/landing-rules", sm.handleLandingRules)

		r.Get("/flights", sm.handleFlights)
		r.Get("/flights/landing", sm.handleLandingFlights)
		r.Get("/flights/takeoff", sm.handleTakeoffFlights)
		r.Get("/flights/history", sm.handleFlightHistory)
		r.Get("/flights/{callsign}", sm.handleFlight)
		r.Post("/flights/{callsign}/command", sm.handleCommand)

		r.Get("/simulation/status", sm.handleStatus)
		r.Get("/simulation/stats", sm.handleStats)
		r.Get("/simulation/near-misses", sm.handleNearMisses)
		r.Post("/simulation/spawn/arrival", sm.handleSpawnArrival)
		r.Post("/simulation/spawn/departure", sm.handleSpawnDeparture)
		r.Post("/simulation/speed", sm.handleSpeed)
		r.Post("/simulation/restart", sm.handleRestart)
		r.Post("/simulation/end", sm.handleEnd)

		r.Get("/scores", sm.handleScores)
	})

	r.Get("/ws/updates", sm.handleUpdatesWS)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// orEmpty keeps empty collections marshaling as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// flightList returns flights in callsign order, restricted to the given
// statuses; with none given, all flights are returned.
func flightList(flights map[av.Callsign]*sim.Flight, statuses ...sim.FlightStatus) []*sim.Flight {
	fls := make([]*sim.Flight, 0, len(flights))
	for _, cs := range util.SortedMapKeys(flights) {
		if fl := flights[cs]; len(statuses) == 0 || slices.Contains(statuses, fl.Status) {
			fls = append(fls, fl)
		}
	}
	return fls
}

///////////////////////////////////////////////////////////////////////////
// Static reference data

// The airport is served flat with the runway fields hoisted, which is
// the shape agents already parse.
type airportResponse struct {
	ICAO          string  `json:"icao"`
	Name          string  `json:"name"`
	Elevation     float32 `json:"elevation"`
	Runway        string  `json:"runway"`
	RunwayHeading float32 `json:"runway_heading"`
	RunwayLength  float32 `json:"runway_length"`
}

func (sm *SimManager) handleAirport(w http.ResponseWriter, r *http.Request) {
	ap := sm.sim.Scenario().Airport
	writeJSON(w, http.StatusOK, airportResponse{
		ICAO:          ap.ICAO,
		Name:          ap.Name,
		Elevation:     ap.Elevation,
		Runway:        ap.Runway.Id,
		RunwayHeading: ap.Runway.Heading,
		RunwayLength:  ap.Runway.Length,
	})
}

func (sm *SimManager) handleWaypoints(w http.ResponseWriter, r *http.Request) {
	// The table marshals as an object in declaration order.
	writeJSON(w, http.StatusOK, sm.sim.Scenario().Waypoints)
}

func (sm *SimManager) handleLandingRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sm.sim.Scenario().Landing)
}

///////////////////////////////////////////////////////////////////////////
// Flights

func (sm *SimManager) handleFlights(w http.ResponseWriter, r *http.Request) {
	u := sm.sim.GetStateUpdate(nil)
	writeJSON(w, http.StatusOK, flightList(u.Flights))
}

func (sm *SimManager) handleLandingFlights(w http.ResponseWriter, r *http.Request) {
	u := sm.sim.GetStateUpdate(nil)
	writeJSON(w, http.StatusOK,
		flightList(u.Flights, sim.StatusApproaching, sim.StatusOnFinal, sim.StatusLanding))
}

func (sm *SimManager) handleTakeoffFlights(w http.ResponseWriter, r *http.Request) {
	u := sm.sim.GetStateUpdate(nil)
	writeJSON(w, http.StatusOK,
		flightList(u.Flights, sim.StatusReadyForTakeoff, sim.StatusTakingOff))
}

func (sm *SimManager) handleFlight(w http.ResponseWriter, r *http.Request) {
	cs := av.Callsign(chi.URLParam(r, "callsign"))
	fl, err := sm.sim.GetFlight(cs)
	if err != nil {
		msg := fmt.Sprintf("Flight %s not found", cs)
		if errors.Is(err, sim.ErrFlightAlreadyCompleted) {
			msg = fmt.Sprintf("Flight %s already completed", cs)
		}
		writeJSON(w, http.StatusNotFound, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, fl)
}

type historyResponse struct {
	Landed   []sim.CompletedFlight `json:"landed"`
	Departed []sim.CompletedFlight `json:"departed"`
}

func (sm *SimManager) handleFlightHistory(w http.ResponseWriter, r *http.Request) {
	u := sm.sim.GetStateUpdate(nil)
	writeJSON(w, http.StatusOK, historyResponse{
		Landed:   orEmpty(u.LandedHistory),
		Departed: orEmpty(u.DepartedHistory),
	})
}

///////////////////////////////////////////////////////////////////////////
// Commands

type commandResponse struct {
	Status   string            `json:"status"`
	Callsign av.Callsign       `json:"callsign"`
	Command  sim.Command       `json:"command"`
	Result   sim.CommandResult `json:"result"`
}

func (sm *SimManager) handleCommand(w http.ResponseWriter, r *http.Request) {
	cs := av.Callsign(chi.URLParam(r, "callsign"))

	var cmd sim.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed command: " + err.Error()})
		return
	}

	result := sm.sim.PostCommand(cs, cmd)

	code := http.StatusOK
	if !result.Success && strings.Contains(result.Message, "not found") {
		code = http.StatusNotFound
	}
	writeJSON(w, code, commandResponse{
		Status:   util.Select(result.Success, "ok", "error"),
		Callsign: cs,
		Command:  cmd,
		Result:   result,
	})
}

///////////////////////////////////////////////////////////////////////////
// Simulation control

type spawnResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Flight  *sim.Flight `json:"flight,omitempty"`
}

func (sm *SimManager) handleSpawnArrival(w http.ResponseWriter, r *http.Request) {
	fl, err := sm.sim.SpawnArrival()
	if err != nil {
		writeJSON(w, http.StatusOK, spawnResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, spawnResponse{Status: "ok", Flight: fl})
}

func (sm *SimManager) handleSpawnDeparture(w http.ResponseWriter, r *http.Request) {
	fl, err := sm.sim.SpawnDeparture()
	if err != nil {
		writeJSON(w, http.StatusOK, spawnResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, spawnResponse{Status: "ok", Flight: fl})
}

type speedResponse struct {
	Status          string  `json:"status"`
	SpeedMultiplier float32 `json:"speed_multiplier"`
}

func (sm *SimManager) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Multiplier float32 `json:"multiplier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
		return
	}

	if err := sm.sim.SetSimRate(req.Multiplier); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// Report the rate actually in effect; out-of-range requests clamp.
	u := sm.sim.GetStateUpdate(nil)
	writeJSON(w, http.StatusOK, speedResponse{Status: "ok", SpeedMultiplier: u.SimRate})
}

type scoreResponse struct {
	Status     string       `json:"status"`
	SavedScore scores.Score `json:"saved_score"`
}

func (sm *SimManager) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scoreResponse{Status: "ok", SavedScore: sm.sim.Restart()})
}

func (sm *SimManager) handleEnd(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scoreResponse{Status: "ok", SavedScore: sm.sim.End()})
}

///////////////////////////////////////////////////////////////////////////
// Status

// simStats mirrors the session counters everywhere they're reported:
// the stats endpoint, the status endpoint, and websocket updates.
type simStats struct {
	Landed          int             `json:"landed"`
	Departed        int             `json:"departed"`
	NearMisses      int             `json:"near_misses"`
	Failed          bool            `json:"failed"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CollisionPair   *sim.FlightPair `json:"collision_pair"`
	SpeedMultiplier float32         `json:"speed_multiplier"`
	SessionDuration float64         `json:"session_duration"`
}

func makeSimStats(u sim.StateUpdate) simStats {
	return simStats{
		Landed:          u.LandedCount,
		Departed:        u.DepartedCount,
		NearMisses:      u.NearMissCount,
		Failed:          u.Failed,
		FailureReason:   u.FailureReason,
		CollisionPair:   u.CollisionPair,
		SpeedMultiplier: u.SimRate,
		SessionDuration: time.Since(u.StartTime).Seconds(),
	}
}

func (sm *SimManager) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, makeSimStats(sm.sim.GetStateUpdate(nil)))
}

type statusResponse struct {
	Running         bool            `json:"running"`
	Paused          bool            `json:"paused"`
	Failed          bool            `json:"failed"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CollisionPair   *sim.FlightPair `json:"collision_pair"`
	TotalFlights    int             `json:"total_flights"`
	Arrivals        int             `json:"arrivals"`
	Departures      int             `json:"departures"`
	Landed          int             `json:"landed"`
	Departed        int             `json:"departed"`
	NearMisses      int             `json:"near_misses"`
	SpeedMultiplier float32         `json:"speed_multiplier"`
	SessionDuration float64         `json:"session_duration"`
}

func (sm *SimManager) handleStatus(w http.ResponseWriter, r *http.Request) {
	u := sm.sim.GetStateUpdate(nil)

	var arrivals, departures int
	for _, fl := range u.Flights {
		switch fl.Type {
		case av.FlightTypeArrival:
			arrivals++
		case av.FlightTypeDeparture:
			departures++
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Running:         !u.Paused && !u.Failed,
		Paused:          u.Paused,
		Failed:          u.Failed,
		FailureReason:   u.FailureReason,
		CollisionPair:   u.CollisionPair,
		TotalFlights:    len(u.Flights),
		Arrivals:        arrivals,
		Departures:      departures,
		Landed:          u.LandedCount,
		Departed:        u.DepartedCount,
		NearMisses:      u.NearMissCount,
		SpeedMultiplier: u.SimRate,
		SessionDuration: time.Since(u.StartTime).Seconds(),
	})
}

func (sm *SimManager) handleNearMisses(w http.ResponseWriter, r *http.Request) {
	u := sm.sim.GetStateUpdate(nil)
	writeJSON(w, http.StatusOK, orEmpty(u.NearMisses))
}

func (sm *SimManager) handleScores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(sm.GetScores()))
}

///////////////////////////////////////////////////////////////////////////
// Websocket updates

// Timeout for a single websocket write; a consumer that can't keep up
// is dropped rather than stalling the update loop.
const wsWriteWait = 5 * time.Second

// updatesHub fans each tick's state out to websocket subscribers. It
// holds an event subscription only while it has connections, so an idle
// gateway doesn't pin the event stream.
type updatesHub struct {
	sim *sim.Sim
	lg  *log.Logger

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	events *sim.EventsSubscription
}

func newUpdatesHub(s *sim.Sim, lg *log.Logger) *updatesHub {
	return &updatesHub{
		sim:   s,
		lg:    lg,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *updatesHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.events == nil {
		h.events = h.sim.Subscribe()
	}
	h.conns[conn] = struct{}{}
}

func (h *updatesHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(conn)
}

func (h *updatesHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// assumes h.mu is held
func (h *updatesHub) drop(conn *websocket.Conn) {
	if _, ok := h.conns[conn]; !ok {
		return
	}
	conn.Close()
	delete(h.conns, conn)

	if len(h.conns) == 0 {
		h.events.Unsubscribe()
		h.events = nil
	}
}

// wsUpdate is the per-tick message sent to subscribers.
type wsUpdate struct {
	Type       string                `json:"type"`
	SimTime    time.Time             `json:"sim_time"`
	Flights    []*sim.Flight         `json:"flights"`
	Stats      simStats              `json:"stats"`
	NearMisses []sim.NearMiss        `json:"near_misses"`
	Conflicts  []sim.Conflict        `json:"conflicts"`
	History    historyResponse       `json:"history"`
	Events     []sim.Event           `json:"events"`
}

// broadcast sends the current state to every subscriber and reports how
// many bytes went out.
func (h *updatesHub) broadcast() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.conns) == 0 {
		return 0
	}

	u := h.sim.GetStateUpdate(h.events)
	data, err := json.Marshal(wsUpdate{
		Type:       "update",
		SimTime:    u.SimTime,
		Flights:    flightList(u.Flights),
		Stats:      makeSimStats(u),
		NearMisses: orEmpty(u.NearMisses),
		Conflicts:  orEmpty(u.Conflicts),
		History: historyResponse{
			Landed:   orEmpty(u.LandedHistory),
			Departed: orEmpty(u.DepartedHistory),
		},
		Events: orEmpty(u.Events),
	})
	if err != nil {
		h.lg.Errorf("unable to marshal update: %v", err)
		return 0
	}

	var tx int64
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.lg.Infof("%s: dropping websocket subscriber: %v", conn.RemoteAddr(), err)
			h.drop(conn)
		} else {
			tx += int64(len(data))
		}
	}
	return tx
}

func (sm *SimManager) handleUpdatesWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{EnableCompression: false}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sm.lg.Errorf("unable to upgrade websocket: %v", err)
		return
	}

	sm.lg.Infof("%s: websocket subscriber connected", conn.RemoteAddr())
	sm.hub.add(conn)

	// Subscribers don't send anything meaningful, but reading keeps
	// control frames serviced and notices disconnects.
	go func() {
		defer sm.lg.CatchAndReportCrash()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sm.hub.remove(conn)
				sm.lg.Infof("%s: websocket subscriber disconnected", conn.RemoteAddr())
				return
			}
		}
	}()
}
