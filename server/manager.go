// server/manager.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	crand "crypto/rand"
	"encoding/base64"
	"sync/atomic"
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/log"
	"github.com/towersim/tower/scores"
	"github.com/towersim/tower/sim"
	"github.com/towersim/tower/util"
)

// How often the background loop steps the sim and pushes updates to
// websocket subscribers.
const simUpdateInterval = 100 * time.Millisecond

// Controllers that haven't requested a state update in this long are
// assumed gone and are signed off so that their event subscriptions
// don't pin the event stream.
const controllerIdleLimit = 5 * time.Minute

// SimManager owns the single running Sim, the set of signed-on
// controllers, and the websocket update hub. Its RPC-shaped methods are
// registered under "SimManager"; the per-sim operations go through the
// dispatcher under "Sim".
type SimManager struct {
	sim    *sim.Sim
	keeper *scores.Keeper

	controllersByToken map[string]*controllerContext

	hub *updatesHub
	lg  *log.Logger

	mu        util.LoggingMutex
	startTime time.Time
	httpPort  int
	wsTXBytes atomic.Int64
	done      chan struct{}
	stopped   bool
}

// controllerContext ties a signed-on controller to the sim it controls
// and to its private view of the event stream.
type controllerContext struct {
	sim        *sim.Sim
	events     *sim.EventsSubscription
	signOnTime time.Time
	lastUpdate time.Time
}

func NewSimManager(scenario *av.Scenario, keeper *scores.Keeper, seed int64, lg *log.Logger) *SimManager {
	sm := &SimManager{
		sim: sim.NewSim(sim.NewSimConfiguration{
			Scenario: scenario,
			Keeper:   keeper,
			Seed:     seed,
		}, lg),
		keeper:             keeper,
		controllersByToken: make(map[string]*controllerContext),
		lg:                 lg,
		startTime:          time.Now(),
		done:               make(chan struct{}),
	}
	sm.hub = newUpdatesHub(sm.sim, lg)

	go sm.runUpdateLoop()

	return sm
}

func (sm *SimManager) runUpdateLoop() {
	defer sm.lg.CatchAndReportCrash()

	for {
		select {
		case <-sm.done:
			return
		default:
		}

		if !util.DebuggerIsRunning() {
			sm.cullIdleControllers()
		}

		sm.sim.Update()
		sm.wsTXBytes.Add(sm.hub.broadcast())

		time.Sleep(simUpdateInterval)
	}
}

// Stop shuts down the update loop and the sim; pending commands are
// flushed with a failure result. Listeners are left to die with the
// process.
func (sm *SimManager) Stop() {
	sm.mu.Lock(sm.lg)
	if !sm.stopped {
		sm.stopped = true
		close(sm.done)
	}
	sm.mu.Unlock(sm.lg)

	sm.sim.Destroy()
}

func (sm *SimManager) cullIdleControllers() {
	sm.mu.Lock(sm.lg)
	defer sm.mu.Unlock(sm.lg)

	for token, ctrl := range sm.controllersByToken {
		if idle := time.Since(ctrl.lastUpdate); idle > controllerIdleLimit {
			sm.lg.Infof("culling controller: no state request in %s", idle.Round(time.Second))
			ctrl.events.Unsubscribe()
			delete(sm.controllersByToken, token)
		}
	}
}

///////////////////////////////////////////////////////////////////////////
// Sign on / sign off

// SignOnResult carries everything a client needs to start controlling:
// its session token, the static scenario data, and an initial snapshot.
type SignOnResult struct {
	ControllerToken string
	Airport         av.Airport
	Waypoints       []av.Waypoint
	Landing         av.LandingRules
	Separation      av.SeparationRules
	AircraftTypes   []string
	Update          sim.StateUpdate
}

const SignOnRPC = "SimManager.SignOn"

func (sm *SimManager) SignOn(version int, result *SignOnResult) error {
	defer sm.lg.CatchAndReportCrash()

	if version != TowerRPCVersion {
		return ErrRPCVersionMismatch
	}

	token := sm.makeControllerToken()
	if token == "" {
		return ErrInvalidControllerToken
	}

	now := time.Now()
	ctrl := &controllerContext{
		sim:        sm.sim,
		events:     sm.sim.Subscribe(),
		signOnTime: now,
		lastUpdate: now,
	}

	sm.mu.Lock(sm.lg)
	sm.controllersByToken[token] = ctrl
	n := len(sm.controllersByToken)
	sm.mu.Unlock(sm.lg)

	sc := sm.sim.Scenario()
	*result = SignOnResult{
		ControllerToken: token,
		Airport:         sc.Airport,
		Waypoints:       util.DuplicateSlice(sc.Waypoints.Waypoints()),
		Landing:         sc.Landing,
		Separation:      sc.Separation,
		AircraftTypes:   sc.AircraftTypes(),
		Update:          sm.sim.GetStateUpdate(ctrl.events),
	}

	sm.lg.Infof("controller signed on; %d active", n)
	return nil
}

func (sm *SimManager) SignOff(token string) error {
	sm.mu.Lock(sm.lg)
	defer sm.mu.Unlock(sm.lg)

	ctrl, ok := sm.controllersByToken[token]
	if !ok {
		return ErrNoSimForControllerToken
	}

	ctrl.events.Unsubscribe()
	delete(sm.controllersByToken, token)
	sm.lg.Infof("controller signed off; %d active", len(sm.controllersByToken))
	return nil
}

func (sm *SimManager) makeControllerToken() string {
	var buf [16]byte
	if _, err := crand.Read(buf[:]); err != nil {
		sm.lg.Errorf("%v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf[:])
}

func (sm *SimManager) LookupController(token string) *controllerContext {
	sm.mu.Lock(sm.lg)
	defer sm.mu.Unlock(sm.lg)

	return sm.controllersByToken[token]
}

///////////////////////////////////////////////////////////////////////////
// State access

func (sm *SimManager) GetStateUpdate(token string) (*sim.StateUpdate, error) {
	sm.mu.Lock(sm.lg)
	ctrl, ok := sm.controllersByToken[token]
	if ok {
		ctrl.lastUpdate = time.Now()
	}
	sm.mu.Unlock(sm.lg)

	if !ok {
		return nil, ErrNoSimForControllerToken
	}

	u := sm.sim.GetStateUpdate(ctrl.events)
	return &u, nil
}

func (sm *SimManager) GetScores() []scores.Score {
	if sm.keeper == nil {
		return nil
	}
	return sm.keeper.All()
}
