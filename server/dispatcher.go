// server/dispatcher.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/scores"
	"github.com/towersim/tower/sim"
)

type dispatcher struct {
	sm *SimManager
}

const GetStateUpdateRPC = "Sim.GetStateUpdate"

func (sd *dispatcher) GetStateUpdate(token string, update *sim.StateUpdate) error {
	// Most of the methods in this file are called from the RPC dispatcher,
	// which spawns up goroutines as needed to handle requests, so if we
	// want to catch and report panics, all of the methods need to start
	// like this...
	defer sd.sm.lg.CatchAndReportCrash()

	u, err := sd.sm.GetStateUpdate(token)
	if err != nil {
		return err
	}
	*update = *u
	return nil
}

const SignOffRPC = "Sim.SignOff"

func (sd *dispatcher) SignOff(token string, _ *struct{}) error {
	defer sd.sm.lg.CatchAndReportCrash()

	return sd.sm.SignOff(token)
}

type PostCommandArgs struct {
	ControllerToken string
	Callsign        av.Callsign
	Command         sim.Command
}

const PostCommandRPC = "Sim.PostCommand"

func (sd *dispatcher) PostCommand(args *PostCommandArgs, result *sim.CommandResult) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(args.ControllerToken)
	if c == nil {
		return ErrNoSimForControllerToken
	}
	*result = c.sim.PostCommand(args.Callsign, args.Command)
	return nil
}

type GetFlightArgs struct {
	ControllerToken string
	Callsign        av.Callsign
}

const GetFlightRPC = "Sim.GetFlight"

func (sd *dispatcher) GetFlight(args *GetFlightArgs, fl *sim.Flight) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(args.ControllerToken)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	f, err := c.sim.GetFlight(args.Callsign)
	if err != nil {
		return err
	}
	*fl = *f
	return nil
}

const SpawnArrivalRPC = "Sim.SpawnArrival"

func (sd *dispatcher) SpawnArrival(token string, fl *sim.Flight) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(token)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	f, err := c.sim.SpawnArrival()
	if err != nil {
		return err
	}
	*fl = *f
	return nil
}

const SpawnDepartureRPC = "Sim.SpawnDeparture"

func (sd *dispatcher) SpawnDeparture(token string, fl *sim.Flight) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(token)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	f, err := c.sim.SpawnDeparture()
	if err != nil {
		return err
	}
	*fl = *f
	return nil
}

type SetSimRateArgs struct {
	ControllerToken string
	Rate            float32
}

const SetSimRateRPC = "Sim.SetSimRate"

func (sd *dispatcher) SetSimRate(args *SetSimRateArgs, _ *struct{}) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(args.ControllerToken)
	if c == nil {
		return ErrNoSimForControllerToken
	}
	return c.sim.SetSimRate(args.Rate)
}

const TogglePauseRPC = "Sim.TogglePause"

func (sd *dispatcher) TogglePause(token string, _ *struct{}) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(token)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	c.sim.TogglePause()
	return nil
}

const RestartRPC = "Sim.Restart"

func (sd *dispatcher) Restart(token string, score *scores.Score) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(token)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	*score = c.sim.Restart()
	return nil
}

const EndRPC = "Sim.End"

func (sd *dispatcher) End(token string, score *scores.Score) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(token)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	*score = c.sim.End()
	return nil
}

const GetScoresRPC = "Sim.GetScores"

func (sd *dispatcher) GetScores(token string, result *[]scores.Score) error {
	defer sd.sm.lg.CatchAndReportCrash()

	c := sd.sm.LookupController(token)
	if c == nil {
		return ErrNoSimForControllerToken
	}

	*result = sd.sm.GetScores()
	return nil
}
