// client/control.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package client

import (
	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/scores"
	"github.com/towersim/tower/server"
	"github.com/towersim/tower/sim"
)

// PostCommand issues a control instruction to a flight. The result,
// including the reason for any denial, lands in result when the callback
// runs.
func (c *ControlClient) PostCommand(callsign av.Callsign, cmd sim.Command, result *sim.CommandResult, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.PostCommandRPC, &server.PostCommandArgs{
		ControllerToken: c.controllerToken,
		Callsign:        callsign,
		Command:         cmd,
	}, result, nil), callback))
}

func (c *ControlClient) SpawnArrival(fl *sim.Flight, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.SpawnArrivalRPC, c.controllerToken, fl, nil), callback))
}

func (c *ControlClient) SpawnDeparture(fl *sim.Flight, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.SpawnDepartureRPC, c.controllerToken, fl, nil), callback))
}

func (c *ControlClient) SetSimRate(rate float32, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.SetSimRateRPC, &server.SetSimRateArgs{
		ControllerToken: c.controllerToken,
		Rate:            rate,
	}, nil, nil), callback))
}

func (c *ControlClient) TogglePause(callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.TogglePauseRPC, c.controllerToken, nil, nil), callback))
}

// Restart ends the current session and starts a clean one; the score for
// the finished session lands in score.
func (c *ControlClient) Restart(score *scores.Score, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.RestartRPC, c.controllerToken, score, nil), callback))
}

func (c *ControlClient) End(score *scores.Score, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.EndRPC, c.controllerToken, score, nil), callback))
}

func (c *ControlClient) GetScores(result *[]scores.Score, callback func(error)) {
	c.addCall(makeRPCCall(c.client.Go(server.GetScoresRPC, c.controllerToken, result, nil), callback))
}

// GetFlight fetches a single flight synchronously.
func (c *ControlClient) GetFlight(callsign av.Callsign) (*sim.Flight, error) {
	var fl sim.Flight
	if err := c.client.callWithTimeout(server.GetFlightRPC, &server.GetFlightArgs{
		ControllerToken: c.controllerToken,
		Callsign:        callsign,
	}, &fl); err != nil {
		return nil, server.TryDecodeError(err)
	}
	return &fl, nil
}
