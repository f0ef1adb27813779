// server/errors.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"errors"

	"github.com/towersim/tower/sim"
)

var (
	ErrInvalidControllerToken  = errors.New("Invalid controller token")
	ErrNoSimForControllerToken = errors.New("No sim running for controller token")
	ErrRPCTimeout              = errors.New("RPC call timed out")
	ErrRPCVersionMismatch      = errors.New("Client and server RPC versions don't match")
	ErrServerDisconnected      = errors.New("Server disconnected")
)

// net/rpc flattens errors to strings on the wire; this maps the strings
// back to the sentinels so clients can use errors.Is.
var errorStringToError = map[string]error{
	sim.ErrFlightAlreadyCompleted.Error(): sim.ErrFlightAlreadyCompleted,
	sim.ErrInvalidSimRate.Error():         sim.ErrInvalidSimRate,
	sim.ErrNoCallsignAvailable.Error():    sim.ErrNoCallsignAvailable,
	sim.ErrNoFlightForCallsign.Error():    sim.ErrNoFlightForCallsign,
	sim.ErrSimulationFailed.Error():       sim.ErrSimulationFailed,

	ErrInvalidControllerToken.Error():  ErrInvalidControllerToken,
	ErrNoSimForControllerToken.Error(): ErrNoSimForControllerToken,
	ErrRPCTimeout.Error():              ErrRPCTimeout,
	ErrRPCVersionMismatch.Error():      ErrRPCVersionMismatch,
	ErrServerDisconnected.Error():      ErrServerDisconnected,
}

func TryDecodeError(e error) error {
	if e == nil {
		return e
	}
	if err, ok := errorStringToError[e.Error()]; ok {
		return err
	}
	return e
}

func TryDecodeErrorString(s string) error {
	if err, ok := errorStringToError[s]; ok {
		return err
	}
	return nil
}
