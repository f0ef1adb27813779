// sim/errors.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrFlightAlreadyCompleted = errors.New("Flight already completed")
	ErrInvalidSimRate         = errors.New("Invalid sim rate")
	ErrNoCallsignAvailable    = errors.New("No callsign available for new flight")
	ErrNoFlightForCallsign    = errors.New("No flight with that callsign")
	ErrSimulationFailed       = errors.New("Simulation has failed - restart required")
)
