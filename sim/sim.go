// sim/sim.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	gomath "math"
	"os"
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/log"
	"github.com/towersim/tower/math"
	"github.com/towersim/tower/rand"
	"github.com/towersim/tower/scores"
	"github.com/towersim/tower/util"

	"github.com/brunoga/deep"
	"github.com/goforj/godump"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const initialSimRate = 1

// Sim runs one tower session: the flights in the pattern, the sim clock,
// and the separation bookkeeping. All exported methods are safe for
// concurrent use; the update loop and the RPC and HTTP layers share one
// Sim.
type Sim struct {
	State *State

	mu util.LoggingMutex

	scenario *av.Scenario
	keeper   *scores.Keeper
	lg       *log.Logger

	eventStream *EventStream
	rand        *rand.Rand

	pendingCommands []pendingCommand

	// Flights that finished recently, so a late command gets a better
	// answer than "not found".
	recentlyCompleted *expirable.LRU[av.Callsign, FlightStatus]

	lastUpdateTime time.Time
	updateTimeSlop time.Duration

	destroyed bool
}

// NewSimConfiguration collects everything needed to start a session.
type NewSimConfiguration struct {
	Scenario *av.Scenario
	Keeper   *scores.Keeper // may be nil; scores are then discarded
	Seed     int64          // 0 seeds from entropy
}

func NewSim(config NewSimConfiguration, lg *log.Logger) *Sim {
	s := &Sim{
		scenario:    config.Scenario,
		keeper:      config.Keeper,
		lg:          lg,
		eventStream: NewEventStream(lg),
		rand:        rand.Make(),
		recentlyCompleted: expirable.NewLRU[av.Callsign, FlightStatus](100, nil,
			5*time.Minute),
		lastUpdateTime: time.Now(),
	}
	if config.Seed != 0 {
		s.rand.Seed(config.Seed)
	}
	s.State = newState(initialSimRate, time.Now())

	lg.Info("started sim", slog.String("airport", config.Scenario.Airport.ICAO),
		slog.Int64("seed", config.Seed))
	return s
}

// Scenario returns the static reference data the session runs with; it
// is immutable once loaded.
func (s *Sim) Scenario() *av.Scenario {
	return s.scenario
}

// Subscribe creates a new event subscription for this simulation. The
// caller is responsible for calling Unsubscribe when done.
func (s *Sim) Subscribe() *EventsSubscription {
	return s.eventStream.Subscribe()
}

func (s *Sim) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Time("sim_time", s.State.SimTime),
		slog.Float64("sim_rate", float64(s.State.SimRate)),
		slog.Bool("paused", s.State.Paused),
		slog.Bool("failed", s.State.Failed),
		slog.Int("flights", len(s.State.Flights)),
		slog.Int("pending_commands", len(s.pendingCommands)))
}

///////////////////////////////////////////////////////////////////////////
// Simulation

// Update advances the sim by however much wallclock time has passed since
// the last call, scaled by the sim rate.
func (s *Sim) Update() {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	if !util.DebuggerIsRunning() {
		startUpdate := time.Now()
		defer func() {
			if d := time.Since(startUpdate); d > 200*time.Millisecond {
				s.lg.Warn("unexpectedly long Sim Update() call", slog.Duration("duration", d),
					slog.Any("sim", s))
			}
		}()
	}

	// Wallclock time scaled by the sim rate, then any time from the last
	// update that wasn't accounted for.
	elapsed := time.Since(s.lastUpdateTime)
	elapsed = time.Duration(s.State.SimRate * float32(elapsed))
	s.Step(elapsed)
	s.lastUpdateTime = time.Now()
}

// Step advances the simulation by the given elapsed duration: queued
// commands are applied first, then the clock runs forward a second at a
// time, banking any fractional remainder for the next call. Paused and
// failed sessions still apply commands; the clock just doesn't move.
func (s *Sim) Step(elapsed time.Duration) {
	s.drainCommands()

	if s.State.Paused || s.State.Failed {
		return
	}

	elapsed += s.updateTimeSlop

	ns := int(elapsed.Truncate(time.Second).Seconds())
	if ns > 10 {
		s.lg.Warn("unexpected hitch in update rate", slog.Duration("elapsed", elapsed),
			slog.Int("steps", ns), slog.Duration("slop", s.updateTimeSlop))
	}
	for range ns {
		s.State.SimTime = s.State.SimTime.Add(time.Second)
		s.updateState()
	}

	s.updateTimeSlop = elapsed - elapsed.Truncate(time.Second)
}

// updateState runs one one-second tick: physics and the state machine for
// each flight in callsign order, then separation, conflict prediction,
// and cleanup of completed flights.
func (s *Sim) updateState() {
	for _, cs := range util.SortedMapKeys(s.State.Flights) {
		fl := s.State.Flights[cs]
		switch fl.Status {
		case StatusAtGate, StatusLanded, StatusDeparted:
			// Parked or done; no physics.
		default:
			fl.updateNav(s.scenario, 1)
		}
		s.updateStatus(fl)
	}

	s.checkSeparation()
	if !s.State.Failed {
		s.predictConflicts()
	}
	s.removeCompletedFlights()
}

// removeCompletedFlights drops landed and departed flights once they have
// lingered long enough for clients to have seen the final state.
func (s *Sim) removeCompletedFlights() {
	for _, cs := range util.SortedMapKeys(s.State.Flights) {
		fl := s.State.Flights[cs]
		if !fl.Status.Completed() {
			continue
		}
		if s.State.SimTime.Sub(fl.CompletedAt) > completedFlightDelay {
			delete(s.State.Flights, cs)
			s.recentlyCompleted.Add(cs, fl.Status)
			s.lg.Debug("removed completed flight", slog.Any("flight", fl))
			s.eventStream.Post(Event{
				Type:     FlightRemovedEvent,
				Callsign: cs,
				Message:  fmt.Sprintf("%s removed (%s)", cs, fl.Status),
			})
		}
	}
}

///////////////////////////////////////////////////////////////////////////
// Control operations

// GetFlight returns a copy of a single flight.
func (s *Sim) GetFlight(callsign av.Callsign) (*Flight, error) {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	fl, ok := s.State.Flights[callsign]
	if !ok {
		if _, completed := s.recentlyCompleted.Get(callsign); completed {
			return nil, ErrFlightAlreadyCompleted
		}
		return nil, ErrNoFlightForCallsign
	}
	return deep.MustCopy(fl), nil
}

// SetSimRate sets the time compression, clamped to [0.5, 10].
func (s *Sim) SetSimRate(rate float32) error {
	if gomath.IsNaN(float64(rate)) || gomath.IsInf(float64(rate), 0) {
		return ErrInvalidSimRate
	}

	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	s.State.SimRate = math.Clamp(rate, 0.5, 10)
	s.lg.Infof("sim rate set to %f", s.State.SimRate)
	return nil
}

func (s *Sim) TogglePause() {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	s.State.Paused = !s.State.Paused
	s.lastUpdateTime = time.Now() // ignore time passage...

	msg := "Simulation resumed"
	if s.State.Paused {
		msg = "Simulation paused"
	}
	s.eventStream.Post(Event{Type: StatusMessageEvent, Message: msg})
}

// Restart saves the score for the session so far and resets to a clean
// state; the saved score is returned.
func (s *Sim) Restart() scores.Score {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	score := s.saveScore()

	now := time.Now()
	s.State = newState(initialSimRate, now)
	s.recentlyCompleted.Purge()
	s.lastUpdateTime = now
	s.updateTimeSlop = 0

	s.lg.Info("restarted", slog.Any("score", score))
	s.eventStream.Post(Event{Type: StatusMessageEvent, Message: "Simulation restarted"})
	return score
}

// End saves the final score and leaves the session paused; a restart
// brings it back.
func (s *Sim) End() scores.Score {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	score := s.saveScore()
	s.State.Paused = true

	s.lg.Info("ended", slog.Any("score", score))
	s.eventStream.Post(Event{Type: StatusMessageEvent, Message: "Simulation ended"})
	return score
}

// Destroy shuts the sim down for good, failing any commands still waiting
// in the queue.
func (s *Sim) Destroy() {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	s.destroyed = true
	for _, pc := range s.pendingCommands {
		pc.result <- CommandResult{Success: false, Message: "Simulation has ended"}
	}
	s.pendingCommands = nil

	s.eventStream.Destroy()
}

// saveScore hands the session counters to the score keeper and returns
// the record. Called with the lock held.
func (s *Sim) saveScore() scores.Score {
	score := scores.Score{
		Datetime:        time.Now(),
		Landed:          s.State.LandedCount,
		Departed:        s.State.DepartedCount,
		NearMisses:      len(s.State.NearMisses),
		Failed:          s.State.Failed,
		FailureReason:   s.State.FailureReason,
		DurationSeconds: gomath.Round(time.Since(s.State.StartTime).Seconds()*10) / 10,
	}
	if s.keeper != nil {
		if err := s.keeper.Save(score); err != nil {
			s.lg.Errorf("unable to save score: %v", err)
		}
	}
	return score
}

///////////////////////////////////////////////////////////////////////////
// State snapshots

// GetStateUpdate returns a snapshot of the session, plus any events
// posted since the subscription last asked.
func (s *Sim) GetStateUpdate(sub *EventsSubscription) StateUpdate {
	s.mu.Lock(s.lg)
	defer s.mu.Unlock(s.lg)

	update := StateUpdate{
		Flights:         s.State.Flights,
		SimTime:         s.State.SimTime,
		StartTime:       s.State.StartTime,
		SimRate:         s.State.SimRate,
		Paused:          s.State.Paused,
		Failed:          s.State.Failed,
		FailureReason:   s.State.FailureReason,
		CollisionPair:   s.State.CollisionPair,
		LandedCount:     s.State.LandedCount,
		DepartedCount:   s.State.DepartedCount,
		NearMissCount:   len(s.State.NearMisses),
		NearMisses:      s.State.NearMisses,
		Conflicts:       s.conflicts(),
		LandedHistory:   s.State.LandedHistory.Slice(),
		DepartedHistory: s.State.DepartedHistory.Slice(),
	}
	if sub != nil {
		update.Events = sub.Get()
	}

	if util.SizeOf(update, os.Stderr, false, 1024*1024) > 256*1024*1024 {
		fn := fmt.Sprintf("update_dump%d.txt", time.Now().Unix())
		f, err := os.Create(fn)
		if err != nil {
			s.lg.Errorf("%s: unable to create: %v", fn, err)
		} else {
			util.SizeOf(update, f, true, 1024)
			godump.Fdump(f, update)
		}
		panic("too big")
	}

	// While it seems that this could be skipped, it's actually necessary
	// to avoid races: although another copy is made as the update is
	// marshaled for the RPC reply, the sim may step between this function
	// returning and that happening.
	return deep.MustCopy(update)
}
