// sim/conflict.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/math"
	"github.com/towersim/tower/util"
)

// FlightPair is an unordered pair of callsigns; MakeFlightPair normalizes
// the order so pairs work as map keys.
type FlightPair [2]av.Callsign

func MakeFlightPair(a, b av.Callsign) FlightPair {
	if b < a {
		a, b = b, a
	}
	return FlightPair{a, b}
}

func (p FlightPair) String() string {
	return string(p[0]) + "/" + string(p[1])
}

func (p FlightPair) compare(q FlightPair) int {
	if c := cmp.Compare(p[0], q[0]); c != 0 {
		return c
	}
	return cmp.Compare(p[1], q[1])
}

// NearMiss records a loss of separation between two flights: where they
// were when the pair first closed inside the minimum, and when.
type NearMiss struct {
	Callsigns FlightPair    `json:"callsigns"`
	Position  math.Point2NM `json:"position"`
	Time      time.Time     `json:"time"`
}

// Conflict is a predicted future loss of separation from dead reckoning
// two flights' current velocities. TimeToClosest is minutes from now;
// the separations are at the closest approach.
type Conflict struct {
	Callsigns     FlightPair `json:"callsigns"`
	TimeToClosest float32    `json:"time_to_closest"`       // minutes
	Horizontal    float32    `json:"horizontal_separation"` // nm
	Vertical      float32    `json:"vertical_separation"`   // ft
}

// airborneFlights returns the flights subject to separation, in callsign
// order so pairwise checks are deterministic.
func (s *Sim) airborneFlights() []*Flight {
	var fls []*Flight
	for _, cs := range util.SortedMapKeys(s.State.Flights) {
		if fl := s.State.Flights[cs]; fl.Status.Airborne() {
			fls = append(fls, fl)
		}
	}
	return fls
}

// checkSeparation looks for pairwise losses of separation among airborne
// flights. A near miss counts once when a pair first closes inside the
// minimum and not again until they separate and re-close; horizontal
// distance alone decides it, whatever the altitudes. A collision fails
// the session outright.
func (s *Sim) checkSeparation() {
	sep := s.scenario.Separation
	airborne := s.airborneFlights()

	active := make(map[FlightPair]util.TimeInterval)
	for i, fa := range airborne {
		for _, fb := range airborne[i+1:] {
			hsep := math.Distance2NM(fa.Position, fb.Position)
			vsep := math.Abs(fa.Altitude - fb.Altitude)

			if hsep < sep.CollisionDistance && vsep < sep.CollisionAltitude {
				s.recordCollision(fa, fb)
				return
			}

			if hsep < sep.NearMissDistance {
				pair := MakeFlightPair(fa.Callsign, fb.Callsign)
				if prev, ok := s.State.activeNearMisses[pair]; ok {
					active[pair] = util.TimeInterval{prev.Start(), s.State.SimTime}
					continue
				}
				active[pair] = util.TimeInterval{s.State.SimTime, s.State.SimTime}

				mid := math.Mid2NM(fa.Position, fb.Position)
				s.State.NearMisses = append(s.State.NearMisses,
					NearMiss{Callsigns: pair, Position: mid, Time: s.State.SimTime})

				s.lg.Warn("near miss", slog.String("pair", pair.String()),
					slog.String("position", mid.String()),
					slog.Float64("horizontal_nm", float64(hsep)),
					slog.Float64("vertical_ft", float64(vsep)))
				s.eventStream.Post(Event{
					Type:      NearMissEvent,
					Callsigns: pair,
					Position:  mid,
					Message:   fmt.Sprintf("Near miss: %s and %s within %.1fnm", pair[0], pair[1], hsep),
				})
			}
		}
	}

	for pair, span := range s.State.activeNearMisses {
		if _, still := active[pair]; !still {
			s.lg.Info("near miss resolved", slog.String("pair", pair.String()),
				slog.Duration("duration", span.Duration()))
		}
	}
	s.State.activeNearMisses = active
}

func (s *Sim) recordCollision(fa, fb *Flight) {
	pair := MakeFlightPair(fa.Callsign, fb.Callsign)
	s.State.Failed = true
	s.State.FailureReason = fmt.Sprintf("COLLISION: %s and %s", pair[0], pair[1])
	s.State.CollisionPair = &pair

	mid := math.Mid2NM(fa.Position, fb.Position)
	s.lg.Error("collision", slog.String("pair", pair.String()),
		slog.String("position", mid.String()))
	s.eventStream.Post(Event{
		Type:      CollisionEvent,
		Callsigns: pair,
		Position:  mid,
		Message:   s.State.FailureReason,
	})

	s.saveScore()
}

// predictConflicts dead-reckons every airborne pair over the prediction
// horizon and flags pairs whose closest approach violates the prediction
// minima. An alert is raised once when a pair first shows up; the pair
// stays flagged until the prediction clears.
func (s *Sim) predictConflicts() {
	airborne := s.airborneFlights()

	active := make(map[FlightPair]Conflict)
	for i, fa := range airborne {
		for _, fb := range airborne[i+1:] {
			c, violated := predictClosestApproach(fa, fb, s.scenario)
			if !violated {
				continue
			}
			active[c.Callsigns] = c
			if _, already := s.State.activeConflicts[c.Callsigns]; already {
				continue
			}

			s.lg.Warn("conflict alert", slog.String("pair", c.Callsigns.String()),
				slog.Float64("time_to_closest_min", float64(c.TimeToClosest)),
				slog.Float64("horizontal_nm", float64(c.Horizontal)),
				slog.Float64("vertical_ft", float64(c.Vertical)))
			s.eventStream.Post(Event{
				Type:      ConflictAlertEvent,
				Callsigns: c.Callsigns,
				Message: fmt.Sprintf("Conflict alert: %s and %s within %.1fnm/%.0fft in %.1f min",
					c.Callsigns[0], c.Callsigns[1], c.Horizontal, c.Vertical, c.TimeToClosest),
			})
		}
	}
	s.State.activeConflicts = active
}

// predictClosestApproach steps both flights forward along their current
// velocities and reports their closest approach; violated is set if any
// step inside the horizon puts them under both prediction minima at once.
func predictClosestApproach(fa, fb *Flight, sc *av.Scenario) (c Conflict, violated bool) {
	sep := sc.Separation
	c.Callsigns = MakeFlightPair(fa.Callsign, fb.Callsign)

	first := true
	for t := sep.PredictionStep; t <= sep.PredictionHorizon; t += sep.PredictionStep {
		pa, aa := extrapolate(fa, sc, t)
		pb, ab := extrapolate(fb, sc, t)

		hsep := math.Distance2NM(pa, pb)
		vsep := math.Abs(aa - ab)

		if first || hsep < c.Horizontal {
			c.TimeToClosest = t
			c.Horizontal = hsep
			c.Vertical = vsep
			first = false
		}
		if hsep < sep.PredictionDistance && vsep < sep.PredictionAltitude {
			violated = true
		}
	}
	return
}

// extrapolate projects a flight t minutes ahead: straight-line along the
// current heading at the current speed, climbing or descending toward the
// target altitude at the performance-limited rate.
func extrapolate(fl *Flight, sc *av.Scenario, t float32) (math.Point2NM, float32) {
	p := math.Offset2NM(fl.Position, fl.Heading, fl.Speed/60*t)

	alt := fl.Altitude
	if perf, ok := sc.Performance(fl.AircraftType); ok {
		if alt < fl.TargetAltitude {
			alt = math.Min(alt+perf.Rate.Climb*t, fl.TargetAltitude)
		} else if alt > fl.TargetAltitude {
			alt = math.Max(alt-perf.Rate.Descent*t, fl.TargetAltitude)
		}
	}
	return p, alt
}

// conflicts materializes the active predicted conflicts, sorted by pair.
func (s *Sim) conflicts() []Conflict {
	pairs := slices.Collect(maps.Keys(s.State.activeConflicts))
	slices.SortFunc(pairs, FlightPair.compare)
	return util.MapSlice(pairs, func(p FlightPair) Conflict { return s.State.activeConflicts[p] })
}
