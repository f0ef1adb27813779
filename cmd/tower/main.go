// cmd/tower/main.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// This file contains the implementation of the main() function, which
// parses the command line and then either runs the server or one of the
// scenario utility modes.

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goforj/godump"
	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/client"
	"github.com/towersim/tower/log"
	"github.com/towersim/tower/server"
	"github.com/towersim/tower/sim"
	"github.com/towersim/tower/util"
	"golang.org/x/sync/errgroup"
)

var (
	cpuprofile       = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile       = flag.String("memprofile", "", "write memory profile to this file")
	logLevel         = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir           = flag.String("logdir", "", "log file directory")
	serverPort       = flag.Int("port", server.TowerServerPort, "port to listen on for controller connections")
	gatewayPort      = flag.Int("gatewayport", server.DefaultGatewayPort, "port for the REST and websocket gateway; 0 disables it")
	scenarioFilename = flag.String("scenario", "", "filename of JSON file with a scenario definition")
	scoresPath       = flag.String("scores", server.DefaultScoresPath, "path of the JSON file scores are kept in")
	seed             = flag.Int64("seed", 0, "random seed for the simulation; 0 seeds from system entropy")
	serverStatus     = flag.String("status", "", "print the status of the tower server at the given address and exit")
	lintScenario     = flag.Bool("lint", false, "check the validity of the scenario and exit")
	dumpScenario     = flag.Bool("dumpscenario", false, "print the loaded scenario and exit")
	runSim           = flag.Bool("runsim", false, "run the scenario headless for an hour of simulated time and exit")
	simRuns          = flag.Int("runs", 1, "number of concurrently-run simulations for -runsim")
)

func setupSignalHandler(profiler *util.Profiler) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Caught signal, cleaning up...")
		profiler.Cleanup()
		fmt.Fprintln(os.Stderr, "Cleanup complete, exiting")
		os.Exit(0)
	}()
}

func loadScenario(lg *log.Logger) *av.Scenario {
	var e util.ErrorLogger
	var sc *av.Scenario
	if *scenarioFilename != "" {
		sc = av.LoadScenarioFile(*scenarioFilename, &e)
	} else {
		sc = av.DefaultScenario(&e)
	}
	if e.HaveErrors() {
		e.PrintErrors(lg)
		os.Exit(1)
	}
	return sc
}

func main() {
	flag.Parse()

	serverMode := *serverStatus == "" && !*lintScenario && !*dumpScenario && !*runSim

	// Initialize the logging system first and foremost.
	lg := log.New(serverMode, *logLevel, *logDir)

	profiler, err := util.CreateProfiler(*cpuprofile, *memprofile)
	if err != nil {
		lg.Errorf("%v", err)
	}
	defer profiler.Cleanup()

	if *cpuprofile != "" || *memprofile != "" {
		setupSignalHandler(&profiler)
	}

	if *lintScenario {
		sc := loadScenario(lg)
		fmt.Printf("%s (%s): runway %s, %d waypoints, %d aircraft types, %d airlines\n",
			sc.Airport.ICAO, sc.Airport.Name, sc.Airport.Runway.Id, sc.Waypoints.Len(),
			len(sc.Aircraft), len(sc.Airlines))
	} else if *dumpScenario {
		godump.Dump(loadScenario(lg))
	} else if *runSim {
		sc := loadScenario(lg)

		fmt.Printf("Running scenario: %s\n", sc.Airport.ICAO)
		fmt.Println("Spawn configuration:")
		godump.Dump(sc.Spawn)

		baseSeed := *seed
		if baseSeed == 0 {
			baseSeed = time.Now().UnixNano()
		}

		startTime := time.Now()
		results := make([]headlessResult, *simRuns)
		var eg errgroup.Group
		for i := range *simRuns {
			eg.Go(func() error {
				results[i] = runHeadless(sc, baseSeed+int64(i), lg)
				return results[i].err
			})
		}
		err := eg.Wait()

		for _, r := range results {
			if r.err != nil {
				fmt.Printf("seed %d: FAILED: %v\n", r.seed, r.err)
			} else {
				fmt.Printf("seed %d: %d flights active, %d landed, %d departed, %d near misses\n",
					r.seed, r.flights, r.landed, r.departed, r.nearMisses)
			}
		}

		elapsed := time.Since(startTime)
		updates := headlessUpdates * *simRuns
		fmt.Printf("Simulation complete: %d updates in %.2f seconds (%.1fx real-time)\n",
			updates, elapsed.Seconds(), float64(updates)/elapsed.Seconds())

		if err != nil {
			os.Exit(1)
		}
	} else if *serverStatus != "" {
		address := *serverStatus
		if !strings.Contains(address, ":") {
			address = net.JoinHostPort(address, strconv.Itoa(server.TowerServerPort))
		}

		conn := <-client.TryConnectServer(address, lg)
		if conn.Err != nil {
			lg.Errorf("%s: %v", address, conn.Err)
			os.Exit(1)
		}
		c := client.NewControlClient(*conn.SignOn, conn.Server.RPCClient, lg)
		fmt.Println(c.Status())
		c.Disconnect()
	} else {
		defer lg.CatchAndReportCrash()

		server.LaunchServer(server.ServerLaunchConfig{
			Port:        *serverPort,
			GatewayPort: *gatewayPort,
			Scenario:    *scenarioFilename,
			ScoresPath:  *scoresPath,
			Seed:        *seed,
		}, lg)
	}
}

// An hour of simulated time, one update per simulated second.
const headlessUpdates = 3600

type headlessResult struct {
	seed       int64
	flights    int
	landed     int
	departed   int
	nearMisses int
	err        error
}

func ptr[T any](v T) *T { return &v }

// runHeadless steps a fresh simulation through an hour of traffic,
// spawning a departure and an arrival every few minutes and granting
// clearances as flights become ready for them. A collision fails the run.
func runHeadless(sc *av.Scenario, seed int64, lg *log.Logger) headlessResult {
	s := sim.NewSim(sim.NewSimConfiguration{Scenario: sc, Seed: seed}, lg)

	const spawnInterval = 300 // simulated seconds between arrival/departure pairs

	for i := range headlessUpdates {
		if i%spawnInterval == 0 {
			s.SpawnArrival()
			s.SpawnDeparture()
		}
		if i%60 == 30 {
			// Grant whatever clearances are pending. Denials are fine;
			// we'll ask again in a minute once the runway clears.
			for cs, fl := range s.GetStateUpdate(nil).Flights {
				switch {
				case fl.Type == av.FlightTypeArrival && !fl.ClearedToLand:
					go s.PostCommand(cs, sim.Command{ClearToLand: ptr(true)})
				case fl.Status == sim.StatusReadyForTakeoff && !fl.ClearedForTakeoff:
					go s.PostCommand(cs, sim.Command{ClearForTakeoff: ptr(true)})
				}
			}
		}
		s.Step(time.Second)
	}

	u := s.GetStateUpdate(nil)
	r := headlessResult{
		seed:       seed,
		flights:    len(u.Flights),
		landed:     u.LandedCount,
		departed:   u.DepartedCount,
		nearMisses: u.NearMissCount,
	}
	if u.Failed {
		r.err = fmt.Errorf("%s", u.FailureReason)
	}
	return r
}
