// server/server.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"net"
	"net/rpc"
	"os"
	"strconv"

	av "github.com/towersim/tower/aviation"
	"github.com/towersim/tower/log"
	"github.com/towersim/tower/scores"
	"github.com/towersim/tower/util"
)

// Version history
// 1: initial sign on flow, commands, spawns, state updates over msgpack
const TowerSerializeVersion = 1

const TowerRPCVersion = TowerSerializeVersion
const TowerServerPort = 8000 + TowerRPCVersion

// Stats and pprof live here; squawk 7700 when things go wrong.
const TowerHTTPServerPort = 7700

const DefaultGatewayPort = 8080
const DefaultScoresPath = "scores.json"

type ServerLaunchConfig struct {
	Port        int    // if 0, finds an open one
	GatewayPort int    // REST and websocket gateway; if 0, not started
	Scenario    string // path to a scenario JSON; empty for the built-in
	ScoresPath  string
	Seed        int64 // if 0, seeded from entropy
}

func LaunchServer(config ServerLaunchConfig, lg *log.Logger) {
	util.MonitorCPUUsage(95, true /* panic if wedged */, lg)
	util.MonitorMemoryUsage(128 /* trigger MB */, 64 /* delta MB */, lg)

	_, server, e := makeServer(config, lg)
	if e.HaveErrors() {
		e.PrintErrors(lg)
		os.Exit(1)
	}
	server()
}

func LaunchServerAsync(config ServerLaunchConfig, lg *log.Logger) (int, util.ErrorLogger) {
	rpcPort, server, e := makeServer(config, lg)
	if e.HaveErrors() {
		return 0, e
	}

	go server()

	return rpcPort, e
}

func makeServer(config ServerLaunchConfig, lg *log.Logger) (int, func(), util.ErrorLogger) {
	var listener net.Listener
	var err error
	var errorLogger util.ErrorLogger
	var rpcPort int
	if config.Port == 0 {
		if listener, err = net.Listen("tcp", ":0"); err != nil {
			errorLogger.Error(err)
			return 0, nil, errorLogger
		}
		rpcPort = listener.Addr().(*net.TCPAddr).Port
	} else if listener, err = net.Listen("tcp", ":"+strconv.Itoa(config.Port)); err == nil {
		rpcPort = config.Port
	} else {
		errorLogger.Error(err)
		return 0, nil, errorLogger
	}

	var scenario *av.Scenario
	if config.Scenario != "" {
		scenario = av.LoadScenarioFile(config.Scenario, &errorLogger)
	} else {
		scenario = av.DefaultScenario(&errorLogger)
	}
	if errorLogger.HaveErrors() {
		return 0, nil, errorLogger
	}

	serverFunc := func() {
		server := rpc.NewServer()

		keeper := scores.NewKeeper(util.Select(config.ScoresPath != "", config.ScoresPath, DefaultScoresPath), lg)
		sm := NewSimManager(scenario, keeper, config.Seed, lg)
		if err := server.Register(sm); err != nil {
			lg.Errorf("unable to register SimManager: %v", err)
			os.Exit(1)
		}
		if err := server.RegisterName("Sim", &dispatcher{sm: sm}); err != nil {
			lg.Errorf("unable to register dispatcher: %v", err)
			os.Exit(1)
		}

		sm.launchHTTPServer()
		if config.GatewayPort != 0 {
			sm.launchGateway(config.GatewayPort)
		}

		lg.Infof("Listening on %+v", listener)

		for {
			conn, err := listener.Accept()
			if err != nil {
				lg.Errorf("Accept error: %v", err)
			} else {
				lg.Infof("%s: new connection", conn.RemoteAddr())
				if cc, err := util.MakeCompressedConn(util.MakeLoggingConn(conn, lg)); err != nil {
					lg.Errorf("MakeCompressedConn: %v", err)
				} else {
					codec := util.MakeMessagepackServerCodec(cc, lg)
					codec = util.MakeLoggingServerCodec(conn.RemoteAddr().String(), codec, lg)
					go server.ServeCodec(codec)
				}
			}
		}
	}

	return rpcPort, serverFunc, errorLogger
}
