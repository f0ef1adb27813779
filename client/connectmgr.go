// client/connectmgr.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package client

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/towersim/tower/log"
	"github.com/towersim/tower/server"
	"github.com/towersim/tower/sim"
	"github.com/towersim/tower/util"
)

// ConnectionManager keeps a client signed on to a tower server,
// reconnecting when the connection drops. The server may be one it
// launched itself in-process or a remote one reached over the network.
type ConnectionManager struct {
	serverAddress      string
	lastConnectAttempt time.Time
	connectChan        chan *serverConnection

	serverRPCVersionMismatch bool

	Server *Server

	client              *ControlClient
	connectionStartTime time.Time

	onNewClient func(*ControlClient)
	onError     func(error)
}

// MakeLocalConnectionManager launches an in-process server and manages a
// connection to it.
func MakeLocalConnectionManager(config server.ServerLaunchConfig, lg *log.Logger,
	onNewClient func(*ControlClient), onError func(error)) (*ConnectionManager, util.ErrorLogger) {
	rpcPort, errorLogger := server.LaunchServerAsync(config, lg)

	cm := &ConnectionManager{
		serverAddress:      net.JoinHostPort("localhost", strconv.Itoa(rpcPort)),
		lastConnectAttempt: time.Now(),
		onNewClient:        onNewClient,
		onError:            onError,
	}
	if !errorLogger.HaveErrors() {
		cm.connectChan = TryConnectServer(cm.serverAddress, lg)
	}

	return cm, errorLogger
}

// MakeRemoteConnectionManager manages a connection to a server running
// elsewhere.
func MakeRemoteConnectionManager(address string, lg *log.Logger,
	onNewClient func(*ControlClient), onError func(error)) *ConnectionManager {
	return &ConnectionManager{
		serverAddress:      address,
		lastConnectAttempt: time.Now(),
		connectChan:        TryConnectServer(address, lg),
		onNewClient:        onNewClient,
		onError:            onError,
	}
}

func (cm *ConnectionManager) Connected() bool {
	return cm.client != nil
}

func (cm *ConnectionManager) ConnectionStartTime() time.Time {
	if cm.client == nil {
		return time.Time{}
	}
	return cm.connectionStartTime
}

func (cm *ConnectionManager) Client() *ControlClient {
	return cm.client
}

func (cm *ConnectionManager) Disconnect() {
	if cm.client != nil {
		cm.client.Disconnect()
		cm.client = nil
		if cm.onNewClient != nil {
			cm.onNewClient(nil)
		}
	}
}

// Update drives the connection: it picks up the result of an in-flight
// connection attempt, schedules a retry if the server is gone, and pumps
// the client's RPCs.
func (cm *ConnectionManager) Update(es *sim.EventStream, lg *log.Logger) {
	select {
	case conn := <-cm.connectChan:
		if err := conn.Err; err != nil {
			lg.Info("Unable to connect to server", slog.Any("error", err))

			if err.Error() == server.ErrRPCVersionMismatch.Error() {
				cm.serverRPCVersionMismatch = true
				if cm.onError != nil {
					cm.onError(server.ErrRPCVersionMismatch)
				}
			}
			cm.Server = nil
		} else {
			cm.Server = conn.Server
			if cm.client != nil {
				cm.client.Disconnect()
			}
			cm.client = NewControlClient(*conn.SignOn, conn.Server.RPCClient, lg)
			cm.connectionStartTime = time.Now()

			if cm.onNewClient != nil {
				cm.onNewClient(cm.client)
			}
		}

	default:
	}

	if cm.Server == nil && time.Since(cm.lastConnectAttempt) > 10*time.Second && !cm.serverRPCVersionMismatch {
		cm.lastConnectAttempt = time.Now()
		cm.connectChan = TryConnectServer(cm.serverAddress, lg)
	}

	if cm.client != nil {
		cm.client.GetUpdates(es,
			func(err error) {
				es.Post(sim.Event{
					Type:    sim.StatusMessageEvent,
					Message: "Error getting update from server: " + err.Error(),
				})
				if err == server.ErrRPCTimeout || util.IsRPCServerError(err) {
					cm.Server = nil
					if cm.client != nil {
						cm.client.Disconnect()
						cm.client = nil
					}
					if cm.onNewClient != nil {
						cm.onNewClient(nil)
					}
					if cm.onError != nil {
						cm.onError(server.ErrServerDisconnected)
					}
				} else if cm.onError != nil {
					cm.onError(err)
				}
			})
	}
}
