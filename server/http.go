// server/http.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"strconv"
	"text/template"
	"time"

	"github.com/towersim/tower/math"
	"github.com/towersim/tower/util"

	"github.com/shirou/gopsutil/v3/cpu"
)

type serverStats struct {
	Uptime           time.Duration
	AllocMemory      uint64
	TotalAllocMemory uint64
	SysMemory        uint64
	RX, TX           int64
	NumGC            uint32
	NumGoRoutines    int
	CPUUsage         int

	Sim simStatus
}

///////////////////////////////////////////////////////////////////////////
// Status / statistics via HTTP...

func (sm *SimManager) launchHTTPServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/sup", func(w http.ResponseWriter, r *http.Request) {
		sm.statsHandler(w, r)
		sm.lg.Infof("%s: served stats request", r.URL.String())
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	var listener net.Listener
	var err error
	var port int
	for i := range 10 {
		port = TowerHTTPServerPort + i
		if listener, err = net.Listen("tcp", ":"+strconv.Itoa(port)); err == nil {
			sm.httpPort = port
			fmt.Printf("Launching HTTP server on port %d\n", port)
			break
		}
	}

	if err != nil {
		sm.lg.Warnf("Unable to start HTTP server")
	} else {
		go func() {
			if err := http.Serve(listener, mux); err != nil {
				sm.lg.Errorf("HTTP server error: %v", err)
			}
		}()
	}
}

type simStatus struct {
	Airport     string
	SimTime     string
	Rate        float32
	State       string
	Flights     int
	Landed      int
	Departed    int
	NearMisses  int
	Controllers int
	Subscribers int
}

func (ss simStatus) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("airport", ss.Airport),
		slog.String("sim_time", ss.SimTime),
		slog.Float64("rate", float64(ss.Rate)),
		slog.String("state", ss.State),
		slog.Int("flights", ss.Flights),
		slog.Int("landed", ss.Landed),
		slog.Int("departed", ss.Departed),
		slog.Int("near_misses", ss.NearMisses),
		slog.Int("controllers", ss.Controllers),
		slog.Int("subscribers", ss.Subscribers))
}

func (sm *SimManager) GetSimStatus() simStatus {
	u := sm.sim.GetStateUpdate(nil)

	sm.mu.Lock(sm.lg)
	controllers := len(sm.controllersByToken)
	sm.mu.Unlock(sm.lg)

	state := "running"
	if u.Failed {
		state = "failed: " + u.FailureReason
	} else if u.Paused {
		state = "paused"
	}

	return simStatus{
		Airport:     sm.sim.Scenario().Airport.ICAO,
		SimTime:     u.SimTime.UTC().Format("15:04:05"),
		Rate:        u.SimRate,
		State:       state,
		Flights:     len(u.Flights),
		Landed:      u.LandedCount,
		Departed:    u.DepartedCount,
		NearMisses:  u.NearMissCount,
		Controllers: controllers,
		Subscribers: sm.hub.clientCount(),
	}
}

var templateFuncs = template.FuncMap{"bytes": func(v int64) string { return util.ByteCount(v).String() }}

var statsTemplate = template.Must(template.New("").Funcs(templateFuncs).Parse(`
<!DOCTYPE html>
<html>
<head>
<title>tower of power</title>
</head>
<style>
table {
  border-collapse: collapse;
  width: 100%;
}

th, td {
  border: 1px solid #dddddd;
  padding: 8px;
  text-align: left;
}

tr:nth-child(even) {
  background-color: #f2f2f2;
}
</style>
<body>
<h1>Server Status</h1>
<ul>
  <li>Uptime: {{.Uptime}}</li>
  <li>CPU usage: {{.CPUUsage}}%</li>
  <li>Bandwidth: {{bytes .RX}} RX, {{bytes .TX}} TX</li>
  <li>Allocated memory: {{.AllocMemory}} MB</li>
  <li>Total allocated memory: {{.TotalAllocMemory}} MB</li>
  <li>System memory: {{.SysMemory}} MB</li>
  <li>Garbage collection passes: {{.NumGC}}</li>
  <li>Running goroutines: {{.NumGoRoutines}}</li>
</ul>

<h1>Sim Status</h1>
<table>
  <tr>
  <th>Airport</th>
  <th>Sim Time</th>
  <th>Rate</th>
  <th>State</th>
  <th>Flights</th>
  <th>Landed</th>
  <th>Departed</th>
  <th>Near Misses</th>
  <th>Controllers</th>
  <th>Subscribers</th>
  </tr>
{{with .Sim}}
  <tr>
  <td>{{.Airport}}</td>
  <td>{{.SimTime}}</td>
  <td>{{.Rate}}x</td>
  <td>{{.State}}</td>
  <td>{{.Flights}}</td>
  <td>{{.Landed}}</td>
  <td>{{.Departed}}</td>
  <td>{{.NearMisses}}</td>
  <td>{{.Controllers}}</td>
  <td><tt>{{.Subscribers}}</tt></td>
  </tr>
{{end}}
</table>

</body>
</html>
`))

func (sm *SimManager) statsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage, _ := cpu.Percent(time.Second, false)

	stats := serverStats{
		Uptime:           time.Since(sm.startTime).Round(time.Second),
		AllocMemory:      m.Alloc / (1024 * 1024),
		TotalAllocMemory: m.TotalAlloc / (1024 * 1024),
		SysMemory:        m.Sys / (1024 * 1024),
		NumGC:            m.NumGC,
		NumGoRoutines:    runtime.NumGoroutine(),
		CPUUsage:         int(math.Round(float32(usage[0]))),

		Sim: sm.GetSimStatus(),
	}

	stats.RX, stats.TX = util.GetLoggedRPCBandwidth()
	stats.TX += sm.wsTXBytes.Load()

	statsTemplate.Execute(w, stats)
}
