// util/monitor.go
// Copyright(c) 2025-2026 tower contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/towersim/tower/log"

	"github.com/shirou/gopsutil/v3/cpu"
)

// MonitorCPUUsage starts a goroutine that watches total CPU usage and
// logs a warning whenever it is at or above the given percentage. If
// panicIfStuck is set and usage stays there for five consecutive
// minutes, it panics so that the goroutine stacks of the wedged process
// end up in the logs.
func MonitorCPUUsage(threshold int, panicIfStuck bool, lg *log.Logger) {
	go func() {
		stuck := 0
		for {
			// Blocks for the sampling interval.
			usage, err := cpu.Percent(time.Minute, false)
			if err != nil {
				lg.Errorf("unable to sample CPU usage: %v", err)
				return
			}

			if int(usage[0]) < threshold {
				stuck = 0
				continue
			}

			stuck++
			lg.Warn("high CPU usage", slog.Int("percent", int(usage[0])),
				slog.Int("threshold", threshold), slog.Int("minutes", stuck))

			if panicIfStuck && stuck >= 5 {
				panic(fmt.Sprintf("CPU usage above %d%% for %d minutes", threshold, stuck))
			}
		}
	}()
}

// MonitorMemoryUsage starts a goroutine that reports heap use once it
// first reaches triggerMB and then again each time it has grown by
// another deltaMB.
func MonitorMemoryUsage(triggerMB int, deltaMB int, lg *log.Logger) {
	go func() {
		next := uint64(triggerMB)
		for {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			if mb := m.HeapInuse / (1024 * 1024); mb >= next {
				lg.Warn("memory usage", slog.Uint64("heap_mb", mb),
					slog.Uint64("total_alloc_mb", m.TotalAlloc/(1024*1024)),
					slog.Uint64("sys_mb", m.Sys/(1024*1024)),
					slog.Int("goroutines", runtime.NumGoroutine()))
				next = mb + uint64(deltaMB)
			}

			time.Sleep(15 * time.Second)
		}
	}()
}

// ByteCount formats a byte total for human consumption.
type ByteCount int64

func (b ByteCount) String() string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", int64(b))
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
