package commands

import (
	"fmt"
	"github.com/shirou/gopsutil/cpu"
	"runtime"
	"time"
)

func processStats() (float64, uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	percent, _ := cpu.Percent(0, false)
	if len(percent) == 0 {
		percent = append(percent, 0)
	}
	return percent[0], m.Sys / 1024 / 1024
}

func (d *Dispatcher) pingReply() string {
	uptime := time.Since(d.opts.StartedAt)
	cpuPercent, memMB := d.stats()

	return fmt.Sprintf("bot uptime %v • CPU load %.2f%% • RAM usage %v MB", uptime.Truncate(time.Second), cpuPercent, memMB)
}
