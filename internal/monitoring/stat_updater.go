package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a point-in-time sample of the host running the API.
type HostStats struct {
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	UptimeSeconds uint64    `json:"uptimeSeconds"`
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryTotal   uint64    `json:"memoryTotal"`
	MemoryUsed    uint64    `json:"memoryUsed"`
	MemoryPercent float64   `json:"memoryPercent"`
	Goroutines    int       `json:"goroutines"`
	SampledAt     time.Time `json:"sampledAt"`
}

// EventRecorder stores an alert raised by the sampler.
type EventRecorder interface {
	CreateEvent(ctx context.Context, eventType, level, message string, accountID *string) error
}

// StatUpdater periodically samples host statistics for the health endpoint.
type StatUpdater struct {
	interval time.Duration
	events   EventRecorder
	ticker   *time.Ticker
	done     chan bool

	mu        sync.RWMutex
	latest    HostStats
	lastAlert time.Time
}

// NewStatUpdater creates a new StatUpdater. events may be nil.
func NewStatUpdater(interval time.Duration, events EventRecorder) *StatUpdater {
	return &StatUpdater{
		interval: interval,
		events:   events,
		done:     make(chan bool),
	}
}

// Run starts the periodic updates.
func (su *StatUpdater) Run() {
	log.Info().Msg("Starting background stat updater...")
	su.ticker = time.NewTicker(su.interval)
	defer su.ticker.Stop()

	// Run once immediately on start
	su.Update(context.Background())

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-su.ticker.C:
			su.Update(context.Background())
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	su.done <- true
}

// Latest returns the most recent sample. It is zero until the first update.
func (su *StatUpdater) Latest() HostStats {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.latest
}

// Update takes a new sample. Metrics the host cannot report are left zero.
func (su *StatUpdater) Update(ctx context.Context) HostStats {
	stats := HostStats{
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Could not read host info")
	} else {
		stats.Hostname = info.Hostname
		stats.Platform = info.Platform
		stats.UptimeSeconds = info.Uptime
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Could not read memory stats")
	} else {
		stats.MemoryTotal = vm.Total
		stats.MemoryUsed = vm.Used
		stats.MemoryPercent = vm.UsedPercent
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Could not read cpu stats")
	} else if len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}

	su.mu.Lock()
	su.latest = stats
	su.mu.Unlock()

	su.checkAndAlertForHighMemory(ctx, stats)
	return stats
}

func (su *StatUpdater) checkAndAlertForHighMemory(ctx context.Context, stats HostStats) {
	const highMemoryThreshold = 90.0
	const alertCooldown = 15 * time.Minute

	if su.events == nil || stats.MemoryPercent <= highMemoryThreshold {
		return
	}
	su.mu.Lock()
	if time.Since(su.lastAlert) < alertCooldown {
		su.mu.Unlock()
		return
	}
	su.lastAlert = time.Now()
	su.mu.Unlock()

	msg := fmt.Sprintf("High memory usage (%.1f%%) detected on host '%s'.", stats.MemoryPercent, stats.Hostname)
	if err := su.events.CreateEvent(ctx, "system.alert.memory", "warn", msg, nil); err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Failed to record memory alert")
	}
}
