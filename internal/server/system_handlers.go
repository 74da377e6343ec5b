package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/internal/scheduler"
)

// SystemHandlers serves health and operations endpoints
type SystemHandlers struct {
	repo           *marketdata.PriceRepository
	sched          *scheduler.Scheduler
	maintenanceJob scheduler.Job
	startTime      time.Time
	log            zerolog.Logger
}

// NewSystemHandlers creates the system handlers. The repository and
// job may be nil in tests; the affected fields degrade gracefully.
func NewSystemHandlers(repo *marketdata.PriceRepository, sched *scheduler.Scheduler, maintenanceJob scheduler.Job, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		repo:           repo,
		sched:          sched,
		maintenanceJob: maintenanceJob,
		startTime:      time.Now(),
		log:            log.With().Str("component", "system_handlers").Logger(),
	}
}

// HandleHealth responds to liveness probes.
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// SystemStatusResponse reports host load and cache state
type SystemStatusResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	CachedSymbols int     `json:"cached_symbols"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// HandleSystemStatus reports CPU, memory, and price cache statistics.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, memPercent := h.hostLoad()

	cachedSymbols := 0
	if h.repo != nil {
		symbols, err := h.repo.CachedSymbols()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count cached symbols")
		} else {
			cachedSymbols = len(symbols)
		}
	}

	writeJSON(w, http.StatusOK, SystemStatusResponse{
		CPUPercent:    cpuAvg,
		MemoryPercent: memPercent,
		CachedSymbols: cachedSymbols,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// HandleTriggerCacheMaintenance runs the cache maintenance job
// immediately, outside its schedule.
// POST /api/system/jobs/cache-maintenance
func (h *SystemHandlers) HandleTriggerCacheMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.maintenanceJob == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Cache maintenance job not registered",
		})
		return
	}

	if err := h.sched.RunNow(h.maintenanceJob); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Cache maintenance completed",
	})
}

// hostLoad samples CPU and memory usage. Failures degrade to zeros
// rather than erroring the status endpoint.
func (h *SystemHandlers) hostLoad() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}
