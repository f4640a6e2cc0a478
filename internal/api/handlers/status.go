package handlers

import (
	"net/http"
	"time"

	"github.com/eargollo/fraudscan/internal/detect"
)

// ScheduleSource describes the scheduled detection job.
type ScheduleSource interface {
	CronExpr() string
	Model() string
	NextRunAt() *time.Time
}

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Manager Detector
	Sched   ScheduleSource // nil when scheduling is disabled
	Version string
}

type statusResponse struct {
	Version   string          `json:"version"`
	Detection detect.Snapshot `json:"detection"`
	Schedule  *scheduleInfo   `json:"schedule"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	Model     string     `json:"model"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:   h.Version,
		Detection: h.Manager.Progress(),
	}
	if h.Sched != nil && h.Sched.CronExpr() != "" {
		resp.Schedule = &scheduleInfo{
			Cron:      h.Sched.CronExpr(),
			Model:     h.Sched.Model(),
			NextRunAt: h.Sched.NextRunAt(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
