package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/scheduler"
)

// healthzResponse reports process liveness plus coarse resource pressure.
type healthzResponse struct {
	Status     string  `json:"status"`
	UptimeS    float64 `json:"uptime_seconds"`
	RAMPercent float64 `json:"ram_percent,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{
		Status:    "ok",
		UptimeS:   time.Since(s.startedAt).Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.RAMPercent = vm.UsedPercent
	}
	s.writeJSON(w, resp)
}

// siteStatus is one row of the /status/sites response.
type siteStatus struct {
	SiteID              string  `json:"site_id"`
	Tier                int     `json:"tier"`
	Status              string  `json:"status"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	AvgLatencyMS        float64 `json:"avg_latency_ms"`
	LastSuccess         string  `json:"last_success,omitempty"`
}

// handleStatusSites reports every registered site's current reliability
// state so an operator can see degraded/down sources without opening a
// database file directly.
func (s *Server) handleStatusSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := []siteStatus{}

	for tier := 1; tier <= 4; tier++ {
		sites, err := s.sites.ListByTier(ctx, domain.SiteTier(tier))
		if err != nil {
			s.log.Error().Err(err).Int("tier", tier).Msg("failed to list sites")
			http.Error(w, "failed to list sites", http.StatusInternalServerError)
			return
		}
		for _, site := range sites {
			health, err := s.siteHealth.Get(ctx, site.ID)
			if err != nil {
				s.log.Error().Err(err).Str("site_id", site.ID).Msg("failed to load site health")
				continue
			}
			row := siteStatus{
				SiteID:              site.ID,
				Tier:                tier,
				Status:              string(health.Status),
				ConsecutiveFailures: health.ConsecutiveFailures,
				AvgLatencyMS:        health.AvgLatencyMS,
			}
			if !health.LastSuccessTS.IsZero() {
				row.LastSuccess = health.LastSuccessTS.Format(time.RFC3339)
			}
			out = append(out, row)
		}
	}

	s.writeJSON(w, out)
}

// runEntry is one row of the /status/runs response.
type runEntry struct {
	SiteID     string `json:"site_id"`
	Ticker     string `json:"ticker"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// handleStatusRuns reports the most recent fetcher executions across all
// sites, newest first, capped at 200 rows.
func (s *Server) handleStatusRuns(w http.ResponseWriter, r *http.Request) {
	logs, err := s.executionLog.Recent(r.Context(), 200)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list recent runs")
		http.Error(w, "failed to list recent runs", http.StatusInternalServerError)
		return
	}

	out := make([]runEntry, len(logs))
	for i, l := range logs {
		out[i] = runEntry{
			SiteID:     l.SiteID,
			Ticker:     l.Ticker,
			Status:     string(l.Status),
			DurationMS: l.DurationMS,
			ErrorKind:  l.ErrorKind,
			Timestamp:  l.Timestamp.Format(time.RFC3339),
		}
	}
	s.writeJSON(w, out)
}

// dbStatusEntry is one row of the /status/db response: a database's
// latest integrity/size snapshot.
type dbStatusEntry struct {
	Name                 string  `json:"name"`
	SizeMB               float64 `json:"size_mb"`
	WALSizeMB            float64 `json:"wal_size_mb"`
	GrowthRate24hPct     float64 `json:"growth_rate_24h_pct"`
	IntegrityCheckPassed bool    `json:"integrity_check_passed"`
	LastIntegrityCheck   string  `json:"last_integrity_check,omitempty"`
}

// dbStatusResponse reports per-database health plus any currently active
// alerts (disk space, WAL bloat, stale backups) the monitoring sweep has
// raised.
type dbStatusResponse struct {
	Databases    []dbStatusEntry `json:"databases"`
	ActiveAlerts []string        `json:"active_alerts,omitempty"`
}

// handleStatusDB reports the reliability package's latest health-check
// and alert sweep for the universe/cache/ledger databases.
func (s *Server) handleStatusDB(w http.ResponseWriter, r *http.Request) {
	if s.monitoring == nil {
		s.writeJSON(w, dbStatusResponse{})
		return
	}

	metrics, err := s.monitoring.CollectMetrics()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to collect database metrics")
		http.Error(w, "failed to collect database metrics", http.StatusInternalServerError)
		return
	}

	resp := dbStatusResponse{Databases: make([]dbStatusEntry, 0, len(metrics))}
	for name, m := range metrics {
		entry := dbStatusEntry{
			Name:                 name,
			SizeMB:               m.SizeMB,
			WALSizeMB:            m.WALSizeMB,
			GrowthRate24hPct:     m.GrowthRate24h,
			IntegrityCheckPassed: m.IntegrityCheckPassed,
		}
		if !m.LastIntegrityCheck.IsZero() {
			entry.LastIntegrityCheck = m.LastIntegrityCheck.Format(time.RFC3339)
		}
		resp.Databases = append(resp.Databases, entry)
	}

	for _, alert := range s.monitoring.GetAlerts() {
		resp.ActiveAlerts = append(resp.ActiveAlerts, string(alert.Level)+": "+alert.Message)
	}

	s.writeJSON(w, resp)
}

// handleStatusJobs reports the scheduler's registered background jobs
// (auto-run, price tracker, retrospective, backup/health/monitoring) and
// their last outcome, including ticks skipped because a prior run of the
// same job was still in flight.
func (s *Server) handleStatusJobs(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeJSON(w, []scheduler.JobStatus{})
		return
	}
	s.writeJSON(w, s.scheduler.Status())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}
