package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var startTime = time.Now()

func countRows(db *gorm.DB, model interface{}, query string, args ...interface{}) float64 {
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0
	}
	return float64(n)
}

func gauge(reg *prometheus.Registry, name, help string, fn func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "panelsentry",
		Name:      name,
		Help:      help,
	}, fn))
}

// NewMetricsRegistry registers runtime collectors and panel gauges. Gauges are
// evaluated on every scrape.
func NewMetricsRegistry(p *services.Panel) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db := p.DB
	gauge(reg, "uptime_seconds", "Time since server start in seconds", func() float64 {
		return time.Since(startTime).Seconds()
	})
	gauge(reg, "projects_total", "Number of projects", func() float64 {
		return countRows(db, &models.Project{}, "")
	})
	gauge(reg, "projects_active", "Number of active projects", func() float64 {
		return countRows(db, &models.Project{}, "status = ?", models.ProjectStatusActive)
	})
	gauge(reg, "vendors_total", "Number of vendors", func() float64 {
		return countRows(db, &models.Vendor{}, "")
	})
	gauge(reg, "vendors_active", "Number of active vendors", func() float64 {
		return countRows(db, &models.Vendor{}, "status = ?", models.VendorStatusActive)
	})
	gauge(reg, "responses_total", "Number of recorded responses", func() float64 {
		return countRows(db, &models.Response{}, "")
	})
	gauge(reg, "responses_completes", "Number of complete responses", func() float64 {
		return countRows(db, &models.Response{}, "status = ?", models.ResponseStatusComplete)
	})
	gauge(reg, "assignments_paused", "Number of paused project/vendor assignments", func() float64 {
		return countRows(db, &models.ProjectVendor{}, "paused = ?", true)
	})
	gauge(reg, "sse_active_clients", "Number of active SSE connections", func() float64 {
		return float64(p.Hub.ClientCount())
	})
	gauge(reg, "queue_async_enabled", "Whether the Redis quota action queue is enabled (1=yes, 0=no)", func() float64 {
		if p.Queue != nil && p.Queue.IsAsync() {
			return 1
		}
		return 0
	})
	return reg
}

// Metrics serves the registry in Prometheus text format.
func Metrics(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
