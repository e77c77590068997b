package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// stepClock makes nowFunc advance one second per call so timestamps are
// distinct and ordered.
func stepClock(t *testing.T) {
	t.Helper()
	var ticks atomic.Int64
	prev := nowFunc
	nowFunc = func() time.Time {
		return testEpoch.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
	t.Cleanup(func() { nowFunc = prev })
}

// newTestPanel builds a panel over a private in-memory sqlite database with
// sequential ids and a stepping clock.
func newTestPanel(t *testing.T, mutate ...func(*config.Config)) *Panel {
	t.Helper()
	stepClock(t)

	cfg := config.DefaultConfig()
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}
	for _, fn := range mutate {
		fn(cfg)
	}

	db, err := models.Open(&cfg.Database, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	InitSystemLogger(db)

	p := NewPanel(db, cfg, PanelOptions{IDs: NewSequentialIDGenerator()})
	t.Cleanup(func() {
		p.Close()
		InitSystemLogger(nil)
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return p
}

func mustProject(t *testing.T, p *Panel, req CreateProjectRequest) *models.Project {
	t.Helper()
	if req.Name == "" {
		req.Name = "Test Project"
	}
	project, err := p.Projects.Create(&req)
	require.NoError(t, err)
	return project
}

func mustVendor(t *testing.T, p *Panel, req CreateVendorRequest) *models.Vendor {
	t.Helper()
	if req.Name == "" {
		req.Name = "Test Vendor"
	}
	vendor, err := p.Vendors.Create(&req)
	require.NoError(t, err)
	return vendor
}

func addResponse(t *testing.T, p *Panel, projectID, vendorID, status string, opts ...func(*CreateResponseRequest)) *models.Response {
	t.Helper()
	req := &CreateResponseRequest{ProjectID: projectID, VendorID: vendorID, Status: status}
	for _, fn := range opts {
		fn(req)
	}
	resp, err := p.Responses.Add(req)
	require.NoError(t, err)
	return resp
}

func withIP(ip string) func(*CreateResponseRequest) {
	return func(r *CreateResponseRequest) { r.IP = ip }
}

func withUID(uid string) func(*CreateResponseRequest) {
	return func(r *CreateResponseRequest) { r.UID = uid }
}

// drainQueue waits for quota actions dispatched so far.
func drainQueue(t *testing.T, p *Panel) {
	t.Helper()
	sq, ok := p.Queue.(*SyncQueue)
	require.True(t, ok, "expected in-process queue, got %T", p.Queue)
	sq.Wait()
}
