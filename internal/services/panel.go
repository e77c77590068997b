package services

import (
	"github.com/huangang/panelsentry/internal/config"
	"gorm.io/gorm"
)

// Panel wires every panel service over one database handle. The server, the
// CLI and the tests all build their object graph through NewPanel.
type Panel struct {
	DB           *gorm.DB
	Projects     *ProjectService
	Vendors      *VendorService
	Responses    *ResponseService
	Dashboard    *DashboardService
	Reports      *ReportService
	Quota        *QuotaService
	QuotaActions *QuotaActionService
	Settings     *SettingsService
	Export       *ExportService
	Logs         *SystemLogService
	Links        *LinkBuilder
	Hub          *SSEHub
	Notifier     *NotificationService
	Queue        TaskQueue
	Seeder       *Seeder
	FraudScanner *FraudScanner
	Digest       *DigestService
	Demo         *DemoTrafficService
}

// PanelOptions override the collaborators NewPanel would otherwise create.
type PanelOptions struct {
	IDs   IDGenerator
	Hub   *SSEHub
	Queue TaskQueue
}

func NewPanel(db *gorm.DB, cfg *config.Config, opts PanelOptions) *Panel {
	ids := opts.IDs
	if ids == nil {
		ids = NewRandomIDGenerator()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewSSEHub()
	}
	queue := opts.Queue
	if queue == nil {
		queue = NewSyncQueue()
	}

	p := &Panel{
		DB:        db,
		Projects:  NewProjectService(db, ids),
		Vendors:   NewVendorService(db, ids),
		Responses: NewResponseService(db, ids),
		Dashboard: NewDashboardService(db),
		Reports:   NewReportService(db, FraudThresholdsFromConfig(&cfg.Fraud)),
		Settings:  NewSettingsService(db),
		Logs:      NewSystemLogService(db),
		Links:     NewLinkBuilder(cfg.Links.Host),
		Hub:       hub,
		Notifier:  NewNotificationService(cfg.Notification),
		Queue:     queue,
	}
	p.Quota = NewQuotaService(db, QuotaOptionsFromConfig(&cfg.Quota), queue)
	p.QuotaActions = NewQuotaActionService(db, cfg.Quota.Enforce, hub, p.Notifier)
	p.Export = NewExportService(db, p.Responses, p.Settings)
	p.Seeder = NewSeeder(db, p.Projects, p.Vendors, p.Responses)
	p.FraudScanner = NewFraudScanner(p.Reports, hub, p.Notifier)
	p.Digest = NewDigestService(p.Dashboard, p.Reports, p.Notifier)
	p.Demo = NewDemoTrafficService(db, p.Responses, hub, uint64(nowFunc().UnixNano()))

	if sq, ok := queue.(*SyncQueue); ok {
		sq.SetProcessor(p.QuotaActions.Process)
	}
	p.Responses.SetPolicy(IngestPolicy{
		EnforceQuota: cfg.Quota.Enforce,
		BlockIPs:     func() bool { return p.Settings.Bool(SettingAutoBlockIPs, false) },
		Thresholds:   p.Reports.Thresholds(),
	})
	p.Notifier.SetGate(func() bool { return p.Settings.Bool(SettingAdminNotifications, true) })
	p.FraudScanner.SetGate(func() bool { return p.Settings.Bool(SettingFraudDetection, true) })

	p.Responses.Observe(hub.OnResponse)
	p.Responses.Observe(p.Quota.OnResponse)
	return p
}

// Close drains the task queue.
func (p *Panel) Close() error {
	if p.Queue != nil {
		return p.Queue.Close()
	}
	return nil
}
