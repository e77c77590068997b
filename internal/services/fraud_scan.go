package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/huangang/panelsentry/pkg/logger"
)

// FraudScanner runs the fraud heuristics on a schedule and reports alerts
// that are new or have escalated since the previous scan. Only high and
// critical alerts are pushed.
type FraudScanner struct {
	reports  *ReportService
	hub      *SSEHub
	notifier *NotificationService
	enabled  func() bool

	mu   sync.Mutex
	seen map[string]string // alert id -> last reported severity
}

func NewFraudScanner(reports *ReportService, hub *SSEHub, notifier *NotificationService) *FraudScanner {
	return &FraudScanner{
		reports:  reports,
		hub:      hub,
		notifier: notifier,
		seen:     make(map[string]string),
	}
}

// SetGate makes Scan a no-op while enabled reports false.
func (s *FraudScanner) SetGate(enabled func() bool) {
	s.enabled = enabled
}

// Scan returns the alerts reported by this run.
func (s *FraudScanner) Scan(ctx context.Context) ([]FraudAlert, error) {
	if s.enabled != nil && !s.enabled() {
		logger.Debug().Msg("fraud scan skipped, detection disabled")
		return nil, nil
	}
	alerts, err := s.reports.FraudAlerts()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var fresh []FraudAlert
	current := make(map[string]string, len(alerts))
	for _, a := range alerts {
		current[a.ID] = a.Severity
		if severityRank[a.Severity] < severityRank[SeverityHigh] {
			continue
		}
		prev, ok := s.seen[a.ID]
		if ok && severityRank[prev] >= severityRank[a.Severity] {
			continue
		}
		fresh = append(fresh, a)
	}
	// alerts that disappeared may be reported again if they come back
	s.seen = current
	s.mu.Unlock()

	for _, a := range fresh {
		if s.hub != nil {
			s.hub.Publish(PanelEvent{
				Type:     EventFraudAlert,
				VendorID: a.VendorID,
				Severity: a.Severity,
				Message:  a.Description,
				Data:     a,
			})
		}
		LogWarning(AuditEntry{
			Module:   "fraud",
			Action:   a.Type,
			EntityID: a.ID,
			Message:  a.Description,
			Extra:    a,
		})
	}

	if len(fresh) > 0 {
		lines := make([]string, 0, len(fresh))
		for _, a := range TopAlerts(fresh, s.reports.Thresholds()) {
			lines = append(lines, fmt.Sprintf("%s [%s] %s", severityEmoji(a.Severity), a.Severity, a.Description))
		}
		if err := s.notifier.Notify(ctx, &AdminNotification{
			Title:    fmt.Sprintf("%d new fraud alert(s)", len(fresh)),
			Severity: fresh[0].Severity,
			Lines:    lines,
		}); err != nil {
			logger.Warn().Err(err).Msg("fraud alert notification failed")
		}
	}

	logger.Info().Int("alerts", len(alerts)).Int("new", len(fresh)).Msg("fraud scan finished")
	return fresh, nil
}
