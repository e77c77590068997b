package services

import (
	"context"
	"fmt"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

// QuotaActionService carries out fired quota rules. In advisory mode (the
// default) actions are only logged, audited and published. With enforce on,
// pause-vendor and redirect-quota-full pause assignment edges.
type QuotaActionService struct {
	db       *gorm.DB
	enforce  bool
	hub      *SSEHub
	notifier *NotificationService
}

func NewQuotaActionService(db *gorm.DB, enforce bool, hub *SSEHub, notifier *NotificationService) *QuotaActionService {
	return &QuotaActionService{db: db, enforce: enforce, hub: hub, notifier: notifier}
}

// Process is the TaskQueue processor for TaskTypeQuotaAction.
func (s *QuotaActionService) Process(ctx context.Context, task *QuotaActionTask) error {
	log := logger.Component("quota").With().
		Str("rule", task.RuleID).
		Str("action", task.Action).
		Bool("enforce", s.enforce).
		Logger()

	paused := int64(0)
	switch task.Action {
	case ActionPauseVendor:
		if s.enforce && task.VendorID != "" {
			n, err := s.pauseEdges(task.ProjectID, task.VendorID)
			if err != nil {
				return err
			}
			paused = n
		}
	case ActionRedirectQuotaFull:
		if s.enforce {
			n, err := s.pauseEdges(task.ProjectID, "")
			if err != nil {
				return err
			}
			paused = n
		}
	case ActionNotifyAdmin:
		if err := s.notify(ctx, task); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown quota action %q", task.Action)
	}

	log.Info().Int64("paused_edges", paused).Msg("quota action processed")

	message := fmt.Sprintf("%s quota reached on %s (%d/%d): %s", task.RuleType, task.ProjectID, task.Current, task.Limit, task.Action)
	LogInfo(AuditEntry{
		Module:   "quota",
		Action:   task.Action,
		EntityID: task.ProjectID,
		Message:  message,
		Extra:    task,
	})
	if s.hub != nil {
		s.hub.Publish(PanelEvent{
			Type:      EventQuotaReached,
			ProjectID: task.ProjectID,
			VendorID:  task.VendorID,
			Severity:  SeverityHigh,
			Message:   message,
			Data:      task,
		})
	}
	return nil
}

// pauseEdges pauses one vendor's edge on a project, or every edge of the
// project when vendorID is empty.
func (s *QuotaActionService) pauseEdges(projectID, vendorID string) (int64, error) {
	q := s.db.Model(&models.ProjectVendor{}).Where("project_id = ? AND paused = ?", projectID, false)
	if vendorID != "" {
		q = q.Where("vendor_id = ?", vendorID)
	}
	result := q.Update("paused", true)
	return result.RowsAffected, result.Error
}

func (s *QuotaActionService) notify(ctx context.Context, task *QuotaActionTask) error {
	lines := []string{
		fmt.Sprintf("**Project**: %s", task.ProjectID),
		fmt.Sprintf("**Rule**: %s", task.RuleType),
		fmt.Sprintf("**Completes**: %d / %d", task.Current, task.Limit),
	}
	if task.VendorID != "" {
		lines = append(lines, fmt.Sprintf("**Vendor**: %s", task.VendorID))
	}
	return s.notifier.Notify(ctx, &AdminNotification{
		Title:    "Quota limit reached",
		Severity: SeverityHigh,
		Lines:    lines,
	})
}
