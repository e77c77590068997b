package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/pkg/logger"
)

// AdminNotification is a message for the panel operator's IM bot.
type AdminNotification struct {
	Title    string
	Severity string
	Lines    []string
	Link     string
}

// NotificationService posts admin notifications to the configured webhook bot.
type NotificationService struct {
	cfg    config.NotificationConfig
	client *http.Client
	allow  func() bool
}

func NewNotificationService(cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetGate installs a runtime switch consulted on every Notify, e.g. an admin
// setting.
func (s *NotificationService) SetGate(allow func() bool) {
	s.allow = allow
}

func (s *NotificationService) Enabled() bool {
	return s != nil && s.cfg.Enabled && s.cfg.Webhook != "" && (s.allow == nil || s.allow())
}

// Notify sends n. A disabled service drops the message silently.
func (s *NotificationService) Notify(ctx context.Context, n *AdminNotification) error {
	if !s.Enabled() {
		logger.Debug().Str("title", n.Title).Msg("admin notification skipped (disabled)")
		return nil
	}

	adapter := getAdapter(s.cfg.Type)
	if err := adapter.Send(ctx, s.client, s.cfg.Webhook, n); err != nil {
		logger.Error().Err(err).Str("type", s.cfg.Type).Str("title", n.Title).Msg("admin notification failed")
		return fmt.Errorf("notify %s: %w", s.cfg.Type, err)
	}

	logger.Info().Str("type", s.cfg.Type).Str("title", n.Title).Msg("admin notification sent")
	return nil
}

func severityEmoji(severity string) string {
	switch severity {
	case SeverityCritical:
		return "🔴"
	case SeverityHigh:
		return "🟠"
	case SeverityMedium:
		return "🟡"
	}
	return "🟢"
}

// buildMessage renders n as markdown shared by the markdown-capable bots.
func buildMessage(n *AdminNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**\n", severityEmoji(n.Severity), n.Title)
	for _, line := range n.Lines {
		b.WriteString("\n")
		b.WriteString(line)
	}
	if n.Link != "" {
		fmt.Fprintf(&b, "\n\n🔗 [Open dashboard](%s)", n.Link)
	}
	return b.String()
}
