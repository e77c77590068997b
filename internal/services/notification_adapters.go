package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/huangang/panelsentry/pkg/logger"
)

// NotificationAdapter formats an admin notification for one IM platform.
type NotificationAdapter interface {
	Send(ctx context.Context, client *http.Client, webhook string, n *AdminNotification) error
}

func getAdapter(botType string) NotificationAdapter {
	switch botType {
	case "wechat_work":
		return &wecomAdapter{}
	case "feishu":
		return &feishuAdapter{}
	case "slack":
		return &slackAdapter{}
	default:
		return &genericAdapter{}
	}
}

func postJSON(ctx context.Context, client *http.Client, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	logger.Debug().Str("url", webhookURL).Int("bytes", len(body)).Msg("notification POST")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var parts []string
	remaining := msg
	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			parts = append(parts, remaining)
			break
		}

		chunk := remaining[:maxLen]
		breakPoint := maxLen
		for i := len(chunk) - 1; i > maxLen/2; i-- {
			if chunk[i] == '\n' {
				breakPoint = i + 1
				break
			}
		}

		parts = append(parts, remaining[:breakPoint])
		remaining = remaining[breakPoint:]
	}
	return parts
}

// wecomAdapter handles WeCom (Enterprise WeChat) bots
type wecomAdapter struct{}

func (a *wecomAdapter) Send(ctx context.Context, client *http.Client, webhook string, n *AdminNotification) error {
	parts := splitMessage(buildMessage(n), 4000)
	for i, part := range parts {
		content := part
		if len(parts) > 1 {
			content = fmt.Sprintf("**[%d/%d]**\n\n%s", i+1, len(parts), part)
		}
		payload := map[string]interface{}{
			"msgtype": "markdown",
			"markdown": map[string]string{
				"content": content,
			},
		}
		if err := postJSON(ctx, client, webhook, payload); err != nil {
			return err
		}
	}
	return nil
}

// feishuAdapter handles Feishu (Lark) bots
type feishuAdapter struct{}

func (a *feishuAdapter) Send(ctx context.Context, client *http.Client, webhook string, n *AdminNotification) error {
	payload := map[string]interface{}{
		"msg_type": "text",
		"content": map[string]string{
			"text": buildMessage(n),
		},
	}
	return postJSON(ctx, client, webhook, payload)
}

// slackAdapter handles Slack incoming webhooks
type slackAdapter struct{}

func (a *slackAdapter) Send(ctx context.Context, client *http.Client, webhook string, n *AdminNotification) error {
	header := fmt.Sprintf("%s *%s*", severityEmoji(n.Severity), n.Title)
	blocks := []map[string]interface{}{
		{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": header},
		},
	}
	if len(n.Lines) > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]string{"type": "mrkdwn", "text": strings.Join(n.Lines, "\n")},
		})
	}
	if n.Link != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "context",
			"elements": []map[string]string{
				{"type": "mrkdwn", "text": fmt.Sprintf("<%s|Open dashboard>", n.Link)},
			},
		})
	}
	return postJSON(ctx, client, webhook, map[string]interface{}{
		"text":   header,
		"blocks": blocks,
	})
}

// genericAdapter posts the notification fields as plain JSON
type genericAdapter struct{}

func (a *genericAdapter) Send(ctx context.Context, client *http.Client, webhook string, n *AdminNotification) error {
	return postJSON(ctx, client, webhook, map[string]interface{}{
		"title":    n.Title,
		"severity": n.Severity,
		"lines":    n.Lines,
		"link":     n.Link,
	})
}
