package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
)

const maxAuditBody = 2000

// AuditLog records admin write operations (POST/PUT/DELETE) to system_logs.
// Routes listed in skip (gin full paths) are not recorded.
func AuditLog(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}
		if skipped[c.FullPath()] {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
			body = truncateBody(string(raw), maxAuditBody)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)
		entry := services.AuditEntry{
			Module:    module,
			Action:    action,
			EntityID:  c.Param("id"),
			Message:   formatAuditMessage(method, c.Request.URL.Path, status),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   body,
				"audit":  true,
			},
		}
		if status >= 400 {
			services.LogWarning(entry)
			return
		}
		services.LogInfo(entry)
	}
}

// truncateBody cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/projects/:id/vendors/:vendor_id" + "POST" gives
// module="Projects", action="Create Vendors"
func parseRouteInfo(fullPath, method string) (module, action string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(fullPath, "/api/"), "/"), "/")
	module = parts[0]
	if module == "" {
		module = "unknown"
	}
	module = titleWords(module)

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}

	// first static sub-resource names what was acted on
	for _, p := range parts[1:] {
		if p != "" && !strings.HasPrefix(p, ":") {
			action += " " + titleWords(p)
			break
		}
	}
	return module, action
}

// titleWords turns "system-logs" into "System Logs".
func titleWords(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatAuditMessage(method, path string, status int) string {
	result := "OK"
	if status < 200 || status >= 300 {
		result = "Failed"
	}
	return fmt.Sprintf("[Audit] %s %s → %s", method, path, result)
}
