package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/projects", "POST", "Projects", "Create"},
		{"/api/projects/:id", "PUT", "Projects", "Update"},
		{"/api/projects/:id/status", "PUT", "Projects", "Update Status"},
		{"/api/projects/:id/vendors/:vendor_id", "DELETE", "Projects", "Delete Vendors"},
		{"/api/system-logs", "POST", "System Logs", "Create"},
		{"/api/backup/restore", "POST", "Backup", "Create Restore"},
		{"", "PATCH", "Unknown", "PATCH"},
	}
	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = %q, %q; want %q, %q",
				tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestFormatAuditMessage(t *testing.T) {
	if got := formatAuditMessage("PUT", "/api/vendors/V001", 200); got != "[Audit] PUT /api/vendors/V001 → OK" {
		t.Errorf("unexpected message %q", got)
	}
	if got := formatAuditMessage("DELETE", "/api/vendors/V404", 404); got != "[Audit] DELETE /api/vendors/V404 → Failed" {
		t.Errorf("unexpected message %q", got)
	}
}

func openAuditDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	services.InitSystemLogger(db)
	t.Cleanup(func() { services.InitSystemLogger(nil) })
	return db
}

func TestAuditLog_RecordsWrites(t *testing.T) {
	db := openAuditDB(t)

	router := gin.New()
	router.Use(AuditLog("/api/responses"))
	router.PUT("/api/projects/:id", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	router.GET("/api/projects/:id", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	router.POST("/api/responses", func(c *gin.Context) {
		c.JSON(201, gin.H{"ok": true})
	})

	for _, r := range []struct{ method, path string }{
		{"PUT", "/api/projects/P00001"},
		{"GET", "/api/projects/P00001"},
		{"POST", "/api/responses"},
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(r.method, r.path, bytes.NewBufferString(`{"name":"Renamed"}`))
		router.ServeHTTP(w, req)
	}

	var logs []models.SystemLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(logs))
	}
	got := logs[0]
	if got.Module != "Projects" || got.Action != "Update" || got.EntityID != "P00001" || got.Level != "info" {
		t.Errorf("unexpected audit row %+v", got)
	}
	if !bytes.Contains([]byte(got.Extra), []byte("Renamed")) {
		t.Errorf("request body missing from extra: %s", got.Extra)
	}
}

func TestAuditLog_FailedWriteIsWarning(t *testing.T) {
	db := openAuditDB(t)

	router := gin.New()
	router.Use(AuditLog())
	router.DELETE("/api/vendors/:id", func(c *gin.Context) {
		c.JSON(404, gin.H{"message": "vendor not found"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/vendors/V999", nil)
	router.ServeHTTP(w, req)

	var log models.SystemLog
	if err := db.First(&log).Error; err != nil {
		t.Fatal(err)
	}
	if log.Level != "warning" || log.EntityID != "V999" {
		t.Errorf("unexpected audit row %+v", log)
	}
}

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"ascii", "abcdef", 4, "abcd...[truncated]"},
		{"cut inside rune", "ab€cd", 3, "ab...[truncated]"},
		{"cut after rune", "ab€cd", 5, "ab€...[truncated]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateBody(tt.in, tt.max); got != tt.want {
				t.Errorf("truncateBody(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestAuditLog_TruncatesMultibyteBody(t *testing.T) {
	db := openAuditDB(t)

	router := gin.New()
	router.Use(AuditLog())
	router.POST("/api/projects", func(c *gin.Context) {
		c.JSON(201, gin.H{"ok": true})
	})

	// 3-byte runes put the byte limit in the middle of one
	name := strings.Repeat("€", 1000)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/projects", bytes.NewBufferString(`{"name":"`+name+`"}`))
	router.ServeHTTP(w, req)

	var log models.SystemLog
	if err := db.First(&log).Error; err != nil {
		t.Fatal(err)
	}
	var extra struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(log.Extra), &extra); err != nil {
		t.Fatalf("extra is not JSON: %v", err)
	}
	if !strings.HasSuffix(extra.Body, "...[truncated]") {
		t.Fatalf("body was not truncated: %q", extra.Body)
	}
	kept := strings.TrimSuffix(extra.Body, "...[truncated]")
	if len(kept) > maxAuditBody {
		t.Errorf("kept %d bytes, limit is %d", len(kept), maxAuditBody)
	}
	if !utf8.ValidString(kept) || strings.ContainsRune(kept, utf8.RuneError) {
		t.Errorf("truncated body split a rune: %q", kept[len(kept)-8:])
	}
}
