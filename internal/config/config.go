package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Log          LogConfig          `yaml:"log"`
	Links        LinksConfig        `yaml:"links"`
	Fraud        FraudConfig        `yaml:"fraud"`
	Quota        QuotaConfig        `yaml:"quota"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Notification NotificationConfig `yaml:"notification"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Demo         DemoConfig         `yaml:"demo"`
	Seed         SeedConfig         `yaml:"seed"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test

	// CORSOrigins lists dashboard origins; empty allows any origin without
	// credentials.
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig selects the gorm dialect. The default sqlite DSN is an
// in-memory database that lives as long as the process.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig for optional async quota action queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type LinksConfig struct {
	Host string `yaml:"host"`
}

// FraudConfig holds the canonical heuristic thresholds. Groups are flagged when
// their size is strictly greater than the threshold.
type FraudConfig struct {
	IPDuplicateThreshold  int     `yaml:"ip_duplicate_threshold"`
	IPHighThreshold       int     `yaml:"ip_high_threshold"`
	IPCriticalThreshold   int     `yaml:"ip_critical_threshold"`
	UIDDuplicateThreshold int     `yaml:"uid_duplicate_threshold"`
	UIDHighThreshold      int     `yaml:"uid_high_threshold"`
	UIDCriticalThreshold  int     `yaml:"uid_critical_threshold"`
	VendorAlertScore      float64 `yaml:"vendor_alert_score"`
	VendorCriticalScore   float64 `yaml:"vendor_critical_score"`
	IPBlockScore          int     `yaml:"ip_block_score"`
	AlertLimit            int     `yaml:"alert_limit"`
}

type QuotaConfig struct {
	VendorShare  float64 `yaml:"vendor_share"`
	GlobalAction string  `yaml:"global_action"` // pause-vendor, redirect-quota-full, notify-admin
	VendorAction string  `yaml:"vendor_action"`
	Enforce      bool    `yaml:"enforce"`
}

type SchedulerConfig struct {
	FraudScanCron      string `yaml:"fraud_scan_cron"`
	DigestCron         string `yaml:"digest_cron"`
	LogCleanupCron     string `yaml:"log_cleanup_cron"`
	LogRetentionDays   int    `yaml:"log_retention_days"`
	DisableFraudScan   bool   `yaml:"disable_fraud_scan"`
	DisableDailyDigest bool   `yaml:"disable_daily_digest"`
}

// NotificationConfig points at the admin IM bot webhook.
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // slack, feishu, wechat_work, generic
	Webhook string `yaml:"webhook"`
}

type RateLimitConfig struct {
	ResponsesRPS   float64 `yaml:"responses_rps"`
	ResponsesBurst int     `yaml:"responses_burst"`
}

// DemoConfig controls the synthetic traffic generator. It exists for demos only.
type DemoConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		// Unmarshal over defaults so partial files keep sane values
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file::memory:?cache=shared",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level: "info",
		},
		Links: LinksConfig{
			Host: "survey.panelsentry.io",
		},
		Fraud: FraudConfig{
			IPDuplicateThreshold:  3,
			IPHighThreshold:       6,
			IPCriticalThreshold:   10,
			UIDDuplicateThreshold: 1,
			UIDHighThreshold:      3,
			UIDCriticalThreshold:  5,
			VendorAlertScore:      4.0,
			VendorCriticalScore:   4.5,
			IPBlockScore:          8,
			AlertLimit:            10,
		},
		Quota: QuotaConfig{
			VendorShare:  0.3,
			GlobalAction: "redirect-quota-full",
			VendorAction: "pause-vendor",
			Enforce:      false,
		},
		Scheduler: SchedulerConfig{
			FraudScanCron:    "*/5 * * * *",
			DigestCron:       "0 18 * * *",
			LogCleanupCron:   "0 3 * * *",
			LogRetentionDays: 30,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Type:    "generic",
		},
		RateLimit: RateLimitConfig{
			ResponsesRPS:   20,
			ResponsesBurst: 40,
		},
		Demo: DemoConfig{
			Enabled: false,
			Cron:    "@every 10s",
		},
		Seed: SeedConfig{
			Enabled: true,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if host := os.Getenv("LINK_HOST"); host != "" {
		c.Links.Host = host
	}
	if webhook := os.Getenv("NOTIFY_WEBHOOK"); webhook != "" {
		c.Notification.Enabled = true
		c.Notification.Webhook = webhook
	}
	if v := os.Getenv("QUOTA_ENFORCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Quota.Enforce = b
		}
	}
	if v := os.Getenv("DEMO_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Demo.Enabled = b
		}
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
