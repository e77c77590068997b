package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

var ErrInvalidSettings = errors.New("settings must be a JSON object")

// SettingsService stores the panel settings document one top-level key per
// row. Values are opaque JSON.
type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the whole settings document.
func (s *SettingsService) Get() (map[string]json.RawMessage, error) {
	var rows []models.Setting
	if err := s.db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		if r.Value == "" || !json.Valid([]byte(r.Value)) {
			out[r.Key] = json.RawMessage("null")
			continue
		}
		out[r.Key] = json.RawMessage(r.Value)
	}
	return out, nil
}

// Value decodes one key into dst. It reports false when the key is absent.
func (s *SettingsService) Value(key string, dst interface{}) (bool, error) {
	var row models.Setting
	err := s.db.Where(&models.Setting{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(row.Value), dst)
}

// Setting keys read by the panel itself.
const (
	SettingFraudDetection     = "fraud_detection_enabled"
	SettingAutoBlockIPs       = "auto_block_ips"
	SettingAdminNotifications = "admin_notifications"
)

// Bool reads a boolean setting. Absent or undecodable values give def.
func (s *SettingsService) Bool(key string, def bool) bool {
	var v bool
	ok, err := s.Value(key, &v)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("setting is not a boolean")
		return def
	}
	if !ok {
		return def
	}
	return v
}

// Merge shallow-merges patch into the stored document: each top-level key is
// replaced wholesale, keys absent from patch are kept.
func (s *SettingsService) Merge(patch map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range patch {
			if !json.Valid(value) {
				return fmt.Errorf("setting %q: %w", key, ErrInvalidSettings)
			}
			if err := upsertSetting(tx, key, string(value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get()
}

// Import merges a settings file. The only validation is that it parses as a
// JSON object.
func (s *SettingsService) Import(data []byte) (map[string]json.RawMessage, error) {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(data, &patch); err != nil || patch == nil {
		return nil, ErrInvalidSettings
	}
	return s.Merge(patch)
}

// Replace drops every setting and stores doc, used by backup restore.
func (s *SettingsService) Replace(tx *gorm.DB, doc map[string]json.RawMessage) error {
	if err := tx.Where("1 = 1").Delete(&models.Setting{}).Error; err != nil {
		return err
	}
	for key, value := range doc {
		if !json.Valid(value) {
			return fmt.Errorf("setting %q: %w", key, ErrInvalidSettings)
		}
		if err := upsertSetting(tx, key, string(value)); err != nil {
			return err
		}
	}
	return nil
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	var row models.Setting
	err := tx.Where(&models.Setting{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.Setting{Key: key, Value: value, Group: "custom", Label: key}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&row).Update("value", value).Error
}
