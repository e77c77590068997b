package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

const BackupVersion = "1.0"

var ErrUnsupportedBackup = errors.New("unsupported backup version")

// CSVHeader is the fixed column order of the responses export.
var CSVHeader = []string{"PID", "Vendor UID", "Client UID", "Status", "IP", "Country", "City", "Date", "Time", "Duration", "Fraud Score"}

// Backup is the full-panel export document.
type Backup struct {
	Projects        []models.Project           `json:"projects"`
	Vendors         []models.Vendor            `json:"vendors"`
	Responses       []models.Response          `json:"responses"`
	Assignments     []models.ProjectVendor     `json:"assignments,omitempty"`
	Settings        map[string]json.RawMessage `json:"settings"`
	Stats           PanelStats                 `json:"stats"`
	BackupTimestamp time.Time                  `json:"backup_timestamp"`
	BackupVersion   string                     `json:"backup_version"`
}

type ExportService struct {
	db        *gorm.DB
	responses *ResponseService
	settings  *SettingsService
}

func NewExportService(db *gorm.DB, responses *ResponseService, settings *SettingsService) *ExportService {
	return &ExportService{db: db, responses: responses, settings: settings}
}

// WriteResponsesCSV writes responses with the fixed header. Fields are quoted
// by encoding/csv when they contain commas, quotes or newlines.
func WriteResponsesCSV(w io.Writer, responses []models.Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range responses {
		ts := r.Timestamp.UTC()
		duration := ""
		if r.Duration != nil {
			duration = strconv.Itoa(*r.Duration)
		}
		score := ""
		if r.FraudScore != nil {
			score = strconv.FormatFloat(*r.FraudScore, 'f', -1, 64)
		}
		if err := cw.Write([]string{
			r.ProjectID,
			r.UID,
			r.ClientUID,
			r.Status,
			r.IP,
			r.Country,
			r.City,
			ts.Format("2006-01-02"),
			ts.Format("15:04:05"),
			duration,
			score,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *ExportService) ResponsesCSV(f *ResponseFilter) ([]byte, error) {
	items, err := s.responses.Find(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteResponsesCSV(&buf, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) Backup() (*Backup, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	return &Backup{
		Projects:        data.Projects,
		Vendors:         data.Vendors,
		Responses:       data.Responses,
		Assignments:     data.Edges,
		Settings:        settings,
		Stats:           ComputePanelStats(data.Projects, data.Vendors, int64(len(data.Responses))),
		BackupTimestamp: nowFunc().UTC(),
		BackupVersion:   BackupVersion,
	}, nil
}

// ReadBackup decodes and version-checks a backup document.
func ReadBackup(r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if b.BackupVersion != BackupVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackup, b.BackupVersion)
	}
	return &b, nil
}

// RestoreBackup replaces every project, vendor, response and assignment with
// the backup contents. Settings are replaced only when the backup has them.
// Assignments are taken from the backup rows, keeping order and paused state.
// Older backups without them get edges rebuilt from project.vendors, then
// from vendor.assigned_projects, unpaused and assigned now. Pairs naming an
// entity missing from the backup are skipped either way.
func (s *ExportService) RestoreBackup(b *Backup) error {
	if b.BackupVersion != BackupVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedBackup, b.BackupVersion)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.ProjectVendor{}, &models.Response{}, &models.Project{}, &models.Vendor{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}

		if len(b.Projects) > 0 {
			if err := tx.CreateInBatches(b.Projects, 100).Error; err != nil {
				return fmt.Errorf("restore projects: %w", err)
			}
		}
		if len(b.Vendors) > 0 {
			if err := tx.CreateInBatches(b.Vendors, 100).Error; err != nil {
				return fmt.Errorf("restore vendors: %w", err)
			}
		}
		if len(b.Responses) > 0 {
			if err := tx.CreateInBatches(b.Responses, 200).Error; err != nil {
				return fmt.Errorf("restore responses: %w", err)
			}
		}

		if edges := backupEdges(b); len(edges) > 0 {
			if err := tx.CreateInBatches(edges, 200).Error; err != nil {
				return fmt.Errorf("restore assignments: %w", err)
			}
		}

		if b.Settings != nil {
			return s.settings.Replace(tx, b.Settings)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().
		Int("projects", len(b.Projects)).
		Int("vendors", len(b.Vendors)).
		Int("responses", len(b.Responses)).
		Msg("backup restored")
	return nil
}

func backupEdges(b *Backup) []models.ProjectVendor {
	projects := make(map[string]bool, len(b.Projects))
	for _, p := range b.Projects {
		projects[p.ID] = true
	}
	vendors := make(map[string]bool, len(b.Vendors))
	for _, v := range b.Vendors {
		vendors[v.ID] = true
	}

	completes := make(map[[2]string]int)
	for _, r := range b.Responses {
		if r.Status == models.ResponseStatusComplete {
			completes[[2]string{r.ProjectID, r.VendorID}]++
		}
	}

	now := nowFunc()
	seen := make(map[[2]string]bool)
	edges := []models.ProjectVendor{}
	keep := func(e models.ProjectVendor) {
		key := [2]string{e.ProjectID, e.VendorID}
		if !projects[e.ProjectID] || !vendors[e.VendorID] || seen[key] {
			return
		}
		seen[key] = true
		e.ID = 0
		e.Completes = completes[key]
		edges = append(edges, e)
	}

	if len(b.Assignments) > 0 {
		rows := append([]models.ProjectVendor(nil), b.Assignments...)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		for _, e := range rows {
			if e.AssignedAt.IsZero() {
				e.AssignedAt = now
			}
			keep(e)
		}
		return edges
	}

	add := func(pid, vid string) {
		keep(models.ProjectVendor{ProjectID: pid, VendorID: vid, AssignedAt: now})
	}
	for _, p := range b.Projects {
		for _, vid := range p.Vendors {
			add(p.ID, vid)
		}
	}
	for _, v := range b.Vendors {
		for _, pid := range v.AssignedProjects {
			add(pid, v.ID)
		}
	}
	return edges
}
