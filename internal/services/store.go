package services

import (
	"errors"
	"time"

	"github.com/huangang/panelsentry/internal/models"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrVendorNotFound  = errors.New("vendor not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrIDExhausted     = errors.New("could not allocate a unique id")
)

const maxIDAttempts = 20

// nowFunc is the store clock. Tests replace it for stable dates.
var nowFunc = time.Now

func today() string {
	return nowFunc().Format("2006-01-02")
}

// uniqueID draws ids from gen until one is unused in model's table.
func uniqueID(tx *gorm.DB, model interface{}, gen func() string) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := gen()
		var n int64
		if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

func exists(tx *gorm.DB, model interface{}, id string) (bool, error) {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// edgesFor loads assignment edges in assignment order, optionally restricted
// to one column value.
func edgesFor(tx *gorm.DB, column, value string) ([]models.ProjectVendor, error) {
	var edges []models.ProjectVendor
	q := tx.Model(&models.ProjectVendor{})
	if column != "" {
		q = q.Where(column+" = ?", value)
	}
	if err := q.Order("id ASC").Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

// attachProjectVendors fills Project.Vendors from the edge table.
func attachProjectVendors(tx *gorm.DB, projects []models.Project) error {
	edges, err := edgesFor(tx, "", "")
	if err != nil {
		return err
	}
	byProject := make(map[string][]string)
	for _, e := range edges {
		byProject[e.ProjectID] = append(byProject[e.ProjectID], e.VendorID)
	}
	for i := range projects {
		projects[i].Vendors = byProject[projects[i].ID]
		if projects[i].Vendors == nil {
			projects[i].Vendors = []string{}
		}
	}
	return nil
}

// attachVendorProjects fills Vendor.AssignedProjects from the edge table.
func attachVendorProjects(tx *gorm.DB, vendors []models.Vendor) error {
	edges, err := edgesFor(tx, "", "")
	if err != nil {
		return err
	}
	byVendor := make(map[string][]string)
	for _, e := range edges {
		byVendor[e.VendorID] = append(byVendor[e.VendorID], e.ProjectID)
	}
	for i := range vendors {
		vendors[i].AssignedProjects = byVendor[vendors[i].ID]
		if vendors[i].AssignedProjects == nil {
			vendors[i].AssignedProjects = []string{}
		}
	}
	return nil
}

// panelData is a consistent read of every collection, used by the derived
// views (analytics, fraud, quota, export).
type panelData struct {
	Projects  []models.Project
	Vendors   []models.Vendor
	Responses []models.Response
	Edges     []models.ProjectVendor
}

func loadPanel(db *gorm.DB) (*panelData, error) {
	data := &panelData{}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("created_at ASC, id ASC").Find(&data.Projects).Error; err != nil {
			return err
		}
		if err := tx.Order("created_at ASC, id ASC").Find(&data.Vendors).Error; err != nil {
			return err
		}
		if err := tx.Order("timestamp ASC, id ASC").Find(&data.Responses).Error; err != nil {
			return err
		}
		edges, err := edgesFor(tx, "", "")
		if err != nil {
			return err
		}
		data.Edges = edges
		if err := attachProjectVendors(tx, data.Projects); err != nil {
			return err
		}
		return attachVendorProjects(tx, data.Vendors)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *panelData) project(id string) *models.Project {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return &d.Projects[i]
		}
	}
	return nil
}

func (d *panelData) vendor(id string) *models.Vendor {
	for i := range d.Vendors {
		if d.Vendors[i].ID == id {
			return &d.Vendors[i]
		}
	}
	return nil
}

// assignedVendors returns the vendors of a project in assignment order.
func (d *panelData) assignedVendors(p *models.Project) []models.Vendor {
	out := make([]models.Vendor, 0, len(p.Vendors))
	for _, id := range p.Vendors {
		if v := d.vendor(id); v != nil {
			out = append(out, *v)
		}
	}
	return out
}
