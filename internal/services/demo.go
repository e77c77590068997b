package services

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

// DemoClientUID marks every response produced by the demo generator.
const DemoClientUID = "demo-traffic"

var demoCountries = []struct{ country, city string }{
	{"US", "New York"}, {"US", "Dallas"}, {"UK", "Manchester"}, {"CA", "Vancouver"}, {"DE", "Berlin"},
}

// DemoTrafficService adds synthetic responses for live demos. It is off by
// default and goes through ResponseService.Add like real traffic; nothing
// in the aggregation code knows about it.
type DemoTrafficService struct {
	db        *gorm.DB
	responses *ResponseService
	hub       *SSEHub

	mu  sync.Mutex
	rnd *rand.Rand
	seq int
}

func NewDemoTrafficService(db *gorm.DB, responses *ResponseService, hub *SSEHub, seed uint64) *DemoTrafficService {
	return &DemoTrafficService{
		db:        db,
		responses: responses,
		hub:       hub,
		rnd:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *DemoTrafficService) pickStatus() string {
	switch n := s.rnd.IntN(100); {
	case n < 55:
		return models.ResponseStatusComplete
	case n < 85:
		return models.ResponseStatusTerminate
	case n < 95:
		return models.ResponseStatusQuotaFull
	}
	return models.ResponseStatusStudyClosed
}

// Tick records one synthetic response on a random unpaused assignment of an
// active project. It returns nil, nil when there is nothing to send to.
func (s *DemoTrafficService) Tick() (*models.Response, error) {
	var edges []models.ProjectVendor
	err := s.db.Model(&models.ProjectVendor{}).
		Joins("JOIN projects ON projects.id = project_vendors.project_id").
		Joins("JOIN vendors ON vendors.id = project_vendors.vendor_id").
		Where("projects.status = ? AND vendors.status = ? AND project_vendors.paused = ?",
			models.ProjectStatusActive, models.VendorStatusActive, false).
		Order("project_vendors.id ASC").
		Select("project_vendors.*").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	edge := edges[s.rnd.IntN(len(edges))]
	s.seq++
	place := demoCountries[s.rnd.IntN(len(demoCountries))]
	duration := 60 + s.rnd.IntN(900)
	req := &CreateResponseRequest{
		ProjectID: edge.ProjectID,
		VendorID:  edge.VendorID,
		UID:       fmt.Sprintf("demo-%06d", s.seq),
		ClientUID: DemoClientUID,
		Status:    s.pickStatus(),
		IP:        fmt.Sprintf("203.0.113.%d", 1+s.rnd.IntN(200)),
		Country:   place.country,
		City:      place.city,
		Duration:  &duration,
	}
	s.mu.Unlock()

	resp, err := s.responses.Add(req)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("response_id", resp.ID).Msg("demo response generated")
	if s.hub != nil {
		s.hub.Publish(PanelEvent{
			Type:      EventDemoTraffic,
			ProjectID: resp.ProjectID,
			VendorID:  resp.VendorID,
			Message:   "synthetic demo response",
		})
	}
	return resp, nil
}
