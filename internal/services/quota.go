package services

import (
	"math"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

const (
	QuotaRuleGlobal = "global"
	QuotaRuleVendor = "vendor"

	ActionPauseVendor       = "pause-vendor"
	ActionRedirectQuotaFull = "redirect-quota-full"
	ActionNotifyAdmin       = "notify-admin"

	QuotaLimitReached = "limit-reached"
	QuotaNearLimit    = "near-limit"
	QuotaOnTrack      = "on-track"

	nearLimitProgress = 80
)

func IsValidQuotaAction(a string) bool {
	switch a {
	case ActionPauseVendor, ActionRedirectQuotaFull, ActionNotifyAdmin:
		return true
	}
	return false
}

// QuotaOptions configure the vendor share and the action label of each rule
// kind.
type QuotaOptions struct {
	VendorShare  float64
	GlobalAction string
	VendorAction string
}

func DefaultQuotaOptions() QuotaOptions {
	return QuotaOptions{
		VendorShare:  0.3,
		GlobalAction: ActionRedirectQuotaFull,
		VendorAction: ActionPauseVendor,
	}
}

func QuotaOptionsFromConfig(cfg *config.QuotaConfig) QuotaOptions {
	opts := DefaultQuotaOptions()
	if cfg == nil {
		return opts
	}
	if cfg.VendorShare > 0 {
		opts.VendorShare = cfg.VendorShare
	}
	if IsValidQuotaAction(cfg.GlobalAction) {
		opts.GlobalAction = cfg.GlobalAction
	}
	if IsValidQuotaAction(cfg.VendorAction) {
		opts.VendorAction = cfg.VendorAction
	}
	return opts
}

type QuotaRule struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"` // global, vendor
	ProjectID string  `json:"project_id"`
	VendorID  string  `json:"vendor_id,omitempty"`
	Limit     int     `json:"limit"`
	Current   int     `json:"current"`
	Progress  float64 `json:"progress"`
	IsAtLimit bool    `json:"is_at_limit"`
	Label     string  `json:"label"`
	Action    string  `json:"action"`
	Paused    bool    `json:"paused,omitempty"`
}

type VendorQuotaStatus struct {
	VendorID   string  `json:"vendor_id"`
	VendorName string  `json:"vendor_name"`
	Completes  int     `json:"completes"`
	Limit      int     `json:"limit"`
	Progress   float64 `json:"progress"`
	IsAtLimit  bool    `json:"is_at_limit"`
	Label      string  `json:"label"`
	Paused     bool    `json:"paused"`
}

// VendorQuotaLimit splits a project quota across its vendors.
func VendorQuotaLimit(totalQuota, vendorCount int, share float64) int {
	if vendorCount <= 0 {
		return 0
	}
	return int(math.Floor(float64(totalQuota) / float64(vendorCount) * share))
}

// QuotaProgress returns progress in percent, capped at 100. A non-positive
// limit counts as already reached.
func QuotaProgress(current, limit int) (float64, bool) {
	if limit <= 0 {
		return 100, true
	}
	return min(100, float64(current)/float64(limit)*100), current >= limit
}

func QuotaLabel(progress float64, atLimit bool) string {
	switch {
	case atLimit:
		return QuotaLimitReached
	case progress >= nearLimitProgress:
		return QuotaNearLimit
	}
	return QuotaOnTrack
}

func newQuotaRule(kind, projectID, vendorID string, current, limit int, action string) QuotaRule {
	progress, atLimit := QuotaProgress(current, limit)
	id := kind + ":" + projectID
	if vendorID != "" {
		id += ":" + vendorID
	}
	return QuotaRule{
		ID:        id,
		Type:      kind,
		ProjectID: projectID,
		VendorID:  vendorID,
		Limit:     limit,
		Current:   current,
		Progress:  progress,
		IsAtLimit: atLimit,
		Label:     QuotaLabel(progress, atLimit),
		Action:    action,
	}
}

// EvaluateQuotaRules returns the global rule followed by one vendor rule per
// assigned vendor, in assignment order.
func EvaluateQuotaRules(p *models.Project, vendors []models.Vendor, responses []models.Response, opts QuotaOptions) []QuotaRule {
	rules := []QuotaRule{newQuotaRule(QuotaRuleGlobal, p.ID, "", p.Completes, p.TotalQuota, opts.GlobalAction)}

	completes := vendorCompletesOn(p.ID, responses)
	limit := VendorQuotaLimit(p.TotalQuota, len(vendors), opts.VendorShare)
	for _, v := range vendors {
		rules = append(rules, newQuotaRule(QuotaRuleVendor, p.ID, v.ID, completes[v.ID], limit, opts.VendorAction))
	}
	return rules
}

// ComputeVendorQuotaStatus is the per-vendor view of the vendor rules.
func ComputeVendorQuotaStatus(p *models.Project, vendors []models.Vendor, responses []models.Response, opts QuotaOptions) []VendorQuotaStatus {
	completes := vendorCompletesOn(p.ID, responses)
	limit := VendorQuotaLimit(p.TotalQuota, len(vendors), opts.VendorShare)
	out := make([]VendorQuotaStatus, 0, len(vendors))
	for _, v := range vendors {
		progress, atLimit := QuotaProgress(completes[v.ID], limit)
		out = append(out, VendorQuotaStatus{
			VendorID:   v.ID,
			VendorName: v.Name,
			Completes:  completes[v.ID],
			Limit:      limit,
			Progress:   progress,
			IsAtLimit:  atLimit,
			Label:      QuotaLabel(progress, atLimit),
		})
	}
	return out
}

func vendorCompletesOn(projectID string, responses []models.Response) map[string]int {
	out := make(map[string]int)
	for _, r := range responses {
		if r.ProjectID == projectID && r.Status == models.ResponseStatusComplete {
			out[r.VendorID]++
		}
	}
	return out
}

// ProjectQuota is the quota view served for one project.
type ProjectQuota struct {
	ProjectID string              `json:"project_id"`
	Rules     []QuotaRule         `json:"rules"`
	Vendors   []VendorQuotaStatus `json:"vendors"`
}

// QuotaService evaluates rules on read and detects the moment a rule reaches
// its limit so the configured action can be dispatched.
type QuotaService struct {
	db    *gorm.DB
	opts  QuotaOptions
	queue TaskQueue
}

func NewQuotaService(db *gorm.DB, opts QuotaOptions, queue TaskQueue) *QuotaService {
	return &QuotaService{db: db, opts: opts, queue: queue}
}

// ForProject evaluates the rules of one project with current data.
func (s *QuotaService) ForProject(projectID string) (*ProjectQuota, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	p := data.project(projectID)
	if p == nil {
		return nil, ErrProjectNotFound
	}
	vendors := data.assignedVendors(p)

	paused := make(map[string]bool)
	for _, e := range data.Edges {
		if e.ProjectID == projectID && e.Paused {
			paused[e.VendorID] = true
		}
	}

	rules := EvaluateQuotaRules(p, vendors, data.Responses, s.opts)
	for i := range rules {
		rules[i].Paused = paused[rules[i].VendorID]
	}
	statuses := ComputeVendorQuotaStatus(p, vendors, data.Responses, s.opts)
	for i := range statuses {
		statuses[i].Paused = paused[statuses[i].VendorID]
	}

	return &ProjectQuota{ProjectID: projectID, Rules: rules, Vendors: statuses}, nil
}

// TriggeredRules returns the rules that a just-recorded complete response
// pushed exactly onto their limit. Other statuses never trigger. t carries
// the counters read inside the recording transaction, so of several
// concurrent completes only the one that reached the limit fires.
func (s *QuotaService) TriggeredRules(resp *models.Response, t *ResponseTally) []QuotaRule {
	if resp.Status != models.ResponseStatusComplete || t == nil || !t.ProjectFound {
		return nil
	}

	var fired []QuotaRule
	if t.TotalQuota > 0 && t.ProjectCompletes == t.TotalQuota {
		fired = append(fired, newQuotaRule(QuotaRuleGlobal, resp.ProjectID, "", t.ProjectCompletes, t.TotalQuota, s.opts.GlobalAction))
	}
	if !t.Assigned {
		return fired
	}

	limit := VendorQuotaLimit(t.TotalQuota, t.AssignedVendors, s.opts.VendorShare)
	if limit > 0 && t.VendorCompletes == limit {
		fired = append(fired, newQuotaRule(QuotaRuleVendor, resp.ProjectID, resp.VendorID, t.VendorCompletes, limit, s.opts.VendorAction))
	}
	return fired
}

// OnResponse is registered as a ResponseObserver. Every rule that fires is
// handed to the task queue as a quota action.
func (s *QuotaService) OnResponse(resp *models.Response, tally *ResponseTally) {
	for _, rule := range s.TriggeredRules(resp, tally) {
		task := &QuotaActionTask{
			RuleID:     rule.ID,
			RuleType:   rule.Type,
			Action:     rule.Action,
			ProjectID:  rule.ProjectID,
			VendorID:   rule.VendorID,
			Limit:      rule.Limit,
			Current:    rule.Current,
			ResponseID: resp.ID,
		}
		logger.Info().
			Str("rule", rule.ID).
			Str("action", rule.Action).
			Int("limit", rule.Limit).
			Msg("quota limit reached")
		if s.queue == nil {
			continue
		}
		if err := s.queue.Enqueue(task); err != nil {
			logger.Error().Err(err).Str("rule", rule.ID).Msg("failed to enqueue quota action")
		}
	}
}
