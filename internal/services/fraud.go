package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
)

const (
	AlertDuplicateIP        = "duplicate-ip"
	AlertDuplicateUID       = "duplicate-uid"
	AlertSuspiciousPattern  = "suspicious-pattern"
	SeverityLow             = "low"
	SeverityMedium          = "medium"
	SeverityHigh            = "high"
	SeverityCritical        = "critical"
	riskCriticalFraudScore  = 4.0
	riskHighFraudScore      = 3.0
	riskMediumFraudScore    = 2.0
	ipRiskManyResponses     = 10
	ipRiskSingleUIDMinCount = 5
	ipRiskManyVendors       = 3
	ipRiskScoreCap          = 10
)

var severityRank = map[string]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// FraudThresholds is the single threshold table used by alerts, vendor scores
// and the IP monitor. Group rules fire when a count is strictly greater than
// the threshold.
type FraudThresholds struct {
	IPDuplicate         int
	IPHigh              int
	IPCritical          int
	UIDDuplicate        int
	UIDHigh             int
	UIDCritical         int
	VendorAlertScore    float64
	VendorCriticalScore float64
	IPBlockScore        int
	AlertLimit          int
}

func DefaultFraudThresholds() FraudThresholds {
	return FraudThresholds{
		IPDuplicate:         3,
		IPHigh:              6,
		IPCritical:          10,
		UIDDuplicate:        1,
		UIDHigh:             3,
		UIDCritical:         5,
		VendorAlertScore:    4.0,
		VendorCriticalScore: 4.5,
		IPBlockScore:        8,
		AlertLimit:          10,
	}
}

// FraudThresholdsFromConfig overlays the non-zero config values on the
// defaults.
func FraudThresholdsFromConfig(cfg *config.FraudConfig) FraudThresholds {
	th := DefaultFraudThresholds()
	if cfg == nil {
		return th
	}
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setFloat := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setInt(&th.IPDuplicate, cfg.IPDuplicateThreshold)
	setInt(&th.IPHigh, cfg.IPHighThreshold)
	setInt(&th.IPCritical, cfg.IPCriticalThreshold)
	setInt(&th.UIDDuplicate, cfg.UIDDuplicateThreshold)
	setInt(&th.UIDHigh, cfg.UIDHighThreshold)
	setInt(&th.UIDCritical, cfg.UIDCriticalThreshold)
	setFloat(&th.VendorAlertScore, cfg.VendorAlertScore)
	setFloat(&th.VendorCriticalScore, cfg.VendorCriticalScore)
	setInt(&th.IPBlockScore, cfg.IPBlockScore)
	setInt(&th.AlertLimit, cfg.AlertLimit)
	return th
}

func (th FraudThresholds) ipSeverity(n int) string {
	switch {
	case n > th.IPCritical:
		return SeverityCritical
	case n > th.IPHigh:
		return SeverityHigh
	}
	return SeverityMedium
}

func (th FraudThresholds) uidSeverity(n int) string {
	switch {
	case n > th.UIDCritical:
		return SeverityCritical
	case n > th.UIDHigh:
		return SeverityHigh
	}
	return SeverityMedium
}

// VendorRiskLevel maps a stored 0-5 fraud score to a label. Its cut points
// are independent of the suspicious-pattern alert thresholds.
func VendorRiskLevel(score float64) string {
	switch {
	case score >= riskCriticalFraudScore:
		return SeverityCritical
	case score >= riskHighFraudScore:
		return SeverityHigh
	case score >= riskMediumFraudScore:
		return SeverityMedium
	}
	return SeverityLow
}

type FraudAlert struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	IP            string    `json:"ip,omitempty"`
	UID           string    `json:"uid,omitempty"`
	VendorID      string    `json:"vendor_id,omitempty"`
	VendorIDs     []string  `json:"vendor_ids,omitempty"`
	ProjectIDs    []string  `json:"project_ids,omitempty"`
	ResponseCount int       `json:"response_count"`
	FraudScore    float64   `json:"fraud_score,omitempty"`
	DetectedAt    time.Time `json:"detected_at"`
}

// responseGroup is a set of responses sharing one key, kept in first-seen
// order.
type responseGroup struct {
	Key       string
	Responses []models.Response
}

func groupResponses(responses []models.Response, key func(*models.Response) string) []responseGroup {
	index := make(map[string]int)
	var groups []responseGroup
	for i := range responses {
		k := key(&responses[i])
		if k == "" {
			continue
		}
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, responseGroup{Key: k})
		}
		groups[pos].Responses = append(groups[pos].Responses, responses[i])
	}
	return groups
}

func byIP(r *models.Response) string  { return r.IP }
func byUID(r *models.Response) string { return r.UID }

func (g *responseGroup) distinct(field func(*models.Response) string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range g.Responses {
		v := field(&g.Responses[i])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (g *responseGroup) latest() time.Time {
	var t time.Time
	for _, r := range g.Responses {
		if r.Timestamp.After(t) {
			t = r.Timestamp
		}
	}
	return t
}

func vendorOf(r *models.Response) string  { return r.VendorID }
func projectOf(r *models.Response) string { return r.ProjectID }

// DetectFraudAlerts runs the duplicate-ip, duplicate-uid and
// suspicious-pattern rules and returns every alert ordered by severity, then
// latest evidence, then generation order. It does not truncate.
func DetectFraudAlerts(responses []models.Response, vendors []models.Vendor, th FraudThresholds) []FraudAlert {
	var alerts []FraudAlert

	for _, g := range groupResponses(responses, byIP) {
		n := len(g.Responses)
		if n <= th.IPDuplicate {
			continue
		}
		alerts = append(alerts, FraudAlert{
			ID:            AlertDuplicateIP + ":" + g.Key,
			Type:          AlertDuplicateIP,
			Severity:      th.ipSeverity(n),
			Description:   fmt.Sprintf("%d responses from IP %s", n, g.Key),
			IP:            g.Key,
			VendorIDs:     g.distinct(vendorOf),
			ProjectIDs:    g.distinct(projectOf),
			ResponseCount: n,
			DetectedAt:    g.latest(),
		})
	}

	for _, g := range groupResponses(responses, byUID) {
		n := len(g.Responses)
		if n <= th.UIDDuplicate {
			continue
		}
		alerts = append(alerts, FraudAlert{
			ID:            AlertDuplicateUID + ":" + g.Key,
			Type:          AlertDuplicateUID,
			Severity:      th.uidSeverity(n),
			Description:   fmt.Sprintf("UID %s submitted %d times", g.Key, n),
			UID:           g.Key,
			VendorIDs:     g.distinct(vendorOf),
			ProjectIDs:    g.distinct(projectOf),
			ResponseCount: n,
			DetectedAt:    g.latest(),
		})
	}

	latestByVendor := make(map[string]time.Time)
	countByVendor := make(map[string]int)
	for _, r := range responses {
		countByVendor[r.VendorID]++
		if r.Timestamp.After(latestByVendor[r.VendorID]) {
			latestByVendor[r.VendorID] = r.Timestamp
		}
	}
	for _, v := range vendors {
		if v.FraudScore < th.VendorAlertScore {
			continue
		}
		severity := SeverityHigh
		if v.FraudScore >= th.VendorCriticalScore {
			severity = SeverityCritical
		}
		alerts = append(alerts, FraudAlert{
			ID:            AlertSuspiciousPattern + ":" + v.ID,
			Type:          AlertSuspiciousPattern,
			Severity:      severity,
			Description:   fmt.Sprintf("Vendor %s has fraud score %.1f", v.Name, v.FraudScore),
			VendorID:      v.ID,
			ResponseCount: countByVendor[v.ID],
			FraudScore:    v.FraudScore,
			DetectedAt:    latestByVendor[v.ID],
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := severityRank[alerts[i].Severity], severityRank[alerts[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return alerts[i].DetectedAt.After(alerts[j].DetectedAt)
	})
	return alerts
}

// TopAlerts truncates an ordered alert list to the configured limit.
func TopAlerts(alerts []FraudAlert, th FraudThresholds) []FraudAlert {
	if th.AlertLimit > 0 && len(alerts) > th.AlertLimit {
		return alerts[:th.AlertLimit]
	}
	return alerts
}

type IPMonitoring struct {
	IP            string    `json:"ip"`
	ResponseCount int       `json:"response_count"`
	UniqueUIDs    int       `json:"unique_uids"`
	VendorIDs     []string  `json:"vendor_ids"`
	ProjectIDs    []string  `json:"project_ids"`
	Country       string    `json:"country,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
	RiskScore     int       `json:"risk_score"`
	IsBlocked     bool      `json:"is_blocked"`
}

// IPRiskScore scores one IP on a 0-10 scale.
func IPRiskScore(responseCount, uniqueUIDs, vendorCount int) int {
	score := 0
	if responseCount > ipRiskManyResponses {
		score += 3
	}
	if uniqueUIDs == 1 && responseCount > ipRiskSingleUIDMinCount {
		score += 4
	}
	if vendorCount > ipRiskManyVendors {
		score += 2
	}
	return min(score, ipRiskScoreCap)
}

// ComputeIPMonitoring returns one row per IP, riskiest first. Ties keep
// first-seen order.
func ComputeIPMonitoring(responses []models.Response, th FraudThresholds) []IPMonitoring {
	groups := groupResponses(responses, byIP)
	rows := make([]IPMonitoring, 0, len(groups))
	for _, g := range groups {
		vendorIDs := g.distinct(vendorOf)
		uids := g.distinct(byUID)
		n := len(g.Responses)
		score := IPRiskScore(n, len(uids), len(vendorIDs))
		rows = append(rows, IPMonitoring{
			IP:            g.Key,
			ResponseCount: n,
			UniqueUIDs:    len(uids),
			VendorIDs:     vendorIDs,
			ProjectIDs:    g.distinct(projectOf),
			Country:       g.Responses[0].Country,
			LastSeen:      g.latest(),
			RiskScore:     score,
			IsBlocked:     score >= th.IPBlockScore,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RiskScore != rows[j].RiskScore {
			return rows[i].RiskScore > rows[j].RiskScore
		}
		return rows[i].ResponseCount > rows[j].ResponseCount
	})
	return rows
}

type VendorFraudScore struct {
	VendorID         string  `json:"vendor_id"`
	VendorName       string  `json:"vendor_name"`
	Status           string  `json:"status"`
	FraudScore       float64 `json:"fraud_score"`
	RiskLevel        string  `json:"risk_level"`
	TotalResponses   int     `json:"total_responses"`
	DuplicateIPs     int     `json:"duplicate_ip_responses"`
	DuplicateUIDs    int     `json:"duplicate_uid_responses"`
	SuspiciousRate   float64 `json:"suspicious_rate"`
	FlaggedByPattern bool    `json:"flagged_by_pattern"`
	AssignedProjects int     `json:"assigned_projects"`
}

// ComputeVendorFraudScores builds the per-vendor table using the same
// thresholds as DetectFraudAlerts. A response counts as suspicious when its IP
// or UID group is flagged.
func ComputeVendorFraudScores(vendors []models.Vendor, responses []models.Response, th FraudThresholds) []VendorFraudScore {
	flaggedIP := make(map[string]bool)
	for _, g := range groupResponses(responses, byIP) {
		if len(g.Responses) > th.IPDuplicate {
			flaggedIP[g.Key] = true
		}
	}
	flaggedUID := make(map[string]bool)
	for _, g := range groupResponses(responses, byUID) {
		if len(g.Responses) > th.UIDDuplicate {
			flaggedUID[g.Key] = true
		}
	}

	rows := make([]VendorFraudScore, 0, len(vendors))
	for _, v := range vendors {
		row := VendorFraudScore{
			VendorID:         v.ID,
			VendorName:       v.Name,
			Status:           v.Status,
			FraudScore:       v.FraudScore,
			RiskLevel:        VendorRiskLevel(v.FraudScore),
			FlaggedByPattern: v.FraudScore >= th.VendorAlertScore,
			AssignedProjects: len(v.AssignedProjects),
		}
		suspicious := 0
		for _, r := range responses {
			if r.VendorID != v.ID {
				continue
			}
			row.TotalResponses++
			ip, uid := flaggedIP[r.IP], flaggedUID[r.UID]
			if ip {
				row.DuplicateIPs++
			}
			if uid {
				row.DuplicateUIDs++
			}
			if ip || uid {
				suspicious++
			}
		}
		row.SuspiciousRate = percent(suspicious, row.TotalResponses)
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FraudScore > rows[j].FraudScore
	})
	return rows
}

type FraudSummary struct {
	TotalAlerts         int `json:"total_alerts"`
	CriticalAlerts      int `json:"critical_alerts"`
	HighAlerts          int `json:"high_alerts"`
	MediumAlerts        int `json:"medium_alerts"`
	BlockedIPs          int `json:"blocked_ips"`
	HighRiskVendors     int `json:"high_risk_vendors"`
	SuspiciousResponses int `json:"suspicious_responses"`
	TotalResponses      int `json:"total_responses"`
}

type FraudReport struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	Summary      FraudSummary       `json:"summary"`
	Alerts       []FraudAlert       `json:"alerts"`
	VendorScores []VendorFraudScore `json:"vendor_scores"`
	IPs          []IPMonitoring     `json:"ips"`
}

// BuildFraudReport assembles the full report. Summary counts are taken over
// every alert, the alert list itself is truncated.
func BuildFraudReport(vendors []models.Vendor, responses []models.Response, th FraudThresholds, now time.Time) FraudReport {
	alerts := DetectFraudAlerts(responses, vendors, th)
	ips := ComputeIPMonitoring(responses, th)
	scores := ComputeVendorFraudScores(vendors, responses, th)

	summary := FraudSummary{TotalAlerts: len(alerts), TotalResponses: len(responses)}
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			summary.CriticalAlerts++
		case SeverityHigh:
			summary.HighAlerts++
		case SeverityMedium:
			summary.MediumAlerts++
		}
	}
	for _, ip := range ips {
		if ip.IsBlocked {
			summary.BlockedIPs++
		}
	}
	for _, s := range scores {
		if s.RiskLevel == SeverityHigh || s.RiskLevel == SeverityCritical {
			summary.HighRiskVendors++
		}
	}

	suspicious := make(map[string]bool)
	for _, a := range alerts {
		if a.Type == AlertSuspiciousPattern {
			continue
		}
		for _, r := range responses {
			if (a.IP != "" && r.IP == a.IP) || (a.UID != "" && r.UID == a.UID) {
				suspicious[r.ID] = true
			}
		}
	}
	summary.SuspiciousResponses = len(suspicious)

	return FraudReport{
		GeneratedAt:  now,
		Summary:      summary,
		Alerts:       TopAlerts(alerts, th),
		VendorScores: scores,
		IPs:          ips,
	}
}
