package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/huangang/panelsentry/internal/models"
)

const defaultLinkHost = "survey.panelsentry.io"

// Redirect outcomes, named as they appear in links.
const (
	OutcomeComplete    = "complete"
	OutcomeTerminate   = "terminate"
	OutcomeQuotaFull   = "quota-full"
	OutcomeStudyClosed = "study-closed"
)

func IsValidOutcome(o string) bool {
	return models.IsValidResponseStatus(o)
}

// LinkBuilder renders the copyable start and redirect links. Nothing is
// served behind them.
type LinkBuilder struct {
	host string
}

func NewLinkBuilder(host string) *LinkBuilder {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://"), "/")
	if host == "" {
		host = defaultLinkHost
	}
	return &LinkBuilder{host: host}
}

// StartLink is the entry link a vendor appends its respondent id to.
func (b *LinkBuilder) StartLink(projectID, vendorID string) string {
	return fmt.Sprintf("https://%s/start/%s/%s/?ID=", b.host, url.PathEscape(projectID), url.PathEscape(vendorID))
}

func (b *LinkBuilder) RedirectLink(outcome, pid, uid string) string {
	return fmt.Sprintf("https://%s/redirect/%s?pid=%s&uid=%s",
		b.host, url.PathEscape(outcome), url.QueryEscape(pid), url.QueryEscape(uid))
}

// RedirectLinks returns the panel redirect link of every outcome.
func (b *LinkBuilder) RedirectLinks(pid, uid string) map[string]string {
	return map[string]string{
		OutcomeComplete:    b.RedirectLink(OutcomeComplete, pid, uid),
		OutcomeTerminate:   b.RedirectLink(OutcomeTerminate, pid, uid),
		OutcomeQuotaFull:   b.RedirectLink(OutcomeQuotaFull, pid, uid),
		OutcomeStudyClosed: b.RedirectLink(OutcomeStudyClosed, pid, uid),
	}
}

// ExpandRedirectTemplate substitutes {uid} and {pid} in a vendor redirect URL.
func ExpandRedirectTemplate(tmpl, pid, uid string) string {
	return strings.NewReplacer(
		"{uid}", url.QueryEscape(uid),
		"{pid}", url.QueryEscape(pid),
	).Replace(tmpl)
}

// VendorRedirects expands a vendor's redirect URLs for one respondent. Empty
// templates are omitted.
func VendorRedirects(v *models.Vendor, pid, uid string) map[string]string {
	urls := v.RedirectURLs.Data()
	out := make(map[string]string, 4)
	for outcome, tmpl := range map[string]string{
		OutcomeComplete:    urls.Complete,
		OutcomeTerminate:   urls.Terminate,
		OutcomeQuotaFull:   urls.QuotaFull,
		OutcomeStudyClosed: urls.StudyClosed,
	} {
		if tmpl != "" {
			out[outcome] = ExpandRedirectTemplate(tmpl, pid, uid)
		}
	}
	return out
}
