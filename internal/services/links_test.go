package services

import (
	"testing"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestLinkBuilder(t *testing.T) {
	b := NewLinkBuilder("https://go.example.com/")

	assert.Equal(t, "https://go.example.com/start/P00001/V001/?ID=", b.StartLink("P00001", "V001"))
	assert.Equal(t, "https://go.example.com/redirect/quota-full?pid=P00001&uid=a+b",
		b.RedirectLink(OutcomeQuotaFull, "P00001", "a b"))

	links := b.RedirectLinks("P1", "u1")
	assert.Len(t, links, 4)
	assert.Equal(t, "https://go.example.com/redirect/study-closed?pid=P1&uid=u1", links[OutcomeStudyClosed])
}

func TestLinkBuilder_DefaultHost(t *testing.T) {
	assert.Equal(t, "https://survey.panelsentry.io/start/P1/V1/?ID=", NewLinkBuilder("").StartLink("P1", "V1"))
}

func TestIsValidOutcome(t *testing.T) {
	for _, o := range []string{OutcomeComplete, OutcomeTerminate, OutcomeQuotaFull, OutcomeStudyClosed} {
		assert.True(t, IsValidOutcome(o), o)
	}
	assert.False(t, IsValidOutcome("screenout"))
}

func TestVendorRedirects(t *testing.T) {
	v := &models.Vendor{
		ID: "V001",
		RedirectURLs: datatypes.NewJSONType(models.RedirectURLs{
			Complete:  "https://v.example/done?uid={uid}&pid={pid}",
			Terminate: "https://v.example/term?uid={uid}",
		}),
	}

	got := VendorRedirects(v, "P00001", "r&d")

	assert.Equal(t, map[string]string{
		OutcomeComplete:  "https://v.example/done?uid=r%26d&pid=P00001",
		OutcomeTerminate: "https://v.example/term?uid=r%26d",
	}, got)
}
