package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySoftwareHosts(t *testing.T) {
	tests := []struct {
		url     string
		tier    Tier
		primary bool
	}{
		{"https://docs.openclaw.dev/install", TierA, true},
		{"https://developer.mozilla.org/en-US/", TierA, true},
		{"https://openclaw.readthedocs.io/latest/", TierA, true},
		{"https://github.com/openclaw/core", TierA, true},
		{"https://github.com/trending", TierB, false},
		{"https://stackoverflow.com/q/1", TierB, false},
		{"https://randomblog.net/post", TierC, false},
	}
	for _, tt := range tests {
		class := ClassifyHost(tt.url, DomainSoftware)
		assert.Equal(t, tt.tier, class.Tier, "url %s", tt.url)
		assert.Equal(t, tt.primary, class.Primary, "url %s", tt.url)
	}
}

func TestClassifyPhysicalProcessHosts(t *testing.T) {
	tests := []struct {
		url     string
		tier    Tier
		primary bool
	}{
		{"https://extension.oregonstate.edu/olives", TierA, true},
		{"https://www.fda.gov/food", TierA, true},
		{"https://en.wikipedia.org/wiki/HACCP", TierA, true},
		{"https://www.reuters.com/business/", TierB, false},
		{"https://oliveoil.com/bottling", TierC, false},
	}
	for _, tt := range tests {
		class := ClassifyHost(tt.url, DomainPhysicalProcess)
		assert.Equal(t, tt.tier, class.Tier, "url %s", tt.url)
		assert.Equal(t, tt.primary, class.Primary, "url %s", tt.url)
	}
}

func TestClassifyGeneralHosts(t *testing.T) {
	class := ClassifyHost("https://en.wikipedia.org/wiki/Transistor", DomainGeneral)
	assert.Equal(t, TierA, class.Tier)
	assert.True(t, class.Primary)

	class = ClassifyHost("https://help.example.com/faq", DomainGeneral)
	assert.Equal(t, TierB, class.Tier)
	assert.False(t, class.Primary)
	assert.Equal(t, "meta", class.Kind)

	class = ClassifyHost("https://someblog.io/post", DomainGeneral)
	assert.Equal(t, TierC, class.Tier)
}

func TestClassifyHostDeterminism(t *testing.T) {
	url := "https://github.com/openclaw/core"
	for _, domain := range []Domain{DomainSoftware, DomainPhysicalProcess, DomainGeneral} {
		assert.Equal(t, ClassifyHost(url, domain), ClassifyHost(url, domain))
	}
}

func TestClassifyHostBadURL(t *testing.T) {
	class := ClassifyHost("://not-a-url", DomainGeneral)
	assert.Equal(t, TierD, class.Tier)
	assert.False(t, class.Primary)
}
