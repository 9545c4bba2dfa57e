package research

import (
	"net/url"
	"regexp"
	"strings"
)

// HostClass is the trust classification of one source host within a domain.
type HostClass struct {
	Kind    string `json:"kind"`
	Tier    Tier   `json:"source_tier"`
	Primary bool   `json:"eligible_for_primary_claims"`
}

var githubRepoPath = regexp.MustCompile(`^/[^/]+/[^/]+`)

var newsHosts = []string{
	"reuters.com", "apnews.com", "bbc.", "nytimes.com", "theguardian.com",
	"bloomberg.com", "news.",
}

// ClassifyHost derives (kind, tier, primary) from a URL and the research
// domain. Deterministic: the same URL and domain always classify the same.
func ClassifyHost(rawURL string, domain Domain) HostClass {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return HostClass{Kind: "web", Tier: TierD}
	}
	host := strings.ToLower(parsed.Hostname())
	path := parsed.EscapedPath()

	switch domain {
	case DomainSoftware:
		return classifySoftwareHost(host, path)
	case DomainPhysicalProcess:
		return classifyPhysicalHost(host)
	default:
		return classifyGeneralHost(host)
	}
}

func classifySoftwareHost(host, path string) HostClass {
	if strings.HasPrefix(host, "docs.") || strings.Contains(host, "developer") ||
		strings.Contains(host, "readthedocs") {
		return HostClass{Kind: "documentation", Tier: TierA, Primary: true}
	}
	if host == "github.com" || strings.HasSuffix(host, ".github.com") {
		if githubRepoPath.MatchString(path) {
			return HostClass{Kind: "repository", Tier: TierA, Primary: true}
		}
		return HostClass{Kind: "repository", Tier: TierB}
	}
	if strings.Contains(host, "stackoverflow") {
		return HostClass{Kind: "community", Tier: TierB}
	}
	return HostClass{Kind: "web", Tier: TierC}
}

func classifyPhysicalHost(host string) HostClass {
	if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".gov") ||
		strings.Contains(host, "extension") || strings.Contains(host, "standards") {
		return HostClass{Kind: "institutional", Tier: TierA, Primary: true}
	}
	if strings.Contains(host, "wikipedia.org") {
		return HostClass{Kind: "reference", Tier: TierA, Primary: true}
	}
	if isNewsHost(host) {
		return HostClass{Kind: "news", Tier: TierB}
	}
	return HostClass{Kind: "web", Tier: TierC}
}

func classifyGeneralHost(host string) HostClass {
	if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".gov") ||
		strings.Contains(host, "wikipedia.org") {
		return HostClass{Kind: "reference", Tier: TierA, Primary: true}
	}
	if strings.Contains(host, "docs") || strings.Contains(host, "help") ||
		strings.Contains(host, "learn") {
		return HostClass{Kind: "meta", Tier: TierB}
	}
	return HostClass{Kind: "web", Tier: TierC}
}

func isNewsHost(host string) bool {
	for _, n := range newsHosts {
		if strings.Contains(host, n) {
			return true
		}
	}
	return false
}
