package research

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCriterionKeywords(t *testing.T) {
	keywords := DeriveCriterionKeywords(DomainPhysicalProcess, "food safety overview")

	// Criterion tokens longer than three characters come first.
	assert.Equal(t, []string{"food", "safety", "overview"}, keywords[:3])
	assert.Contains(t, keywords, "haccp")
	assert.Contains(t, keywords, "sanitation")

	// Short tokens are dropped, duplicates collapse.
	keywords = DeriveCriterionKeywords(DomainSoftware, "is the API safe")
	assert.NotContains(t, keywords, "api")
	assert.NotContains(t, keywords, "the")
	assert.Contains(t, keywords, "safe")
	assert.Contains(t, keywords, "threat model")
}

func TestFollowUpsPhysicalProcess(t *testing.T) {
	// Olive oil bottling: one evidence host, food safety still uncovered.
	queries := BuildFollowUpQueries(DomainPhysicalProcess,
		[]string{"food safety overview"}, []string{"oliveoil.com"}, 2)
	require.NotEmpty(t, queries)

	haccp := regexp.MustCompile(`(?i)haccp`)
	found := false
	for _, q := range queries {
		if haccp.MatchString(q) {
			found = true
		}
		assert.NotContains(t, q, "cve")
		assert.NotContains(t, q, "oauth")
	}
	assert.True(t, found, "at least one follow-up must target HACCP")
}

func TestFollowUpsSoftwareSecurity(t *testing.T) {
	queries := BuildFollowUpQueries(DomainSoftware,
		[]string{"security review process"}, []string{"openclaw.dev"}, 2)
	require.NotEmpty(t, queries)

	joined := strings.Join(queries, "\n")
	assert.Regexp(t, `(?i)security`, joined)
	assert.Regexp(t, `(?i)threat model`, joined)
}

func TestFollowUpsDiversifyAwayFromSingleHost(t *testing.T) {
	queries := BuildFollowUpQueries(DomainGeneral,
		[]string{"best practices"}, []string{"example.com"}, 2)
	require.NotEmpty(t, queries)
	assert.Contains(t, queries[0], "-site:example.com")

	// Two known hosts: no monoculture risk, no exclusion.
	queries = BuildFollowUpQueries(DomainGeneral,
		[]string{"best practices"}, []string{"a.com", "b.com"}, 2)
	require.NotEmpty(t, queries)
	assert.NotContains(t, queries[0], "-site:")
}

func TestFollowUpsDedupeAndCap(t *testing.T) {
	queries := BuildFollowUpQueries(DomainGeneral,
		[]string{"overview", "overview", "history", "geography"}, nil, 2)
	assert.LessOrEqual(t, len(queries), 2)
	seen := make(map[string]bool)
	for _, q := range queries {
		assert.False(t, seen[q], "duplicate follow-up %q", q)
		seen[q] = true
	}

	assert.Empty(t, BuildFollowUpQueries(DomainGeneral, []string{"x"}, nil, 0))
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"  What's   the DEAL with  CVE-2024-1234?! ",
		"site:docs.* OpenClaw (install OR docs)",
		"plain query",
		"oauth token webhook soup",
	}
	for _, in := range inputs {
		for _, domain := range []Domain{DomainGeneral, DomainSoftware, DomainPhysicalProcess} {
			once := Sanitize(in, domain)
			assert.Equal(t, once, Sanitize(once, domain), "sanitize must be idempotent for %q in %s", in, domain)
		}
	}
}

func TestSanitizeRemovesRepeatedModifiers(t *testing.T) {
	// Consecutive banned words go in one pass, so the output is stable.
	out := Sanitize("x token token y", DomainGeneral)
	assert.Equal(t, "x y", out)
	assert.Equal(t, out, Sanitize(out, DomainGeneral))

	assert.Equal(t, "", Sanitize("oauth oauth oauth", DomainGeneral))
	assert.Equal(t, "guard rails", Sanitize("prompt injection prompt injection guard rails", DomainGeneral))
}

func TestSanitizeBannedModifiers(t *testing.T) {
	// Outside SOFTWARE the banned modifiers disappear.
	assert.Equal(t, "exploit database", Sanitize("CVE exploit database", DomainGeneral))
	assert.Equal(t, "api rotation", Sanitize("API token rotation", DomainGeneral))
	assert.NotContains(t, Sanitize("prompt injection defenses", DomainGeneral), "prompt injection")

	// SOFTWARE keeps them.
	assert.Equal(t, "cve exploit database", Sanitize("CVE exploit database", DomainSoftware))
	assert.Equal(t, "sandbox escape", Sanitize("sandbox escape", DomainSoftware))

	// Whole words only: "tokens" survives.
	assert.Contains(t, Sanitize("rotating tokens daily", DomainGeneral), "tokens")
}
