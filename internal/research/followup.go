package research

import (
	"regexp"
	"strings"
)

// Domain keyword lists unioned into every criterion's derived keywords.
var domainKeywords = map[Domain][]string{
	DomainSoftware: {
		"security", "permissions", "threat model", "vulnerability", "sandbox",
	},
	DomainPhysicalProcess: {
		"safety", "haccp", "contamination", "sanitation", "worker safety",
		"throughput",
	},
	DomainGeneral: {
		"overview", "guidance", "key facts",
	},
}

// Suffix phrase appended to follow-up queries, per domain.
var domainSuffix = map[Domain]string{
	DomainSoftware:        "documentation best practices",
	DomainPhysicalProcess: "industry guidelines",
	DomainGeneral:         "guide",
}

var criterionTokenizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DeriveCriterionKeywords tokenizes a criterion, keeps tokens longer than
// three characters, and unions in the domain keyword list. Order is
// deterministic: criterion tokens first, then the domain list.
func DeriveCriterionKeywords(domain Domain, criterion string) []string {
	var keywords []string
	seen := make(map[string]bool)
	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			return
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}

	for _, token := range criterionTokenizer.Split(criterion, -1) {
		if len(token) > 3 {
			add(token)
		}
	}
	list, ok := domainKeywords[domain]
	if !ok {
		list = domainKeywords[DomainGeneral]
	}
	for _, kw := range list {
		add(kw)
	}
	return keywords
}

// BuildFollowUpQueries synthesizes targeted queries for the criteria that
// still have no coverage. When exactly one host backs the current evidence,
// every query excludes the known hosts to break the monoculture.
func BuildFollowUpQueries(domain Domain, missingCriteria, existingHosts []string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	var exclusion string
	if len(existingHosts) == 1 {
		var parts []string
		for _, host := range existingHosts {
			parts = append(parts, "-site:"+host)
		}
		exclusion = " " + strings.Join(parts, " ")
	}

	var queries []string
	seen := make(map[string]bool)
	for _, criterion := range missingCriteria {
		keywords := DeriveCriterionKeywords(domain, criterion)
		raw := strings.Join(keywords, " ") + " " + domainSuffix[domain] + exclusion
		query := Sanitize(raw, domain)
		if query == "" || seen[query] {
			continue
		}
		seen[query] = true
		queries = append(queries, query)
		if len(queries) >= limit {
			break
		}
	}
	return queries
}

// Words stripped from queries outside the SOFTWARE domain; they skew
// results toward security tooling content.
var bannedModifiers = []string{"cve", "sandbox", "oauth", "token", "webhook", "prompt injection"}

// queryCharFilter keeps word characters, whitespace, and -:'. only.
var queryCharFilter = regexp.MustCompile(`[^a-z0-9\s\-:'.]+`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Sanitize normalizes a query: lowercase, punctuation filtered down to
// -:'. , whitespace collapsed, and banned modifier words removed unless the
// domain is SOFTWARE. Idempotent.
func Sanitize(query string, domain Domain) string {
	q := strings.ToLower(query)
	q = queryCharFilter.ReplaceAllString(q, " ")
	q = whitespaceRun.ReplaceAllString(q, " ")
	q = strings.TrimSpace(q)

	if domain != DomainSoftware {
		for _, banned := range bannedModifiers {
			q = removeWord(q, banned)
		}
	}
	return q
}

// removeWord deletes whole-word occurrences of w (which may be a phrase),
// including back-to-back repeats.
func removeWord(q, w string) string {
	if !strings.Contains(q, w) {
		return q
	}
	target := strings.Fields(w)
	words := strings.Fields(q)
	var out []string
	for i := 0; i < len(words); {
		if matchesAt(words, i, target) {
			i += len(target)
			continue
		}
		out = append(out, words[i])
		i++
	}
	return strings.Join(out, " ")
}

func matchesAt(words []string, at int, target []string) bool {
	if at+len(target) > len(words) {
		return false
	}
	for j, t := range target {
		if words[at+j] != t {
			return false
		}
	}
	return true
}
