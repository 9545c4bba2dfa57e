package research

import (
	"regexp"
	"strings"
)

// Router classifies user prompts without touching the LLM: domain, time
// intent, and entity hints all come from keyword and shape heuristics.
type Router struct{}

// NewRouter returns a Router.
func NewRouter() *Router { return &Router{} }

var softwareKeywords = []string{
	"code", "app", "api", "sdk", "library", "framework", "software",
	"programming", "repository", "github", "install", "compile", "deploy",
	"server", "database", "plugin", "cli", "debug",
}

var physicalKeywords = []string{
	"manufacturing", "assembly", "factory", "production line", "bottling",
	"packaging", "machining", "welding", "fabrication", "processing plant",
	"warehouse", "logistics", "equipment",
}

var immediateWords = []string{
	"today", "now", "currently", "right now", "at the moment", "tonight",
	"open now",
}

var futureWords = []string{
	"tomorrow", "next", "upcoming", "soon", "this weekend", "later",
	"schedule", "planning to",
}

var localWords = []string{
	"near me", "nearby", "closest", "in my area", "around here", "local",
}

var purchaseWords = []string{
	"buy", "price", "cost", "cheapest", "deal", "purchase", "order",
}

var troubleshootingWords = []string{
	"fix", "error", "broken", "not working", "troubleshoot", "crash",
	"fails",
}

var safetyWords = []string{
	"security", "safety", "safe", "vulnerability", "permissions", "privacy",
}

// entityPattern matches a run of capitalized or CamelCase tokens, e.g.
// "OpenClaw", "New York City", "GitHub Actions".
var entityPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)*\b`)

// entityStoplist drops sentence-leading question words and other
// capitalized noise that is not an entity.
var entityStoplist = map[string]bool{
	"how": true, "what": true, "when": true, "where": true, "who": true,
	"why": true, "which": true, "can": true, "could": true, "should": true,
	"would": true, "is": true, "are": true, "do": true, "does": true,
	"the": true, "a": true, "an": true, "i": true, "my": true, "please": true,
	"find": true, "show": true, "tell": true, "give": true, "help": true,
}

const maxEntityHints = 6

// Classify reads a prompt and produces its classification. Deterministic:
// the same message always classifies the same way.
func (r *Router) Classify(message string) Classification {
	lower := strings.ToLower(message)

	c := Classification{
		Domain:          classifyDomain(lower),
		TimeIntent:      classifyTimeIntent(lower),
		EntityHints:     extractEntities(message),
		Local:           containsAnyWord(lower, localWords),
		Purchase:        containsAnyWord(lower, purchaseWords),
		Troubleshooting: containsAnyWord(lower, troubleshootingWords),
		Safety:          containsAnyWord(lower, safetyWords),
	}
	return c
}

func classifyDomain(lower string) Domain {
	if containsAnyWord(lower, softwareKeywords) {
		return DomainSoftware
	}
	if containsAnyWord(lower, physicalKeywords) {
		return DomainPhysicalProcess
	}
	return DomainGeneral
}

func classifyTimeIntent(lower string) TimeIntent {
	if containsAnyWord(lower, immediateWords) {
		return TimeImmediate
	}
	if containsAnyWord(lower, futureWords) {
		return TimeFuture
	}
	return TimeUnknown
}

// containsAnyWord matches each keyword at word boundaries so "now" does not
// fire inside "known".
func containsAnyWord(lower string, words []string) bool {
	for _, w := range words {
		idx := 0
		for {
			p := strings.Index(lower[idx:], w)
			if p < 0 {
				break
			}
			start := idx + p
			end := start + len(w)
			beforeOK := start == 0 || !isWordByte(lower[start-1])
			afterOK := end == len(lower) || !isWordByte(lower[end])
			if beforeOK && afterOK {
				return true
			}
			idx = start + 1
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// extractEntities returns up to six capitalized token runs, in order of
// appearance, skipping stoplisted single words.
func extractEntities(message string) []string {
	var hints []string
	seen := make(map[string]bool)
	for _, m := range entityPattern.FindAllString(message, -1) {
		candidate := strings.TrimSpace(m)
		words := strings.Fields(candidate)
		if len(words) == 1 && entityStoplist[strings.ToLower(words[0])] {
			continue
		}
		// Trim a stoplisted leading word off a multi-word run, e.g.
		// "How Does OpenClaw" -> drop through to "OpenClaw" via single runs.
		for len(words) > 0 && entityStoplist[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		candidate = strings.Join(words, " ")
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		hints = append(hints, candidate)
		if len(hints) >= maxEntityHints {
			break
		}
	}
	return hints
}
