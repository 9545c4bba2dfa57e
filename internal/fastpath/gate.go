package fastpath

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config scopes what validated commands may touch.
type Config struct {
	// AllowedRoots are the directories output may land in. Empty uses the
	// defaults (~/Downloads, ~/Desktop, ~/Documents/Clawdia).
	AllowedRoots []string `json:"allowed_roots,omitempty"`

	// Unrestricted lifts the output-root and privilege-command checks. Set
	// only when the desktop autonomy mode is explicitly unrestricted.
	Unrestricted bool `json:"unrestricted,omitempty"`

	DefaultTimeout time.Duration `json:"default_timeout,omitempty"`

	// ExtraRegistryFile is an optional YAML file of additional entries.
	ExtraRegistryFile string `json:"extra_registry_file,omitempty"`
}

// DefaultConfig returns the default gate configuration
func DefaultConfig() Config {
	return Config{
		AllowedRoots:   defaultRoots(),
		DefaultTimeout: 120 * time.Second,
	}
}

func defaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, "Downloads"),
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Documents", "Clawdia"),
	}
}

// Params are the only values substituted into an argv template.
type Params struct {
	URL       string
	OutputDir string
}

// Command is a validated, ready-to-run argv. Argv[0] is the tool binary;
// there is never a shell in between.
type Command struct {
	Argv    []string      `json:"argv"`
	Timeout time.Duration `json:"timeout"`
}

// Characters that end the fast path immediately when present in a URL.
// Execution is argv-based so these cannot reach a shell, but the gate
// rejects them anyway as defense in depth.
const shellDangerous = ";&|`$(){}[]!#<>\\'\""

// Privilege escalation commands that must never appear as an argv token.
var forbiddenCommands = map[string]bool{
	"sudo":   true,
	"su":     true,
	"pkexec": true,
	"doas":   true,
}

// ValidateAndBuild turns an entry plus parameters into a runnable Command.
// Every check must pass; any failure returns nil and the caller must fall
// through to the normal LLM loop. There are no retries with relaxed rules.
func (r *Registry) ValidateAndBuild(entry *Entry, params Params, config Config) *Command {
	if entry == nil {
		return nil
	}

	// 1. HTTP(S) URLs only.
	parsed, err := url.Parse(params.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		log.Printf("[FastPath] rejected %s: not an HTTP(S) URL", entry.ID)
		return nil
	}

	// 2. No shell-dangerous characters anywhere in the URL.
	if strings.ContainsAny(params.URL, shellDangerous) {
		log.Printf("[FastPath] rejected %s: URL contains shell metacharacters", entry.ID)
		return nil
	}

	// 3. Output directory must resolve inside a whitelisted root.
	outputDir, err := filepath.Abs(params.OutputDir)
	if err != nil {
		return nil
	}
	if !config.Unrestricted && !withinRoots(outputDir, config.AllowedRoots) {
		log.Printf("[FastPath] rejected %s: output dir %s outside allowed roots", entry.ID, outputDir)
		return nil
	}

	// 4. Expand the template; {url} and {outputDir} are the only
	// placeholders accepted.
	argv := make([]string, 0, len(entry.ArgvTemplate))
	for _, token := range entry.ArgvTemplate {
		expanded := strings.ReplaceAll(token, "{url}", params.URL)
		expanded = strings.ReplaceAll(expanded, "{outputDir}", outputDir)
		if placeholderPattern.MatchString(expanded) {
			log.Printf("[FastPath] rejected %s: unknown placeholder in template token %q", entry.ID, token)
			return nil
		}
		argv = append(argv, expanded)
	}
	if len(argv) == 0 {
		return nil
	}

	// 5. No privilege escalation tokens.
	if !config.Unrestricted {
		for _, token := range argv {
			if forbiddenCommands[token] {
				log.Printf("[FastPath] rejected %s: forbidden command token %q", entry.ID, token)
				return nil
			}
		}
	}

	// 6. The tool must still be installed.
	if !r.reprobe(entry) {
		return nil
	}

	return &Command{
		Argv:    argv,
		Timeout: entry.timeout(config.DefaultTimeout),
	}
}

// placeholderPattern spots any {name} token left after expansion.
var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z][a-zA-Z0-9_]*\}`)

// hostOf extracts the hostname used for pattern matching.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// withinRoots reports whether path sits inside one of the roots.
func withinRoots(path string, roots []string) bool {
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if path == absRoot || strings.HasPrefix(path, absRoot+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run executes a validated command with its timeout. The argv goes straight
// to the OS; no shell is involved.
func Run(ctx context.Context, cmd *Command) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, cmd.Timeout)
	defer cancel()

	execCmd := exec.CommandContext(runCtx, cmd.Argv[0], cmd.Argv[1:]...)
	return execCmd.CombinedOutput()
}
