// Package fastpath matches URLs against a registry of known external CLI
// tools and builds safety-validated argv commands for them. There is no
// escape hatch to shell strings; a failed check means the caller falls
// through to the normal LLM loop.
package fastpath

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one registered tool: URL patterns it handles, the argv template
// to run, and the command probed for availability.
type Entry struct {
	ID             string   `yaml:"id"`
	HostPatterns   []string `yaml:"host_patterns"`
	ArgvTemplate   []string `yaml:"argv_template"`
	CheckCommand   string   `yaml:"check_command"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`

	compiled []*regexp.Regexp
}

// builtinEntries are the tools the desktop assistant ships with.
func builtinEntries() []Entry {
	return []Entry{
		{
			ID: "yt-dlp",
			HostPatterns: []string{
				`(?i)(^|\.)youtube\.com$`,
				`(?i)^youtu\.be$`,
				`(?i)(^|\.)vimeo\.com$`,
				`(?i)(^|\.)twitch\.tv$`,
			},
			ArgvTemplate:   []string{"yt-dlp", "-o", "{outputDir}/%(title)s.%(ext)s", "{url}"},
			CheckCommand:   "yt-dlp",
			TimeoutSeconds: 120,
		},
		{
			ID: "gallery-dl",
			HostPatterns: []string{
				`(?i)(^|\.)imgur\.com$`,
				`(?i)(^|\.)flickr\.com$`,
				`(?i)(^|\.)deviantart\.com$`,
			},
			ArgvTemplate:   []string{"gallery-dl", "--dest", "{outputDir}", "{url}"},
			CheckCommand:   "gallery-dl",
			TimeoutSeconds: 120,
		},
	}
}

// ProbeFunc checks whether a tool is installed. Defaults to exec.LookPath.
type ProbeFunc func(name string) (string, error)

// Registry holds the entries and their cached availability.
type Registry struct {
	mu        sync.Mutex
	entries   []Entry
	available map[string]bool
	probe     ProbeFunc
}

// NewRegistry builds a registry from the built-in entries plus an optional
// YAML file of extra entries, probing availability once up front.
func NewRegistry(extraFile string, probe ProbeFunc) (*Registry, error) {
	if probe == nil {
		probe = exec.LookPath
	}
	entries := builtinEntries()

	if extraFile != "" {
		extra, err := loadEntriesFile(extraFile)
		if err != nil {
			return nil, err
		}
		entries = append(entries, extra...)
	}

	for i := range entries {
		if err := entries[i].compile(); err != nil {
			return nil, fmt.Errorf("entry %q: %w", entries[i].ID, err)
		}
	}

	r := &Registry{
		entries:   entries,
		available: make(map[string]bool),
		probe:     probe,
	}
	r.Refresh()
	return r, nil
}

func (e *Entry) compile() error {
	e.compiled = make([]*regexp.Regexp, 0, len(e.HostPatterns))
	for _, pattern := range e.HostPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("host pattern %q: %w", pattern, err)
		}
		e.compiled = append(e.compiled, re)
	}
	return nil
}

// loadEntriesFile reads extra entries from a YAML registry file.
func loadEntriesFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool registry %s: %w", path, err)
	}
	var parsed struct {
		Entries []Entry `yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse tool registry %s: %w", path, err)
	}
	for _, e := range parsed.Entries {
		if e.ID == "" || len(e.HostPatterns) == 0 || len(e.ArgvTemplate) == 0 || e.CheckCommand == "" {
			return nil, fmt.Errorf("tool registry %s: entry %q is incomplete", path, e.ID)
		}
	}
	return parsed.Entries, nil
}

// Refresh re-probes every tool and updates the availability cache.
func (r *Registry) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		_, err := r.probe(e.CheckCommand)
		r.available[e.ID] = err == nil
	}
}

// Available reports the cached availability of one entry.
func (r *Registry) Available(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available[id]
}

// Entries returns a snapshot of every entry with its availability.
func (r *Registry) Entries() []EntryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]EntryStatus, 0, len(r.entries))
	for _, e := range r.entries {
		statuses = append(statuses, EntryStatus{
			ID:           e.ID,
			CheckCommand: e.CheckCommand,
			Available:    r.available[e.ID],
		})
	}
	return statuses
}

// EntryStatus is the inspection view of one registry entry.
type EntryStatus struct {
	ID           string `json:"id"`
	CheckCommand string `json:"check_command"`
	Available    bool   `json:"available"`
}

// FindEntry returns the first entry whose host patterns match the URL and
// whose tool is installed. A matching preferred entry wins over registry
// order. Nil when nothing matches.
func (r *Registry) FindEntry(rawURL, preferredID string) *Entry {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if preferredID != "" {
		if e := r.matchLocked(host, preferredID); e != nil {
			return e
		}
	}
	return r.matchLocked(host, "")
}

func (r *Registry) matchLocked(host, onlyID string) *Entry {
	for i := range r.entries {
		e := &r.entries[i]
		if onlyID != "" && e.ID != onlyID {
			continue
		}
		if !r.available[e.ID] {
			continue
		}
		for _, re := range e.compiled {
			if re.MatchString(host) {
				return e
			}
		}
	}
	return nil
}

// reprobe re-checks one tool at build time and updates the cache.
func (r *Registry) reprobe(e *Entry) bool {
	_, err := r.probe(e.CheckCommand)
	r.mu.Lock()
	r.available[e.ID] = err == nil
	r.mu.Unlock()
	if err != nil {
		log.Printf("[FastPath] tool %s no longer available", e.ID)
	}
	return err == nil
}

// timeout returns the entry's command timeout, falling back to the default.
func (e *Entry) timeout(def time.Duration) time.Duration {
	if e.TimeoutSeconds > 0 {
		return time.Duration(e.TimeoutSeconds) * time.Second
	}
	if def > 0 {
		return def
	}
	return 120 * time.Second
}
