package fastpath

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allInstalled pretends every tool is on PATH.
func allInstalled(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func noneInstalled(name string) (string, error) {
	return "", errors.New("not found")
}

func testRegistry(t *testing.T, probe ProbeFunc) *Registry {
	t.Helper()
	r, err := NewRegistry("", probe)
	require.NoError(t, err)
	return r
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		AllowedRoots:   []string{t.TempDir()},
		DefaultTimeout: 120 * time.Second,
	}
}

func TestFindEntryMatchesHost(t *testing.T) {
	r := testRegistry(t, allInstalled)

	entry := r.FindEntry("https://www.youtube.com/watch?v=abc", "")
	require.NotNil(t, entry)
	assert.Equal(t, "yt-dlp", entry.ID)

	entry = r.FindEntry("https://imgur.com/gallery/xyz", "")
	require.NotNil(t, entry)
	assert.Equal(t, "gallery-dl", entry.ID)

	assert.Nil(t, r.FindEntry("https://example.com/page", ""))
	assert.Nil(t, r.FindEntry("not a url", ""))
}

func TestFindEntrySkipsUninstalledTools(t *testing.T) {
	r := testRegistry(t, noneInstalled)
	assert.Nil(t, r.FindEntry("https://www.youtube.com/watch?v=abc", ""))
}

func TestFindEntryPreferred(t *testing.T) {
	r, err := NewRegistry("", allInstalled)
	require.NoError(t, err)

	// A preferred id that matches wins even when another entry also would.
	entry := r.FindEntry("https://vimeo.com/123", "yt-dlp")
	require.NotNil(t, entry)
	assert.Equal(t, "yt-dlp", entry.ID)

	// A preferred id that does not match falls back to registry order.
	entry = r.FindEntry("https://imgur.com/a/1", "yt-dlp")
	require.NotNil(t, entry)
	assert.Equal(t, "gallery-dl", entry.ID)
}

func TestValidateAndBuildHappyPath(t *testing.T) {
	r := testRegistry(t, allInstalled)
	config := testConfig(t)

	entry := r.FindEntry("https://youtu.be/abc123", "")
	require.NotNil(t, entry)

	cmd := r.ValidateAndBuild(entry, Params{
		URL:       "https://youtu.be/abc123",
		OutputDir: config.AllowedRoots[0],
	}, config)
	require.NotNil(t, cmd)

	assert.Equal(t, "yt-dlp", cmd.Argv[0])
	assert.Contains(t, cmd.Argv, "https://youtu.be/abc123")
	assert.Equal(t, 120*time.Second, cmd.Timeout)
	for _, token := range cmd.Argv {
		assert.NotContains(t, token, "{url}")
		assert.NotContains(t, token, "{outputDir}")
	}
}

func TestValidateAndBuildRejectsShellMetacharacters(t *testing.T) {
	r := testRegistry(t, allInstalled)
	config := testConfig(t)
	entry := r.FindEntry("https://www.youtube.com/x", "")
	require.NotNil(t, entry)

	// Every dangerous character must reject, including the seeded scenario.
	urls := []string{"https://example.com/;rm -rf /"}
	for _, c := range shellDangerous {
		urls = append(urls, "https://www.youtube.com/watch"+string(c)+"v=1")
	}
	for _, u := range urls {
		cmd := r.ValidateAndBuild(entry, Params{URL: u, OutputDir: config.AllowedRoots[0]}, config)
		assert.Nil(t, cmd, "URL %q must be rejected", u)
	}
}

func TestValidateAndBuildRejectsNonHTTP(t *testing.T) {
	r := testRegistry(t, allInstalled)
	config := testConfig(t)
	entry := r.FindEntry("https://www.youtube.com/x", "")
	require.NotNil(t, entry)

	for _, u := range []string{"ftp://youtube.com/v", "file:///etc/passwd", "youtube.com/v", ""} {
		assert.Nil(t, r.ValidateAndBuild(entry, Params{URL: u, OutputDir: config.AllowedRoots[0]}, config))
	}
}

func TestValidateAndBuildRejectsOutputOutsideRoots(t *testing.T) {
	r := testRegistry(t, allInstalled)
	config := testConfig(t)
	entry := r.FindEntry("https://www.youtube.com/x", "")
	require.NotNil(t, entry)

	cmd := r.ValidateAndBuild(entry, Params{
		URL:       "https://www.youtube.com/watch?v=1",
		OutputDir: os.TempDir(),
	}, config)
	assert.Nil(t, cmd)

	// Path traversal out of a root is caught after Abs resolution.
	cmd = r.ValidateAndBuild(entry, Params{
		URL:       "https://www.youtube.com/watch?v=1",
		OutputDir: filepath.Join(config.AllowedRoots[0], "..", "elsewhere"),
	}, config)
	assert.Nil(t, cmd)

	// Unrestricted mode lifts the root check.
	unrestricted := config
	unrestricted.Unrestricted = true
	cmd = r.ValidateAndBuild(entry, Params{
		URL:       "https://www.youtube.com/watch?v=1",
		OutputDir: os.TempDir(),
	}, unrestricted)
	assert.NotNil(t, cmd)
}

func TestValidateAndBuildRejectsUnknownPlaceholder(t *testing.T) {
	r := testRegistry(t, allInstalled)
	config := testConfig(t)

	entry := &Entry{
		ID:           "custom",
		ArgvTemplate: []string{"tool", "{url}", "{format}"},
		CheckCommand: "tool",
	}
	require.NoError(t, entry.compile())
	r.mu.Lock()
	r.available["custom"] = true
	r.mu.Unlock()

	cmd := r.ValidateAndBuild(entry, Params{
		URL:       "https://example.com/a",
		OutputDir: config.AllowedRoots[0],
	}, config)
	assert.Nil(t, cmd)
}

func TestValidateAndBuildRejectsPrivilegeCommands(t *testing.T) {
	r := testRegistry(t, allInstalled)
	config := testConfig(t)

	entry := &Entry{
		ID:           "escalate",
		ArgvTemplate: []string{"sudo", "tool", "{url}"},
		CheckCommand: "tool",
	}
	require.NoError(t, entry.compile())
	r.mu.Lock()
	r.available["escalate"] = true
	r.mu.Unlock()

	params := Params{URL: "https://example.com/a", OutputDir: config.AllowedRoots[0]}
	assert.Nil(t, r.ValidateAndBuild(entry, params, config))

	unrestricted := config
	unrestricted.Unrestricted = true
	assert.NotNil(t, r.ValidateAndBuild(entry, params, unrestricted))
}

func TestValidateAndBuildReprobesTool(t *testing.T) {
	installed := true
	probe := func(name string) (string, error) {
		if installed {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("gone")
	}
	r := testRegistry(t, probe)
	config := testConfig(t)
	entry := r.FindEntry("https://www.youtube.com/x", "")
	require.NotNil(t, entry)

	// Tool disappears between startup probe and build.
	installed = false
	cmd := r.ValidateAndBuild(entry, Params{
		URL:       "https://www.youtube.com/watch?v=1",
		OutputDir: config.AllowedRoots[0],
	}, config)
	assert.Nil(t, cmd)
	assert.False(t, r.Available("yt-dlp"), "build-time probe updates the cache")
}

func TestRegistryYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entries:
  - id: wget-mirror
    host_patterns:
      - '(?i)(^|\.)archive\.org$'
    argv_template: ["wget", "-P", "{outputDir}", "{url}"]
    check_command: wget
    timeout_seconds: 60
`), 0o644))

	r, err := NewRegistry(path, allInstalled)
	require.NoError(t, err)

	entry := r.FindEntry("https://archive.org/details/x", "")
	require.NotNil(t, entry)
	assert.Equal(t, "wget-mirror", entry.ID)

	config := testConfig(t)
	cmd := r.ValidateAndBuild(entry, Params{
		URL:       "https://archive.org/details/x",
		OutputDir: config.AllowedRoots[0],
	}, config)
	require.NotNil(t, cmd)
	assert.Equal(t, 60*time.Second, cmd.Timeout)
}

func TestRegistryRejectsIncompleteYAMLEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - id: broken\n"), 0o644))

	_, err := NewRegistry(path, allInstalled)
	assert.Error(t, err)
}
