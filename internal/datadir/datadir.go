package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default data directory name under $HOME.
	DefaultDirName = ".clawdia"

	// EnvVar is the environment variable that overrides the data directory.
	EnvVar = "CLAWDIA_DATA_DIR"

	// subdirectory names inside the data root
	configSubdir   = "config"
	databaseSubdir = "data"
	registrySubdir = "registry"
)

// DataDir provides a single source of truth for research-core paths: the
// config file, the page-cache database, and fast-path registry files.
// Use New to construct an instance, which resolves the root; call EnsureDirs
// to create the tree.
type DataDir struct {
	root string
}

// New returns a DataDir rooted at the resolved data directory.
// It does NOT create subdirectories; call EnsureDirs for that.
//
// Resolution priority:
//  1. CLAWDIA_DATA_DIR environment variable
//  2. configValue argument (from config.json data_dir field)
//  3. ~/.clawdia/
func New(configValue string) (*DataDir, error) {
	root, err := resolveRoot(configValue)
	if err != nil {
		return nil, err
	}
	return &DataDir{root: root}, nil
}

// Root returns the base data directory path.
func (d *DataDir) Root() string { return d.root }

// ConfigDir returns {root}/config/.
func (d *DataDir) ConfigDir() string { return filepath.Join(d.root, configSubdir) }

// DatabaseDir returns {root}/data/.
func (d *DataDir) DatabaseDir() string { return filepath.Join(d.root, databaseSubdir) }

// RegistryDir returns {root}/registry/.
func (d *DataDir) RegistryDir() string { return filepath.Join(d.root, registrySubdir) }

// FilePath returns the full path to a file directly inside the root directory.
func (d *DataDir) FilePath(filename string) string {
	return filepath.Join(d.root, filename)
}

// DatabasePath returns the full path to a file inside the data subdirectory.
func (d *DataDir) DatabasePath(filename string) string {
	return filepath.Join(d.DatabaseDir(), filename)
}

// subdirectories returns all managed subdirectory paths.
func (d *DataDir) subdirectories() []string {
	return []string{
		d.ConfigDir(),
		d.DatabaseDir(),
		d.RegistryDir(),
	}
}

// EnsureDirs creates the root and all subdirectories with 0700 permissions.
func (d *DataDir) EnsureDirs() error {
	dirs := append([]string{d.root}, d.subdirectories()...)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Resolve returns the data directory path, creating it with 0700 permissions
// if it doesn't already exist.
//
// Resolution priority:
//  1. CLAWDIA_DATA_DIR environment variable
//  2. configValue argument (from config.json data_dir field)
//  3. ~/.clawdia/
func Resolve(configValue string) (string, error) {
	root, err := resolveRoot(configValue)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory %s: %w", root, err)
	}
	return root, nil
}

// FilePath returns the full path to a file inside the data directory,
// ensuring the directory exists.
func FilePath(configValue, filename string) (string, error) {
	dir, err := Resolve(configValue)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

// resolveRoot determines the root path without creating it.
func resolveRoot(configValue string) (string, error) {
	dir := os.Getenv(EnvVar)
	if dir == "" {
		dir = configValue
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName)
	}
	return dir, nil
}
