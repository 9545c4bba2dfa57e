package datadir

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileEnvVar points LoadEnv at a single .env file, bypassing the search.
const EnvFileEnvVar = "CLAWDIA_ENV_FILE"

// LoadEnv seeds the process environment from .env files so API keys reach
// the settings provider on developer machines. Candidates load in priority
// order: {dataRoot}/.env, the working directory, then extraDirs. The first
// file to set a key wins, and variables already present in the environment
// are never overwritten.
func LoadEnv(dataRoot string, extraDirs ...string) error {
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		return applyEnvFile(override, map[string]bool{})
	}

	var candidates []string
	if dataRoot != "" {
		candidates = append(candidates, filepath.Join(dataRoot, ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	for _, dir := range extraDirs {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, ".env"))
		}
	}

	claimed := make(map[string]bool)
	loaded := make(map[string]bool)
	for _, path := range candidates {
		path = filepath.Clean(path)
		if loaded[path] {
			continue
		}
		loaded[path] = true
		if err := applyEnvFile(path, claimed); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvFile sets KEY=VALUE pairs from one file. A missing file is a
// no-op. Keys in claimed, or already set in the environment, are skipped.
func applyEnvFile(path string, claimed map[string]bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if claimed[key] {
			continue
		}
		claimed[key] = true
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, value)
	}
	return scanner.Err()
}

// unquote strips one matching pair of surrounding quotes.
func unquote(value string) string {
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		return value[1 : len(value)-1]
	}
	return value
}
