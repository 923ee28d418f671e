package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// envFileDepth is how many directories upward a .env file is looked for.
const envFileDepth = 6

// envFileResult records what loadEnvFile did so it can be logged once the
// logger exists.
type envFileResult struct {
	path    string
	skipped []string
	err     error
}

// loadEnvFile reads the nearest .env file into the process environment.
// Variables already set are left alone.
func loadEnvFile() envFileResult {
	path, err := findEnvFile()
	if err != nil || path == "" {
		return envFileResult{err: err}
	}

	file, err := os.Open(path)
	if err != nil {
		return envFileResult{path: path, err: err}
	}
	defer file.Close()

	skipped, err := parseEnvFile(file)
	return envFileResult{path: path, skipped: skipped, err: err}
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < envFileDepth; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// parseEnvFile sets KEY=VALUE lines from r and returns the keys that could
// not be set.
func parseEnvFile(r io.Reader) ([]string, error) {
	var skipped []string
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, trimQuotes(strings.TrimSpace(value))); err != nil {
			skipped = append(skipped, key)
		}
	}
	return skipped, scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
