// Package dotenv seeds the process environment from a local .env file so the
// call demo can run without exporting every SIMCALL_* variable by hand.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load reads KEY=VALUE pairs from the first path that exists and sets any
// that are not already present in the environment. Real environment always
// wins over file values. No path existing is not an error.
func Load(paths ...string) error {
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("open env file %q: %w", path, err)
		}
		err = apply(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("env file %q: %w", path, err)
		}
		return nil
	}
	return nil
}

func apply(file *os.File) error {
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, val, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseLine accepts KEY=VALUE with optional `export ` prefix and optional
// single or double quotes around the value. Comments and blank lines are
// skipped.
func parseLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}

	val = strings.TrimSpace(val)
	if len(val) >= 2 {
		switch {
		case val[0] == '"' && val[len(val)-1] == '"':
			val = val[1 : len(val)-1]
		case val[0] == '\'' && val[len(val)-1] == '\'':
			val = val[1 : len(val)-1]
		}
	}
	return key, val, true
}
