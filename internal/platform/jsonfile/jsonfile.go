// Package jsonfile stores JSON documents in flat files under a data
// directory, creating the directory and an empty list on first use.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Ensure creates path (and its directory) holding an empty JSON list when it
// does not exist yet.
func Ensure(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jsonfile: create dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.WriteFile(path, []byte("[]\n"), 0o600)
	} else if err != nil {
		return fmt.Errorf("jsonfile: stat %s: %w", path, err)
	}
	return nil
}

// Read decodes the file into v. A missing, empty or whitespace-only file
// leaves v untouched.
func Read(path string, v interface{}) error {
	if err := Ensure(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("jsonfile: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsonfile: decode %s: %w", path, err)
	}
	return nil
}

// Write encodes v with four-space indentation and replaces the file
// atomically via a temp file in the same directory.
func Write(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jsonfile: create dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("jsonfile: replace %s: %w", path, err)
	}
	return nil
}
