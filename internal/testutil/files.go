// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree writes files (relative path -> content) under root.
func WriteTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for rel, content := range files {
		WriteFile(tb, root, rel, content)
	}
}

// WriteFile writes a single file under root, creating parent directories.
func WriteFile(tb testing.TB, root, rel, content string) string {
	tb.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		tb.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tb.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// ReadFile returns the content of root/rel.
func ReadFile(tb testing.TB, root, rel string) string {
	tb.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		tb.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}
