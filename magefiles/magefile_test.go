//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCountDocWords(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "research digest tool")
	writeFile(t, filepath.Join(root, "docs", "usage.md"), "run the daemon")
	writeFile(t, filepath.Join(root, "docs", "examples", "config.yaml"), "tasks: []")
	writeFile(t, filepath.Join(root, "docs", "logo.svg"), "<svg> not counted </svg>")
	writeFile(t, filepath.Join(root, "DESIGN.md"), "root notes are not docs")

	n, err := countDocWords(root)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestCountDocWordsMissing(t *testing.T) {
	n, err := countDocWords(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCountGoLines(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a\n\nfunc A() {}\n")
	writeFile(t, filepath.Join(root, "sub", "a_test.go"), "package a\n\n\nfunc TestA() {}\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored\n")

	prod, test, err := countGoLines(root)
	require.NoError(t, err)
	assert.Equal(t, 2, prod)
	assert.Equal(t, 2, test)
}
