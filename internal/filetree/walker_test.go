package filetree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, content, 0644))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "pkg/util/util.go", []byte("package util\n"))
	writeFile(t, root, "README.md", []byte("# readme\n"))
	writeFile(t, root, "image.png", []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, root, "vendor/dep/dep.go", []byte("package dep\n"))
	writeFile(t, root, ".git/config.go", []byte("package git\n"))
	writeFile(t, root, "blob.go", []byte{'a', 0, 'b'})

	opts := DefaultOptions()
	units, stats, err := New(root, opts).Walk(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(units))
	for i, u := range units {
		paths[i] = u.Path
	}
	assert.Equal(t, []string{"README.md", "main.go", "pkg/util/util.go"}, paths)
	assert.Equal(t, 1, stats.SkippedBinary)
	assert.Equal(t, 1, stats.SkippedFiltered)

	for _, u := range units {
		assert.Len(t, u.Fingerprint, 64)
		assert.Equal(t, EncodingUTF8, u.Encoding)
		assert.Equal(t, int64(len(u.Content)), u.SizeBytes)
	}
}

func TestWalk_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", []byte("package a\n"))
	writeFile(t, root, "big.go", make([]byte, 2048))

	opts := DefaultOptions()
	opts.MaxFileSize = 1024
	units, stats, err := New(root, opts).Walk(context.Background())
	require.NoError(t, err)

	require.Len(t, units, 1)
	assert.Equal(t, "small.go", units[0].Path)
	assert.Equal(t, 1, stats.SkippedSize)
}

func TestWalk_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", []byte("package a\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(root, DefaultOptions()).Walk(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", []byte("package a\n"))
	writeFile(t, root, "b.go", []byte("package b\n"))

	units, err := New(root, DefaultOptions()).Load(context.Background(), []string{"b.go", "missing.go", "a.go"})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "b.go", units[0].Path)
	assert.Equal(t, "a.go", units[1].Path)
}
