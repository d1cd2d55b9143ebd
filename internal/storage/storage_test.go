package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = s.Save(ctx, "courses/1/slides.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	r, err := s.Open(ctx, "courses/1/slides.pdf")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestOpenMissingFile(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "nope.pdf")
	assert.Error(t, err)
}

func TestPathConfinedToRoot(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "outside.txt"), []byte("secret"), 0o644))

	s, err := NewLocalStorage(filepath.Join(base, "root"))
	require.NoError(t, err)

	ctx := context.Background()
	for _, path := range []string{
		"../outside.txt",
		"a/../../outside.txt",
		"..",
	} {
		r, err := s.Open(ctx, path)
		if err == nil {
			data, _ := io.ReadAll(r)
			r.Close()
			assert.NotEqual(t, "secret", string(data), "path %q escaped the root", path)
		}
	}

	// Traversal that stays inside the root is fine
	require.NoError(t, s.Save(ctx, "a/../inside.txt", strings.NewReader("x")))
	r, err := s.Open(ctx, "inside.txt")
	require.NoError(t, err)
	r.Close()
}
