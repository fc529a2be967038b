package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeRecognizesAliases(t *testing.T) {
	typ, err := ParseType("zk")
	require.NoError(t, err)
	assert.Equal(t, TypeZookeeper, typ)

	_, err = ParseType("bogus")
	assert.Error(t, err)
}

func TestFileProviderLoadsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: test\n"), 0o644))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: test")
	assert.Equal(t, TypeFile, p.Type())
}

func TestNewDispatchesByType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: test\n"), 0o644))

	p, err := New(Config{Type: TypeFile, Path: path})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, TypeFile, p.Type())
}
