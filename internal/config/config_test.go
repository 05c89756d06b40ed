package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	root := t.TempDir()
	cfg := Default(root)

	assert.Equal(t, "arf", cfg.Branch)
	assert.Equal(t, filepath.Join(root, ".arf"), cfg.MountDir)
	assert.Equal(t, filepath.Join(root, ".arf", "records"), cfg.StorageRoot)
	assert.Equal(t, filepath.Join(root, ".arf", "specs"), cfg.SpecsDir)
	assert.Equal(t, 8, cfg.PrefixLength)
	assert.Equal(t, 7, cfg.ShortSHALength)
	assert.Equal(t, "unknown", cfg.Agent)
	assert.Equal(t, 100, cfg.MaxSuffix)
	assert.True(t, cfg.AutoCommit)
	assert.Equal(t, ".arf", cfg.MountRel())
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	root := t.TempDir()
	content := "prefix_length: 12\nstorage_root: notes/records\ncache: false\nagent: from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644))

	t.Setenv("ARF_AGENT", "claude")
	t.Setenv("ARF_MAX_SUFFIX", "5")

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.PrefixLength)
	assert.Equal(t, filepath.Join(root, "notes", "records"), cfg.StorageRoot)
	assert.False(t, cfg.Cache)
	assert.Equal(t, "claude", cfg.Agent, "environment overrides the file")
	assert.Equal(t, 5, cfg.MaxSuffix)
}

func TestLoadRejectsBadPrefixLength(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("prefix_length: 2\n"), 0644))

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix_length")
}

func TestLoadWithoutFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".arf", "records"), cfg.StorageRoot)
}
