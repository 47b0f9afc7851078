package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormanager/scan-primary-mirror/errs"
)

const sampleTOML = `
common_rsync_options = "--timeout=600"
excludes = ["*.tmp"]
max_stale_days = 5
max_propagation_days = 2

[database]
url = "scan-primary-mirror.db"

[[category]]
name = "fedora"
type = "rsync"
url = "rsync://dl.fedoraproject.org/fedora-buffet/fedora/"
options = "--exclude=*.iso"
checksum_base = "https://dl.fedoraproject.org/fedora-buffet/fedora/"
excludes = ["*.log"]

[[category]]
name = "epel"
type = "directory"
url = "/srv/pub/epel/"

[[repository_mapping]]
regex = "^pub/fedora/releases/[.\\d]+/.*"
prefix = "fedora"

[[repository_aliases]]
from = "base-"
to = "renamed-"
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o644))
	return path
}

func TestLoad_ParsesFullSchema(t *testing.T) {
	s, err := Load(writeSample(t))
	require.NoError(t, err)

	assert.Equal(t, "scan-primary-mirror.db", s.Database.URL)
	assert.Equal(t, 5, s.MaxStaleDays)
	assert.Equal(t, 2, s.MaxPropagationDays)
	require.Len(t, s.Category, 2)
	assert.Equal(t, "fedora", s.Category[0].Name)
	assert.Equal(t, "directory", s.Category[1].Type)
	require.Len(t, s.RepositoryMapping, 1)
	require.Len(t, s.RepositoryAliases, 1)
}

func TestLoad_MissingDatabaseURLIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`max_stale_days = 1`), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestCombinedExcludes_MergesGlobalAndCategory(t *testing.T) {
	s, err := Load(writeSample(t))
	require.NoError(t, err)

	combined := s.CombinedExcludes(s.Category[0])
	assert.ElementsMatch(t, []string{"*.tmp", "*.log"}, combined)
}

func TestCategoryByName_Found(t *testing.T) {
	s, err := Load(writeSample(t))
	require.NoError(t, err)

	c, ok := s.CategoryByName("fedora")
	require.True(t, ok)
	assert.Equal(t, "rsync", c.Type)

	_, ok = s.CategoryByName("nope")
	assert.False(t, ok)
}
