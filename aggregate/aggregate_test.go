package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormanager/scan-primary-mirror/entity"
)

func TestBuild_RootCoalescesToEmptyRelpath(t *testing.T) {
	records := []entity.FileRecord{
		{Path: ".", IsDirectory: true, IsReadable: true, ModTimeUnix: 100},
		{Path: "README", IsDirectory: false, Size: 10, ModTimeUnix: 100},
	}
	dirs := Build(records, "pub/fedora/", nil)
	require.Contains(t, dirs, "")
	assert.Equal(t, int64(100), dirs[""].Ctime)
	require.Len(t, dirs[""].Files, 1)
	assert.Equal(t, "README", dirs[""].Files[0].Name)
}

func TestBuild_FileCreatesParentEntry(t *testing.T) {
	records := []entity.FileRecord{
		{Path: "fedora/linux/repodata/repomd.xml", IsDirectory: false, Size: 5, ModTimeUnix: 50},
	}
	dirs := Build(records, "", nil)
	require.Contains(t, dirs, "fedora/linux/repodata")
	assert.Equal(t, "repomd.xml", dirs["fedora/linux/repodata"].Files[0].Name)
}

func TestBuild_TransitiveUnreadabilityPropagation(t *testing.T) {
	records := []entity.FileRecord{
		{Path: "a", IsDirectory: true, IsReadable: false, ModTimeUnix: 1},
		{Path: "a/b", IsDirectory: true, IsReadable: true, ModTimeUnix: 2},
		{Path: "a/b/c", IsDirectory: true, IsReadable: true, ModTimeUnix: 3},
	}
	dirs := Build(records, "", nil)
	assert.False(t, dirs["a"].Readable)
	assert.False(t, dirs["a/b"].Readable, "child of unreadable parent must be forced unreadable")
	assert.False(t, dirs["a/b/c"].Readable, "unreadability must propagate transitively")
}

func TestBuild_SiblingUnaffectedByUnreadableSibling(t *testing.T) {
	records := []entity.FileRecord{
		{Path: "a", IsDirectory: true, IsReadable: true, ModTimeUnix: 1},
		{Path: "a/locked", IsDirectory: true, IsReadable: false, ModTimeUnix: 2},
		{Path: "a/open", IsDirectory: true, IsReadable: true, ModTimeUnix: 2},
	}
	dirs := Build(records, "", nil)
	assert.True(t, dirs["a/open"].Readable)
	assert.False(t, dirs["a/locked"].Readable)
}

func TestBuild_ExcludeRegexMatchesTopdirJoinedPath(t *testing.T) {
	records := []entity.FileRecord{
		{Path: "releases/42", IsDirectory: true, IsReadable: true, ModTimeUnix: 1},
		{Path: "archive/old", IsDirectory: true, IsReadable: true, ModTimeUnix: 1},
		{Path: "archive/old/stale.rpm", IsDirectory: false, Size: 3, ModTimeUnix: 1},
	}
	dirs := Build(records, "pub/fedora/", []string{`^pub/fedora/archive`})
	assert.Contains(t, dirs, "releases/42")
	assert.NotContains(t, dirs, "archive/old")
}

func TestBuild_MalformedExcludeIsSkipped(t *testing.T) {
	records := []entity.FileRecord{
		{Path: "releases/42", IsDirectory: true, IsReadable: true, ModTimeUnix: 1},
	}
	dirs := Build(records, "", []string{`(unclosed`})
	assert.Contains(t, dirs, "releases/42")
}
