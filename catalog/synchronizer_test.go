package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormanager/scan-primary-mirror/entity"
)

func unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func TestAbsoluteName_RootTrimsTrailingSlash(t *testing.T) {
	assert.Equal(t, "/pub/fedora", AbsoluteName("/pub/fedora/", ""))
	assert.Equal(t, "/pub/fedora/releases/42", AbsoluteName("/pub/fedora/", "releases/42"))
}

func TestSerializeShortFileList_SortedByTimestampDescending(t *testing.T) {
	files := []entity.File{
		{Name: "a.xml", Size: 1, Timestamp: 10},
		{Name: "b.xml", Size: 2, Timestamp: 30},
		{Name: "c.xml", Size: 3, Timestamp: 20},
	}
	out := SerializeShortFileList(files)
	assert.Contains(t, string(out), `"name":"b.xml"`)
	assert.Less(t, indexOf(t, out, "b.xml"), indexOf(t, out, "c.xml"))
	assert.Less(t, indexOf(t, out, "c.xml"), indexOf(t, out, "a.xml"))
}

func TestSerializeShortFileList_LengthCapAtTenWhenThresholdExceeded(t *testing.T) {
	files := make([]entity.File, 0, 20)
	for i := 0; i < 15; i++ {
		files = append(files, entity.File{Name: "pkg.rpm", Size: int64(i), Timestamp: int64(i)})
	}
	out := SerializeShortFileList(files)
	var decoded []entity.File
	require.NoError(t, unmarshal(out, &decoded))
	assert.Len(t, decoded, 10)
	assert.Equal(t, int64(14), decoded[0].Timestamp)
}

func TestSerializeShortFileList_FullListWhenUnderThreshold(t *testing.T) {
	files := []entity.File{
		{Name: "x.txt", Timestamp: 1},
		{Name: "y.txt", Timestamp: 2},
	}
	out := SerializeShortFileList(files)
	var decoded []entity.File
	require.NoError(t, unmarshal(out, &decoded))
	assert.Len(t, decoded, 2)
}

func newAggregate() map[string]*entity.CategoryDirectory {
	return map[string]*entity.CategoryDirectory{
		"": {Readable: true, Ctime: 100},
		"releases/42": {Readable: true, Ctime: 200, Files: []entity.File{
			{Name: "repomd.xml", Size: 10, Timestamp: 150},
		}},
	}
}

func TestSync_InsertsNewDirectoriesAndMarksThemChanged(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	cat, err := store.EnsureCategory("fedora", "pub/fedora/", 1)
	require.NoError(t, err)

	agg := newAggregate()
	require.NoError(t, NewSynchronizer(store).Sync(cat.ID, "pub/fedora/", agg))

	for k, cd := range agg {
		assert.NotZero(t, cd.DirectoryID, "entry %q must carry its assigned row id", k)
		assert.True(t, cd.CtimeChanged, "a freshly inserted entry %q counts as changed", k)
	}

	rows, err := store.Directories(cat.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	names := []string{rows[0].Name, rows[1].Name}
	assert.ElementsMatch(t, []string{"pub/fedora", "pub/fedora/releases/42"}, names)
}

func TestSync_IdenticalRescanIsNoOp(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	cat, err := store.EnsureCategory("fedora", "pub/fedora/", 1)
	require.NoError(t, err)
	require.NoError(t, NewSynchronizer(store).Sync(cat.ID, "pub/fedora/", newAggregate()))

	agg := newAggregate()
	require.NoError(t, NewSynchronizer(store).Sync(cat.ID, "pub/fedora/", agg))
	for k, cd := range agg {
		assert.NotZero(t, cd.DirectoryID)
		assert.False(t, cd.CtimeChanged, "an unchanged entry %q must not be reported as changed", k)
	}

	rows, err := store.Directories(cat.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSync_CtimeChangeUpdatesRowAndFlagsEntry(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	cat, err := store.EnsureCategory("fedora", "pub/fedora/", 1)
	require.NoError(t, err)
	require.NoError(t, NewSynchronizer(store).Sync(cat.ID, "pub/fedora/", newAggregate()))

	agg := newAggregate()
	agg["releases/42"].Ctime = 210
	require.NoError(t, NewSynchronizer(store).Sync(cat.ID, "pub/fedora/", agg))

	assert.True(t, agg["releases/42"].CtimeChanged)
	assert.False(t, agg[""].CtimeChanged)

	rows, err := store.Directories(cat.ID)
	require.NoError(t, err)
	for _, r := range rows {
		if r.Name == "pub/fedora/releases/42" {
			assert.Equal(t, int64(210), r.Ctime)
		}
	}
}

func indexOf(t *testing.T, data []byte, substr string) int {
	t.Helper()
	s := string(data)
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	t.Fatalf("substring %q not found in %q", substr, s)
	return -1
}
