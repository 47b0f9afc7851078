package cleanup

import (
	"testing"

	set "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormanager/scan-primary-mirror/catalog"
	"github.com/mirrormanager/scan-primary-mirror/entity"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRun_DeletesOnlyDirectoriesAbsentFromPresentSet(t *testing.T) {
	store := newTestStore(t)
	cat, err := store.EnsureCategory("fedora", "/pub/fedora", 1)
	require.NoError(t, err)

	inserted, err := store.InsertDirectories(cat.ID, []entity.Directory{
		{Name: "/pub/fedora/releases/41", Files: []byte("[]"), Readable: true},
		{Name: "/pub/fedora/releases/42", Files: []byte("[]"), Readable: true},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)

	deleted, err := Run(store, cat.ID, set.NewThreadUnsafeSet("/pub/fedora/releases/42"))
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "/pub/fedora/releases/41", deleted[0].Name)

	remaining, err := store.Directories(cat.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "/pub/fedora/releases/42", remaining[0].Name)
}

func TestRun_NoRowsDeletedWhenEverythingStillPresent(t *testing.T) {
	store := newTestStore(t)
	cat, err := store.EnsureCategory("fedora", "/pub/fedora", 1)
	require.NoError(t, err)

	_, err = store.InsertDirectories(cat.ID, []entity.Directory{
		{Name: "/pub/fedora/releases/42", Files: []byte("[]"), Readable: true},
	})
	require.NoError(t, err)

	deleted, err := Run(store, cat.ID, set.NewThreadUnsafeSet("/pub/fedora/releases/42"))
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestRun_CascadeRemovesDependentRows(t *testing.T) {
	store := newTestStore(t)
	cat, err := store.EnsureCategory("fedora", "/pub/fedora", 1)
	require.NoError(t, err)

	inserted, err := store.InsertDirectories(cat.ID, []entity.Directory{
		{Name: "/pub/fedora/releases/41/x86_64/os", Files: []byte("[]"), Readable: true},
	})
	require.NoError(t, err)
	dirID := inserted[0].ID

	arch, err := store.EnsureArch("x86_64")
	require.NoError(t, err)
	version, err := store.InsertVersion(entity.Version{Name: "41", ProductID: 1, Display: true, OrderedMirrorlist: true})
	require.NoError(t, err)
	_, err = store.InsertRepository(entity.Repository{
		Name: "/pub/fedora/releases/41/x86_64/os", Prefix: "fedora-41",
		CategoryID: cat.ID, VersionID: version.ID, ArchID: arch.ID, DirectoryID: dirID,
	})
	require.NoError(t, err)
	require.NoError(t, store.InsertFileDetails([]entity.FileDetail{
		{DirectoryID: dirID, Filename: "repomd.xml", Timestamp: 1, Size: 2},
	}))

	deleted, err := Run(store, cat.ID, set.NewThreadUnsafeSet[string]())
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	repos, err := store.Repositories()
	require.NoError(t, err)
	assert.Empty(t, repos)
	fds, err := store.AllFileDetails()
	require.NoError(t, err)
	assert.Empty(t, fds)
}
