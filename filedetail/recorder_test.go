package filedetail

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormanager/scan-primary-mirror/entity"
)

func TestExtractRepomdTimestamp_MaxOfAllValues(t *testing.T) {
	body := []byte(`<repomd><data><timestamp>100</timestamp></data><data><timestamp>250.7</timestamp></data></repomd>`)
	assert.Equal(t, int64(250), extractRepomdTimestamp(body))
}

func TestExtractRepomdTimestamp_UnparsableStructureYieldsZero(t *testing.T) {
	assert.Equal(t, int64(0), extractRepomdTimestamp([]byte("not xml at all")))
}

func TestExtractRepomdTimestamp_NonNumericValueYieldsMinusOne(t *testing.T) {
	body := []byte(`<repomd><data><timestamp>banana</timestamp></data></repomd>`)
	assert.Equal(t, int64(-1), extractRepomdTimestamp(body))
}

func TestIsDuplicate_ExactFieldMatch(t *testing.T) {
	existing := []entity.FileDetail{
		{DirectoryID: 1, Filename: "repomd.xml", Size: 10, Timestamp: 5, SHA256: "abc"},
	}
	dup := entity.FileDetail{DirectoryID: 1, Filename: "repomd.xml", Size: 10, Timestamp: 5, SHA256: "abc"}
	assert.True(t, isDuplicate(dup, existing))

	changed := entity.FileDetail{DirectoryID: 1, Filename: "repomd.xml", Size: 11, Timestamp: 5, SHA256: "abc"}
	assert.False(t, isDuplicate(changed, existing))

	otherDir := entity.FileDetail{DirectoryID: 2, Filename: "repomd.xml", Size: 10, Timestamp: 5, SHA256: "abc"}
	assert.False(t, isDuplicate(otherDir, existing), "rows in another directory never count as duplicates")
}

func TestFullTarget_JoinsTopdirDirAndFilename(t *testing.T) {
	rec := NewRecorder(nil, "pub/fedora/")
	assert.Equal(t, "pub/fedora/releases/42/repodata/repomd.xml", rec.fullTarget("releases/42/repodata", "repomd.xml"))
	assert.Equal(t, "pub/fedora/repomd.xml", rec.fullTarget("", "repomd.xml"))
}

func TestRecordGeneric_NoOpRescanProducesNoNewRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<repomd><data><timestamp>42</timestamp></data></repomd>`)
	}))
	defer srv.Close()

	rec := NewRecorder(NewHTTPFetcher(srv.URL), "")
	fd, err := rec.RecordGeneric(1, "repodata", "repomd.xml", nil)
	require.NoError(t, err)
	require.NotNil(t, fd)
	assert.Equal(t, int64(42), fd.Timestamp)

	fd2, err := rec.RecordGeneric(1, "repodata", "repomd.xml", []entity.FileDetail{*fd})
	require.NoError(t, err)
	assert.Nil(t, fd2, "identical content on a re-scan must not produce a new row")
}

func TestRecordGeneric_LocalFetcherReadsBelowPrefix(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "pub", "fedora", "repodata")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	body := `<repomd><data><timestamp>7</timestamp></data></repomd>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repomd.xml"), []byte(body), 0o644))

	rec := NewRecorder(NewLocalFetcher(root), "pub/fedora/")
	fd, err := rec.RecordGeneric(3, "repodata", "repomd.xml", nil)
	require.NoError(t, err)
	require.NotNil(t, fd)
	assert.Equal(t, int64(len(body)), fd.Size)
	assert.Equal(t, int64(7), fd.Timestamp)
}

func TestRecordChecksumSidecar_ParsesRecognizedAlgorithms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "SHA256 (package.rpm) = deadbeef\nMD5 (package.rpm) = ignored\n")
	}))
	defer srv.Close()

	rec := NewRecorder(NewHTTPFetcher(srv.URL), "")
	siblings := []entity.File{{Name: "package.rpm", Size: 100, Timestamp: 999}}
	details, err := rec.RecordChecksumSidecar(1, "repodata", "CHECKSUM", siblings, nil)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "deadbeef", details[0].SHA256)
	assert.Equal(t, int64(100), details[0].Size)
	assert.Equal(t, int64(999), details[0].Timestamp)
}

func TestRecordChecksumSidecar_SkipsFilenameNotInSiblingList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "SHA256 (unknown.rpm) = deadbeef\n")
	}))
	defer srv.Close()

	rec := NewRecorder(NewHTTPFetcher(srv.URL), "")
	details, err := rec.RecordChecksumSidecar(1, "repodata", "CHECKSUM", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, details)
}
