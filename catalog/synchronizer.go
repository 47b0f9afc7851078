package catalog

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/mirrormanager/scan-primary-mirror/entity"
)

// Synchronizer diffs a scanned aggregate against the Directory rows
// already persisted for one category and applies inserts/updates.
type Synchronizer struct {
	store *Store
}

func NewSynchronizer(store *Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// Sync reconciles agg (relpath -> CategoryDirectory, as produced by the
// aggregate package) against the Directory rows linked to categoryID,
// mutating agg in place with assigned DirectoryID and CtimeChanged.
func (sy *Synchronizer) Sync(categoryID int64, topdir string, agg map[string]*entity.CategoryDirectory) error {
	existing, err := sy.store.Directories(categoryID)
	if err != nil {
		return err
	}
	byName := make(map[string]entity.Directory, len(existing))
	for _, d := range existing {
		byName[d.Name] = d
	}

	var toInsert []entity.Directory
	var insertKeys []string
	var toUpdate []DirectoryUpdate

	keys := make([]string, 0, len(agg))
	for k := range agg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		cd := agg[k]
		absName := AbsoluteName(topdir, k)

		row, found := byName[absName]
		if !found {
			toInsert = append(toInsert, entity.Directory{
				Name:     absName,
				Files:    SerializeShortFileList(cd.Files),
				Readable: cd.Readable,
				Ctime:    cd.Ctime,
			})
			insertKeys = append(insertKeys, k)
			continue
		}

		cd.DirectoryID = row.ID
		ctimeChanged := cd.Ctime != row.Ctime
		readableChanged := cd.Readable != row.Readable
		if ctimeChanged || readableChanged {
			update := DirectoryUpdate{
				ID:       row.ID,
				Ctime:    cd.Ctime,
				Readable: cd.Readable,
			}
			newFiles := SerializeShortFileList(cd.Files)
			if !bytes.Equal(newFiles, row.Files) {
				update.Files = newFiles
			}
			toUpdate = append(toUpdate, update)
		}
		if ctimeChanged {
			cd.CtimeChanged = true
		}
	}

	if len(toInsert) > 0 {
		inserted, err := sy.store.InsertDirectories(categoryID, toInsert)
		if err != nil {
			return err
		}
		for i, d := range inserted {
			k := insertKeys[i]
			agg[k].DirectoryID = d.ID
			agg[k].CtimeChanged = true
		}
	}

	return sy.store.UpdateDirectories(toUpdate)
}

// AbsoluteName joins a category's topdir with a relpath, applying the
// trailing-slash quirk for the category root itself.
func AbsoluteName(topdir, relpath string) string {
	if relpath == "" {
		return strings.TrimSuffix(topdir, "/")
	}
	return strings.TrimSuffix(topdir, "/") + "/" + relpath
}

// SerializeShortFileList serializes File entries as the Directory.files
// JSON payload, sorted by timestamp descending. If more
// than ten entries end in ".rpm" or more than ten end in ".html", only the
// top ten by timestamp are emitted; otherwise the full list is kept.
func SerializeShortFileList(files []entity.File) []byte {
	sorted := make([]entity.File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	var rpmCount, htmlCount int
	for _, f := range sorted {
		if strings.HasSuffix(f.Name, ".rpm") {
			rpmCount++
		}
		if strings.HasSuffix(f.Name, ".html") {
			htmlCount++
		}
	}

	out := sorted
	if (rpmCount > 10 || htmlCount > 10) && len(sorted) > 10 {
		out = sorted[:10]
	}

	b, err := json.Marshal(out)
	if err != nil {
		return []byte("[]")
	}
	return b
}
