// Package cleanup implements the optional pass behind the CLI's
// --delete-directories flag: deleting Directory rows (and everything that
// references them) whose path no longer appears in the current scan's
// aggregate. It never runs unless explicitly requested.
package cleanup

import (
	set "github.com/deckarep/golang-set/v2"

	"github.com/mirrormanager/scan-primary-mirror/catalog"
	"github.com/mirrormanager/scan-primary-mirror/entity"
)

// Run deletes every persisted Directory (linked to categoryID) whose
// absolute name is not in presentNames, cascading through the
// CategoryDirectory links, host-category-dir links, Repository rows, and
// FileDetail rows first. It reports the first database error it hits and
// aborts, matching the core's no-partial-recovery policy for database
// failures.
func Run(store *catalog.Store, categoryID int64, presentNames set.Set[string]) (deleted []entity.Directory, err error) {
	existing, err := store.Directories(categoryID)
	if err != nil {
		return nil, err
	}

	for _, d := range existing {
		if presentNames.ContainsOne(d.Name) {
			continue
		}
		if err := store.DeleteDirectoryCascade(d.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, d)
	}
	return deleted, nil
}
