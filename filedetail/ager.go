package filedetail

import (
	"sort"

	set "github.com/deckarep/golang-set/v2"

	"github.com/mirrormanager/scan-primary-mirror/entity"
)

const (
	DefaultMaxStaleDays       = 3
	DefaultMaxPropagationDays = 2
	secondsPerDay             = 86400
)

// Ager implements FileDetailAger: a retention sweep over every FileDetail
// row that guarantees at least two rows survive per (directory_id,
// filename) group whenever the newest row is within the propagation
// window.
type Ager struct {
	MaxStaleDays       int
	MaxPropagationDays int
}

func NewAger(maxStaleDays, maxPropagationDays int) *Ager {
	if maxStaleDays <= 0 {
		maxStaleDays = DefaultMaxStaleDays
	}
	if maxPropagationDays <= 0 {
		maxPropagationDays = DefaultMaxPropagationDays
	}
	return &Ager{MaxStaleDays: maxStaleDays, MaxPropagationDays: maxPropagationDays}
}

// IDsToDelete returns the IDs of rows aging should prune, given all
// FileDetail rows and the set of directory IDs still tracked by the
// catalog. Rows of untracked directories belong to someone else and are
// never touched. now is seconds-since-epoch, passed in by the caller so
// the algorithm stays pure and testable.
func (a *Ager) IDsToDelete(details []entity.FileDetail, trackedDirectoryIDs set.Set[int64], now int64) []int64 {
	tracked := make([]entity.FileDetail, 0, len(details))
	for _, d := range details {
		if trackedDirectoryIDs.ContainsOne(d.DirectoryID) {
			tracked = append(tracked, d)
		}
	}

	sort.SliceStable(tracked, func(i, j int) bool {
		if tracked[i].DirectoryID != tracked[j].DirectoryID {
			return tracked[i].DirectoryID > tracked[j].DirectoryID
		}
		if tracked[i].Filename != tracked[j].Filename {
			return tracked[i].Filename > tracked[j].Filename
		}
		return tracked[i].Timestamp > tracked[j].Timestamp
	})

	stale := now - secondsPerDay*int64(a.MaxStaleDays)
	propagation := now - secondsPerDay*int64(a.MaxPropagationDays)

	var toDelete []int64
	var curDir int64
	var curName string
	var sameEntries int
	var newestTS int64
	first := true

	for _, d := range tracked {
		if first || d.DirectoryID != curDir || d.Filename != curName {
			curDir, curName = d.DirectoryID, d.Filename
			newestTS = d.Timestamp
			first = false
			sameEntries = 1
			continue
		}
		sameEntries++
		if d.Timestamp < stale && (sameEntries > 2 || newestTS < propagation) {
			toDelete = append(toDelete, d.ID)
		}
	}

	return toDelete
}
