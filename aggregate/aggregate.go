// Package aggregate implements DirectoryAggregator: it folds a flat
// entity.FileRecord stream into a per-directory in-memory view, and
// propagates unreadability from an ancestor down to its descendants.
package aggregate

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// Build folds records into a mapping from relative directory path to its
// CategoryDirectory aggregate, then applies transitive unreadability
// propagation in a deterministic second pass.
//
// Exclusion regexes are tested against topdir joined with each entry's
// directory path; an excluded entry never reaches the aggregate. A
// malformed exclude is logged and skipped.
func Build(records []entity.FileRecord, topdir string, excludes []string) map[string]*entity.CategoryDirectory {
	dirs := make(map[string]*entity.CategoryDirectory)
	exclusion := compileExcludes(excludes)

	entry := func(relpath string) *entity.CategoryDirectory {
		d, ok := dirs[relpath]
		if !ok {
			d = &entity.CategoryDirectory{}
			dirs[relpath] = d
		}
		return d
	}

	for _, r := range records {
		relpath := normalizeRelpath(r.Path)
		if !r.IsDirectory {
			relpath = normalizeRelpath(path.Dir(r.Path))
		}
		if exclusion.matches(withTopdir(topdir, relpath)) {
			continue
		}
		d := entry(relpath)
		if r.IsDirectory {
			d.Ctime = r.ModTimeUnix
			d.Readable = r.IsReadable
			continue
		}
		d.Files = append(d.Files, entity.File{
			Name:      path.Base(r.Path),
			Size:      r.Size,
			Timestamp: r.ModTimeUnix,
		})
	}

	propagateUnreadability(dirs)
	return dirs
}

// normalizeRelpath coalesces the category root's basename "." to the empty
// relpath, matching the convention used throughout the catalog.
func normalizeRelpath(p string) string {
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// withTopdir joins topdir (carrying its trailing slash) with a relpath,
// for exclusion matching. Unlike the catalog's absolute names, the
// category root yields topdir as given, trailing slash included.
func withTopdir(topdir, relpath string) string {
	if relpath == "" {
		return topdir
	}
	if topdir == "" || strings.HasSuffix(topdir, "/") {
		return topdir + relpath
	}
	return topdir + "/" + relpath
}

type exclusionSet struct {
	patterns []*regexp.Regexp
}

func compileExcludes(excludes []string) exclusionSet {
	var e exclusionSet
	for _, ex := range excludes {
		p, err := regexp.Compile(ex)
		if err != nil {
			logx.Skip("cannot handle exclude regex", "regex", ex, "error", err)
			continue
		}
		e.patterns = append(e.patterns, p)
	}
	return e
}

func (e exclusionSet) matches(path string) bool {
	for _, p := range e.patterns {
		if p.MatchString(path) {
			logx.Debug("path excluded", "path", path, "regex", p.String())
			return true
		}
	}
	return false
}

// propagateUnreadability walks relpaths in lexicographic order, so a
// parent is visited before any of its children, and forces a directory
// unreadable whenever its parent is unreadable.
func propagateUnreadability(dirs map[string]*entity.CategoryDirectory) {
	relpaths := make([]string, 0, len(dirs))
	for k := range dirs {
		relpaths = append(relpaths, k)
	}
	sort.Strings(relpaths)

	for _, k := range relpaths {
		if k == "" {
			continue
		}
		parent := normalizeRelpath(path.Dir(k))
		if parentDir, ok := dirs[parent]; ok && !parentDir.Readable {
			dirs[k].Readable = false
		}
	}
}
