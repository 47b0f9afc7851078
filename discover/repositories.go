package discover

import (
	"path"
	"sort"
	"strings"

	"github.com/mirrormanager/scan-primary-mirror/catalog"
	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/filedetail"
	"github.com/mirrormanager/scan-primary-mirror/fmte"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// FindContext bundles everything one discovery pass needs. A single value
// is threaded through FindRepositories instead of a pile of globals.
type FindContext struct {
	Store    *catalog.Store
	Rules    *Rules
	Category entity.Category
	// Topdir is the category's normalized topdir, trailing slash
	// included (empty allowed).
	Topdir string
	// Aggregate is the scanned view after catalog synchronization, so
	// every entry carries its DirectoryID and CtimeChanged flag.
	Aggregate map[string]*entity.CategoryDirectory
	Recorder  *filedetail.Recorder
	// Repositories is the full repository table; (prefix, arch) pairs
	// found here are never created again.
	Repositories []entity.Repository
	// FileDetails is the full file_detail table, the dedup set for
	// newly recorded rows. Rows recorded during this pass do not join
	// the dedup set until the pass ends.
	FileDetails []entity.FileDetail
}

// FindRepositories walks every changed directory of the aggregate,
// records *-CHECKSUM sidecar details, and creates Repository (and, on the
// fly, Version) rows for newly sighted repodata directories. New file
// details accumulate across the walk and are inserted as one batch.
//
// Per-directory failures (unknown architecture or version, unmatched
// prefix, fetch errors) are logged and isolated; database failures abort
// the pass.
func FindRepositories(ctx *FindContext) error {
	var newDetails []entity.FileDetail
	dedup := ctx.FileDetails

	keys := make([]string, 0, len(ctx.Aggregate))
	for k := range ctx.Aggregate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		cd := ctx.Aggregate[k]
		if !cd.CtimeChanged {
			continue
		}

		for _, f := range cd.Files {
			if !strings.HasSuffix(f.Name, "-CHECKSUM") {
				continue
			}
			fmte.Printf("Found CHECKSUM %s\n", f.Name)
			details, err := ctx.Recorder.RecordChecksumSidecar(cd.DirectoryID, k, f.Name, cd.Files, dedup)
			if err != nil {
				continue
			}
			newDetails = append(newDetails, details...)
		}

		if path.Base(k) != "repodata" {
			continue
		}
		if ctx.Rules.SkipRepositoryPath(k) {
			continue
		}

		parent := parentKey(k)
		parentCD, ok := ctx.Aggregate[parent]
		if !ok {
			logx.Skip("repodata without an aggregated parent", "path", k)
			continue
		}
		withTopdir := catalog.AbsoluteName(ctx.Topdir, parent)
		if ctx.Rules.SkipPathForVersion(withTopdir) {
			continue
		}

		va, err := ctx.Rules.GuessVerArch(withTopdir, ctx.Category.ProductID)
		if err != nil {
			logx.Skip("not able to figure out architecture", "path", withTopdir)
			continue
		}
		if va.NewVersion != nil {
			v, err := ctx.Store.InsertVersion(*va.NewVersion)
			if err != nil {
				return err
			}
			ctx.Rules.AddVersion(v)
			va.VersionID = v.ID
			va.VersionName = v.Name
		}
		if va.VersionID == -1 {
			logx.Skip("not able to guess version, not creating repository", "path", withTopdir)
			continue
		}

		prefix := ctx.Rules.RepoPrefix(withTopdir, va.VersionName)
		if prefix == "" {
			logx.Skip("not able to determine prefix", "path", withTopdir,
				"error", errs.Wrap(errs.ErrPrefixMiss, "no repository mapping matched %s", withTopdir))
		} else if !repositoryExists(ctx.Repositories, prefix, va.ArchID) {
			created, err := ctx.Store.InsertRepository(entity.Repository{
				Name:        withTopdir,
				Prefix:      prefix,
				CategoryID:  ctx.Category.ID,
				VersionID:   va.VersionID,
				ArchID:      va.ArchID,
				DirectoryID: parentCD.DirectoryID,
			})
			if err != nil {
				return err
			}
			logx.Debug("created repository", "prefix", created.Prefix, "directory", withTopdir)
			ctx.Repositories = append(ctx.Repositories, created)
		}

		fd, err := ctx.Recorder.RecordGeneric(cd.DirectoryID, k, "repomd.xml", dedup)
		if err != nil || fd == nil {
			continue
		}
		newDetails = append(newDetails, *fd)
	}

	if len(newDetails) > 0 {
		logx.Debug("inserting file details", "count", len(newDetails))
		if err := ctx.Store.InsertFileDetails(newDetails); err != nil {
			return err
		}
		ctx.FileDetails = append(ctx.FileDetails, newDetails...)
	}
	return nil
}

func parentKey(k string) string {
	p := path.Dir(k)
	if p == "." {
		return ""
	}
	return p
}

func repositoryExists(repos []entity.Repository, prefix string, archID int64) bool {
	for _, r := range repos {
		if r.Prefix == prefix && r.ArchID == archID {
			return true
		}
	}
	return false
}
