// Package entity holds the plain data types shared by every stage of the
// scan-to-catalog pipeline: the scan output contract, the in-memory
// per-directory aggregate, and the seven logical rows of the relational
// catalog.
package entity

import "fmt"

// FileRecord is the output contract of a scan.Source: one line of an rsync
// listing, one entry of a fullfiletimelist-* index, or one entry of a
// filesystem/SFTP walk.
type FileRecord struct {
	Path        string
	IsDirectory bool
	IsReadable  bool
	Size        int64
	ModTimeUnix int64
}

func (r FileRecord) String() string {
	return fmt.Sprintf("{path: %s, dir: %v, readable: %v, size: %d, mtime: %d}",
		r.Path, r.IsDirectory, r.IsReadable, r.Size, r.ModTimeUnix)
}

// File is one entry of a CategoryDirectory's short file list, and the JSON
// shape persisted in Directory.Files.
type File struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Timestamp int64  `json:"timestamp"`
}

// CategoryDirectory is the in-memory aggregate for one relative directory
// path within a category, folded from a FileRecord stream by the aggregate
// package and reconciled against the catalog by the catalog package.
type CategoryDirectory struct {
	Files []File
	// Readable reflects the directory's own permission bit, further
	// propagated downward from unreadable ancestors.
	Readable bool
	// Ctime is seconds-since-epoch, taken from the directory's own mtime
	// as reported by the scan source.
	Ctime int64
	// DirectoryID is 0 until this entry has been matched to, or inserted
	// as, a persisted Directory row.
	DirectoryID int64
	// CtimeChanged records whether this run detected a ctime difference
	// (or created the row for the first time); RepositoryDiscoverer only
	// looks at entries where this is true.
	CtimeChanged bool
}

// Category is a product tree on the primary mirror.
type Category struct {
	ID        int64
	Name      string
	Topdir    string
	ProductID int64
}

// Directory is a persisted absolute path with its short file list.
type Directory struct {
	ID       int64
	Name     string
	Files    []byte
	Readable bool
	Ctime    int64
}

// Arch is a seeded, immutable architecture row. "source" is synthetic: it
// is never matched directly against a path, only used as a fallback for
// SRPMS/src trees.
type Arch struct {
	ID   int64
	Name string
}

// Version is a product version, created on the fly when a new version
// string is inferred from a scanned path.
type Version struct {
	ID                int64
	Name              string
	ProductID         int64
	IsTest            bool
	Display           bool
	SortOrder         int
	OrderedMirrorlist bool
}

// Repository identifies one (prefix, arch) instance of a repository within
// a category/version.
type Repository struct {
	ID          int64
	Name        string
	Prefix      string
	CategoryID  int64
	VersionID   int64
	ArchID      int64
	DirectoryID int64
	Disabled    bool
}

// FileDetail is one temporal-alternate checksum row for a filename within a
// directory. Multiple rows per (DirectoryID, Filename) are normal.
type FileDetail struct {
	ID          int64
	DirectoryID int64
	Filename    string
	Timestamp   int64
	Size        int64
	SHA1        string
	MD5         string
	SHA256      string
	SHA512      string
}

// Same reports whether two FileDetail rows carry identical content fields,
// which is exactly the dedup test FileDetailRecorder applies before
// inserting a new row (directory/filename identity is assumed already
// matched by the caller).
func (f FileDetail) Same(o FileDetail) bool {
	return f.Size == o.Size && f.Timestamp == o.Timestamp &&
		f.SHA1 == o.SHA1 && f.MD5 == o.MD5 && f.SHA256 == o.SHA256 && f.SHA512 == o.SHA512
}

// RepositoryMapping maps a path regex to a repository prefix template.
type RepositoryMapping struct {
	Regex         string
	Prefix        string
	VersionPrefix string
}

// RepositoryAlias renames one computed prefix (including its trailing
// hyphen) to another.
type RepositoryAlias struct {
	From string
	To   string
}
