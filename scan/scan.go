// Package scan implements ScanSource: the adapter that produces a flat
// stream of entity.FileRecord from a category's primary-mirror tree,
// whether that tree is reached via an rsync daemon, a local mount, or SSH.
package scan

import "github.com/mirrormanager/scan-primary-mirror/entity"

// Source is the abstract scan capability. Each concrete variant is
// dispatched by the category's configured backend name ("rsync",
// "directory", "ssh") rather than by a class hierarchy.
type Source interface {
	// Scan returns every file and directory record beneath url, with
	// paths relative to the category topdir.
	Scan(url string) ([]entity.FileRecord, error)
	// Backend returns the backend discriminant ("rsync", "directory",
	// or "ssh").
	Backend() string
	// Close releases any held resources (SSH/SFTP connections). A no-op
	// for the rsync and directory backends.
	Close() error
}
