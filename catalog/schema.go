// Package catalog persists the seven logical entities of the
// reconciliation core in a SQLite database and implements
// CatalogSynchronizer: the diff between a scanned aggregate and the rows
// already on file for one category.
package catalog

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS category (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	topdir     TEXT NOT NULL,
	product_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS directory (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL UNIQUE,
	files    BLOB NOT NULL DEFAULT '[]',
	readable INTEGER NOT NULL DEFAULT 1,
	ctime    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS category_directory (
	category_id  INTEGER NOT NULL REFERENCES category(id),
	directory_id INTEGER NOT NULL REFERENCES directory(id),
	PRIMARY KEY (category_id, directory_id)
);

CREATE TABLE IF NOT EXISTS host_category_dir (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	host_id      INTEGER NOT NULL,
	directory_id INTEGER NOT NULL REFERENCES directory(id),
	path         TEXT
);

CREATE TABLE IF NOT EXISTS arch (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS version (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	name                TEXT NOT NULL,
	product_id          INTEGER NOT NULL,
	is_test             INTEGER NOT NULL DEFAULT 0,
	display             INTEGER NOT NULL DEFAULT 1,
	sortorder           INTEGER NOT NULL DEFAULT 0,
	ordered_mirrorlist  INTEGER NOT NULL DEFAULT 1,
	UNIQUE (name, product_id)
);

CREATE TABLE IF NOT EXISTS repository (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	prefix       TEXT NOT NULL,
	category_id  INTEGER NOT NULL REFERENCES category(id),
	version_id   INTEGER NOT NULL REFERENCES version(id),
	arch_id      INTEGER NOT NULL REFERENCES arch(id),
	directory_id INTEGER NOT NULL REFERENCES directory(id),
	disabled     INTEGER NOT NULL DEFAULT 0,
	UNIQUE (prefix, arch_id)
);

CREATE TABLE IF NOT EXISTS file_detail (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	directory_id INTEGER NOT NULL REFERENCES directory(id),
	filename     TEXT NOT NULL,
	timestamp    INTEGER NOT NULL DEFAULT 0,
	size         INTEGER NOT NULL DEFAULT 0,
	sha1         TEXT NOT NULL DEFAULT '',
	md5          TEXT NOT NULL DEFAULT '',
	sha256       TEXT NOT NULL DEFAULT '',
	sha512       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_file_detail_dir_name ON file_detail(directory_id, filename);
`

// Store wraps the SQLite connection and exposes one method per logical
// operation the reconciliation core needs.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the SQLite database at dsn,
// bootstrapping the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDatabase, "opening %s: %v", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.ErrDatabase, "bootstrapping schema: %v", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) wrapDBErr(action string, err error) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.ErrDatabase, "%s: %v", action, err)
}

// step records one catalog-changing statement in the debug step counter.
func step(msg string, args ...any) {
	logx.Step(msg, args...)
}
