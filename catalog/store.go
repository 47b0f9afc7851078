package catalog

import (
	"github.com/mirrormanager/scan-primary-mirror/entity"
)

func (s *Store) Categories() ([]entity.Category, error) {
	rows, err := s.db.Query(`SELECT id, name, topdir, product_id FROM category ORDER BY name`)
	if err != nil {
		return nil, s.wrapDBErr("listing categories", err)
	}
	defer rows.Close()
	var out []entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Topdir, &c.ProductID); err != nil {
			return nil, s.wrapDBErr("scanning category", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureCategory returns the Category row named name, inserting it (with
// topdir and productID) if it does not already exist. Categories are
// provisioned from configuration, not discovered by the scan itself.
func (s *Store) EnsureCategory(name, topdir string, productID int64) (entity.Category, error) {
	c, err := s.CategoryByName(name)
	if err == nil {
		return c, nil
	}
	res, err := s.db.Exec(`INSERT INTO category (name, topdir, product_id) VALUES (?, ?, ?)`, name, topdir, productID)
	if err != nil {
		return entity.Category{}, s.wrapDBErr("inserting category "+name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entity.Category{}, s.wrapDBErr("reading inserted category id", err)
	}
	return entity.Category{ID: id, Name: name, Topdir: topdir, ProductID: productID}, nil
}

func (s *Store) CategoryByName(name string) (entity.Category, error) {
	var c entity.Category
	err := s.db.QueryRow(`SELECT id, name, topdir, product_id FROM category WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.Topdir, &c.ProductID)
	if err != nil {
		return entity.Category{}, s.wrapDBErr("looking up category "+name, err)
	}
	return c, nil
}

// Directories returns every Directory row linked to categoryID via
// CategoryDirectory.
func (s *Store) Directories(categoryID int64) ([]entity.Directory, error) {
	rows, err := s.db.Query(`
		SELECT d.id, d.name, d.files, d.readable, d.ctime
		FROM directory d
		JOIN category_directory cd ON cd.directory_id = d.id
		WHERE cd.category_id = ?`, categoryID)
	if err != nil {
		return nil, s.wrapDBErr("listing directories", err)
	}
	defer rows.Close()
	var out []entity.Directory
	for rows.Next() {
		var d entity.Directory
		var readable int
		if err := rows.Scan(&d.ID, &d.Name, &d.Files, &readable, &d.Ctime); err != nil {
			return nil, s.wrapDBErr("scanning directory", err)
		}
		d.Readable = readable != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Arches() ([]entity.Arch, error) {
	rows, err := s.db.Query(`SELECT id, name FROM arch`)
	if err != nil {
		return nil, s.wrapDBErr("listing arches", err)
	}
	defer rows.Close()
	var out []entity.Arch
	for rows.Next() {
		var a entity.Arch
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, s.wrapDBErr("scanning arch", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// EnsureArch returns the Arch row named name, inserting it if absent.
// Arch rows are seeded externally; the scanner itself never invents one.
func (s *Store) EnsureArch(name string) (entity.Arch, error) {
	var a entity.Arch
	err := s.db.QueryRow(`SELECT id, name FROM arch WHERE name = ?`, name).Scan(&a.ID, &a.Name)
	if err == nil {
		return a, nil
	}
	res, err := s.db.Exec(`INSERT INTO arch (name) VALUES (?)`, name)
	if err != nil {
		return entity.Arch{}, s.wrapDBErr("inserting arch "+name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entity.Arch{}, s.wrapDBErr("reading inserted arch id", err)
	}
	return entity.Arch{ID: id, Name: name}, nil
}

func (s *Store) Versions(productID int64) ([]entity.Version, error) {
	rows, err := s.db.Query(`
		SELECT id, name, product_id, is_test, display, sortorder, ordered_mirrorlist
		FROM version WHERE product_id = ?`, productID)
	if err != nil {
		return nil, s.wrapDBErr("listing versions", err)
	}
	defer rows.Close()
	var out []entity.Version
	for rows.Next() {
		var v entity.Version
		var isTest, display, ordered int
		if err := rows.Scan(&v.ID, &v.Name, &v.ProductID, &isTest, &display, &v.SortOrder, &ordered); err != nil {
			return nil, s.wrapDBErr("scanning version", err)
		}
		v.IsTest, v.Display, v.OrderedMirrorlist = isTest != 0, display != 0, ordered != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

// InsertVersion inserts a new Version row and returns it with its assigned
// ID.
func (s *Store) InsertVersion(v entity.Version) (entity.Version, error) {
	step("inserting version", "name", v.Name)
	res, err := s.db.Exec(`
		INSERT INTO version (name, product_id, is_test, display, sortorder, ordered_mirrorlist)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.Name, v.ProductID, boolToInt(v.IsTest), boolToInt(v.Display), v.SortOrder, boolToInt(v.OrderedMirrorlist))
	if err != nil {
		return entity.Version{}, s.wrapDBErr("inserting version "+v.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entity.Version{}, s.wrapDBErr("reading inserted version id", err)
	}
	v.ID = id
	return v, nil
}

// Repositories returns every Repository row in the store. The (prefix,
// arch_id) uniqueness that repository discovery checks spans categories,
// so the whole table is the working set.
func (s *Store) Repositories() ([]entity.Repository, error) {
	rows, err := s.db.Query(`
		SELECT id, name, prefix, category_id, version_id, arch_id, directory_id, disabled
		FROM repository`)
	if err != nil {
		return nil, s.wrapDBErr("listing repositories", err)
	}
	defer rows.Close()
	var out []entity.Repository
	for rows.Next() {
		var r entity.Repository
		var disabled int
		if err := rows.Scan(&r.ID, &r.Name, &r.Prefix, &r.CategoryID, &r.VersionID, &r.ArchID, &r.DirectoryID, &disabled); err != nil {
			return nil, s.wrapDBErr("scanning repository", err)
		}
		r.Disabled = disabled != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertRepository creates a repository row, assuming the caller has
// already checked that no row with the same (prefix, arch_id) exists.
func (s *Store) InsertRepository(r entity.Repository) (entity.Repository, error) {
	step("inserting repository", "prefix", r.Prefix)
	res, err := s.db.Exec(`
		INSERT INTO repository (name, prefix, category_id, version_id, arch_id, directory_id, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Prefix, r.CategoryID, r.VersionID, r.ArchID, r.DirectoryID, boolToInt(r.Disabled))
	if err != nil {
		return entity.Repository{}, s.wrapDBErr("inserting repository "+r.Prefix, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entity.Repository{}, s.wrapDBErr("reading inserted repository id", err)
	}
	r.ID = id
	return r, nil
}

// FileDetails returns every FileDetail row for directoryID.
func (s *Store) FileDetails(directoryID int64) ([]entity.FileDetail, error) {
	rows, err := s.db.Query(`
		SELECT id, directory_id, filename, timestamp, size, sha1, md5, sha256, sha512
		FROM file_detail WHERE directory_id = ?`, directoryID)
	if err != nil {
		return nil, s.wrapDBErr("listing file details", err)
	}
	defer rows.Close()
	var out []entity.FileDetail
	for rows.Next() {
		var fd entity.FileDetail
		if err := rows.Scan(&fd.ID, &fd.DirectoryID, &fd.Filename, &fd.Timestamp, &fd.Size,
			&fd.SHA1, &fd.MD5, &fd.SHA256, &fd.SHA512); err != nil {
			return nil, s.wrapDBErr("scanning file detail", err)
		}
		out = append(out, fd)
	}
	return out, rows.Err()
}

// AllFileDetails returns every FileDetail row in the store, for the ager.
func (s *Store) AllFileDetails() ([]entity.FileDetail, error) {
	rows, err := s.db.Query(`
		SELECT id, directory_id, filename, timestamp, size, sha1, md5, sha256, sha512
		FROM file_detail`)
	if err != nil {
		return nil, s.wrapDBErr("listing all file details", err)
	}
	defer rows.Close()
	var out []entity.FileDetail
	for rows.Next() {
		var fd entity.FileDetail
		if err := rows.Scan(&fd.ID, &fd.DirectoryID, &fd.Filename, &fd.Timestamp, &fd.Size,
			&fd.SHA1, &fd.MD5, &fd.SHA256, &fd.SHA512); err != nil {
			return nil, s.wrapDBErr("scanning file detail", err)
		}
		out = append(out, fd)
	}
	return out, rows.Err()
}

// InsertFileDetails batch-inserts new FileDetail rows, in a single
// transaction.
func (s *Store) InsertFileDetails(details []entity.FileDetail) error {
	if len(details) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return s.wrapDBErr("beginning file detail insert", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO file_detail (directory_id, filename, timestamp, size, sha1, md5, sha256, sha512)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return s.wrapDBErr("preparing file detail insert", err)
	}
	defer stmt.Close()
	for _, fd := range details {
		step("inserting file detail", "filename", fd.Filename)
		if _, err := stmt.Exec(fd.DirectoryID, fd.Filename, fd.Timestamp, fd.Size, fd.SHA1, fd.MD5, fd.SHA256, fd.SHA512); err != nil {
			tx.Rollback()
			return s.wrapDBErr("inserting file detail "+fd.Filename, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrapDBErr("committing file detail insert", err)
	}
	return nil
}

// DeleteFileDetails removes the FileDetail rows with the given IDs.
func (s *Store) DeleteFileDetails(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return s.wrapDBErr("beginning file detail delete", err)
	}
	stmt, err := tx.Prepare(`DELETE FROM file_detail WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return s.wrapDBErr("preparing file detail delete", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		step("deleting file detail", "id", id)
		if _, err := stmt.Exec(id); err != nil {
			tx.Rollback()
			return s.wrapDBErr("deleting file detail", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrapDBErr("committing file detail delete", err)
	}
	return nil
}

// InsertDirectories batch-inserts new Directory rows and links each to
// categoryID via CategoryDirectory, returning the rows with assigned IDs in
// the same order they were given.
func (s *Store) InsertDirectories(categoryID int64, dirs []entity.Directory) ([]entity.Directory, error) {
	if len(dirs) == 0 {
		return nil, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, s.wrapDBErr("beginning directory insert", err)
	}
	insertStmt, err := tx.Prepare(`INSERT INTO directory (name, files, readable, ctime) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, s.wrapDBErr("preparing directory insert", err)
	}
	defer insertStmt.Close()
	linkStmt, err := tx.Prepare(`INSERT INTO category_directory (category_id, directory_id) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, s.wrapDBErr("preparing category_directory insert", err)
	}
	defer linkStmt.Close()

	out := make([]entity.Directory, len(dirs))
	for i, d := range dirs {
		step("inserting directory", "name", d.Name)
		res, err := insertStmt.Exec(d.Name, d.Files, boolToInt(d.Readable), d.Ctime)
		if err != nil {
			tx.Rollback()
			return nil, s.wrapDBErr("inserting directory "+d.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return nil, s.wrapDBErr("reading inserted directory id", err)
		}
		if _, err := linkStmt.Exec(categoryID, id); err != nil {
			tx.Rollback()
			return nil, s.wrapDBErr("linking directory "+d.Name, err)
		}
		d.ID = id
		out[i] = d
	}
	if err := tx.Commit(); err != nil {
		return nil, s.wrapDBErr("committing directory insert", err)
	}
	return out, nil
}

// DirectoryUpdate describes a changed-columns update for one existing
// Directory row.
type DirectoryUpdate struct {
	ID           int64
	Ctime        int64
	CtimeChanged bool
	Readable     bool
	Files        []byte // nil when unchanged
}

// UpdateDirectories applies each queued update row-by-row within one
// transaction.
func (s *Store) UpdateDirectories(updates []DirectoryUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return s.wrapDBErr("beginning directory update", err)
	}
	for _, u := range updates {
		step("updating directory", "id", u.ID)
		if u.Files != nil {
			_, err = tx.Exec(`UPDATE directory SET ctime = ?, readable = ?, files = ? WHERE id = ?`,
				u.Ctime, boolToInt(u.Readable), u.Files, u.ID)
		} else {
			_, err = tx.Exec(`UPDATE directory SET ctime = ?, readable = ? WHERE id = ?`,
				u.Ctime, boolToInt(u.Readable), u.ID)
		}
		if err != nil {
			tx.Rollback()
			return s.wrapDBErr("updating directory", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrapDBErr("committing directory update", err)
	}
	return nil
}

// DeleteDirectoryCascade removes a Directory row and everything that
// references it, in dependency order: CategoryDirectory links,
// host-category-dir links, Repository rows, FileDetail rows, then the
// Directory row itself.
func (s *Store) DeleteDirectoryCascade(directoryID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return s.wrapDBErr("beginning directory delete", err)
	}
	stmts := []string{
		`DELETE FROM category_directory WHERE directory_id = ?`,
		`DELETE FROM host_category_dir WHERE directory_id = ?`,
		`DELETE FROM repository WHERE directory_id = ?`,
		`DELETE FROM file_detail WHERE directory_id = ?`,
		`DELETE FROM directory WHERE id = ?`,
	}
	for _, q := range stmts {
		step("cascading directory delete", "id", directoryID)
		if _, err := tx.Exec(q, directoryID); err != nil {
			tx.Rollback()
			return s.wrapDBErr("cascading directory delete", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrapDBErr("committing directory delete", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
