package scan

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// DirectorySource scans a category by walking a local directory tree,
// shortcut by a fullfiletimelist-* index file when one is present.
type DirectorySource struct {
	// Topdir is the category's topdir, used to strip walked absolute
	// paths down to category-relative ones. The split happens at the
	// first occurrence of Topdir in the walked path.
	Topdir string
	// SkipFullFileTimeList forces a real filesystem walk even when an
	// index file is present (the CLI's --skip-fullfiletimelist flag).
	SkipFullFileTimeList bool
}

func NewDirectorySource(topdir string, skipFullFileTimeList bool) *DirectorySource {
	return &DirectorySource{Topdir: topdir, SkipFullFileTimeList: skipFullFileTimeList}
}

func (s *DirectorySource) Backend() string { return "directory" }

func (s *DirectorySource) Close() error { return nil }

func (s *DirectorySource) Scan(url string) ([]entity.FileRecord, error) {
	if !s.SkipFullFileTimeList {
		if path, ok := findFullFileTimeList(url); ok {
			logx.Debug("local directory scan using fullfiletimelist", "path", path)
			return parseFullFileTimeList(path)
		}
	}
	logx.Debug("local directory scan", "url", url)
	return walkLocalDirectory(url, s.Topdir)
}

// findFullFileTimeList returns the first path-glob match of
// "<url>/fullfiletimelist-*", if any.
func findFullFileTimeList(url string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(url, "fullfiletimelist-*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// parseFullFileTimeList reads the tab-separated index format:
// mtime<TAB>mode<TAB>size<TAB>path. Lines with fewer than four fields are
// skipped. Paths in the index are already category-relative.
func parseFullFileTimeList(path string) ([]entity.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrScanSource, "opening fullfiletimelist %s: %v", path, err)
	}
	defer f.Close()

	records := make([]entity.FileRecord, 0, 10_000)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), "\t", 4)
		if len(fields) < 4 {
			continue
		}
		mtime, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		mode := fields[1]
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}
		records = append(records, entity.FileRecord{
			Path:        fields[3],
			IsDirectory: strings.HasPrefix(mode, "d"),
			IsReadable:  !strings.Contains(mode, "-"),
			Size:        size,
			ModTimeUnix: mtime,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrScanSource, "reading fullfiletimelist %s: %v", path, err)
	}
	return records, nil
}

// walkLocalDirectory walks url recursively, skipping dotfile-rooted
// subtrees except at depth 0. Walked paths are stripped to
// category-relative ones at the first occurrence of topdir; paths not
// containing topdir are dropped. An unreadable url fails the scan; any
// other unreadable path is logged and skipped.
func walkLocalDirectory(url, topdir string) ([]entity.FileRecord, error) {
	records := make([]entity.FileRecord, 0, 10_000)
	err := filepath.WalkDir(url, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == url {
				return err
			}
			logx.Skip("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if path != url && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, ok := stripTopdir(url, path, topdir)
		if !ok {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			logx.Skip("couldn't stat path", "path", path, "error", infoErr)
			return nil
		}
		records = append(records, entity.FileRecord{
			Path:        rel,
			IsDirectory: d.IsDir(),
			IsReadable:  isOtherReadable(info.Mode()),
			Size:        info.Size(),
			ModTimeUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrScanSource, "walking %s: %v", url, err)
	}
	return records, nil
}

// stripTopdir cuts path down to its category-relative part at the first
// occurrence of topdir. With no topdir configured it falls back to
// url-relative paths.
func stripTopdir(url, path, topdir string) (string, bool) {
	if topdir == "" {
		rel, err := filepath.Rel(url, path)
		if err != nil {
			return "", false
		}
		if rel == "." {
			rel = ""
		}
		return rel, true
	}
	idx := strings.Index(path, topdir)
	if idx < 0 {
		return "", false
	}
	return strings.TrimPrefix(path[idx+len(topdir):], "/"), true
}

// isOtherReadable reports whether mode's other-read permission bit is set.
func isOtherReadable(mode fs.FileMode) bool {
	return mode.Perm()&0o004 != 0
}
