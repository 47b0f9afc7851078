package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// rsyncLinePattern anchors an `rsync -r --no-human-readable` listing line:
// mode, size, date (YYYY/MM/DD), time (HH:MM:SS), path.
var rsyncLinePattern = regexp.MustCompile(`^([drwSsx-]{10})\s*(\S+) (\S+) (\S+) (.*)$`)

// rsyncReadablePattern matches a directory mode with the other-read and
// other-execute bits set.
var rsyncReadablePattern = regexp.MustCompile(`^d......r.x`)

// RsyncSource scans a category by invoking the rsync binary and parsing
// its listing output.
type RsyncSource struct {
	// CommonOptions are rsync flags shared by every category.
	CommonOptions []string
	// CategoryOptions are rsync flags specific to one category.
	CategoryOptions []string
}

func NewRsyncSource(commonOptions, categoryOptions []string) *RsyncSource {
	return &RsyncSource{CommonOptions: commonOptions, CategoryOptions: categoryOptions}
}

func (s *RsyncSource) Backend() string { return "rsync" }

func (s *RsyncSource) Close() error { return nil }

func (s *RsyncSource) Scan(url string) ([]entity.FileRecord, error) {
	args := make([]string, 0, 4+len(s.CommonOptions)+len(s.CategoryOptions))
	args = append(args, "-r", "--no-human-readable")
	args = append(args, s.CommonOptions...)
	args = append(args, s.CategoryOptions...)
	args = append(args, url)

	logx.Debug("running rsync", "args", args)
	cmd := exec.Command("rsync", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errs.Wrap(errs.ErrScanSource, "rsync %s failed: %v (%s)", url, err, stderr.String())
	}

	records, err := parseRsyncListing(&stdout)
	if err != nil {
		return nil, errs.Wrap(errs.ErrScanSource, "reading rsync output for %s: %v", url, err)
	}
	return records, nil
}

// parseRsyncListing turns listing lines into file records. Lines that do
// not match the anchor pattern are silently skipped.
func parseRsyncListing(r io.Reader) ([]entity.FileRecord, error) {
	records := make([]entity.FileRecord, 0, 10_000)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		m := rsyncLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mode, sizeStr, date, timeStr, path := m[1], m[2], m[3], m[4], m[5]
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			continue
		}
		records = append(records, entity.FileRecord{
			Path:        strings.TrimSpace(path),
			IsDirectory: strings.HasPrefix(mode, "d"),
			IsReadable:  rsyncReadablePattern.MatchString(mode),
			Size:        size,
			ModTimeUnix: ctimeFromRsync(date, timeStr),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ctimeFromRsync parses rsync's "YYYY/MM/DD" and "HH:MM:SS" columns into a
// Unix timestamp, returning -1 on any malformed input.
func ctimeFromRsync(date, t string) int64 {
	ts, err := time.Parse("2006/01/02 15:04:05", fmt.Sprintf("%s %s", date, t))
	if err != nil {
		return -1
	}
	return ts.UTC().Unix()
}
