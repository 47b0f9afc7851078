// Package filedetail implements FileDetailRecorder (fetch + hash +
// timestamp extraction + dedup) and FileDetailAger (retention sweep).
package filedetail

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// Fetcher retrieves the body of one file identified by its path below the
// configured base, returning the body and its recorded length. The rsync
// and ssh backends fetch over HTTP from checksum_base; the directory
// backend reads the local file below the category url's prefix.
type Fetcher interface {
	Fetch(relPath string) ([]byte, int64, error)
}

// HTTPFetcher fetches checksum_base+path over HTTP GET. The recorded
// length is the Content-Length header, 0 when the server does not send
// one.
type HTTPFetcher struct {
	ChecksumBase string
	Client       *http.Client
}

func NewHTTPFetcher(checksumBase string) *HTTPFetcher {
	return &HTTPFetcher{ChecksumBase: checksumBase, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(relPath string) ([]byte, int64, error) {
	u := strings.TrimSuffix(f.ChecksumBase, "/") + "/" + strings.TrimPrefix(relPath, "/")
	resp, err := f.Client.Get(u)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrFetch, "fetching %s: %v", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, errs.Wrap(errs.ErrFetch, "fetching %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrFetch, "reading body of %s: %v", u, err)
	}
	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	return body, length, nil
}

// LocalFetcher reads prefix+path from the local filesystem. The recorded
// length is the file size.
type LocalFetcher struct {
	Prefix string
}

func NewLocalFetcher(prefix string) *LocalFetcher {
	return &LocalFetcher{Prefix: prefix}
}

func (f *LocalFetcher) Fetch(relPath string) ([]byte, int64, error) {
	p := strings.TrimSuffix(f.Prefix, "/") + "/" + strings.TrimPrefix(relPath, "/")
	if f.Prefix == "" {
		p = relPath
	}
	body, err := os.ReadFile(p)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrFetch, "reading %s: %v", p, err)
	}
	return body, int64(len(body)), nil
}

// Recorder computes FileDetail rows for a directory's repomd.xml (or
// equivalent generic target) and for any *-CHECKSUM sidecar, deduplicating
// against what is already persisted. Fetch paths are formed as
// topdir+reldir+"/"+filename below the fetcher's base.
type Recorder struct {
	fetch  Fetcher
	topdir string
}

func NewRecorder(fetch Fetcher, topdir string) *Recorder {
	return &Recorder{fetch: fetch, topdir: topdir}
}

// RecordGeneric fetches a generic target such as repomd.xml, computes all
// four digests, extracts the repomd.xml timestamp, and returns a new
// FileDetail row if it is not a duplicate of one in existing. The row's
// size is the recorded content length.
func (r *Recorder) RecordGeneric(directoryID int64, reldir, filename string, existing []entity.FileDetail) (*entity.FileDetail, error) {
	relPath := r.fullTarget(reldir, filename)
	body, length, err := r.fetch.Fetch(relPath)
	if err != nil {
		logx.Skip("skipping file detail fetch failure", "path", relPath, "error", err)
		return nil, err
	}

	fd := entity.FileDetail{
		DirectoryID: directoryID,
		Filename:    filename,
		Size:        length,
		Timestamp:   extractRepomdTimestamp(body),
	}
	fd.MD5, fd.SHA1, fd.SHA256, fd.SHA512 = hashAll(body)

	if isDuplicate(fd, existing) {
		return nil, nil
	}
	return &fd, nil
}

// RecordChecksumSidecar fetches a *-CHECKSUM file and parses lines of the
// form "SHA256 (FILENAME) = HEXDIGEST" / "SHA512 (FILENAME) = HEXDIGEST",
// emitting a FileDetail per recognized line whose FILENAME is present in
// siblingFiles, taking size/timestamp from the matching sibling record.
func (r *Recorder) RecordChecksumSidecar(directoryID int64, reldir, filename string, siblingFiles []entity.File, existing []entity.FileDetail) ([]entity.FileDetail, error) {
	relPath := r.fullTarget(reldir, filename)
	body, _, err := r.fetch.Fetch(relPath)
	if err != nil {
		logx.Skip("skipping checksum sidecar fetch failure", "path", relPath, "error", err)
		return nil, err
	}

	siblingByName := make(map[string]entity.File, len(siblingFiles))
	for _, f := range siblingFiles {
		siblingByName[f.Name] = f
	}

	var out []entity.FileDetail
	for _, line := range strings.Split(string(body), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		algo, name, eq, digest := fields[0], fields[1], fields[2], fields[3]
		if eq != "=" {
			continue
		}
		if algo != "SHA256" && algo != "SHA512" {
			continue
		}
		name = strings.TrimSuffix(strings.TrimPrefix(name, "("), ")")
		sibling, ok := siblingByName[name]
		if !ok {
			continue
		}
		fd := entity.FileDetail{
			DirectoryID: directoryID,
			Filename:    name,
			Size:        sibling.Size,
			Timestamp:   sibling.Timestamp,
		}
		if algo == "SHA256" {
			fd.SHA256 = digest
		} else {
			fd.SHA512 = digest
		}
		if !isDuplicate(fd, existing) {
			out = append(out, fd)
		}
	}
	return out, nil
}

// fullTarget forms topdir+reldir+"/"+filename, tolerating an empty reldir
// (the category root) and a topdir with or without its trailing slash. A
// leading slash on an absolute topdir survives.
func (r *Recorder) fullTarget(reldir, filename string) string {
	parts := make([]string, 0, 3)
	if t := strings.TrimSuffix(r.topdir, "/"); t != "" {
		parts = append(parts, t)
	}
	if d := strings.Trim(reldir, "/"); d != "" {
		parts = append(parts, d)
	}
	parts = append(parts, filename)
	return strings.Join(parts, "/")
}

func hashAll(body []byte) (md5Hex, sha1Hex, sha256Hex, sha512Hex string) {
	m := md5.Sum(body)
	s1 := sha1.Sum(body)
	s256 := sha256.Sum256(body)
	s512 := sha512.Sum512(body)
	return hex.EncodeToString(m[:]), hex.EncodeToString(s1[:]), hex.EncodeToString(s256[:]), hex.EncodeToString(s512[:])
}

// isDuplicate reports whether fd matches an existing row on every content
// field; missing existing fields compare as empty/zero, matching the
// dedup rule for the append-only file_detail log.
func isDuplicate(fd entity.FileDetail, existing []entity.FileDetail) bool {
	for _, e := range existing {
		if e.DirectoryID == fd.DirectoryID && e.Filename == fd.Filename && fd.Same(e) {
			return true
		}
	}
	return false
}

// repomdTimestamps is the minimal shape needed to read
// /repomd/data/timestamp text nodes.
type repomdTimestamps struct {
	XMLName xml.Name `xml:"repomd"`
	Data    []struct {
		Timestamp string `xml:"timestamp"`
	} `xml:"data"`
}

// extractRepomdTimestamp parses body as repomd.xml and returns the maximum
// of all /repomd/data/timestamp values (truncating floats), 0 if the
// structure does not parse, or -1 if some value parses as neither int nor
// float.
func extractRepomdTimestamp(body []byte) int64 {
	var doc repomdTimestamps
	if err := xml.Unmarshal(body, &doc); err != nil {
		return 0
	}
	if len(doc.Data) == 0 {
		return 0
	}
	var max int64
	var seen bool
	for _, d := range doc.Data {
		raw := strings.TrimSpace(d.Timestamp)
		if raw == "" {
			continue
		}
		ts, ok := parseTimestamp(raw)
		if !ok {
			return -1
		}
		if !seen || ts > max {
			max = ts
			seen = true
		}
	}
	if !seen {
		return 0
	}
	return max
}

func parseTimestamp(raw string) (int64, bool) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}
