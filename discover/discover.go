// Package discover implements RepositoryDiscoverer: inferring a
// directory's (version, architecture) from its path and assembling the
// stable repository prefix used in client mirror lists.
package discover

import (
	"regexp"
	"strings"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// anchoredName compiles the `(^|/)<name>(/|$)` anchor shared by arch and
// version matching.
func anchoredName(name string) *regexp.Regexp {
	return regexp.MustCompile(`(^|/)` + regexp.QuoteMeta(name) + `(/|$)`)
}

// versionFromPathPattern extracts a fallback version string from a path
// when no known Version name matches. The capture must be a full path
// segment: "releases/42/" yields "42", but the "86" in "x86_64" never
// matches.
var versionFromPathPattern = regexp.MustCompile(`/([.\d]+([-_]\w+)?)/`)

// Rules holds the precompiled regexes a run needs, built once per process
// rather than per path.
type Rules struct {
	archPatterns    []archPattern
	sourceArchID    int64
	hasSourceArch   bool
	versionPatterns []versionPattern
	mappings        []mappingPattern
	aliases         []entity.RepositoryAlias
	testPaths       []string
	doNotDisplay    []string
	skipRepoPaths   []string
	skipVersPaths   []string
}

type archPattern struct {
	id      int64
	pattern *regexp.Regexp
}

type versionPattern struct {
	v       entity.Version
	pattern *regexp.Regexp
}

type mappingPattern struct {
	mapping entity.RepositoryMapping
	pattern *regexp.Regexp
	err     error
}

// NewRules compiles arch and mapping regexes once, and seeds version
// patterns from the versions currently known for the category's product.
func NewRules(arches []entity.Arch, versions []entity.Version, mappings []entity.RepositoryMapping,
	aliases []entity.RepositoryAlias, testPaths, doNotDisplayPaths, skipRepoPaths, skipVersPaths []string) *Rules {

	r := &Rules{
		aliases:       aliases,
		testPaths:     testPaths,
		doNotDisplay:  doNotDisplayPaths,
		skipRepoPaths: skipRepoPaths,
		skipVersPaths: skipVersPaths,
	}
	for _, a := range arches {
		if a.Name == "source" {
			r.sourceArchID = a.ID
			r.hasSourceArch = true
			continue
		}
		r.archPatterns = append(r.archPatterns, archPattern{id: a.ID, pattern: anchoredName(a.Name)})
	}
	r.setVersions(versions)
	for _, m := range mappings {
		p, err := regexp.Compile(m.Regex)
		if err != nil {
			err = errs.Wrap(errs.ErrMalformedRegex, "repository mapping %q: %v", m.Regex, err)
		}
		r.mappings = append(r.mappings, mappingPattern{mapping: m, pattern: p, err: err})
	}
	return r
}

// setVersions rebuilds the version pattern list from versions; NewRules
// calls it once; versions inserted mid-run are added by AddVersion.
func (r *Rules) setVersions(versions []entity.Version) {
	r.versionPatterns = r.versionPatterns[:0]
	for _, v := range versions {
		r.versionPatterns = append(r.versionPatterns, versionPattern{v: v, pattern: anchoredName(v.Name)})
	}
}

// AddVersion appends a newly inserted Version so subsequent GuessVerArch
// calls within the same run see it.
func (r *Rules) AddVersion(v entity.Version) {
	r.versionPatterns = append(r.versionPatterns, versionPattern{v: v, pattern: anchoredName(v.Name)})
}

// SkipRepositoryPath reports whether any configured skip_repository_paths
// substring matches relpath.
func (r *Rules) SkipRepositoryPath(relpath string) bool {
	for _, s := range r.skipRepoPaths {
		if strings.Contains(relpath, s) {
			return true
		}
	}
	return false
}

// SkipPathForVersion reports whether any configured skip_paths_for_version
// is a prefix of absPath.
func (r *Rules) SkipPathForVersion(absPath string) bool {
	for _, s := range r.skipVersPaths {
		if strings.HasPrefix(absPath, s) {
			return true
		}
	}
	return false
}

// VerArch is the result of GuessVerArch: the inferred version display
// name (possibly empty on a version miss) and ids. NewVersion is non-nil
// when the version was derived from the path and no Version row exists
// for it yet; VersionID is then -1 and the caller inserts the row.
type VerArch struct {
	ArchID      int64
	VersionID   int64
	VersionName string
	NewVersion  *entity.Version
}

// GuessVerArch infers architecture and version for path, following the
// "first match wins" rule for both. An architecture miss returns an
// error; a version miss does not, and is reported as VersionID -1 with
// an empty VersionName and a nil NewVersion.
func (r *Rules) GuessVerArch(path string, productID int64) (VerArch, error) {
	archID, archOK := int64(-1), false
	for _, a := range r.archPatterns {
		if a.pattern.MatchString(path) {
			archID, archOK = a.id, true
			break
		}
	}
	if !archOK && r.hasSourceArch && (strings.Contains(path, "SRPMS") || strings.Contains(path, "/src")) {
		archID, archOK = r.sourceArchID, true
	}
	if !archOK {
		return VerArch{}, errs.Wrap(errs.ErrInferenceMiss, "architecture unknown for %s", path)
	}

	var versionID int64 = -1
	var versionName string
	for _, vp := range r.versionPatterns {
		if vp.v.ProductID != productID {
			continue
		}
		if vp.pattern.MatchString(path) {
			versionID = vp.v.ID
			if vp.v.Name == "development" {
				versionName = "rawhide"
			} else {
				versionName = vp.v.Name
			}
			break
		}
	}

	var newVersion *entity.Version
	if versionID == -1 {
		derived := versionFromPath(path)
		if derived != "" {
			v := entity.Version{
				Name:              derived,
				ProductID:         productID,
				SortOrder:         0,
				OrderedMirrorlist: true,
				Display:           true,
			}
			for _, tp := range r.testPaths {
				if strings.Contains(path, tp) {
					v.IsTest = true
					break
				}
			}
			for _, dp := range r.doNotDisplay {
				if strings.Contains(path, dp) {
					v.Display = false
					break
				}
			}
			newVersion = &v
			versionName = derived
		}
	}

	return VerArch{ArchID: archID, VersionID: versionID, VersionName: versionName, NewVersion: newVersion}, nil
}

// versionFromPath derives a fallback version string when no known Version
// name matched: "development" if the path mentions rawhide, else the
// first slash-delimited [.\d]+([-_]\w+)? capture, else empty.
func versionFromPath(path string) string {
	if strings.Contains(path, "rawhide") {
		return "development"
	}
	m := versionFromPathPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// RepoPrefix assembles the stable repository prefix for path given its
// inferred version display name, following the configured mapping table
// and alias substitutions.
func (r *Rules) RepoPrefix(path, version string) string {
	suffix := ""
	switch {
	case strings.Contains(path, "/source") || strings.Contains(path, "/SRPMS") || strings.Contains(path, "/src"):
		suffix = "-source"
	case strings.Contains(path, "/debug"):
		suffix = "-debug"
	}

	for _, mp := range r.mappings {
		if mp.err != nil {
			logx.Skip("skipping malformed repository mapping regex", "regex", mp.mapping.Regex, "error", mp.err)
			continue
		}
		if !mp.pattern.MatchString(path) {
			continue
		}
		if version == "rawhide" {
			return mp.mapping.Prefix + "-" + version + suffix
		}

		base := mp.mapping.Prefix
		if strings.Contains(base, "$") {
			base = mp.pattern.ReplaceAllString(path, base)
		}
		prefix := base + suffix + "-"

		for _, a := range r.aliases {
			if prefix == a.From {
				prefix = a.To
				break
			}
		}
		return prefix + mp.mapping.VersionPrefix + version
	}

	return ""
}
