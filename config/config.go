// Package config loads the TOML settings file the CLI reads at startup:
// database location, global and per-category scan options, the repository
// mapping/alias tables, and the ager's two retention parameters.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
)

const (
	DefaultConfigPath = "/etc/mirrormanager/scan-primary-mirror.toml"
)

// Category is one configured primary-mirror source: a backend type
// ("rsync", "directory", or "ssh"), its url/path, and category-specific
// overrides.
type Category struct {
	Name         string   `toml:"name"`
	Type         string   `toml:"type"`
	URL          string   `toml:"url"`
	Options      string   `toml:"options"`
	ChecksumBase string   `toml:"checksum_base"`
	Excludes     []string `toml:"excludes"`
	// SSHKey optionally pins the private key used by the "ssh" backend
	// instead of the agent/default-key search order.
	SSHKey string `toml:"ssh_key"`
}

// RepositoryMapping is one row of the ordered regex-to-prefix table
// RepositoryDiscoverer walks.
type RepositoryMapping struct {
	Regex         string `toml:"regex"`
	Prefix        string `toml:"prefix"`
	VersionPrefix string `toml:"version_prefix"`
}

// RepositoryAlias renames one computed prefix (including its trailing
// hyphen) to another.
type RepositoryAlias struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// Database holds the catalog's connection string (a SQLite DSN/path for
// this rewrite).
type Database struct {
	URL string `toml:"url"`
}

// Settings is the full TOML document.
type Settings struct {
	Database            Database            `toml:"database"`
	CommonRsyncOptions  string              `toml:"common_rsync_options"`
	Excludes            []string            `toml:"excludes"`
	SkipPathsForVersion []string            `toml:"skip_paths_for_version"`
	TestPaths           []string            `toml:"test_paths"`
	SkipRepositoryPaths []string            `toml:"skip_repository_paths"`
	DoNotDisplayPaths   []string            `toml:"do_not_display_paths"`
	MaxStaleDays        int                 `toml:"max_stale_days"`
	MaxPropagationDays  int                 `toml:"max_propagation_days"`
	Category            []Category          `toml:"category"`
	RepositoryMapping   []RepositoryMapping `toml:"repository_mapping"`
	RepositoryAliases   []RepositoryAlias   `toml:"repository_aliases"`
}

// Load parses the TOML file at path into a Settings value.
func Load(path string) (*Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, errs.Wrap(errs.ErrConfiguration, "loading config %s: %v", path, err)
	}
	if s.Database.URL == "" {
		return nil, errs.Wrap(errs.ErrConfiguration, "config %s: database.url is required", path)
	}
	return &s, nil
}

// CategoryByName returns the configured Category named name.
func (s *Settings) CategoryByName(name string) (Category, bool) {
	for _, c := range s.Category {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// CombinedExcludes merges the global excludes with a category's own;
// both apply to every scan of that category.
func (s *Settings) CombinedExcludes(c Category) []string {
	out := make([]string, 0, len(s.Excludes)+len(c.Excludes))
	out = append(out, s.Excludes...)
	out = append(out, c.Excludes...)
	return out
}

// RsyncOptions splits a category's whitespace-separated options string (and
// the global common_rsync_options) into argv-style tokens.
func RsyncOptions(s *Settings, c Category) (common, category []string) {
	if s.CommonRsyncOptions != "" {
		common = strings.Fields(s.CommonRsyncOptions)
	}
	if c.Options != "" {
		category = strings.Fields(c.Options)
	}
	return common, category
}

// ToEntityMappings converts the configured repository mapping table to its
// entity form for the discover package.
func (s *Settings) ToEntityMappings() []entity.RepositoryMapping {
	out := make([]entity.RepositoryMapping, 0, len(s.RepositoryMapping))
	for _, m := range s.RepositoryMapping {
		out = append(out, entity.RepositoryMapping{Regex: m.Regex, Prefix: m.Prefix, VersionPrefix: m.VersionPrefix})
	}
	return out
}

// ToEntityAliases converts the configured alias table to its entity form.
func (s *Settings) ToEntityAliases() []entity.RepositoryAlias {
	out := make([]entity.RepositoryAlias, 0, len(s.RepositoryAliases))
	for _, a := range s.RepositoryAliases {
		out = append(out, entity.RepositoryAlias{From: a.From, To: a.To})
	}
	return out
}
