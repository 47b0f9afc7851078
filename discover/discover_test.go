package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
)

func TestVersionFromPath_RawhidePrecedence(t *testing.T) {
	assert.Equal(t, "development", versionFromPath("pub/fedora/rawhide/Everything/x86_64/os"))
}

func TestVersionFromPath_FirstCapture(t *testing.T) {
	assert.Equal(t, "42", versionFromPath("pub/fedora/releases/42/Everything/x86_64/os"))
	assert.Equal(t, "", versionFromPath("pub/fedora/releases/Everything/x86_64/os"))
}

func TestGuessVerArch_FirstMatchWins(t *testing.T) {
	arches := []entity.Arch{{ID: 1, Name: "x86_64"}, {ID: 3, Name: "os"}, {ID: 2, Name: "source"}}
	versions := []entity.Version{{ID: 10, Name: "42", ProductID: 1}, {ID: 12, Name: "Everything", ProductID: 1}}
	rules := NewRules(arches, versions, nil, nil, nil, nil, nil, nil)

	va, err := rules.GuessVerArch("pub/fedora/releases/42/Everything/x86_64/os/repodata", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), va.ArchID)
	assert.Equal(t, int64(10), va.VersionID)
	assert.Equal(t, "42", va.VersionName)
}

func TestGuessVerArch_DevelopmentDisplaysAsRawhide(t *testing.T) {
	arches := []entity.Arch{{ID: 1, Name: "x86_64"}}
	versions := []entity.Version{{ID: 11, Name: "development", ProductID: 1}}
	rules := NewRules(arches, versions, nil, nil, nil, nil, nil, nil)

	va, err := rules.GuessVerArch("pub/fedora/development/Everything/x86_64/os", 1)
	require.NoError(t, err)
	assert.Equal(t, "rawhide", va.VersionName)
}

func TestGuessVerArch_SourceFallbackArch(t *testing.T) {
	arches := []entity.Arch{{ID: 1, Name: "x86_64"}, {ID: 2, Name: "source"}}
	rules := NewRules(arches, nil, nil, nil, nil, nil, nil, nil)

	va, err := rules.GuessVerArch("pub/fedora/releases/42/Everything/SRPMS", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), va.ArchID)
}

func TestGuessVerArch_ArchMissIsInferenceMiss(t *testing.T) {
	rules := NewRules(nil, nil, nil, nil, nil, nil, nil, nil)
	_, err := rules.GuessVerArch("pub/fedora/nope", 1)
	assert.ErrorIs(t, err, errs.ErrInferenceMiss)
}

func TestRepoPrefix_NamedGroupSubstitutionAndAlias(t *testing.T) {
	mappings := []entity.RepositoryMapping{
		{Regex: `^SIGs/\d+(?:-stream)?/(?P<signame>\S+?)/\S+?/(?P<sigrepo>\S+?)/.*`, Prefix: "centos-${signame}-sig-${sigrepo}"},
	}
	rules := NewRules(nil, nil, mappings, nil, nil, nil, nil, nil)

	prefix := rules.RepoPrefix("SIGs/9-stream/infra/x86_64/infra-common/debug/repodata", "9-stream")
	assert.Equal(t, "centos-infra-sig-infra-common-debug-9-stream", prefix)
}

func TestRepoPrefix_RawhideShortCircuits(t *testing.T) {
	mappings := []entity.RepositoryMapping{
		{Regex: `^pub/fedora/.*`, Prefix: "fedora"},
	}
	rules := NewRules(nil, nil, mappings, nil, nil, nil, nil, nil)
	assert.Equal(t, "fedora-rawhide", rules.RepoPrefix("pub/fedora/development/Everything/x86_64/os", "rawhide"))
}

func TestRepoPrefix_AliasMatchesHyphenatedBase(t *testing.T) {
	mappings := []entity.RepositoryMapping{
		{Regex: `^base/.*`, Prefix: "base"},
	}
	aliases := []entity.RepositoryAlias{{From: "base-", To: "renamed-"}}
	rules := NewRules(nil, nil, mappings, aliases, nil, nil, nil, nil)

	once := rules.RepoPrefix("base/42/x86_64", "42")
	assert.Equal(t, "renamed-42", once)
}

func TestRepoPrefix_NoMatchIsEmpty(t *testing.T) {
	rules := NewRules(nil, nil, nil, nil, nil, nil, nil, nil)
	assert.Equal(t, "", rules.RepoPrefix("anything", "1"))
}

func TestRepoPrefix_MalformedRegexSkipped(t *testing.T) {
	mappings := []entity.RepositoryMapping{
		{Regex: `(unclosed`, Prefix: "bad"},
		{Regex: `^good/.*`, Prefix: "good"},
	}
	rules := NewRules(nil, nil, mappings, nil, nil, nil, nil, nil)
	assert.Equal(t, "good-1", rules.RepoPrefix("good/path", "1"))
}
