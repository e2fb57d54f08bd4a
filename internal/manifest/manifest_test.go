package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const contosoAppID = "8b1f1d1c-3c5e-4a59-9d55-2f0b8c8b7e11"

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sampleManifest(application string) string {
	return `{
  "id": "11111111-2222-3333-4444-555555555555",
  "name": "Contoso Extension",
  "publisher": "Contoso",
  "version": "1.0.0.0",
  "brief": "keep me",
  "dependencies": [
    {
      "id": "` + contosoAppID + `",
      "name": "Contoso Base",
      "publisher": "Contoso",
      "version": "2.0.0.0"
    }
  ],
  "platform": "1.0.0.0",
  "application": "` + application + `",
  "idRanges": [{"from": 50000, "to": 50100}],
  "runtime": "12.0"
}`
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "app.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContent(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0")))
	require.NoError(t, err)

	c := s.Content()
	assert.Equal(t, "Contoso Extension", c.Name)
	assert.Equal(t, "24.0.0.0", c.Application)
	assert.Equal(t, "1.0.0.0", c.Platform)
	require.Len(t, c.Dependencies, 1)
	assert.Equal(t, "Contoso Base", c.Dependencies[0].Name)

	p := s.Project()
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", p.ID)
	assert.Equal(t, s.Dir(), p.Path)
	assert.Equal(t, filepath.Join(s.Dir(), ".alpackages"), s.CacheDir(".alpackages"))
}

func TestAddDependencyPreservesDocument(t *testing.T) {
	path := writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0"))
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.AddDependency(domain.ManifestDependency{ID: "new-id", Name: "New", Publisher: "Fabrikam", Version: "3.1"}))
	// same id, different case: no-op
	require.NoError(t, s.AddDependency(domain.ManifestDependency{ID: strings.ToUpper(contosoAppID), Name: "dup"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := gjson.ParseBytes(data)

	deps := doc.Get("dependencies").Array()
	require.Len(t, deps, 2)
	assert.Equal(t, "new-id", deps[1].Get("id").String())
	assert.Equal(t, "3.1.0.0", deps[1].Get("version").String())
	assert.Equal(t, "keep me", doc.Get("brief").String())
	assert.Equal(t, int64(50000), doc.Get("idRanges.0.from").Int())

	// key order is preserved
	assert.Less(t, strings.Index(string(data), `"brief"`), strings.Index(string(data), `"dependencies"`))
	assert.Less(t, strings.Index(string(data), `"platform"`), strings.Index(string(data), `"application"`))
}

func TestAddDependencyCreatesArray(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `{"id":"x","application":"23.0.0.0"}`)
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.AddDependency(domain.ManifestDependency{ID: "a", Name: "A", Publisher: "P", Version: "1.0.0.0"}))
	require.Len(t, s.Content().Dependencies, 1)

	require.NoError(t, s.Reload())
	assert.Equal(t, "a", s.Content().Dependencies[0].ID)
}

func TestRemoveDependency(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0")))
	require.NoError(t, err)

	removed, err := s.RemoveDependency("missing")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.RemoveDependency(contosoAppID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, s.Content().Dependencies)

	noDeps, err := Open(writeManifest(t, t.TempDir(), `{"application":"1.0.0.0"}`))
	require.NoError(t, err)
	removed, err = noDeps.RemoveDependency(contosoAppID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTouchKeepsContent(t *testing.T) {
	content := sampleManifest("24.0.0.0")
	path := writeManifest(t, t.TempDir(), content)
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Touch())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestLoadWorkspace(t *testing.T) {
	a := t.TempDir()
	writeManifest(t, a, sampleManifest("24.0.0.0"))
	empty := t.TempDir()

	projects := LoadWorkspace([]string{a, empty}, "app.json")
	require.Len(t, projects, 1)
	assert.Equal(t, "1.0.0.0", projects[0].Version)
}

type fakeIndex map[string]string

func (f fakeIndex) Lookup(stem string) (string, bool, error) {
	v, ok := f[strings.ToLower(stem)]
	return v, ok, nil
}

type countingEnricher struct{ calls int }

func (e *countingEnricher) Enrich(_ context.Context, pkg *domain.Package) *domain.Package {
	e.calls++
	pkg.Description += " (enriched)"
	return pkg
}

func names(packages []*domain.Package) []string {
	var out []string
	for _, p := range packages {
		out = append(out, p.Name)
	}
	return out
}

func TestPackagesOrderAndIdentity(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0")))
	require.NoError(t, err)

	packages, err := s.Packages(context.Background(), PackagesOptions{CountryCode: "de"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Application", "Base Application", "Business Foundation", "Platform", "System Application", "Contoso Base"}, names(packages))
	assert.Equal(t, "Microsoft.Application.DE.symbols", packages[0].PackageID)
	assert.Equal(t, "Microsoft.BaseApplication.DE.symbols."+domain.BaseApplicationAppID, packages[1].PackageID)
	assert.Equal(t, "Microsoft.BusinessFoundation.DE.symbols."+domain.BusinessFoundationAppID, packages[2].PackageID)
	assert.Equal(t, "Microsoft.Platform.symbols", packages[3].PackageID)
	assert.Equal(t, "1.0.0.0", packages[3].MinimumVersion)
	assert.Equal(t, "Microsoft.SystemApplication.DE.symbols."+domain.SystemApplicationAppID, packages[4].PackageID)
	assert.Equal(t, "Contoso.ContosoBase.symbols."+contosoAppID, packages[5].PackageID)
	assert.Equal(t, "2.0.0.0", packages[5].Version)
	for _, p := range packages {
		assert.True(t, p.Source.IsLocal())
		assert.False(t, p.IsInstalled)
	}
}

func TestPackagesWorldwideAndNoBusinessFoundation(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("23.5.0.0")))
	require.NoError(t, err)

	packages, err := s.Packages(context.Background(), PackagesOptions{CountryCode: "W1"})
	require.NoError(t, err)

	assert.NotContains(t, names(packages), "Business Foundation")
	assert.Equal(t, "Microsoft.Application.symbols", packages[0].PackageID)
}

func TestPackagesBusinessFoundationFromResolvedBaseApp(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("23.5.0.0")))
	require.NoError(t, err)

	cache := fakeIndex{
		"microsoft_base application": "24.1.0.0",
		"microsoft_system":           "24.0.0.0",
	}
	packages, err := s.Packages(context.Background(), PackagesOptions{Cache: cache})
	require.NoError(t, err)

	require.Contains(t, names(packages), "Business Foundation")
	assert.True(t, packages[1].IsInstalled)
	assert.Equal(t, "24.1.0.0", packages[1].Version)
	assert.True(t, packages[3].IsInstalled, "platform is stored as Microsoft_System")
}

func TestPackagesEnrichOnlyWhenChecking(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0")))
	require.NoError(t, err)

	enricher := &countingEnricher{}
	_, err = s.Packages(context.Background(), PackagesOptions{Enricher: enricher})
	require.NoError(t, err)
	assert.Zero(t, enricher.calls)

	packages, err := s.Packages(context.Background(), PackagesOptions{Enricher: enricher, CheckForUpdate: true})
	require.NoError(t, err)
	assert.Equal(t, len(packages), enricher.calls)
}

func countAppID(packages []*domain.Package, id string) int {
	n := 0
	for _, p := range packages {
		if strings.EqualFold(p.AppID, id) {
			n++
		}
	}
	return n
}

func TestPackagesAfterRepeatedAdd(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0")))
	require.NoError(t, err)

	dep := domain.ManifestDependency{ID: "new-id", Name: "Fabrikam Tools", Publisher: "Fabrikam", Version: "3.1"}
	require.NoError(t, s.AddDependency(dep))
	require.NoError(t, s.AddDependency(dep))
	dep.ID = "NEW-ID"
	require.NoError(t, s.AddDependency(dep))

	packages, err := s.Packages(context.Background(), PackagesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, countAppID(packages, "new-id"))
	assert.Equal(t, "Fabrikam Tools", packages[len(packages)-1].Name)
	assert.Equal(t, "3.1.0.0", packages[len(packages)-1].Version)

	require.NoError(t, s.Reload())
	packages, err = s.Packages(context.Background(), PackagesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, countAppID(packages, "new-id"))
}

func TestPackagesAfterRemove(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), sampleManifest("24.0.0.0")))
	require.NoError(t, err)

	packages, err := s.Packages(context.Background(), PackagesOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, countAppID(packages, contosoAppID))

	removed, err := s.RemoveDependency(strings.ToUpper(contosoAppID))
	require.NoError(t, err)
	require.True(t, removed)

	packages, err = s.Packages(context.Background(), PackagesOptions{})
	require.NoError(t, err)
	assert.Zero(t, countAppID(packages, contosoAppID))
	assert.NotContains(t, names(packages), "Contoso Base")

	require.NoError(t, s.Reload())
	packages, err = s.Packages(context.Background(), PackagesOptions{})
	require.NoError(t, err)
	assert.Zero(t, countAppID(packages, contosoAppID))
}

func TestPackagesMissingApplication(t *testing.T) {
	s, err := Open(writeManifest(t, t.TempDir(), `{"id":"x"}`))
	require.NoError(t, err)

	_, err = s.Packages(context.Background(), PackagesOptions{})
	assert.ErrorIs(t, err, domain.ErrMissingField)
}
