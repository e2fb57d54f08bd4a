package manager

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/365businessdev/alget/internal/cache"
	"github.com/365businessdev/alget/internal/catalog"
	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/extractor"
	"github.com/365businessdev/alget/internal/resolver"
	"github.com/365businessdev/alget/internal/versionrange"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appID = "8b1f1d1c-3c5e-4a59-9d55-2f0b8c8b7e11"
	libID = "00000000-0000-0000-0000-0000000000aa"
)

var testFeed = domain.PackageSource{Name: "test", URL: "https://feed.test/index.json"}

type fakeFeed struct {
	archives  map[string][]byte
	manifests map[string]*domain.NuSpec
	downloads []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{archives: map[string][]byte{}, manifests: map[string]*domain.NuSpec{}}
}

func key(id, version string) string {
	return strings.ToLower(id) + "@" + version
}

func (f *fakeFeed) publish(t *testing.T, id, version string, deps ...domain.PackageDependency) {
	t.Helper()
	f.archives[key(id, version)] = archive(t, map[string]string{
		id + ".nuspec": "<package/>",
		"payload.app":   id + " " + version,
	})
	f.manifests[key(id, version)] = &domain.NuSpec{ID: id, Version: version, Dependencies: deps}
}

func (f *fakeFeed) Search(context.Context, domain.PackageSource, string, bool) ([]*domain.Package, error) {
	return nil, nil
}

func (f *fakeFeed) DownloadPackage(_ context.Context, _ domain.PackageSource, id, version string) ([]byte, error) {
	f.downloads = append(f.downloads, key(id, version))
	return f.archives[key(id, version)], nil
}

func (f *fakeFeed) DownloadManifest(_ context.Context, _ domain.PackageSource, id, version string) (*domain.NuSpec, error) {
	if spec, ok := f.manifests[key(id, version)]; ok {
		return spec, nil
	}
	return nil, domain.ErrMetadataUnavailable
}

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type fakeManifest struct {
	deps []domain.ManifestDependency
}

func (f *fakeManifest) AddDependency(dep domain.ManifestDependency) error {
	f.deps = append(f.deps, dep)
	return nil
}

type fakeJournal struct {
	begun     []string
	completed []string
}

func (f *fakeJournal) BeginInstall(rec *domain.InstallRecord) error {
	f.begun = append(f.begun, rec.PackageID)
	return nil
}

func (f *fakeJournal) CompleteInstall(rec *domain.InstallRecord) error {
	f.completed = append(f.completed, rec.PackageID)
	return nil
}

func (f *fakeJournal) List(string) ([]domain.InstallRecord, error) {
	return nil, nil
}

type noopEnricher struct{ calls int }

func (e *noopEnricher) Enrich(_ context.Context, pkg *domain.Package) *domain.Package {
	e.calls++
	return pkg
}

type fixture struct {
	feed     *fakeFeed
	catalog  *catalog.Catalog
	cache    *cache.DiskCache
	manifest *fakeManifest
	journal  *fakeJournal
	enricher *noopEnricher
	manager  *Manager
}

func newFixture(t *testing.T, packages ...*domain.Package) *fixture {
	t.Helper()
	f := &fixture{
		feed:     newFakeFeed(),
		catalog:  catalog.New(nil),
		cache:    cache.New(filepath.Join(t.TempDir(), ".alpackages")),
		manifest: &fakeManifest{},
		journal:  &fakeJournal{},
		enricher: &noopEnricher{},
	}
	f.catalog.Set(packages)
	f.manager = New(f.catalog, f.enricher, f.feed, extractor.New(), f.cache, f.manifest, f.journal, "US", "/work/app")
	return f
}

func feedPackage(id, name, appID, version string, versions ...string) *domain.Package {
	var entries []domain.VersionEntry
	for _, v := range versions {
		entries = append(entries, domain.VersionEntry{Version: v})
	}
	return domain.NewPackage(domain.Package{
		PackageID: id,
		AppID:     appID,
		Name:      name,
		Publisher: "Contoso",
		Version:   version,
		Source:    testFeed,
		Metadata:  &domain.NuSpec{ID: id, Versions: entries},
	})
}

func TestInstallResolvesExactRange(t *testing.T) {
	pkg := feedPackage("Contoso.App", "App", appID, "1.1.0.0", "0.9.0.0", "1.0.0.0", "1.1.0.0")
	f := newFixture(t, pkg)
	f.feed.publish(t, "Contoso.App", "1.0.0.0")

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", "[1.0.0.0]"))

	assert.Equal(t, []string{key("Contoso.App", "1.0.0.0")}, f.feed.downloads)

	data, err := os.ReadFile(filepath.Join(f.cache.Dir(), "Contoso_App_1.0.0.0.app"))
	require.NoError(t, err)
	assert.Equal(t, "Contoso.App 1.0.0.0", string(data))

	assert.Equal(t, []domain.ManifestDependency{{ID: appID, Name: "App", Publisher: "Contoso", Version: "1.0.0.0"}}, f.manifest.deps)
	assert.True(t, f.catalog.IsInstalled("Contoso.App"))
	assert.Equal(t, "1.0.0.0", pkg.Version)
	assert.Equal(t, []string{"Contoso.App"}, f.journal.begun)
	assert.Equal(t, []string{"Contoso.App"}, f.journal.completed)
}

func TestInstallRangeAlreadySatisfied(t *testing.T) {
	pkg := feedPackage("Contoso.App", "App", appID, "1.1.0.0", "1.0.0.0", "1.1.0.0")
	pkg.IsInstalled = true
	f := newFixture(t, pkg)

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", "[1.0.0.0,)"))
	assert.Empty(t, f.feed.downloads)
	assert.Empty(t, f.manifest.deps)
}

func TestInstallIsIdempotent(t *testing.T) {
	pkg := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	pkg.IsInstalled = true
	f := newFixture(t, pkg)
	f.feed.publish(t, "Contoso.App", "1.0.0.0")

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", ""))
	assert.Empty(t, f.feed.downloads)
}

func TestInstallPrefersUpdateVersion(t *testing.T) {
	pkg := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	pkg.IsInstalled = true
	pkg.UpdateVersion = "2.0.0.0"
	f := newFixture(t, pkg)
	f.feed.publish(t, "Contoso.App", "2.0.0.0")

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", ""))
	assert.Equal(t, []string{key("Contoso.App", "2.0.0.0")}, f.feed.downloads)
	assert.Equal(t, "2.0.0.0", pkg.Version)
	assert.Empty(t, pkg.UpdateVersion)
}

func TestInstallDependenciesFirst(t *testing.T) {
	app := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	lib := feedPackage("Contoso.Lib", "Lib", libID, "2.0.0.0", "1.0.0.0", "2.0.0.0")
	f := newFixture(t, app, lib)
	// a bare two-part version is a minimum, so the newest match is installed
	f.feed.publish(t, "Contoso.App", "1.0.0.0", domain.PackageDependency{ID: "Contoso.Lib", Version: "1.0"})
	f.feed.publish(t, "Contoso.Lib", "2.0.0.0")

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", ""))

	assert.Equal(t, []string{key("Contoso.Lib", "2.0.0.0"), key("Contoso.App", "1.0.0.0")}, f.feed.downloads)
	require.Len(t, f.manifest.deps, 2)
	assert.Equal(t, libID, f.manifest.deps[0].ID)
	assert.True(t, f.catalog.IsInstalled("Contoso.Lib"))
}

func TestInstallSkipsInstalledDependencies(t *testing.T) {
	app := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	lib := feedPackage("Contoso.Lib", "Lib", libID, "1.0.0.0")
	lib.IsInstalled = true
	f := newFixture(t, app, lib)
	f.feed.publish(t, "Contoso.App", "1.0.0.0", domain.PackageDependency{ID: "Contoso.Lib", Version: "1.0.0.0"})

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", ""))
	assert.Equal(t, []string{key("Contoso.App", "1.0.0.0")}, f.feed.downloads)
}

func TestInstallDetectsCycle(t *testing.T) {
	a := feedPackage("Contoso.A", "A", appID, "1.0.0.0")
	b := feedPackage("Contoso.B", "B", libID, "1.0.0.0")
	f := newFixture(t, a, b)
	f.feed.publish(t, "Contoso.A", "1.0.0.0", domain.PackageDependency{ID: "Contoso.B", Version: "1.0.0.0"})
	f.feed.publish(t, "Contoso.B", "1.0.0.0", domain.PackageDependency{ID: "Contoso.A", Version: "1.0.0.0"})

	err := f.manager.Install(context.Background(), "Contoso.A", "")
	require.ErrorIs(t, err, domain.ErrDependencyCycle)
	assert.Empty(t, f.feed.downloads)
}

func TestInstallFailedDependencyAbortsDependent(t *testing.T) {
	app := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	f := newFixture(t, app)
	f.feed.publish(t, "Contoso.App", "1.0.0.0", domain.PackageDependency{ID: "Missing.Lib", Version: "1.0.0.0"})

	err := f.manager.Install(context.Background(), "Contoso.App", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.feed.downloads)
	assert.False(t, f.catalog.IsInstalled("Contoso.App"))
}

func TestInstallMetadataDefectStillWritesFile(t *testing.T) {
	pkg := feedPackage("Contoso.NoID", "NoID", "", "1.0.0.0")
	f := newFixture(t, pkg)
	f.feed.publish(t, "Contoso.NoID", "1.0.0.0")

	require.NoError(t, f.manager.Install(context.Background(), "Contoso.NoID", ""))

	_, err := os.Stat(filepath.Join(f.cache.Dir(), "Contoso_NoID_1.0.0.0.app"))
	require.NoError(t, err)
	assert.Empty(t, f.manifest.deps)
	assert.True(t, pkg.IsInstalled)
}

func TestInstallMicrosoftSystemPackagesStayOutOfManifest(t *testing.T) {
	base := feedPackage("Microsoft.BaseApplication.symbols."+domain.BaseApplicationAppID, "Base Application", domain.BaseApplicationAppID, "24.0.0.0")
	base.Publisher = "Microsoft"
	platform := feedPackage("Microsoft.Platform.symbols", "Platform", "", "24.0.0.0")
	platform.Publisher = "Microsoft"
	f := newFixture(t, base, platform)
	f.feed.publish(t, base.PackageID, "24.0.0.0")
	f.feed.publish(t, platform.PackageID, "24.0.0.0")

	require.NoError(t, f.manager.Install(context.Background(), base.PackageID, ""))
	require.NoError(t, f.manager.Install(context.Background(), platform.PackageID, ""))

	assert.Empty(t, f.manifest.deps)
	_, err := os.Stat(filepath.Join(f.cache.Dir(), "Microsoft_System_24.0.0.0.app"))
	assert.NoError(t, err)
}

func TestInstallPayloadMissing(t *testing.T) {
	pkg := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	f := newFixture(t, pkg)
	f.feed.publish(t, "Contoso.App", "1.0.0.0")
	f.feed.archives[key("Contoso.App", "1.0.0.0")] = archive(t, map[string]string{"readme.txt": "x"})

	err := f.manager.Install(context.Background(), "Contoso.App", "")
	require.ErrorIs(t, err, domain.ErrPayloadNotFound)
	assert.False(t, pkg.IsInstalled)
	assert.Empty(t, f.journal.begun)
}

func TestInstallEmptyDownload(t *testing.T) {
	pkg := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	f := newFixture(t, pkg)
	f.feed.manifests[key("Contoso.App", "1.0.0.0")] = &domain.NuSpec{}

	err := f.manager.Install(context.Background(), "Contoso.App", "")
	assert.ErrorIs(t, err, domain.ErrArchive)
}

func TestInstallNoTargetVersion(t *testing.T) {
	pkg := domain.NewPackage(domain.Package{PackageID: "Contoso.Local", Name: "Local", Publisher: "Contoso", Version: "1.0.0.0"})
	f := newFixture(t, pkg)

	err := f.manager.Install(context.Background(), "Contoso.Local", "")
	assert.ErrorIs(t, err, domain.ErrNoTargetVersion)
}

func TestInstallMetadataUnavailable(t *testing.T) {
	pkg := domain.NewPackage(domain.Package{PackageID: "Contoso.Local", Name: "Local", Publisher: "Contoso", Version: "1.0.0.0"})
	f := newFixture(t, pkg)

	err := f.manager.Install(context.Background(), "Contoso.Local", "[2.0.0.0]")
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)
	assert.Equal(t, 1, f.enricher.calls)
}

func TestInstallUnknownPackage(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Install(context.Background(), "Nope", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDependenciesRewriteApplication(t *testing.T) {
	withCountry := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	withCountry.CountryCode = "de"
	noCountry := feedPackage("Contoso.Lib", "Lib", libID, "1.0.0.0")
	f := newFixture(t, withCountry, noCountry)
	generic := domain.PackageDependency{ID: "Microsoft.Application.symbols", Version: "[24.0.0.0,)"}
	f.feed.publish(t, "Contoso.App", "1.0.0.0", generic)
	f.feed.publish(t, "Contoso.Lib", "1.0.0.0", generic)

	deps, err := f.manager.Dependencies(context.Background(), "Contoso.App", "")
	require.NoError(t, err)
	assert.Equal(t, []domain.PackageDependency{{ID: "Microsoft.Application.DE.symbols", Version: "[24.0.0.0,)"}}, deps)

	deps, err = f.manager.Dependencies(context.Background(), "Contoso.Lib", "1.0.0.0")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft.Application.US.symbols", deps[0].ID)
}

func TestInstallRangeNeedsVersionInside(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		request   string
		versions  []string
		expected  string
	}{
		{"exclusive floor", "1.0.0.0", "(1.0.0.0,2.0.0.0)", []string{"1.0.0.0", "1.5.0.0"}, "1.5.0.0"},
		{"above max only", "3.0.0.0", "(,2.0.0.0]", []string{"1.0.0.0", "2.0.0.0", "3.0.0.0"}, "2.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := feedPackage("Contoso.App", "App", appID, tt.installed, tt.versions...)
			pkg.IsInstalled = true
			f := newFixture(t, pkg)
			f.feed.publish(t, "Contoso.App", tt.expected)

			require.NoError(t, f.manager.Install(context.Background(), "Contoso.App", tt.request))
			assert.Equal(t, []string{key("Contoso.App", tt.expected)}, f.feed.downloads)
			assert.Equal(t, tt.expected, pkg.Version)
		})
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		request   string
		installed string
		expected  bool
	}{
		{"[1.0.0.0]", "1.0.0.0", true},
		{"[1.0.0.0]", "1.1.0.0", true},
		{"[1.0.0.0]", "0.9.0.0", false},
		{"1.0", "1.2.0.0", true},
		{"(1.0.0.0,2.0.0.0)", "1.0.0.0", false},
		{"(1.0.0.0,2.0.0.0)", "1.5.0.0", true},
		{"(,2.0.0.0]", "3.0.0.0", false},
		{"latest", "1.0.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.request+" "+tt.installed, func(t *testing.T) {
			assert.Equal(t, tt.expected, satisfies(versionrange.Parse(tt.request), tt.request, tt.installed))
		})
	}
}

func TestDependenciesResolveDeclaredRanges(t *testing.T) {
	app := feedPackage("Contoso.App", "App", appID, "1.0.0.0")
	lib := feedPackage("Contoso.Lib", "Lib", libID, "2.0.0.0", "1.0.0.0", "1.5.0.0", "2.0.0.0")
	base := feedPackage("Contoso.Base", "Base", "", "1.0.0.0", "1.0.0.0")
	f := newFixture(t, app, lib, base)
	f.feed.publish(t, "Contoso.App", "1.0.0.0", domain.PackageDependency{ID: "Contoso.Lib", Version: "[1.0.0.0,2.0.0.0)"})
	f.feed.publish(t, "Contoso.Lib", "1.5.0.0", domain.PackageDependency{ID: "Contoso.Base", Version: "1.0"})
	f.feed.publish(t, "Contoso.Base", "1.0.0.0")

	deps, err := f.manager.Dependencies(context.Background(), "Contoso.Lib", "[1.0.0.0,2.0.0.0)")
	require.NoError(t, err)
	assert.Equal(t, []domain.PackageDependency{{ID: "Contoso.Base", Version: "1.0"}}, deps)

	resolved, err := resolver.New(f.manager).Resolve(context.Background(), "Contoso.App", "")
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, "Contoso.Base", resolved[0].PackageID)
	assert.Equal(t, 2, resolved[0].Depth)
	assert.Equal(t, "Contoso.Lib", resolved[1].PackageID)
	assert.Equal(t, "[1.0.0.0,2.0.0.0)", resolved[1].VersionRange)
	assert.Equal(t, "Contoso.App", resolved[2].PackageID)
}
