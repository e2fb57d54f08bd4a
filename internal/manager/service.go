package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/365businessdev/alget/internal/catalog"
	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/log"
	"github.com/365businessdev/alget/internal/resolver"
	"github.com/365businessdev/alget/internal/versionrange"
)

// ManifestWriter records installed packages as project dependencies.
type ManifestWriter interface {
	AddDependency(dep domain.ManifestDependency) error
}

// Manager installs packages into one project. Install calls on the same
// Manager run one at a time.
type Manager struct {
	mu          sync.Mutex
	catalog     *catalog.Catalog
	enricher    domain.Enricher
	client      domain.FeedClient
	extractor   domain.Extractor
	cache       domain.Cache
	manifest    ManifestWriter
	journal     domain.Journal
	countryCode string
	project     string
}

func New(
	catalog *catalog.Catalog,
	enricher domain.Enricher,
	client domain.FeedClient,
	extractor domain.Extractor,
	cache domain.Cache,
	manifest ManifestWriter,
	journal domain.Journal,
	countryCode, project string,
) *Manager {

	return &Manager{
		catalog:     catalog,
		enricher:    enricher,
		client:      client,
		extractor:   extractor,
		cache:       cache,
		manifest:    manifest,
		journal:     journal,
		countryCode: countryCode,
		project:     project,
	}
}

func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Install installs id and, first, its missing dependencies. versionRange may
// be empty to install the package's update or current version.
func (m *Manager) Install(ctx context.Context, id, versionRange string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.install(ctx, id, versionRange, resolver.NewWalk())
}

func (m *Manager) install(ctx context.Context, id, versionRange string, walk *resolver.Walk) error {
	pkg, err := m.catalog.Find(ctx, id)
	if err != nil {
		log.Error("Package %s not found", id)
		return err
	}

	enter, err := walk.Enter(pkg.PackageID)
	if err != nil {
		log.Error("%v", err)
		return err
	}
	if !enter {
		return nil
	}

	err = m.installPackage(ctx, pkg, versionRange, walk)
	walk.Leave(pkg.PackageID, err == nil)
	return err
}

// errSatisfied ends an install early without error.
var errSatisfied = errors.New("requested version already installed")

func (m *Manager) installPackage(ctx context.Context, pkg *domain.Package, versionRange string, walk *resolver.Walk) error {
	target, err := m.targetVersion(ctx, pkg, versionRange)
	if errors.Is(err, errSatisfied) {
		log.Info("Package %s (ID: %s) version %s or newer already installed", pkg.Name, pkg.PackageID, versionRange)
		return nil
	}
	if err != nil {
		log.Error("Could not find package version for %s: %v", pkg.Name, err)
		return err
	}

	log.Info("Checking dependencies for package %s (ID: %s) version %s", pkg.Name, pkg.PackageID, target)
	deps, err := m.dependencies(ctx, pkg, target)
	if err != nil {
		log.Error("Failed to download package manifest for %s (ID: %s): %v", pkg.Name, pkg.PackageID, err)
	}
	for _, dep := range deps {
		if m.catalog.IsInstalled(dep.ID) {
			continue
		}
		log.Info("Downloading dependency %s version %s", dep.ID, dep.Version)
		if err := m.install(ctx, dep.ID, dep.Version, walk); err != nil {
			return fmt.Errorf("dependency %s of %s: %w", dep.ID, pkg.PackageID, err)
		}
	}

	if target == pkg.Version && pkg.IsInstalled {
		return nil
	}

	return m.unpack(ctx, pkg, target)
}

// targetVersion picks the version to install. With a range it is the best
// available match; without one it is the pending update, else the current
// version of a feed package.
func (m *Manager) targetVersion(ctx context.Context, pkg *domain.Package, versionRange string) (string, error) {
	if versionRange == "" {
		if pkg.UpdateVersion != "" {
			return pkg.UpdateVersion, nil
		}
		if !pkg.Source.IsLocal() && pkg.Version != "" {
			return pkg.Version, nil
		}
		return "", fmt.Errorf("%s: %w", pkg.PackageID, domain.ErrNoTargetVersion)
	}

	rng := versionrange.Parse(versionRange)
	if pkg.IsInstalled && satisfies(rng, versionRange, pkg.Version) {
		return "", errSatisfied
	}

	log.Info("Searching matching version for package %s (ID: %s) in version range %s", pkg.Name, pkg.PackageID, versionRange)
	return m.bestVersion(ctx, pkg, rng)
}

// satisfies reports whether an installed version already meets a request.
// An exact pin is met by that version or a newer one; other ranges must
// contain the version. Unparsable requests compare as a plain floor.
func satisfies(rng *versionrange.Range, raw, installed string) bool {
	switch {
	case rng == nil:
		return domain.CompareVersions(installed, raw) >= 0
	case rng.IsExact():
		return domain.CompareVersions(installed, rng.Min) >= 0
	default:
		return rng.Contains(installed)
	}
}

// bestVersion picks the greatest published version inside rng, loading the
// feed metadata first when needed. Without a match it is the current version.
func (m *Manager) bestVersion(ctx context.Context, pkg *domain.Package, rng *versionrange.Range) (string, error) {
	if pkg.Metadata == nil {
		log.Info("Fetching package metadata for %s (ID: %s) from package feeds", pkg.Name, pkg.PackageID)
		m.enrich(ctx, pkg)
		if pkg.Metadata == nil {
			return "", fmt.Errorf("%s: %w", pkg.PackageID, domain.ErrMetadataUnavailable)
		}
	}

	if rng == nil {
		return pkg.Version, nil
	}
	if best, ok := rng.Best(pkg.TargetVersions()); ok {
		return best, nil
	}
	return pkg.Version, nil
}

// concreteVersion turns a declared dependency version into one the feed
// serves. Exact pins are used as-is.
func (m *Manager) concreteVersion(ctx context.Context, pkg *domain.Package, declared string) (string, error) {
	rng := versionrange.Parse(declared)
	if rng == nil {
		return declared, nil
	}
	if rng.IsExact() {
		return rng.Min, nil
	}
	return m.bestVersion(ctx, pkg, rng)
}

// Dependencies lists the declared dependencies of a catalog package. version
// may be a range as declared by a dependent; an empty version selects the
// pending update or the current version.
func (m *Manager) Dependencies(ctx context.Context, id, version string) ([]domain.PackageDependency, error) {
	pkg, err := m.catalog.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case version != "":
		if version, err = m.concreteVersion(ctx, pkg, version); err != nil {
			return nil, err
		}
	case pkg.UpdateVersion != "":
		version = pkg.UpdateVersion
	default:
		version = pkg.Version
	}
	return m.dependencies(ctx, pkg, version)
}

// IsInstalled reports whether the catalog holds an installed entry for id.
func (m *Manager) IsInstalled(id string) bool {
	return m.catalog.IsInstalled(id)
}

func (m *Manager) dependencies(ctx context.Context, pkg *domain.Package, version string) ([]domain.PackageDependency, error) {
	if pkg.Source.URL == "" {
		m.enrich(ctx, pkg)
	}
	if pkg.Source.URL == "" {
		return nil, fmt.Errorf("%s: %w", pkg.PackageID, domain.ErrMetadataUnavailable)
	}

	log.Debug("Downloading package manifest %s (ID: %s) version %s from %s feed", pkg.Name, pkg.PackageID, version, pkg.Source.Name)
	spec, err := m.client.DownloadManifest(ctx, pkg.Source, pkg.PackageID, version)
	if err != nil {
		return nil, err
	}

	deps := make([]domain.PackageDependency, 0, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		if strings.EqualFold(dep.ID, domain.GenericApplicationPackageID) {
			cc := pkg.CountryCode
			if cc == "" {
				cc = m.countryCode
			}
			dep.ID = domain.MicrosoftPackageID("Application", cc, "")
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// enrich refreshes pkg in place from the feeds.
func (m *Manager) enrich(ctx context.Context, pkg *domain.Package) {
	if m.enricher == nil {
		return
	}
	if got := m.enricher.Enrich(ctx, pkg); got != nil && got != pkg {
		*pkg = *got
	}
}

func (m *Manager) unpack(ctx context.Context, pkg *domain.Package, version string) error {
	log.Info("Downloading package %s (ID: %s) version %s from %s feed", pkg.Name, pkg.PackageID, version, pkg.Source.Name)
	data, err := m.client.DownloadPackage(ctx, pkg.Source, pkg.PackageID, version)
	if err != nil {
		log.Error("Failed to download package %s (ID: %s) from %s feed: %v", pkg.Name, pkg.PackageID, pkg.Source.Name, err)
		return err
	}
	if len(data) == 0 {
		log.Error("Failed to download package %s (ID: %s) from %s feed", pkg.Name, pkg.PackageID, pkg.Source.Name)
		return fmt.Errorf("%s: empty download: %w", pkg.PackageID, domain.ErrArchive)
	}

	payload, err := m.extractor.ExtractPayload(data, domain.AppExtension)
	if err != nil {
		log.Error("Error extracting %s file from package %s: %v", domain.AppExtension, pkg.Name, err)
		return err
	}

	fileName := pkg.FileName(version)
	rec := &domain.InstallRecord{
		PackageID: pkg.PackageID,
		Name:      pkg.Name,
		Publisher: pkg.Publisher,
		Version:   version,
		Source:    pkg.Source.Name,
		Project:   m.project,
		Path:      m.cache.Path(fileName),
	}
	m.journalBegin(rec)

	path, err := m.cache.Store(fileName, payload)
	if err != nil {
		log.Error("Failed to write %s: %v", fileName, err)
		return err
	}
	log.Info("%s downloaded to '%s'", pkg.Name, path)
	m.journalComplete(rec)

	switch {
	case pkg.AppID == "" && !pkg.IsMicrosoft():
		log.Error("Unable to add package %s to project dependencies: %v. App ID is missing in package metadata, please report this to the package publisher.",
			pkg.Name, domain.ErrMetadataDefect)
	case pkg.AppID != "" && !pkg.IsMicrosoftSystemOrBaseApp():
		if err := m.manifest.AddDependency(domain.ManifestDependency{
			ID:        pkg.AppID,
			Name:      pkg.Name,
			Publisher: pkg.Publisher,
			Version:   version,
		}); err != nil {
			log.Error("Failed to update manifest: %v", err)
			return err
		}
	}

	pkg.IsInstalled = true
	pkg.Version = version
	if pkg.UpdateVersion == version {
		pkg.UpdateVersion = ""
	}
	m.catalog.Replace(pkg)

	return nil
}

func (m *Manager) journalBegin(rec *domain.InstallRecord) {
	if m.journal == nil {
		return
	}
	if err := m.journal.BeginInstall(rec); err != nil {
		log.Warn("Unable to record install of %s: %v", rec.PackageID, err)
	}
}

func (m *Manager) journalComplete(rec *domain.InstallRecord) {
	if m.journal == nil {
		return
	}
	if err := m.journal.CompleteInstall(rec); err != nil {
		log.Warn("Unable to record install of %s: %v", rec.PackageID, err)
	}
}
