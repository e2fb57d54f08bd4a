package manifest

import (
	"context"
	"fmt"

	"github.com/365businessdev/alget/internal/domain"
)

const (
	applicationDescription = "Provides business processes that are typical for small and mid-sized companies, such as sales and purchasing, and customer and vendor management, plus complex processes, such as assembly, manufacturing, service, and directed warehouse management."
	systemDescription      = "Contains an expansive set of open source modules that make it easier to build, maintain, and easily upgrade on-premises and online apps. These modules let you focus on the business logic, and the needs of your users or customers."

	// Business Foundation was split out of Base Application in this major.
	businessFoundationMajor = 24
)

type PackagesOptions struct {
	CheckForUpdate bool
	// CountryCode is the configured country; W1 and "" mean worldwide.
	CountryCode string
	Cache       domain.LocalIndex
	Workspace   []domain.WorkspaceProject
	Enricher    domain.Enricher
}

// Packages builds the project's package set: the fixed Microsoft packages
// followed by one package per declared dependency.
func (s *Store) Packages(ctx context.Context, opts PackagesOptions) ([]*domain.Package, error) {
	c := s.Content()
	if c.Application == "" {
		return nil, fmt.Errorf("manifest %s: application: %w", s.path, domain.ErrMissingField)
	}

	cc := domain.NormalizeCountryCode(opts.CountryCode)
	resolve := func(p domain.Package) *domain.Package {
		pkg := domain.NewPackage(p)
		pkg.ResolveLocalState(opts.Cache, opts.Workspace)
		if opts.CheckForUpdate && opts.Enricher != nil {
			pkg = opts.Enricher.Enrich(ctx, pkg)
		}
		return pkg
	}

	packages := []*domain.Package{
		resolve(domain.Package{
			PackageID:      domain.MicrosoftPackageID("Application", cc, ""),
			MinimumVersion: c.Application,
			Name:           "Application",
			Description:    applicationDescription,
			Publisher:      "Microsoft",
			CountryCode:    cc,
		}),
	}

	baseApp := resolve(domain.Package{
		PackageID:      domain.MicrosoftPackageID("BaseApplication", cc, domain.BaseApplicationAppID),
		AppID:          domain.BaseApplicationAppID,
		MinimumVersion: c.Application,
		Name:           "Base Application",
		Description:    applicationDescription,
		Publisher:      "Microsoft",
		CountryCode:    cc,
	})
	packages = append(packages, baseApp)

	if domain.MajorVersion(c.Application) >= businessFoundationMajor || domain.MajorVersion(baseApp.Version) >= businessFoundationMajor {
		packages = append(packages, resolve(domain.Package{
			PackageID:      domain.MicrosoftPackageID("BusinessFoundation", cc, domain.BusinessFoundationAppID),
			AppID:          domain.BusinessFoundationAppID,
			MinimumVersion: c.Application,
			Name:           "Business Foundation",
			Description:    systemDescription,
			Publisher:      "Microsoft",
			CountryCode:    cc,
		}))
	}

	packages = append(packages,
		resolve(domain.Package{
			PackageID:      domain.MicrosoftPackageID("Platform", "", ""),
			MinimumVersion: c.Platform,
			Name:           "Platform",
			Publisher:      "Microsoft",
		}),
		resolve(domain.Package{
			PackageID:      domain.MicrosoftPackageID("SystemApplication", cc, domain.SystemApplicationAppID),
			AppID:          domain.SystemApplicationAppID,
			MinimumVersion: c.Platform,
			Name:           "System Application",
			Description:    systemDescription,
			Publisher:      "Microsoft",
			CountryCode:    cc,
		}),
	)

	for _, dep := range c.Dependencies {
		packages = append(packages, resolve(domain.Package{
			AppID:          dep.ID,
			MinimumVersion: dep.Version,
			Name:           dep.Name,
			Publisher:      dep.Publisher,
			CountryCode:    cc,
		}))
	}

	return packages, nil
}
