// Package feeds looks packages up across the configured feeds: metadata
// enrichment for a single package and ordered catalog loading.
package feeds

import (
	"context"
	"strings"

	"github.com/365businessdev/alget/internal/config"
	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/log"
	"golang.org/x/sync/errgroup"
)

type Resolver struct {
	client      domain.FeedClient
	sources     config.Sources
	countryCode string
	maxParallel int
}

// New returns a resolver. countryCode is the normalized configured code, ""
// for worldwide.
func New(client domain.FeedClient, sources config.Sources, countryCode string, maxParallel int) *Resolver {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Resolver{
		client:      client,
		sources:     sources,
		countryCode: countryCode,
		maxParallel: maxParallel,
	}
}

func (r *Resolver) CountryCode() string {
	return r.countryCode
}

// query searches one feed. Failures are logged and reported as no results.
func (r *Resolver) query(ctx context.Context, src domain.PackageSource, q string) []*domain.Package {
	log.Debug("Querying '%s' for '%s'", src.Name, q)

	packages, err := r.client.Search(ctx, src, q, false)
	if err != nil {
		log.Warn("Feed '%s' failed: %v", src.Name, err)
		return nil
	}
	return r.filterCountry(packages)
}

// filterCountry drops results published for a different country.
func (r *Resolver) filterCountry(packages []*domain.Package) []*domain.Package {
	if r.countryCode == "" {
		return packages
	}

	want := strings.ToLower(r.countryCode)
	out := make([]*domain.Package, 0, len(packages))
	for _, p := range packages {
		if p.CountryCode != "" && p.CountryCode != want {
			continue
		}
		out = append(out, p)
	}
	return out
}

// bestMatch prefers the result whose id equals the query.
func bestMatch(packages []*domain.Package, q string) *domain.Package {
	if len(packages) == 0 {
		return nil
	}
	for _, p := range packages {
		if strings.EqualFold(p.PackageID, q) {
			return p
		}
	}
	return packages[0]
}

// Enrich fetches the freshest feed metadata for pkg. The package is
// returned unchanged when no feed knows it.
func (r *Resolver) Enrich(ctx context.Context, pkg *domain.Package) *domain.Package {
	if pkg == nil || pkg.PackageID == "" {
		return pkg
	}

	if pkg.Source.URL != "" {
		if match := bestMatch(r.query(ctx, pkg.Source, pkg.PackageID), pkg.PackageID); match != nil {
			return r.apply(pkg, match)
		}
		return pkg
	}

	if pkg.IsMicrosoft() {
		for _, src := range r.sources.Microsoft() {
			if match := bestMatch(r.query(ctx, src, pkg.PackageID), pkg.PackageID); match != nil {
				return r.apply(pkg, match)
			}
		}
	}

	if match := bestMatch(r.query(ctx, r.sources.AppSourceSymbols, pkg.PackageID), pkg.PackageID); match != nil {
		return r.apply(pkg, match)
	}

	for _, src := range r.sources.Custom {
		q := queryID(src, pkg)
		if match := bestMatch(r.query(ctx, src, q), q); match != nil {
			return r.apply(pkg, match)
		}
	}

	return pkg
}

// queryID substitutes the feed's id template, if any.
func queryID(src domain.PackageSource, pkg *domain.Package) string {
	if src.PackageIDSchema == "" {
		return pkg.PackageID
	}
	return strings.NewReplacer(
		"{publisher}", pkg.Publisher,
		"{name}", pkg.Name,
		"{version}", pkg.Version,
		"{appid}", pkg.AppID,
	).Replace(strings.ToLower(src.PackageIDSchema))
}

func (r *Resolver) apply(pkg, match *domain.Package) *domain.Package {
	if pkg.Description == "" {
		pkg.Description = match.Description
	}
	pkg.Metadata = match.Metadata
	pkg.Source = match.Source

	if match.Version != "" && match.Version != pkg.Version {
		pkg.UpdateVersion = match.Version
		if pkg.Version != domain.PadVersion(pkg.MinimumVersion) {
			log.Info("Update available for %s: %s -> %s", pkg.Name, pkg.Version, match.Version)
		}
	}
	return pkg
}

// defaultFilter scopes the Microsoft feeds to the configured country.
func (r *Resolver) defaultFilter(src domain.PackageSource) string {
	if r.sources.IsMicrosoft(src) && r.countryCode != "" {
		return "." + r.countryCode + "."
	}
	return ""
}

// Load queries every enabled feed and returns the results in feed order.
// An empty filter selects each feed's default filter.
func (r *Resolver) Load(ctx context.Context, filter string) ([]*domain.Package, error) {
	sources := r.sources.Catalog()
	results := make([][]*domain.Package, len(sources))

	log.Info("Loading packages from feeds")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel)
	for i, src := range sources {
		q := filter
		if q == "" {
			q = r.defaultFilter(src)
		}
		g.Go(func() error {
			results[i] = r.query(ctx, src, q)
			log.Info("%d packages received from '%s'", len(results[i]), src.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*domain.Package
	for _, pkgs := range results {
		all = append(all, pkgs...)
	}
	return all, nil
}
