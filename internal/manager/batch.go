package manager

import (
	"context"
	"errors"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/log"
)

// SelectRestore returns the packages a restore installs: known to a feed
// but not present locally.
func SelectRestore(packages []*domain.Package) []*domain.Package {
	var out []*domain.Package
	for _, p := range packages {
		if p.PackageID != "" && !p.IsInstalled && !p.Source.IsLocal() {
			out = append(out, p)
		}
	}
	return out
}

// SelectUpdates returns installed feed packages with a newer version.
func SelectUpdates(packages []*domain.Package) []*domain.Package {
	var out []*domain.Package
	for _, p := range packages {
		if p.PackageID != "" && p.UpdateVersion != "" && p.IsInstalled && !p.Source.IsLocal() {
			out = append(out, p)
		}
	}
	return out
}

// Result summarizes a batch. Err joins every failed install.
type Result struct {
	Installed []*domain.Package
	Failed    []*domain.Package
	Err       error
}

func (m *Manager) installAll(ctx context.Context, packages []*domain.Package, verb string) Result {
	var (
		res  Result
		errs []error
	)
	for _, p := range packages {
		log.Info("%s package %s (ID: %s) version %s or newer...", verb, p.Name, p.PackageID, p.Version)
		if err := m.Install(ctx, p.PackageID, ""); err != nil {
			res.Failed = append(res.Failed, p)
			errs = append(errs, err)
			continue
		}
		res.Installed = append(res.Installed, p)
	}
	res.Err = errors.Join(errs...)
	return res
}

// Restore installs every selected package of the catalog. One failure does
// not stop the others.
func (m *Manager) Restore(ctx context.Context) Result {
	return m.installAll(ctx, SelectRestore(m.catalog.All()), "Restoring")
}

func (m *Manager) Update(ctx context.Context) Result {
	return m.installAll(ctx, SelectUpdates(m.catalog.All()), "Updating")
}
