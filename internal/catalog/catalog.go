package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/365businessdev/alget/internal/domain"
)

type Loader interface {
	Load(ctx context.Context, filter string) ([]*domain.Package, error)
}

// Catalog is the in-memory package list of one project. Entries are not
// de-duplicated; lookups return the first entry with a matching id.
type Catalog struct {
	mu       sync.RWMutex
	packages []*domain.Package
	loader   Loader
}

func New(loader Loader) *Catalog {
	return &Catalog{loader: loader}
}

func (c *Catalog) Get(id string) (*domain.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.packages {
		if strings.EqualFold(p.PackageID, id) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrCacheMiss, id)
}

// Find is Get with one reload from the feeds filtered by id.
func (c *Catalog) Find(ctx context.Context, id string) (*domain.Package, error) {
	if p, err := c.Get(id); err == nil {
		return p, nil
	}

	if _, err := c.Refill(ctx, id, false); err != nil {
		return nil, err
	}

	p, err := c.Get(id)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// Refill appends feed results to the catalog, optionally clearing it first.
func (c *Catalog) Refill(ctx context.Context, filter string, reset bool) ([]*domain.Package, error) {
	if c.loader == nil {
		return c.All(), nil
	}

	loaded, err := c.loader.Load(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if reset {
		c.packages = nil
	}
	c.packages = append(c.packages, loaded...)
	c.mu.Unlock()

	return c.All(), nil
}

// Set replaces the whole catalog, typically with a manifest's package set.
func (c *Catalog) Set(packages []*domain.Package) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.packages = append([]*domain.Package(nil), packages...)
}

// Replace swaps the first entry with the same id for pkg.
func (c *Catalog) Replace(pkg *domain.Package) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.packages {
		if strings.EqualFold(p.PackageID, pkg.PackageID) {
			c.packages[i] = pkg
			return true
		}
	}
	return false
}

// IsInstalled reports whether any entry with id is installed.
func (c *Catalog) IsInstalled(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.packages {
		if p.IsInstalled && strings.EqualFold(p.PackageID, id) {
			return true
		}
	}
	return false
}

func (c *Catalog) All() []*domain.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]*domain.Package(nil), c.packages...)
}
