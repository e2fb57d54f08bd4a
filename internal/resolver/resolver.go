// Package resolver walks package dependency graphs depth-first, guarding
// against cycles.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/365businessdev/alget/internal/domain"
)

// Walk tracks one depth-first traversal. Ids compare case-insensitively.
type Walk struct {
	visiting map[string]bool
	visited  map[string]bool
	path     []string
}

func NewWalk() *Walk {
	return &Walk{
		visiting: make(map[string]bool),
		visited:  make(map[string]bool),
	}
}

// Enter marks id as in progress. It returns false when id was already
// finished in this walk, and ErrDependencyCycle when id is on the current
// path.
func (w *Walk) Enter(id string) (bool, error) {
	key := strings.ToLower(id)
	if w.visited[key] {
		return false, nil
	}

	if w.visiting[key] {
		cycle := append(append([]string(nil), w.path...), id)
		return false, fmt.Errorf("%w: %s", domain.ErrDependencyCycle, strings.Join(cycle, " -> "))
	}

	w.visiting[key] = true
	w.path = append(w.path, id)
	return true, nil
}

// Leave pops id. When done is false the id may be entered again.
func (w *Walk) Leave(id string, done bool) {
	key := strings.ToLower(id)
	delete(w.visiting, key)
	if len(w.path) > 0 {
		w.path = w.path[:len(w.path)-1]
	}
	if done {
		w.visited[key] = true
	}
}

// Source supplies the edges of the graph.
type Source interface {
	Dependencies(ctx context.Context, id, version string) ([]domain.PackageDependency, error)
	IsInstalled(id string) bool
}

type Resolver struct {
	source Source
}

type ResolvedPackage struct {
	PackageID        string
	VersionRange     string
	Depth            int
	AlreadyInstalled bool
}

func New(source Source) *Resolver {
	return &Resolver{
		source: source,
	}
}

// Resolve lists the transitive dependencies of id in install order:
// every package appears after its own dependencies, the root last.
func (r *Resolver) Resolve(ctx context.Context, id, version string) ([]ResolvedPackage, error) {
	var result []ResolvedPackage
	if err := r.resolve(ctx, id, version, 0, NewWalk(), &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, id, version string, depth int, walk *Walk, result *[]ResolvedPackage) error {
	enter, err := walk.Enter(id)
	if err != nil || !enter {
		return err
	}

	alreadyInstalled := depth > 0 && r.source.IsInstalled(id)

	if !alreadyInstalled {
		deps, err := r.source.Dependencies(ctx, id, version)
		if err != nil {
			walk.Leave(id, false)
			return fmt.Errorf("resolving %s: %w", id, err)
		}

		for _, dep := range deps {
			if err := r.resolve(ctx, dep.ID, dep.Version, depth+1, walk, result); err != nil {
				walk.Leave(id, false)
				return err
			}
		}
	}

	walk.Leave(id, true)

	*result = append(*result, ResolvedPackage{
		PackageID:        id,
		VersionRange:     version,
		Depth:            depth,
		AlreadyInstalled: alreadyInstalled,
	})

	return nil
}
