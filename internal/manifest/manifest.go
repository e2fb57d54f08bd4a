// Package manifest reads and edits a project's app.json. Edits patch the
// original document so unknown keys and key order survive a write.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const dependenciesKey = "dependencies"

var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: false}

// Content is the subset of app.json the package manager reads.
type Content struct {
	ID           string
	Name         string
	Publisher    string
	Version      string
	Application  string
	Platform     string
	Dependencies []domain.ManifestDependency
}

type Store struct {
	mu   sync.RWMutex
	path string
	raw  []byte
}

// Open reads the manifest once. Later calls work on the in-memory copy
// until Reload.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return fmt.Errorf("manifest %s: %w", s.path, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("manifest %s: invalid json", s.path)
	}

	s.mu.Lock()
	s.raw = data
	s.mu.Unlock()
	return nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// CacheDir is the project's local package folder.
func (s *Store) CacheDir(name string) string {
	return filepath.Join(s.Dir(), name)
}

func (s *Store) Content() Content {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := gjson.ParseBytes(s.raw)
	c := Content{
		ID:          doc.Get("id").String(),
		Name:        doc.Get("name").String(),
		Publisher:   doc.Get("publisher").String(),
		Version:     doc.Get("version").String(),
		Application: doc.Get("application").String(),
		Platform:    doc.Get("platform").String(),
	}
	doc.Get(dependenciesKey).ForEach(func(_, dep gjson.Result) bool {
		c.Dependencies = append(c.Dependencies, domain.ManifestDependency{
			ID:        dep.Get("id").String(),
			Name:      dep.Get("name").String(),
			Publisher: dep.Get("publisher").String(),
			Version:   dep.Get("version").String(),
		})
		return true
	})
	return c
}

// Project describes this manifest for dependency lookups from sibling
// projects.
func (s *Store) Project() domain.WorkspaceProject {
	c := s.Content()
	return domain.WorkspaceProject{ID: c.ID, Name: c.Name, Version: c.Version, Path: s.Dir()}
}

// AddDependency appends dep unless an entry with the same id exists.
func (s *Store) AddDependency(dep domain.ManifestDependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deps := gjson.GetBytes(s.raw, dependenciesKey)
	exists := false
	deps.ForEach(func(_, d gjson.Result) bool {
		exists = strings.EqualFold(d.Get("id").String(), dep.ID)
		return !exists
	})
	if exists {
		return nil
	}

	dep.Version = domain.PadVersion(dep.Version)

	var (
		raw []byte
		err error
	)
	if deps.IsArray() {
		raw, err = sjson.SetBytes(s.raw, dependenciesKey+".-1", dep)
	} else {
		raw, err = sjson.SetBytes(s.raw, dependenciesKey, []domain.ManifestDependency{dep})
	}
	if err != nil {
		return fmt.Errorf("adding dependency %s: %w", dep.ID, err)
	}
	return s.flush(raw)
}

// RemoveDependency drops every entry with id. It reports whether anything
// was removed.
func (s *Store) RemoveDependency(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deps := gjson.GetBytes(s.raw, dependenciesKey)
	if !deps.IsArray() {
		return false, nil
	}

	var indexes []int
	for i, d := range deps.Array() {
		if strings.EqualFold(d.Get("id").String(), id) {
			indexes = append(indexes, i)
		}
	}
	if len(indexes) == 0 {
		return false, nil
	}

	raw := s.raw
	// delete from the back so earlier indexes stay valid
	for i := len(indexes) - 1; i >= 0; i-- {
		var err error
		raw, err = sjson.DeleteBytes(raw, dependenciesKey+"."+strconv.Itoa(indexes[i]))
		if err != nil {
			return false, fmt.Errorf("removing dependency %s: %w", id, err)
		}
	}
	return true, s.flush(raw)
}

// Touch rewrites the manifest unchanged so file watchers pick it up.
func (s *Store) Touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return os.WriteFile(s.path, s.raw, 0644)
}

func (s *Store) flush(raw []byte) error {
	raw = pretty.PrettyOptions(raw, prettyOptions)
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return err
	}
	s.raw = raw
	return nil
}

// LoadWorkspace opens the manifests of other project folders. Folders
// without a readable manifest are skipped.
func LoadWorkspace(dirs []string, fileName string) []domain.WorkspaceProject {
	var projects []domain.WorkspaceProject
	for _, dir := range dirs {
		s, err := Open(filepath.Join(dir, fileName))
		if err != nil {
			continue
		}
		if p := s.Project(); p.ID != "" {
			projects = append(projects, p)
		}
	}
	return projects
}
