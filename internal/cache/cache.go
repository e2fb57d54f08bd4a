package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/365businessdev/alget/internal/domain"
)

// DiskCache is a project's local package folder (.alpackages), holding one
// {publisher}_{name}_{version}.app file per installed package.
type DiskCache struct {
	sync.RWMutex
	dir string
}

func New(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

func (c *DiskCache) Dir() string {
	return c.dir
}

func (c *DiskCache) Path(fileName string) string {
	return filepath.Join(c.dir, domain.SanitizeFileName(fileName))
}

// Lookup finds the installed version for a {publisher}_{name} stem. Matching
// is case-insensitive; when several versions are present the greatest wins.
func (c *DiskCache) Lookup(stem string) (string, bool, error) {
	c.RLock()
	defer c.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	prefix := domain.SanitizeFileName(stem) + "_"
	var found string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rest, ok := trimStem(e.Name(), prefix)
		if !ok || !strings.HasSuffix(strings.ToLower(rest), domain.AppExtension) {
			continue
		}
		version := rest[:len(rest)-len(domain.AppExtension)]
		if !isVersion(version) {
			continue
		}
		if found == "" || domain.CompareVersions(version, found) > 0 {
			found = version
		}
	}

	return found, found != "", nil
}

// trimStem strips a case-insensitive {publisher}_{name}_ prefix from a file
// name. The comparison runs on the original bytes so the remainder starts
// exactly after the prefix.
func trimStem(name, prefix string) (string, bool) {
	if len(name) < len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
		return "", false
	}
	return name[len(prefix):], true
}

func isVersion(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Store writes data under fileName, creating the folder on first use. The
// file is written to a temp name and renamed so readers never see a partial
// artifact.
func (c *DiskCache) Store(fileName string, data []byte) (string, error) {
	c.Lock()
	defer c.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create package folder: %w", err)
	}

	destPath := filepath.Join(c.dir, domain.SanitizeFileName(fileName))
	tmp, err := os.CreateTemp(c.dir, domain.TempFilePattern)
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	return destPath, nil
}

// Remove deletes every cached version of a stem.
func (c *DiskCache) Remove(stem string) ([]string, error) {
	c.Lock()
	defer c.Unlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prefix := domain.SanitizeFileName(stem) + "_"
	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := trimStem(e.Name(), prefix); !ok {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func (c *DiskCache) List() ([]string, error) {
	c.RLock()
	defer c.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), domain.AppExtension) {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func (c *DiskCache) Size() (int64, error) {
	c.RLock()
	defer c.RUnlock()

	var size int64

	err := filepath.Walk(c.dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}

	return size, err
}

func (c *DiskCache) Clear() error {
	c.Lock()
	defer c.Unlock()

	return os.RemoveAll(c.dir)
}
