package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/fetcher"
	"github.com/klauspost/compress/zstd"
)

const (
	SearchQueryService = "SearchQueryService"
	PackageBaseAddress = "PackageBaseAddress"
)

// Getter is the transport the registry talks through.
type Getter interface {
	Get(ctx context.Context, url string, src domain.PackageSource) ([]byte, error)
	Download(ctx context.Context, url string, src domain.PackageSource, name string) ([]byte, error)
}

// NuGet is a client for NuGet v3 feeds.
type NuGet struct {
	sync.RWMutex
	http     Getter
	cacheDir string
	ttl      time.Duration
	indexes  map[string]*serviceIndex
}

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

type searchResponse struct {
	Data []searchResult `json:"data"`
}

type searchResult struct {
	ID          string                `json:"id"`
	Version     string                `json:"version"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Authors     authors               `json:"authors"`
	Versions    []domain.VersionEntry `json:"versions"`
}

// authors is a list on most feeds but a bare string on some.
type authors []string

func (a *authors) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*a = []string{single}
	return nil
}

type nuspec struct {
	Metadata struct {
		ID          string       `xml:"id"`
		Version     string       `xml:"version"`
		Title       string       `xml:"title"`
		Authors     string       `xml:"authors"`
		Description string       `xml:"description"`
		Flat        []dependency `xml:"dependencies>dependency"`
		Grouped     []dependency `xml:"dependencies>group>dependency"`
	} `xml:"metadata"`
}

type dependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

// New returns a client. cacheDir may be empty to disable the on-disk
// service index cache.
func New(http Getter, cacheDir string, ttl time.Duration) *NuGet {
	return &NuGet{
		http:     http,
		cacheDir: cacheDir,
		ttl:      ttl,
		indexes:  make(map[string]*serviceIndex),
	}
}

// ServiceURL resolves the first resource whose @type starts with service.
func (n *NuGet) ServiceURL(ctx context.Context, src domain.PackageSource, service string) (string, error) {
	index, err := n.loadIndex(ctx, src)
	if err != nil {
		return "", err
	}

	for _, r := range index.Resources {
		if strings.HasPrefix(r.Type, service) {
			return strings.TrimSuffix(r.ID, "/"), nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", domain.ErrServiceNotFound, service, src.Name)
}

func (n *NuGet) loadIndex(ctx context.Context, src domain.PackageSource) (*serviceIndex, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("%w: feed %q has no url", domain.ErrFeedUnavailable, src.Name)
	}

	n.RLock()
	index, ok := n.indexes[src.URL]
	n.RUnlock()
	if ok {
		return index, nil
	}

	data, cached := n.getFromCache(src.URL)
	if !cached {
		var err error
		data, err = n.http.Get(ctx, src.URL, src)
		if err != nil {
			return nil, fmt.Errorf("fetching service index: %w", err)
		}
	}

	index = &serviceIndex{}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, fmt.Errorf("%w: decoding service index of %s: %v", domain.ErrFeedUnavailable, src.Name, err)
	}
	if !cached {
		_ = n.storeToCache(src.URL, data)
	}

	n.Lock()
	n.indexes[src.URL] = index
	n.Unlock()
	return index, nil
}

// Search queries the feed's search service. Spaces are stripped from the
// query.
func (n *NuGet) Search(ctx context.Context, src domain.PackageSource, query string, prerelease bool) ([]*domain.Package, error) {
	base, err := n.ServiceURL(ctx, src, SearchQueryService)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", strings.ReplaceAll(query, " ", ""))
	params.Set("prerelease", strconv.FormatBool(prerelease))

	data, err := n.http.Get(ctx, base+"?"+params.Encode(), src)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", src.Name, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding search response of %s: %v", domain.ErrFeedUnavailable, src.Name, err)
	}

	packages := make([]*domain.Package, 0, len(resp.Data))
	for _, r := range resp.Data {
		packages = append(packages, toPackage(r, src))
	}
	return packages, nil
}

func toPackage(r searchResult, src domain.PackageSource) *domain.Package {
	var publisher string
	if len(r.Authors) > 0 {
		publisher = r.Authors[0]
	}
	name := r.Title
	if name == "" {
		name = r.ID
	}

	return domain.NewPackage(domain.Package{
		PackageID:   r.ID,
		AppID:       domain.AppIDFromPackageID(r.ID),
		Version:     r.Version,
		Name:        name,
		Description: r.Description,
		Publisher:   publisher,
		CountryCode: domain.CountryCodeFromPackageID(r.ID),
		Source:      src,
		Metadata: &domain.NuSpec{
			ID:          r.ID,
			Version:     r.Version,
			Title:       r.Title,
			Authors:     strings.Join(r.Authors, ", "),
			Description: r.Description,
			Versions:    r.Versions,
		},
	})
}

// DownloadPackage fetches {base}/{id}/{version}/{id}.{version}.nupkg.
func (n *NuGet) DownloadPackage(ctx context.Context, src domain.PackageSource, id, version string) ([]byte, error) {
	base, err := n.ServiceURL(ctx, src, PackageBaseAddress)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s/%s/%s.%s.nupkg", base, id, version, id, version)
	return n.http.Download(ctx, u, src, id)
}

// DownloadManifest fetches and parses the lower-cased nuspec path.
func (n *NuGet) DownloadManifest(ctx context.Context, src domain.PackageSource, id, version string) (*domain.NuSpec, error) {
	base, err := n.ServiceURL(ctx, src, PackageBaseAddress)
	if err != nil {
		return nil, err
	}

	u := base + strings.ToLower(fmt.Sprintf("/%s/%s/%s.nuspec", id, version, id))
	data, err := n.http.Get(ctx, u, src)
	if err != nil {
		var status *fetcher.StatusError
		if errors.As(err, &status) {
			return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrMetadataUnavailable, id, version, err)
		}
		return nil, err
	}

	return parseNuspec(data)
}

func parseNuspec(data []byte) (*domain.NuSpec, error) {
	var doc nuspec
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing nuspec: %v", domain.ErrMetadataUnavailable, err)
	}

	m := doc.Metadata
	spec := &domain.NuSpec{
		ID:          m.ID,
		Version:     m.Version,
		Title:       m.Title,
		Authors:     m.Authors,
		Description: m.Description,
	}
	for _, d := range append(m.Flat, m.Grouped...) {
		if d.ID == "" {
			continue
		}
		spec.Dependencies = append(spec.Dependencies, domain.PackageDependency{ID: d.ID, Version: d.Version})
	}
	return spec, nil
}

func (n *NuGet) cachePath(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(n.cacheDir, hex.EncodeToString(sum[:8])+".json.zst")
}

func (n *NuGet) getFromCache(feedURL string) ([]byte, bool) {
	if n.cacheDir == "" {
		return nil, false
	}

	path := n.cachePath(feedURL)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	if time.Since(info.ModTime()) > n.ttl {
		return nil, false
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (n *NuGet) storeToCache(feedURL string, data []byte) error {
	if n.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(n.cacheDir, 0755); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()

	return os.WriteFile(n.cachePath(feedURL), enc.EncodeAll(data, nil), 0644)
}

// ClearCache removes cached service indexes, on disk and in memory.
func (n *NuGet) ClearCache() error {
	n.Lock()
	n.indexes = make(map[string]*serviceIndex)
	n.Unlock()

	if n.cacheDir == "" {
		return nil
	}
	return os.RemoveAll(n.cacheDir)
}
