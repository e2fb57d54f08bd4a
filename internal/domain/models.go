package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	LocalSourceName = "Local"

	// AppExtension is the payload extension inside a nupkg and in the local cache.
	AppExtension = ".app"

	// TempFilePattern names artifacts still being written into a package folder.
	TempFilePattern = ".alget-*"

	maxPackageIDLength = 100
	guidLength         = 36
	symbolsInfix       = ".symbols."
)

// Well-known Microsoft application ids.
const (
	BaseApplicationAppID    = "437dbf0e-84ff-417a-965d-ed2bb9650972"
	BusinessFoundationAppID = "f3552374-a1f2-4356-848e-196002525837"
	SystemApplicationAppID  = "63ca2fa4-4f03-4f2b-a480-172fef340d3f"
)

type PackageSource struct {
	Name            string
	URL             string
	PackageIDSchema string
	// AuthHeader is sent verbatim as the Authorization header.
	AuthHeader string
}

func LocalSource() PackageSource {
	return PackageSource{Name: LocalSourceName}
}

func (s PackageSource) IsLocal() bool {
	return s.Name == LocalSourceName
}

// VersionEntry is one row of a feed's available-versions list.
type VersionEntry struct {
	Version   string `json:"version"`
	Downloads int64  `json:"downloads"`
}

type NuSpec struct {
	ID           string
	Version      string
	Title        string
	Authors      string
	Description  string
	Dependencies []PackageDependency
	Versions     []VersionEntry
}

type PackageDependency struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

type Package struct {
	PackageID      string
	AppID          string
	MinimumVersion string
	Version        string
	UpdateVersion  string
	Name           string
	Description    string
	Publisher      string
	CountryCode    string
	IsInstalled    bool
	Source         PackageSource
	Metadata       *NuSpec
}

// NewPackage fills in the derived package id and the placeholder source.
// It does not touch the filesystem; see ResolveLocalState.
func NewPackage(p Package) *Package {
	if p.PackageID == "" {
		p.PackageID = DerivePackageID(p.Publisher, p.Name, p.AppID)
	}
	if p.Source.Name == "" {
		p.Source = LocalSource()
	}
	if p.Version != "" {
		p.Version = PadVersion(p.Version)
	}
	return &p
}

// DerivePackageID builds {publisher}.{name}.symbols.{appId} without spaces,
// shortening publisher and name so the result fits in 100 characters.
func DerivePackageID(publisher, name, appID string) string {
	id := strings.ReplaceAll(publisher+"."+name+symbolsInfix+appID, " ", "")
	if len(id) <= maxPackageIDLength {
		return id
	}

	prefix := strings.ReplaceAll(publisher+"."+name, " ", "")
	if limit := maxPackageIDLength - guidLength - len(symbolsInfix); len(prefix) > limit {
		for limit > 0 && !utf8.RuneStart(prefix[limit]) {
			limit--
		}
		prefix = prefix[:limit]
	}
	return prefix + symbolsInfix + appID
}

func (p *Package) IsMicrosoft() bool {
	return strings.EqualFold(p.Publisher, "Microsoft")
}

// IsMicrosoftSystemOrBaseApp reports whether the package is one of the fixed
// Microsoft apps that must never be written into a project manifest.
func (p *Package) IsMicrosoftSystemOrBaseApp() bool {
	if !p.IsMicrosoft() {
		return false
	}
	switch strings.ToLower(p.AppID) {
	case BaseApplicationAppID, BusinessFoundationAppID, SystemApplicationAppID:
		return true
	}
	return false
}

// FileStem is the {publisher}_{name} part of the cache file name.
func (p *Package) FileStem() string {
	name := p.Name
	if p.Publisher == "Microsoft" && p.Name == "Platform" {
		name = "System"
	}
	return SanitizeFileName(p.Publisher + "_" + name)
}

func (p *Package) FileName(version string) string {
	return SanitizeFileName(p.FileStem() + "_" + version + AppExtension)
}

// TargetVersions lists the available versions published with the metadata.
func (p *Package) TargetVersions() []VersionEntry {
	if p.Metadata == nil {
		return nil
	}
	return p.Metadata.Versions
}

type ManifestDependency struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Publisher string `json:"publisher"`
	Version   string `json:"version"`
}

// WorkspaceProject is an open project whose manifest can satisfy a
// dependency without a feed round-trip.
type WorkspaceProject struct {
	ID      string
	Name    string
	Version string
	Path    string
}

type InstallStatus string

const (
	InstallPending   InstallStatus = "pending"
	InstallCompleted InstallStatus = "installed"
)

type InstallRecord struct {
	PackageID   string
	Name        string
	Publisher   string
	Version     string
	Source      string
	Project     string
	Path        string
	Status      InstallStatus
	InstalledAt time.Time
}
