package domain

import (
	"context"
)

type FeedClient interface {
	Search(ctx context.Context, src PackageSource, query string, prerelease bool) ([]*Package, error)
	DownloadPackage(ctx context.Context, src PackageSource, id, version string) ([]byte, error)
	DownloadManifest(ctx context.Context, src PackageSource, id, version string) (*NuSpec, error)
}

// LocalIndex finds installed artifacts by their {publisher}_{name} stem.
type LocalIndex interface {
	Lookup(stem string) (version string, found bool, err error)
}

type Cache interface {
	LocalIndex
	Store(fileName string, data []byte) (string, error)
	Path(fileName string) string
	Size() (int64, error)
	Clear() error
}

type Extractor interface {
	ExtractPayload(archive []byte, ext string) ([]byte, error)
}

type Enricher interface {
	Enrich(ctx context.Context, pkg *Package) *Package
}

// Journal brackets every artifact write so an interrupted install can be
// cleaned up on the next run.
type Journal interface {
	BeginInstall(rec *InstallRecord) error
	CompleteInstall(rec *InstallRecord) error
	List(project string) ([]InstallRecord, error)
}
