package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMissingField        = errors.New("missing required field")
	ErrServiceNotFound     = errors.New("service not found in feed index")
	ErrFeedUnavailable     = errors.New("feed unavailable")
	ErrArchive             = errors.New("package archive error")
	ErrPayloadNotFound     = errors.New("no application file found in package")
	ErrMetadataDefect      = errors.New("package metadata defect")
	ErrMetadataUnavailable = errors.New("package metadata unavailable")
	ErrNoTargetVersion     = errors.New("no resolvable target version")
	ErrDependencyCycle     = errors.New("dependency cycle detected")
	ErrCacheMiss           = errors.New("package not in catalog")
)
