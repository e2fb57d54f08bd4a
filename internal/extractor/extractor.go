package extractor

import (
	"fmt"
	"strings"

	"github.com/365businessdev/alget/internal/domain"
)

// Extractor pulls the application payload out of a downloaded package.
type Extractor struct {
	zip *ZIPExtractor
}

func New() *Extractor {
	return &Extractor{
		zip: NewZIP(),
	}
}

// ExtractPayload returns the first entry of archive whose name ends in ext.
func (e *Extractor) ExtractPayload(archive []byte, ext string) ([]byte, error) {
	if len(archive) == 0 {
		return nil, fmt.Errorf("%w: empty archive", domain.ErrArchive)
	}
	if ext == "" {
		ext = domain.AppExtension
	}
	return e.zip.Find(archive, strings.ToLower(ext))
}
