package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/klauspost/compress/zip"
)

// ZIPExtractor reads nupkg archives, which are plain zip files.
type ZIPExtractor struct{}

func NewZIP() *ZIPExtractor {
	return &ZIPExtractor{}
}

func (ze *ZIPExtractor) Find(archive []byte, ext string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArchive, err)
	}

	for _, f := range r.File {
		if strings.Contains(f.Name, "..") {
			continue
		}
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ext) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrArchive, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrArchive, f.Name, err)
		}
		return data, nil
	}

	return nil, domain.ErrPayloadNotFound
}
