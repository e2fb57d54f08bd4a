package extractor

import (
	"bytes"
	"testing"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractPayload(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"Contoso.App.nuspec":      "<package/>",
		"[Content_Types].xml":     "<Types/>",
		"Contoso_App_1.0.0.0.APP": "symbols",
	})

	data, err := New().ExtractPayload(archive, ".app")
	require.NoError(t, err)
	assert.Equal(t, "symbols", string(data))
}

func TestExtractPayloadSkipsTraversal(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"../evil.app": "nope",
	})

	_, err := New().ExtractPayload(archive, ".app")
	assert.ErrorIs(t, err, domain.ErrPayloadNotFound)
}

func TestExtractPayloadMissing(t *testing.T) {
	archive := buildArchive(t, map[string]string{"readme.txt": "hi"})

	_, err := New().ExtractPayload(archive, "")
	assert.ErrorIs(t, err, domain.ErrPayloadNotFound)
}

func TestExtractPayloadInvalidArchive(t *testing.T) {
	_, err := New().ExtractPayload([]byte("not a zip"), ".app")
	assert.ErrorIs(t, err, domain.ErrArchive)

	_, err = New().ExtractPayload(nil, ".app")
	assert.ErrorIs(t, err, domain.ErrArchive)
}
