package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// Smallest valid PNG header is enough for sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type memHandle struct {
	name     string
	mimeType string
	data     []byte
	openErr  error
}

func (h memHandle) Name() string     { return h.name }
func (h memHandle) MimeType() string { return h.mimeType }
func (h memHandle) Open() (io.ReadCloser, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	return io.NopCloser(bytes.NewReader(h.data)), nil
}

func TestEncoder_EncodesInOrder(t *testing.T) {
	enc := NewEncoder(0, zap.NewNop())

	files, err := enc.Encode(context.Background(), []port.FileHandle{
		memHandle{name: "bill.pdf", mimeType: "application/pdf", data: []byte("%PDF-1.4 fake")},
		memHandle{name: "bill.png", mimeType: "image/png", data: pngHeader},
	}, 0)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "bill.pdf", files[0].OriginalName)
	assert.Equal(t, "application/pdf", files[0].MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")), files[0].EncodedData)
	assert.Equal(t, "bill.png", files[1].OriginalName)
	assert.True(t, files[1].IsImage())
}

func TestEncoder_SniffsMissingType(t *testing.T) {
	enc := NewEncoder(0, zap.NewNop())

	files, err := enc.Encode(context.Background(), []port.FileHandle{
		memHandle{name: "scan", mimeType: "application/octet-stream", data: pngHeader},
	}, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "image/png", files[0].MimeType)
}

func TestEncoder_RefusesWholeBatchOverCapacity(t *testing.T) {
	enc := NewEncoder(0, zap.NewNop())
	h := memHandle{name: "a.png", mimeType: "image/png", data: pngHeader}

	files, err := enc.Encode(context.Background(), []port.FileHandle{h, h}, 1)
	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))
	assert.Contains(t, err.Error(), "Only 1 more document(s) allowed.")
	assert.Empty(t, files)

	_, err = enc.Encode(context.Background(), []port.FileHandle{h}, 2)
	assert.Contains(t, err.Error(), "Only 0 more document(s) allowed.")
}

func TestEncoder_DropsUnreadableFileOnly(t *testing.T) {
	enc := NewEncoder(0, zap.NewNop())
	openErr := errors.New("permission denied")

	files, err := enc.Encode(context.Background(), []port.FileHandle{
		memHandle{name: "broken.png", openErr: openErr},
		memHandle{name: "ok.png", mimeType: "image/png", data: pngHeader},
	}, 0)

	assert.ErrorIs(t, err, openErr)
	require.Len(t, files, 1)
	assert.Equal(t, "ok.png", files[0].OriginalName)
}

func TestEncoder_RejectsUnsupportedAndOversized(t *testing.T) {
	enc := NewEncoder(16, zap.NewNop())

	files, err := enc.Encode(context.Background(), []port.FileHandle{
		memHandle{name: "notes.txt", mimeType: "text/plain", data: []byte("hello")},
		memHandle{name: "huge.png", mimeType: "image/png", data: bytes.Repeat([]byte{1}, 32)},
	}, 0)

	require.Error(t, err)
	assert.Empty(t, files)
	assert.Contains(t, err.Error(), "notes.txt is not an image or PDF")
	assert.Contains(t, err.Error(), "huge.png exceeds")
}

func TestFromMultipart(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", "march.png")
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	handles := FromMultipart(req.MultipartForm.File["files"])
	require.Len(t, handles, 1)
	assert.Equal(t, "march.png", handles[0].Name())

	files, err := NewEncoder(0, zap.NewNop()).Encode(context.Background(), handles, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "image/png", files[0].MimeType)
}

func TestFromPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router-bill.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	handles := FromPaths(path, filepath.Join(dir, "missing.pdf"))
	require.Len(t, handles, 2)
	assert.Equal(t, "router-bill.png", handles[0].Name())
	assert.Empty(t, handles[0].MimeType())

	files, err := NewEncoder(DefaultMaxFileSize, zap.NewNop()).Encode(context.Background(), handles, 0)
	require.Error(t, err, "the missing file is reported")
	require.Len(t, files, 1)
	assert.Equal(t, "image/png", files[0].MimeType)
	assert.Equal(t, "router-bill.png", files[0].OriginalName)
}
