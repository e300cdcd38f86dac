package document

import (
	"io"
	"mime/multipart"

	"github.com/garyjia/autoclaim/internal/application/port"
)

type multipartHandle struct {
	header *multipart.FileHeader
}

// FromMultipart adapts uploaded form files to port.FileHandle
func FromMultipart(headers []*multipart.FileHeader) []port.FileHandle {
	out := make([]port.FileHandle, 0, len(headers))
	for _, h := range headers {
		out = append(out, multipartHandle{header: h})
	}
	return out
}

func (m multipartHandle) Name() string {
	return m.header.Filename
}

func (m multipartHandle) MimeType() string {
	return m.header.Header.Get("Content-Type")
}

func (m multipartHandle) Open() (io.ReadCloser, error) {
	return m.header.Open()
}
