package document

import (
	"io"
	"os"
	"path/filepath"

	"github.com/garyjia/autoclaim/internal/application/port"
)

type localHandle struct {
	path string
}

// FromPaths adapts local files to port.FileHandle. The MIME type is sniffed on encode.
func FromPaths(paths ...string) []port.FileHandle {
	out := make([]port.FileHandle, 0, len(paths))
	for _, p := range paths {
		out = append(out, localHandle{path: p})
	}
	return out
}

func (l localHandle) Name() string { return filepath.Base(l.path) }

func (l localHandle) MimeType() string { return "" }

func (l localHandle) Open() (io.ReadCloser, error) { return os.Open(l.path) }
