package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// DefaultMaxFileSize bounds a single upload
const DefaultMaxFileSize int64 = 20 << 20

// Encoder implements port.DocumentEncoder
type Encoder struct {
	maxFileSize int64
	logger      *zap.Logger
}

// NewEncoder creates a new Encoder. maxFileSize <= 0 selects DefaultMaxFileSize.
func NewEncoder(maxFileSize int64, logger *zap.Logger) *Encoder {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Encoder{maxFileSize: maxFileSize, logger: logger}
}

// Encode reads every handle and returns the readable ones as UploadedFile records,
// in input order. The batch is refused whole when it does not fit the remaining slots.
func (e *Encoder) Encode(ctx context.Context, handles []port.FileHandle, pending int) ([]entity.UploadedFile, error) {
	remaining := entity.MaxDocuments - pending
	if len(handles) > remaining {
		if remaining < 0 {
			remaining = 0
		}
		return nil, entity.NewValidationError("files",
			fmt.Sprintf("Only %d more document(s) allowed.", remaining))
	}

	results := make([]*entity.UploadedFile, len(handles))
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(entity.MaxDocuments)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := e.encodeOne(h)
			if err != nil {
				e.logger.Warn("Dropping unreadable document",
					zap.String("name", h.Name()),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]entity.UploadedFile, 0, len(handles))
	for _, f := range results {
		if f != nil {
			files = append(files, *f)
		}
	}

	e.logger.Debug("Documents encoded",
		zap.Int("requested", len(handles)),
		zap.Int("encoded", len(files)))

	return files, errors.Join(errs...)
}

func (e *Encoder) encodeOne(h port.FileHandle) (*entity.UploadedFile, error) {
	rc, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", h.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, e.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", h.Name(), err)
	}
	if int64(len(data)) > e.maxFileSize {
		return nil, entity.NewValidationError("files",
			fmt.Sprintf("%s exceeds the %d MB upload limit", h.Name(), e.maxFileSize>>20))
	}
	if len(data) == 0 {
		return nil, entity.NewValidationError("files", fmt.Sprintf("%s is empty", h.Name()))
	}

	mimeType := declaredType(h.MimeType())
	if !entity.IsAcceptedMimeType(mimeType) {
		mimeType = mimetype.Detect(data).String()
		mimeType = declaredType(mimeType)
	}
	if !entity.IsAcceptedMimeType(mimeType) {
		return nil, entity.NewValidationError("files",
			fmt.Sprintf("%s is not an image or PDF (%s)", h.Name(), mimeType))
	}

	return &entity.UploadedFile{
		EncodedData:  base64.StdEncoding.EncodeToString(data),
		MimeType:     mimeType,
		OriginalName: h.Name(),
	}, nil
}

// declaredType strips parameters such as charset from a MIME type
func declaredType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return mt
}
