package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

var errStorage = errors.New("disk full")

// memoryKV is an in-memory KeyValueStore. saveFunc, when set, replaces Save.
type memoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	saveFunc func(key, value string) error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Load(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Save(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFunc != nil {
		if err := m.saveFunc(key, value); err != nil {
			return err
		}
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryKV) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]string)
	return nil
}

func (m *memoryKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, req port.EvaluationRequest) (*port.Evaluation, error) {
	args := m.Called(ctx, req)
	if eval := args.Get(0); eval != nil {
		return eval.(*port.Evaluation), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyNeedsReview(ctx context.Context, claim *entity.Claim) error {
	return m.Called(ctx, claim).Error(0)
}

type mockEncoder struct {
	encodeFunc func(ctx context.Context, handles []port.FileHandle, pending int) ([]entity.UploadedFile, error)
}

func (m *mockEncoder) Encode(ctx context.Context, handles []port.FileHandle, pending int) ([]entity.UploadedFile, error) {
	if m.encodeFunc != nil {
		return m.encodeFunc(ctx, handles, pending)
	}
	files := make([]entity.UploadedFile, 0, len(handles))
	for _, h := range handles {
		files = append(files, entity.UploadedFile{EncodedData: "ZGF0YQ==", MimeType: h.MimeType(), OriginalName: h.Name()})
	}
	return files, nil
}

type stubHandle struct {
	name, mimeType string
}

func (h stubHandle) Name() string     { return h.name }
func (h stubHandle) MimeType() string { return h.mimeType }
func (h stubHandle) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data")), nil
}

var (
	employee = &entity.Session{ID: "sess-alice", Name: "Alice Tan", Role: entity.RoleEmployee}
	admin    = &entity.Session{ID: "sess-admin", Name: entity.AdminDisplayName, Role: entity.RoleAdmin}
)

func sampleFile() entity.UploadedFile {
	return entity.UploadedFile{EncodedData: "aGVsbG8=", MimeType: "image/png", OriginalName: "bill.png"}
}

func verdict(status entity.ClaimStatus, eligible, total float64) *port.Evaluation {
	return &port.Evaluation{
		Details: entity.ClaimDetails{
			Provider:     "Singtel",
			BillingDate:  "2024-01-05",
			TotalAmount:  total,
			CustomerName: "Alice Tan",
		},
		EligibleAmount: eligible,
		Status:         status,
		Reasoning:      "name matches, amount within cap",
	}
}
