package blobstore

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps blobs in process. Used when no storage endpoint is configured
// and in tests.
type Memory struct {
	mu      sync.RWMutex
	bucket  string
	baseURL string
	objects map[string][]byte
}

func NewMemory(bucket, baseURL string) *Memory {
	return &Memory{bucket: bucket, baseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *Memory) Bucket() string { return m.bucket }

func (m *Memory) Put(ctx context.Context, path string, data []byte, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), data...)
	return Object{
		Bucket:    m.bucket,
		Path:      path,
		PublicURL: publicURL(m.baseURL, m.bucket, path),
		Size:      int64(len(data)),
	}, nil
}

func (m *Memory) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Paths lists stored paths in order.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
