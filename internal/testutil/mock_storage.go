// mock_storage.go - In-memory object storage for testing
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/studygalaxy/internal/core"
)

// MockObjectStore implements core.ObjectClient.
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte // "bucket/key" -> data

	UploadErr error
	DeleteErr error
}

var _ core.ObjectClient = (*MockObjectStore)(nil)

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

func (s *MockObjectStore) UploadFile(_ context.Context, bucket, key string, data io.Reader, _ string) (string, error) {
	if s.UploadErr != nil {
		return "", s.UploadErr
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = body
	return "mem://" + bucket + "/" + key, nil
}

func (s *MockObjectStore) DeleteFile(_ context.Context, bucket, key string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	return nil
}

func (s *MockObjectStore) PresignGetURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("mem://%s/%s?expires=%d", bucket, key, int(ttl.Seconds())), nil
}

// Has reports whether bucket/key is stored.
func (s *MockObjectStore) Has(bucket, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok
}

// Keys lists every stored "bucket/key", sorted.
func (s *MockObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
