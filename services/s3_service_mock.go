package services

import (
	"context"
	"fmt"
	"sync"
)

// MockArchiveStorage keeps archives in memory. Used by tests and when
// running locally without a bucket.
type MockArchiveStorage struct {
	files map[string][]byte
	mu    sync.RWMutex
	// FailUploads makes every Upload return an error
	FailUploads bool
}

// NewMockArchiveStorage creates an empty in-memory store
func NewMockArchiveStorage() *MockArchiveStorage {
	return &MockArchiveStorage{files: make(map[string][]byte)}
}

// Upload stores a copy of body under key
func (m *MockArchiveStorage) Upload(_ context.Context, key string, body []byte, _ string) error {
	if m.FailUploads {
		return fmt.Errorf("mock upload failure for %s", key)
	}
	content := make([]byte, len(body))
	copy(content, body)

	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()
	return nil
}

// PresignedURL returns a fake link for a stored key
func (m *MockArchiveStorage) PresignedURL(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	_, exists := m.files[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("file not found in mock storage: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// File returns the stored content for key
func (m *MockArchiveStorage) File(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[key]
	return content, ok
}

// Keys lists every stored key
func (m *MockArchiveStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	return keys
}
