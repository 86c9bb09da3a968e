package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// HTTPStorage uploads objects to the hosted storage REST API.
type HTTPStorage struct {
	Client  *http.Client
	BaseURL string // project url, without trailing slash
	Key     string // service or user access key
}

// NewHTTPStorage returns an HTTPStorage for the project at baseURL.
func NewHTTPStorage(baseURL, key string) *HTTPStorage {
	return &HTTPStorage{Client: new(http.Client), BaseURL: strings.TrimRight(baseURL, "/"), Key: key}
}

// Upload stores body under bucket/key, replacing any existing object, and
// returns its public URL.
func (s *HTTPStorage) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) (string, error) {
	addr := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, url.PathEscape(bucket), escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, body)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.Key)
	req.Header.Set("apikey", s.Key)
	req.Header.Set("x-upsert", "true")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error uploading %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("error uploading %s/%s: %v: %s", bucket, key, resp.Status, bytes.TrimSpace(msg))
	}
	return s.PublicURL(bucket, key), nil
}

// PublicURL returns the public address of an object.
func (s *HTTPStorage) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.BaseURL, url.PathEscape(bucket), escapeKey(key))
}

// escapeKey escapes each path segment of key.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// MemoryStorage keeps uploaded objects in memory.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	Err     error // returned by Upload when set
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *MemoryStorage) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return "memory://" + bucket + "/" + key, nil
}

// Object returns a stored object and its content type.
func (m *MemoryStorage) Object(bucket, key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, m.types[bucket+"/"+key], ok
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var (
	_ ObjectStorage = (*HTTPStorage)(nil)
	_ ObjectStorage = (*MemoryStorage)(nil)
)
