// Package mediatest provides an in-memory media.Store for tests.
package mediatest

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type Store struct {
	mu        sync.Mutex
	uploads   []string
	destroyed []string

	// FailDestroy makes Destroy fail for the listed URLs.
	FailDestroy map[string]error
	// FailUpload makes every Upload fail.
	FailUpload error
}

func New() *Store {
	return &Store{FailDestroy: map[string]error{}}
}

func (s *Store) Upload(_ context.Context, file io.Reader, folder, publicID string) (string, error) {
	if s.FailUpload != nil {
		return "", s.FailUpload
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	url := fmt.Sprintf("https://media.test/image/upload/v1/%s/%s.png", folder, publicID)
	s.uploads = append(s.uploads, url)
	return url, nil
}

func (s *Store) Destroy(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, url)
	if err, ok := s.FailDestroy[url]; ok {
		return err
	}
	return nil
}

// Destroyed lists every URL passed to Destroy, failed calls included.
func (s *Store) Destroyed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.destroyed...)
}

func (s *Store) Uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}
