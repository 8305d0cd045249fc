package service

import (
	"context"
	"io"
	"time"
)

// MockMedia implements the media storage slices the services need.
type MockMedia struct {
	ExistsFunc       func(relativePath string) (bool, error)
	SaveFunc         func(fileData io.Reader, relativePath string) error
	DeleteFileFunc   func(relativePath string) error
	DeletePrefixFunc func(relativePath string) error

	DeletedFiles    []string
	DeletedPrefixes []string
	SavedPaths      []string
}

func (m *MockMedia) Exists(relativePath string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(relativePath)
	}
	return true, nil
}

func (m *MockMedia) Save(fileData io.Reader, relativePath string) error {
	m.SavedPaths = append(m.SavedPaths, relativePath)
	if m.SaveFunc != nil {
		return m.SaveFunc(fileData, relativePath)
	}
	return nil
}

func (m *MockMedia) DeleteFile(relativePath string) error {
	m.DeletedFiles = append(m.DeletedFiles, relativePath)
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(relativePath)
	}
	return nil
}

func (m *MockMedia) DeletePrefix(relativePath string) error {
	m.DeletedPrefixes = append(m.DeletedPrefixes, relativePath)
	if m.DeletePrefixFunc != nil {
		return m.DeletePrefixFunc(relativePath)
	}
	return nil
}

// MockEnqueuer records scheduled tasks.
type MockEnqueuer struct {
	EnqueueFunc func(ctx context.Context, kind string, payload any, delay time.Duration) error

	Kinds    []string
	Payloads []any
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, kind string, payload any, delay time.Duration) error {
	m.Kinds = append(m.Kinds, kind)
	m.Payloads = append(m.Payloads, payload)
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, kind, payload, delay)
	}
	return nil
}
