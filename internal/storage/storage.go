// Package storage stores product media objects in a bucket-like namespace.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrInvalidPath   = errors.New("invalid_object_path")
	ErrObjectExists  = errors.New("object_exists")
	ErrObjectMissing = errors.New("object_not_found")
)

// Object describes a stored file.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type Storage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) error
	PublicURL(objectPath string) string
	// PathFromURL reverses PublicURL. ok is false for URLs this store did not issue.
	PathFromURL(url string) (string, bool)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, objectPath string) error
}

func cleanObjectPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

func joinURL(base, objectPath string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(objectPath, "/")
}

func stripURLBase(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	rest, ok := strings.CutPrefix(strings.TrimSpace(url), prefix)
	if !ok || rest == "" {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	cleaned, err := cleanObjectPath(rest)
	if err != nil {
		return "", false
	}
	return cleaned, true
}
