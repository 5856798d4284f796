package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// LocalMediaRoute is the HTTP prefix the server mounts local objects under.
const LocalMediaRoute = "/media"

// Local keeps objects on a filesystem rooted at the configured directory.
type Local struct {
	fs      afero.Fs
	baseURL string
}

// NewLocal wraps fs; objects are addressed relative to its root.
func NewLocal(fsys afero.Fs, baseURL string) *Local {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = LocalMediaRoute
	}
	return &Local{fs: fsys, baseURL: strings.TrimRight(baseURL, "/")}
}

func NewLocalDir(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return NewLocal(afero.NewBasePathFs(afero.NewOsFs(), root), baseURL), nil
}

func (l *Local) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}
	name := "/" + cleaned
	if !overwrite {
		exists, err := afero.Exists(l.fs, name)
		if err != nil {
			return err
		}
		if exists {
			return ErrObjectExists
		}
	}
	if err := l.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}
	return afero.WriteReader(l.fs, name, r)
}

func (l *Local) PublicURL(objectPath string) string {
	return joinURL(l.baseURL, objectPath)
}

func (l *Local) PathFromURL(url string) (string, bool) {
	return stripURLBase(l.baseURL, url)
}

func (l *Local) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	err := afero.Walk(l.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimLeft(p, "/")
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		objects = append(objects, Object{Path: rel, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

func (l *Local) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}
	if err := l.fs.Remove("/" + cleaned); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectMissing
		}
		return err
	}
	return nil
}

// FileSystem exposes the objects for static serving.
func (l *Local) FileSystem() http.FileSystem {
	return afero.NewHttpFs(l.fs)
}
