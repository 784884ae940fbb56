// Package blobstore keeps uploaded files (doctor photos) and serves them
// back under /media.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// MaxImageSize bounds one uploaded image.
const MaxImageSize = 5 << 20

var (
	ErrNotFound    = errors.New("blob not found")
	ErrTooLarge    = fmt.Errorf("file exceeds %d bytes", MaxImageSize)
	ErrUnsupported = errors.New("unsupported image type")
	ErrBadKey      = errors.New("invalid blob key")
)

// imageTypes maps accepted sniffed content types to file extensions.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Blob struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Blob, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *Blob, error)
	Delete(ctx context.Context, key string) error
}

// ReadImage reads at most MaxImageSize bytes from r and sniffs the type.
// It returns the data, its content type and the matching file extension.
func ReadImage(r io.Reader) ([]byte, string, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, "", "", ErrTooLarge
	}
	ct := http.DetectContentType(data)
	ext, ok := imageTypes[ct]
	if !ok {
		return nil, "", "", ErrUnsupported
	}
	return data, ct, ext, nil
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != key || strings.HasPrefix(k, ".") {
		return "", ErrBadKey
	}
	return k, nil
}

func newBlob(key, contentType string, data []byte) *Blob {
	sum := sha256.Sum256(data)
	return &Blob{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}
}

// DiskStore keeps blobs as files under Root. The content type is sniffed
// again on read.
type DiskStore struct {
	Root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{Root: root}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, filepath.FromSlash(k)), nil
}

// Put writes to a temp file and renames it so readers never see a partial
// file.
func (s *DiskStore) Put(_ context.Context, key, contentType string, data []byte) (*Blob, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return nil, err
	}
	return newBlob(key, contentType, data), nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, *Blob, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &Blob{
		Key:         key,
		ContentType: http.DetectContentType(head[:n]),
		Size:        info.Size(),
		CreatedAt:   info.ModTime().UTC(),
	}, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type storedBlob struct {
	meta Blob
	data []byte
}

// MemoryStore is a Store for tests and for running without a media dir.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]storedBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]storedBlob)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) (*Blob, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	b := newBlob(k, contentType, data)
	s.mu.Lock()
	s.blobs[k] = storedBlob{meta: *b, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return b, nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, *Blob, error) {
	s.mu.RLock()
	sb, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	meta := sb.meta
	return io.NopCloser(bytes.NewReader(sb.data)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// Handler serves stored blobs read-only.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// MediaPrefix is where blobs are exposed over HTTP.
const MediaPrefix = "/media/"

// URL returns the public path of key.
func URL(key string) string { return MediaPrefix + key }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET(MediaPrefix+"*", h.Serve)
}

func (h *Handler) Serve(c echo.Context) error {
	rc, meta, err := h.store.Open(c.Request().Context(), c.Param("*"))
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadKey) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return err
	}
	defer rc.Close()
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}
