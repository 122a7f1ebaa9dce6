package invoicearchive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

// Meta describes an archived document.
type Meta struct {
	InvoiceID   string    `json:"invoice_id,omitempty"`
	Number      string    `json:"number,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store keeps rendered invoice documents on disk, one sidecar
// metadata file per document.
type Store struct {
	Root string
	Now  func() time.Time
}

// NewStore creates a filesystem archive rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Save archives a rendered document under its filename. It reports false
// without rewriting anything when the archived copy has the same digest.
func (s *Store) Save(ctx context.Context, doc invoice.Document) (bool, error) {
	if err := s.check(ctx, doc.Filename); err != nil {
		return false, err
	}
	pathOnDisk, err := s.resolvePath(doc.Filename)
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(doc.Data)
	if current := readMeta(pathOnDisk); current.SHA256 == hex.EncodeToString(digest[:]) {
		if _, err := os.Stat(pathOnDisk); err == nil {
			return false, nil
		}
	}

	_, err = s.Put(ctx, doc.Filename, bytes.NewReader(doc.Data), Meta{
		InvoiceID:   doc.Invoice.ID,
		Number:      doc.Invoice.Number,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
	})
	return err == nil, err
}

// Exists reports whether a document is archived under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.check(ctx, key); err != nil {
		return false, err
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(pathOnDisk); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, invoice.NewError(invoice.KindExternal, "stat archive file failed", err)
	}
	return true, nil
}

// Put writes the document atomically and returns the stored metadata.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta Meta) (Meta, error) {
	if err := s.check(ctx, key); err != nil {
		return Meta{}, err
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return Meta{}, err
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "create archive directory failed", err)
	}

	tmp, err := os.CreateTemp(dir, ".invoice-*")
	if err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "create archive file failed", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "write archive file failed", err)
	}
	if err := tmp.Sync(); err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "sync archive file failed", err)
	}
	if err := tmp.Close(); err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "close archive file failed", err)
	}
	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "move archive file failed", err)
	}

	meta.Size = size
	meta.SHA256 = hex.EncodeToString(hash.Sum(nil))
	if meta.Filename == "" {
		meta.Filename = filepath.Base(pathOnDisk)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if err := writeMeta(pathOnDisk, meta); err != nil {
		return Meta{}, invoice.NewError(invoice.KindExternal, "write archive metadata failed", err)
	}
	return meta, nil
}

// Open reads an archived document.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, Meta, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, Meta{}, err
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return nil, Meta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("archived document %q not found", key), err)
		}
		return nil, Meta{}, invoice.NewError(invoice.KindExternal, "open archive file failed", err)
	}

	meta := readMeta(pathOnDisk)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(pathOnDisk))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	return file, meta, nil
}

// Delete removes an archived document and its metadata.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	pathOnDisk, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	_ = os.Remove(metaPath(pathOnDisk))
	return nil
}

func (s *Store) check(ctx context.Context, key string) error {
	if s == nil {
		return invoice.NewError(invoice.KindInternal, "archive store is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if strings.TrimSpace(s.Root) == "" {
		return invoice.NewError(invoice.KindValidation, "archive root is required", nil)
	}
	if strings.TrimSpace(key) == "" {
		return invoice.NewError(invoice.KindValidation, "archive key is required", nil)
	}
	return nil
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", invoice.NewError(invoice.KindValidation, "invalid archive key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", invoice.NewError(invoice.KindInternal, "resolve archive root failed", err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", invoice.NewError(invoice.KindValidation, "archive key escapes root", nil)
	}
	return target, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func writeMeta(pathOnDisk string, meta Meta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(pathOnDisk), ".meta-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), metaPath(pathOnDisk))
}

func readMeta(pathOnDisk string) Meta {
	data, err := os.ReadFile(metaPath(pathOnDisk))
	if err != nil {
		return Meta{}
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}
	}
	return meta
}

func metaPath(pathOnDisk string) string {
	return pathOnDisk + ".meta.json"
}
