package invoicearchive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

func TestStore_SaveOpenDelete(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	store.Now = func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) }

	doc := invoice.Document{
		Filename:    "invoice_1001_standard.pdf",
		ContentType: invoice.ContentTypePDF,
		Data:        []byte("%PDF-1.7 1001"),
		Invoice:     invoice.Invoice{ID: "inv-1", Number: "1001"},
	}
	created, err := store.Save(context.Background(), doc)
	if err != nil || !created {
		t.Fatalf("save: created=%t err=%v", created, err)
	}

	reader, meta, err := store.Open(context.Background(), doc.Filename)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-1.7 1001" {
		t.Fatalf("unexpected content %q", data)
	}
	if meta.InvoiceID != "inv-1" || meta.Number != "1001" || meta.Size != int64(len(doc.Data)) {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if meta.ContentType != invoice.ContentTypePDF || len(meta.SHA256) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if !meta.CreatedAt.Equal(store.Now()) {
		t.Fatalf("unexpected created_at %v", meta.CreatedAt)
	}

	if err := store.Delete(context.Background(), doc.Filename); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(context.Background(), doc.Filename); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, doc.Filename+".meta.json")); !os.IsNotExist(err) {
		t.Fatalf("expected metadata removed, got %v", err)
	}
}

func TestStore_PutNestedKey(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	meta, err := store.Put(context.Background(), "2025/03/invoice_1001_modern.pdf", bytes.NewBufferString("%PDF-"), Meta{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if meta.Filename != "invoice_1001_modern.pdf" || meta.Size != 5 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if _, err := os.Stat(filepath.Join(root, "2025", "03", "invoice_1001_modern.pdf")); err != nil {
		t.Fatalf("expected nested file: %v", err)
	}
}

func TestStore_Errors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		store *Store
		ctx   context.Context
		key   string
		kind  invoice.ErrorKind
	}{
		{name: "nil store", store: nil, ctx: context.Background(), key: "a.pdf", kind: invoice.KindInternal},
		{name: "missing root", store: &Store{}, ctx: context.Background(), key: "a.pdf", kind: invoice.KindValidation},
		{name: "missing key", store: NewStore(t.TempDir()), ctx: context.Background(), key: " ", kind: invoice.KindValidation},
		{name: "escaping key", store: NewStore(t.TempDir()), ctx: context.Background(), key: "/", kind: invoice.KindValidation},
		{name: "canceled", store: NewStore(t.TempDir()), ctx: canceled, key: "a.pdf", kind: invoice.KindCanceled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.store.Put(tc.ctx, tc.key, bytes.NewBufferString("%PDF-"), Meta{})
			if got := invoice.KindFromError(err); got != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

func TestStore_KeyCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "archive"))

	if _, err := store.Put(context.Background(), "../../outside.pdf", bytes.NewBufferString("%PDF-"), Meta{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "archive", "outside.pdf")); err != nil {
		t.Fatalf("expected key to be confined to root: %v", err)
	}
}

func TestStore_SaveSkipsUnchangedDocuments(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()
	doc := invoice.Document{
		Filename:    "invoice_1001_standard.pdf",
		ContentType: invoice.ContentTypePDF,
		Data:        []byte("%PDF-1.7 1001"),
	}

	exists, err := store.Exists(ctx, doc.Filename)
	if err != nil || exists {
		t.Fatalf("expected empty archive, got %t %v", exists, err)
	}
	if created, err := store.Save(ctx, doc); err != nil || !created {
		t.Fatalf("first save: created=%t err=%v", created, err)
	}
	if created, err := store.Save(ctx, doc); err != nil || created {
		t.Fatalf("expected unchanged document to be skipped, created=%t err=%v", created, err)
	}
	if exists, err := store.Exists(ctx, doc.Filename); err != nil || !exists {
		t.Fatalf("expected archived document, got %t %v", exists, err)
	}

	doc.Data = []byte("%PDF-1.7 1001 corrected")
	if created, err := store.Save(ctx, doc); err != nil || !created {
		t.Fatalf("expected changed document to be stored, created=%t err=%v", created, err)
	}
	reader, _, err := store.Open(ctx, doc.Filename)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(reader)
	_ = reader.Close()
	if string(data) != "%PDF-1.7 1001 corrected" {
		t.Fatalf("unexpected content %q", data)
	}
}
