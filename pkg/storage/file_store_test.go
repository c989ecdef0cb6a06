package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	fs.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600)) }
	return fs
}

func TestFileStoreCopyInKeepsSource(t *testing.T) {
	fs := newTestFileStore(t)
	src := filepath.Join(t.TempDir(), "MAD01_pedidos.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o600))

	saved, err := fs.CopyIn(domain.FileTypeExcel, src)
	require.NoError(t, err)

	assert.Equal(t, "20240305130709_MAD01_pedidos.xlsx", saved.Name)
	assert.Equal(t, filepath.Join(fs.BasePath(), "excel", saved.Name), saved.Path)
	assert.Equal(t, int64(4), saved.Size)

	got, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	orig, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "data", string(orig))
}

func TestFileStoreSaveNeverOverwrites(t *testing.T) {
	fs := newTestFileStore(t)
	first, err := fs.Save(domain.FileTypePDF, "doc.pdf", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := fs.Save(domain.FileTypePDF, "doc.pdf", strings.NewReader("two"))
	require.NoError(t, err)

	assert.Equal(t, "20240305130709_doc.pdf", first.Name)
	assert.Equal(t, "20240305130709_doc-1.pdf", second.Name)
	got, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))
}

func TestFileStoreSanitisesNames(t *testing.T) {
	fs := newTestFileStore(t)
	saved, err := fs.Save(domain.FileTypePDF, `..\..\evil.pdf`, strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "20240305130709_evil.pdf", saved.Name)
	assert.Equal(t, filepath.Join(fs.BasePath(), "pdf"), filepath.Dir(saved.Path))
}

type memObjectStore struct {
	key         string
	contentType string
	body        []byte
}

func (m *memObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.key, m.contentType, m.body = key, contentType, buf.Bytes()
	return nil
}

func (m *memObjectStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "http://example.invalid/" + m.key, nil
}

func TestMirror(t *testing.T) {
	fs := newTestFileStore(t)
	saved, err := fs.Save(domain.FileTypePDF, "doc.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	obj := &memObjectStore{}
	require.NoError(t, Mirror(context.Background(), obj, domain.FileTypePDF, saved))
	assert.Equal(t, "pdf/20240305130709_doc.pdf", obj.key)
	assert.Equal(t, "application/pdf", obj.contentType)
	assert.Equal(t, "%PDF", string(obj.body))
}
