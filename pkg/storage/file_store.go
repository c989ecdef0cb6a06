package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/miquiestampas/Aureo/pkg/domain"
)

const savedNameLayout = "20060102150405"

// SavedFile describes a file written into the upload directory.
type SavedFile struct {
	Path string
	Name string
	Size int64
}

// FileStore keeps working copies of ingested files under
// <base>/<excel|pdf>/<YYYYMMDDHHMMSS>_<name>.
type FileStore struct {
	basePath string
	now      func() time.Time
}

// NewFileStore creates the base directory and the per-type folders.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	for _, t := range []domain.FileType{domain.FileTypeExcel, domain.FileTypePDF} {
		if err := os.MkdirAll(filepath.Join(basePath, t.Dir()), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &FileStore{basePath: basePath, now: time.Now}, nil
}

// BasePath returns the root upload directory.
func (f *FileStore) BasePath() string {
	return f.basePath
}

// CopyIn copies the file at src into the store. The source is only read.
func (f *FileStore) CopyIn(fileType domain.FileType, src string) (SavedFile, error) {
	in, err := os.Open(src)
	if err != nil {
		return SavedFile{}, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()
	return f.Save(fileType, filepath.Base(src), in)
}

// Save writes r under a timestamped name in the folder for fileType. An
// existing file is never overwritten; a numeric suffix is added instead.
func (f *FileStore) Save(fileType domain.FileType, filename string, r io.Reader) (SavedFile, error) {
	dir := filepath.Join(f.basePath, fileType.Dir())
	base := f.now().UTC().Format(savedNameLayout) + "_" + safeFilename(filename)

	var (
		out  *os.File
		name string
		err  error
	)
	for attempt := 0; attempt < 100; attempt++ {
		name = withSuffix(base, attempt)
		out, err = os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return SavedFile{}, fmt.Errorf("create file: %w", err)
	}
	target := out.Name()
	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(target)
		return SavedFile{}, fmt.Errorf("write file: %w", err)
	}
	return SavedFile{Path: target, Name: name, Size: size}, nil
}

func withSuffix(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(n) + ext
}

func safeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
