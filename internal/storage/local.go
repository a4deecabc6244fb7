// Package storage сохраняет загруженные изображения на локальный диск.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	nanoid "github.com/jaevor/go-nanoid"
)

// Каталоги для разных типов загрузок.
const (
	DirProofs = "proofs"
	DirRanks  = "ranks"
)

// DefaultMaxBytes ограничивает размер загружаемого файла по умолчанию.
const DefaultMaxBytes int64 = 5 << 20

var (
	// ErrEmptyFile возвращается для пустой загрузки.
	ErrEmptyFile = errors.New("empty file")
	// ErrTooLarge возвращается, если файл превышает допустимый размер.
	ErrTooLarge = errors.New("file too large")
	// ErrNotImage возвращается, если содержимое файла не является поддерживаемым изображением.
	ErrNotImage = errors.New("file is not a supported image")
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// LocalStore хранит файлы в каталоге root и формирует для них публичные адреса.
type LocalStore struct {
	root     string
	baseURL  string
	maxBytes int64
	newID    func() string
}

// NewLocalStore создаёт хранилище в каталоге root. publicBaseURL используется для построения ссылок.
func NewLocalStore(root, publicBaseURL string, maxBytes int64) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	for _, dir := range []string{DirProofs, DirRanks} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}

	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("create id generator: %w", err)
	}

	return &LocalStore{
		root:     root,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxBytes: maxBytes,
		newID:    gen,
	}, nil
}

// Root возвращает корневой каталог хранилища.
func (s *LocalStore) Root() string {
	return s.root
}

// MaxBytes возвращает максимальный размер файла.
func (s *LocalStore) MaxBytes() int64 {
	return s.maxBytes
}

// SaveImage проверяет содержимое и сохраняет изображение в каталог dir.
// Возвращает относительный путь сохранённого файла.
func (s *LocalStore) SaveImage(ctx context.Context, dir string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mtype.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := path.Join(dir, s.newID()+mtype.Extension())
	if err := writeFile(filepath.Join(s.root, filepath.FromSlash(rel)), data); err != nil {
		return "", err
	}

	return rel, nil
}

func writeFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		os.Remove(name)
		return fmt.Errorf("write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close file: %w", err)
	}

	return nil
}

// Delete удаляет ранее сохранённый файл. Отсутствующий файл не считается ошибкой.
func (s *LocalStore) Delete(rel string) error {
	clean := path.Clean("/" + rel)
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// URL возвращает публичный адрес файла по относительному пути.
func (s *LocalStore) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.baseURL + "/uploads/" + strings.TrimLeft(rel, "/")
}
