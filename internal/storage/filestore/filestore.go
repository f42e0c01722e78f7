package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/BearBump/ColisBox/internal/models"
)

// FileStore хранит реестр одним JSON-файлом.
type FileStore struct {
	path string
}

func New(path string) *FileStore {
	return &FileStore{path: path}
}

type fileBody struct {
	Packages []models.PackageRecord `json:"packages"`
}

func (s *FileStore) Load(_ context.Context) ([]models.PackageRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read store file")
	}

	var body fileBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errors.Wrap(err, "decode store file")
	}
	return body.Packages, nil
}

func (s *FileStore) Save(_ context.Context, records []models.PackageRecord) error {
	data, err := json.MarshalIndent(fileBody{Packages: records}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode store file")
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить
	// полузаписанный реестр при падении.
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".colisbox-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "rename store file")
	}
	return nil
}
