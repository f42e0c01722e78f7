package storage

import (
	"context"

	"github.com/BearBump/ColisBox/internal/models"
)

// Store — коллаборатор персистентности: целиком загрузить/сохранить список
// посылок. Никакой частичной записи: last-writer-wins нас устраивает,
// активный процесс один.
type Store interface {
	Load(ctx context.Context) ([]models.PackageRecord, error)
	Save(ctx context.Context, records []models.PackageRecord) error
}
