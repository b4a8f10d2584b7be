package repository

import (
	"context"

	"github.com/yeremiapane/table-manager/models"
)

// TableUpdate carries the mutable fields of a table. Nil fields are left as they are.
type TableUpdate struct {
	Name   *string
	Status *models.TableStatus
}

// TableStore is the authoritative collection of tables.
// Implementations must enforce name uniqueness atomically on Insert and Update.
type TableStore interface {
	// FindAll returns every table, newest first.
	FindAll(ctx context.Context) ([]models.Table, error)
	FindByID(ctx context.Context, id string) (*models.Table, error)
	// FindByName matches case-insensitively and returns ErrNotFound when absent.
	FindByName(ctx context.Context, name string) (*models.Table, error)
	Insert(ctx context.Context, name string, status models.TableStatus) (*models.Table, error)
	Update(ctx context.Context, id string, fields TableUpdate) (*models.Table, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[models.TableStatus]int64, error)
}
