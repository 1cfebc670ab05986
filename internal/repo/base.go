package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

// Base carries the connection a domain repository runs on: the pool, or a
// transaction after Bound.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds ctx to the connection. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bound returns a copy of b that runs on tx.
func (b Base) Bound(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// FindOne loads the first T matching cond. A missing row surfaces as
// gorm.ErrRecordNotFound so callers can tell absence from failure.
func FindOne[T any](db *gorm.DB, cond string, args ...any) (*T, error) {
	var row T
	if err := db.Where(cond, args...).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID is FindOne keyed on the primary key.
func FindByID[T any](db *gorm.DB, id uuid.UUID) (*T, error) {
	return FindOne[T](db, "id = ?", id)
}

// SetColumns writes values onto the T row with the given id, skipping hooks
// and the automatic updated_at.
func SetColumns[T any](db *gorm.DB, id uuid.UUID, values map[string]any) error {
	return db.Model(new(T)).Where("id = ?", id).UpdateColumns(values).Error
}

// MapError converts persistence failures into the error taxonomy: missing rows
// become NOT_FOUND with the given message, everything else DEPENDENCY_ERROR.
func MapError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage unavailable")
	}
}
