package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greengrocer/storefront/internal/repo"
	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/enums"
	"github.com/greengrocer/storefront/pkg/pagination"
)

// Repository reads catalog rows. Stock columns are written by the inventory ledger only.
type Repository struct {
	base repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.Bind(tx)}
}

// FindByID loads the product or returns gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every product that still exists among ids.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.base.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

type listQuery struct {
	category *enums.ProductCategory
	search   string
	limit    int
	cursor   *pagination.Cursor
}

// List returns one page of products ordered by name then id.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Product, error) {
	tx := r.base.DB(ctx).Model(&models.Product{})
	if q.category != nil {
		tx = tx.Where("category = ?", string(*q.category))
	}
	if q.search != "" {
		tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(q.search))+"%")
	}
	if q.cursor != nil {
		tx = tx.Where("(name > ?) OR (name = ? AND id > ?)", q.cursor.Key, q.cursor.Key, q.cursor.ID)
	}

	var rows []models.Product
	if err := tx.Order("name ASC").Order("id ASC").Limit(q.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Featured returns the newest products that can currently be bought.
func (r *Repository) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.base.DB(ctx).
		Where("available = ? AND disabled = ? AND stock > 0", true, false).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// IsNotFound reports whether err means the product row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
