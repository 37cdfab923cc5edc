package repository

import (
	"context"
	"errors"
	"fmt"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrBrokenHierarchy = errors.New("administration hierarchy is inconsistent")

// HierarchyRepository reads the administration tree. The tree itself is
// maintained by another service.
type HierarchyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Administration, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Administration, error)
	Ancestors(ctx context.Context, id uuid.UUID) ([]model.Administration, error)
}

type hierarchyRepository struct {
	db *gorm.DB
}

func NewHierarchyRepository(db *gorm.DB) HierarchyRepository {
	return &hierarchyRepository{db: db}
}

func (r *hierarchyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Administration, error) {
	var adm model.Administration
	if err := GetDB(ctx, r.db).First(&adm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &adm, nil
}

func (r *hierarchyRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Administration, error) {
	var items []model.Administration
	if len(ids) == 0 {
		return items, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Order("level asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Ancestors returns the ancestors of id ordered root first, excluding id itself.
func (r *hierarchyRepository) Ancestors(ctx context.Context, id uuid.UUID) ([]model.Administration, error) {
	adm, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ids, err := adm.AncestorIDs()
	if err != nil {
		return nil, fmt.Errorf("%w: bad path on %s: %v", ErrBrokenHierarchy, adm.ID, err)
	}
	ancestors, err := r.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := CheckAncestry(*adm, ancestors); err != nil {
		return nil, err
	}
	return ancestors, nil
}

// CheckAncestry verifies that ancestors start at the root and get strictly
// more local up to the parent of adm.
func CheckAncestry(adm model.Administration, ancestors []model.Administration) error {
	ids, err := adm.AncestorIDs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrokenHierarchy, err)
	}
	if len(ids) != len(ancestors) {
		return fmt.Errorf("%w: %s expects %d ancestors, found %d", ErrBrokenHierarchy, adm.ID, len(ids), len(ancestors))
	}
	for i, a := range ancestors {
		if a.ID != ids[i] {
			return fmt.Errorf("%w: ancestor %d of %s is %s, expected %s", ErrBrokenHierarchy, i, adm.ID, a.ID, ids[i])
		}
		if i == 0 && !a.Level.IsRoot() {
			return fmt.Errorf("%w: chain of %s does not start at the root", ErrBrokenHierarchy, adm.ID)
		}
		if i > 0 && !a.Level.MoreLocalThan(ancestors[i-1].Level) {
			return fmt.Errorf("%w: levels not increasing along %s", ErrBrokenHierarchy, adm.ID)
		}
	}
	if len(ancestors) > 0 && !adm.Level.MoreLocalThan(ancestors[len(ancestors)-1].Level) {
		return fmt.Errorf("%w: %s is not below its parent", ErrBrokenHierarchy, adm.ID)
	}
	return nil
}
