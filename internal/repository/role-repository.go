package repository

import (
	"errors"

	"github.com/inkpress/account_service/internal/domain"
	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByName(name string) (*domain.Role, error)
	FindByNames(names []string) ([]domain.Role, error)
	List(limit, offset int) ([]domain.Role, error)
	EnsureRole(name string) (*domain.Role, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByName(name string) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByNames(names []string) ([]domain.Role, error) {
	var roles []domain.Role
	if len(names) == 0 {
		return roles, nil
	}
	if err := r.db.Where("name IN ?", names).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) List(limit, offset int) ([]domain.Role, error) {
	var roles []domain.Role
	if err := r.db.Order("id ASC").Limit(limit).Offset(offset).Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// EnsureRole finds the named role, creating it if absent. Repeated calls for
// the same name never create a duplicate; the uniqueIndex on name backstops
// concurrent bootstrap across instances.
func (r *roleRepository) EnsureRole(name string) (*domain.Role, error) {
	if name == "" {
		return nil, errors.New("role name is required")
	}

	var role domain.Role
	err := r.db.Where("name = ?", name).First(&role).Error
	if err == nil {
		return &role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role = domain.Role{Name: name}
	if err := r.db.Create(&role).Error; err != nil {
		// lost a race with another instance; re-read the winner's row
		if findErr := r.db.Where("name = ?", name).First(&role).Error; findErr == nil {
			return &role, nil
		}
		return nil, err
	}
	return &role, nil
}
