package repository

import (
	"errors"
	"log"

	"github.com/inkpress/account_service/internal/domain"
	"gorm.io/gorm"
)

// Explicit list of searchable fields for the admin user listing; the search
// term is never interpolated into the predicate.
var userSearchFields = []string{"first_name", "last_name", "display_name", "username", "email"}

type UserRepository interface {
	CreateUser(user *domain.User) (*domain.User, error)
	FindUserByUsername(username string) (*domain.User, error)
	FindUserByEmail(email string) (*domain.User, error)
	FindUserById(userID uint) (*domain.User, error)
	FindUserByResetTokenHash(hash string) (*domain.User, error)
	SaveUser(user *domain.User) error
	DeleteUser(userID uint) error
	SearchUsers(search string, limit, offset int) ([]domain.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, errors.New("nil user")
	}

	if err := r.db.Create(user).Error; err != nil {
		log.Printf("create user error: %v", err)
		return nil, err
	}

	return user, nil
}

func (r *userRepository) FindUserByUsername(username string) (*domain.User, error) {
	user := &domain.User{}

	if err := r.db.First(user, "username = ?", username).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) FindUserByEmail(email string) (*domain.User, error) {
	user := &domain.User{}

	if err := r.db.First(user, "email = ?", email).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) FindUserById(userID uint) (*domain.User, error) {
	user := &domain.User{}

	if err := r.db.First(user, userID).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) FindUserByResetTokenHash(hash string) (*domain.User, error) {
	user := &domain.User{}

	if err := r.db.Where("reset_token_hash = ?", hash).First(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) SaveUser(user *domain.User) error {
	if user == nil {
		return errors.New("nil user")
	}

	if err := r.db.Save(user).Error; err != nil {
		log.Printf("save user error: %v", err)
		return err
	}
	return nil
}

func (r *userRepository) DeleteUser(userID uint) error {
	if userID == 0 {
		return errors.New("invalid user_id")
	}

	// hard delete: the unique username/email must become reusable, and the
	// authored articles and role links go first or their FKs block the user row
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&domain.Article{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&domain.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&domain.User{}, userID).Error
	})
}

func (r *userRepository) SearchUsers(search string, limit, offset int) ([]domain.User, int64, error) {
	q := r.db.Model(&domain.User{})

	if search != "" {
		pattern := "%" + search + "%"
		cond := r.db.Where(userSearchFields[0]+" ILIKE ?", pattern)
		for _, field := range userSearchFields[1:] {
			cond = cond.Or(field+" ILIKE ?", pattern)
		}
		q = q.Where(cond)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []domain.User
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
