package repository

import (
	"github.com/inkpress/account_service/internal/domain"
	"gorm.io/gorm"
)

type AuditRepository interface {
	CreateEntry(entry *domain.AuditLog) error
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (a *auditRepository) CreateEntry(entry *domain.AuditLog) error {
	return a.db.Create(entry).Error
}
