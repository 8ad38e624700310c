package domain

import "gorm.io/gorm"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"` // user | admin
	gorm.Model
}

type UserRole struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null;uniqueIndex:uidx_user_role" json:"user_id"`
	RoleID uint `gorm:"index;not null;uniqueIndex:uidx_user_role" json:"role_id"`
	gorm.Model
}
