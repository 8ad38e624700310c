package domain

import (
	"time"

	"gorm.io/gorm"
)

const ProviderLocal = "local"

type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName   string `gorm:"not null" json:"first_name"`
	LastName    string `gorm:"not null" json:"last_name"`
	DisplayName string `json:"display_name"`

	// base64-encoded; present only for local-provider accounts
	PasswordHash string `json:"-"`
	Salt         string `json:"-"`

	Provider     string         `gorm:"type:varchar(50);not null;default:local" json:"provider"`
	ProviderData map[string]any `gorm:"serializer:json;type:jsonb" json:"provider_data,omitempty"`

	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	gorm.Model
}

// IsLocal reports whether the account authenticates with a stored credential.
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal
}
