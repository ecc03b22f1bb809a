package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	FCMToken  string    `json:"-"`
	Currency  string    `gorm:"default:INR;size:3" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Response struct (what we return to clients)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Currency:  u.Currency,
		CreatedAt: u.CreatedAt,
	}
}

type UpdateUserRequest struct {
	Name      string `json:"name" binding:"omitempty,min=1,max=100"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url"`
	Currency  string `json:"currency" binding:"omitempty,len=3"`
	FCMToken  string `json:"fcm_token"`
}
