package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailOTP is a one-time login code. Only the bcrypt hash of the code is
// stored.
type EmailOTP struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"index;not null;size:255" json:"email"`
	CodeHash  string    `gorm:"not null;size:100" json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `gorm:"default:0" json:"attempts"`
	Verified  bool      `gorm:"default:false" json:"verified"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (o *EmailOTP) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}
