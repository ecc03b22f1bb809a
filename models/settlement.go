package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uday169/split-it-app-backend/money"
)

// Settlement records a payment FromUserID -> ToUserID. It only counts
// towards balances once both sides have confirmed it.
type Settlement struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID          uuid.UUID   `gorm:"type:uuid;index" json:"group_id"`
	FromUserID       uuid.UUID   `gorm:"type:uuid" json:"from_user_id"`
	Payer            User        `gorm:"foreignKey:FromUserID" json:"payer,omitempty"`
	ToUserID         uuid.UUID   `gorm:"type:uuid" json:"to_user_id"`
	Payee            User        `gorm:"foreignKey:ToUserID" json:"payee,omitempty"`
	Amount           money.Money `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency         string      `gorm:"default:INR;size:3" json:"currency"`
	Notes            string      `json:"notes,omitempty"`
	Date             time.Time   `gorm:"type:date;default:CURRENT_DATE" json:"date"`
	CreatedBy        uuid.UUID   `gorm:"type:uuid" json:"created_by"`
	ConfirmedByPayer bool        `gorm:"default:false" json:"confirmed_by_payer"`
	ConfirmedByPayee bool        `gorm:"default:false" json:"confirmed_by_payee"`
	ConfirmedAt      *time.Time  `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Settlement) Confirmed() bool {
	return s.ConfirmedByPayer && s.ConfirmedByPayee
}

type CreateSettlementRequest struct {
	GroupID    string      `json:"group_id" binding:"required,uuid"`
	FromUserID string      `json:"from_user_id" binding:"required,uuid"`
	ToUserID   string      `json:"to_user_id" binding:"required,uuid"`
	Amount     money.Money `json:"amount" binding:"required"`
	Currency   string      `json:"currency" binding:"omitempty,len=3"`
	Notes      string      `json:"notes"`
	Date       string      `json:"date"` // YYYY-MM-DD
}
