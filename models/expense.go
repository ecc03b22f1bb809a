package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/uday169/split-it-app-backend/money"
)

const (
	SplitEqual      = "equal"
	SplitExact      = "exact"
	SplitPercentage = "percentage"
	SplitShares     = "shares"
)

type Expense struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID      `gorm:"type:uuid;index" json:"group_id"`
	PaidBy      uuid.UUID      `gorm:"type:uuid" json:"paid_by"`
	Payer       User           `gorm:"foreignKey:PaidBy" json:"payer,omitempty"`
	CreatedBy   uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	Description string         `gorm:"not null;size:255" json:"description"`
	Amount      money.Money    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency    string         `gorm:"default:INR;size:3" json:"currency"`
	Category    string         `gorm:"size:50" json:"category"`            // food, transport, rent, utilities, entertainment, other
	SplitType   string         `gorm:"not null;size:20" json:"split_type"` // equal, exact, percentage, shares
	Notes       string         `json:"notes,omitempty"`
	ExpenseDate time.Time      `gorm:"type:date;default:CURRENT_DATE" json:"expense_date"`
	Splits      []ExpenseSplit `gorm:"foreignKey:ExpenseID" json:"splits,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type ExpenseSplit struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenseID  uuid.UUID   `gorm:"type:uuid;index" json:"expense_id"`
	UserID     uuid.UUID   `gorm:"type:uuid" json:"user_id"`
	User       User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OwedAmount money.Money `gorm:"type:decimal(12,2);not null" json:"owed_amount"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (es *ExpenseSplit) BeforeCreate(tx *gorm.DB) error {
	if es.ID == uuid.Nil {
		es.ID = uuid.New()
	}
	return nil
}

// Request structs
type CreateExpenseRequest struct {
	Description string       `json:"description" binding:"required,max=255"`
	Amount      money.Money  `json:"amount" binding:"required"`
	Currency    string       `json:"currency" binding:"omitempty,len=3"`
	Category    string       `json:"category"`
	PaidBy      string       `json:"paid_by"` // defaults to the caller
	SplitType   string       `json:"split_type" binding:"required,oneof=equal exact percentage shares"`
	Notes       string       `json:"notes"`
	ExpenseDate string       `json:"expense_date"` // YYYY-MM-DD
	Splits      []SplitInput `json:"splits"`       // participants; values required for exact, percentage, shares
}

// SplitInput names a participant. Value is an exact amount, a percentage or
// a share count depending on the split type, and is ignored for equal
// splits.
type SplitInput struct {
	UserID string          `json:"user_id" binding:"required"`
	Value  decimal.Decimal `json:"value"`
}

type UpdateExpenseRequest struct {
	Description string       `json:"description" binding:"max=255"`
	Amount      money.Money  `json:"amount"`
	Category    string       `json:"category"`
	PaidBy      string       `json:"paid_by"`
	SplitType   string       `json:"split_type" binding:"omitempty,oneof=equal exact percentage shares"`
	Notes       string       `json:"notes"`
	ExpenseDate string       `json:"expense_date"`
	Splits      []SplitInput `json:"splits"`
}

// Response
type ExpenseResponse struct {
	ID          uuid.UUID       `json:"id"`
	GroupID     uuid.UUID       `json:"group_id"`
	PaidBy      uuid.UUID       `json:"paid_by"`
	PayerName   string          `json:"payer_name"`
	CreatedBy   uuid.UUID       `json:"created_by"`
	Description string          `json:"description"`
	Amount      money.Money     `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	SplitType   string          `json:"split_type"`
	Notes       string          `json:"notes,omitempty"`
	ExpenseDate time.Time       `json:"expense_date"`
	Splits      []SplitResponse `json:"splits"`
	CreatedAt   time.Time       `json:"created_at"`
}

type SplitResponse struct {
	UserID     uuid.UUID   `json:"user_id"`
	UserName   string      `json:"user_name"`
	OwedAmount money.Money `json:"owed_amount"`
}

func (e *Expense) ToResponse() ExpenseResponse {
	splits := make([]SplitResponse, 0, len(e.Splits))
	for _, s := range e.Splits {
		splits = append(splits, SplitResponse{
			UserID:     s.UserID,
			UserName:   s.User.Name,
			OwedAmount: s.OwedAmount,
		})
	}
	return ExpenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		PaidBy:      e.PaidBy,
		PayerName:   e.Payer.Name,
		CreatedBy:   e.CreatedBy,
		Description: e.Description,
		Amount:      e.Amount,
		Currency:    e.Currency,
		Category:    e.Category,
		SplitType:   e.SplitType,
		Notes:       e.Notes,
		ExpenseDate: e.ExpenseDate,
		Splits:      splits,
		CreatedAt:   e.CreatedAt,
	}
}
