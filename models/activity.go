package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActivityGroupCreated        = "group_created"
	ActivityGroupUpdated        = "group_updated"
	ActivityExpenseAdded        = "expense_added"
	ActivityExpenseUpdated      = "expense_updated"
	ActivityExpenseDeleted      = "expense_deleted"
	ActivitySettlementCreated   = "settlement_created"
	ActivitySettlementConfirmed = "settlement_confirmed"
	ActivityMemberJoined        = "member_joined"
	ActivityMemberLeft          = "member_left"
)

type Activity struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID `gorm:"type:uuid;index" json:"group_id"`
	GroupName   string    `gorm:"-" json:"group_name,omitempty"`
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Type        string    `gorm:"not null;size:30" json:"type"`
	ReferenceID uuid.UUID `gorm:"type:uuid" json:"reference_id,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
