package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Group struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string        `gorm:"not null;size:100" json:"name"`
	Description string        `gorm:"size:500" json:"description,omitempty"`
	Type        string        `gorm:"default:other;size:20" json:"type"` // home, trip, couple, other
	Currency    string        `gorm:"default:INR;size:3" json:"currency"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid" json:"created_by"`
	Members     []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type GroupMember struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role     string    `gorm:"default:member;size:20" json:"role"` // admin, member
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
	// LeftAt is set when the member leaves. Former members stay in the
	// table so their expense history still resolves.
	LeftAt *time.Time `gorm:"index" json:"left_at,omitempty"`
}

func (m *GroupMember) Active() bool {
	return m.LeftAt == nil
}

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

// Invitation holds a group seat for an email that has no account yet. It is
// accepted automatically when that email first signs in.
type Invitation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID    uuid.UUID  `gorm:"type:uuid;index" json:"group_id"`
	InvitedBy  uuid.UUID  `gorm:"type:uuid" json:"invited_by"`
	Email      string     `gorm:"index;size:255" json:"email"`
	Status     string     `gorm:"default:pending;size:20" json:"status"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Request structs
type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required,max=100"`
	Description string   `json:"description" binding:"max=500"`
	Type        string   `json:"type" binding:"omitempty,oneof=home trip couple other"`
	Currency    string   `json:"currency" binding:"omitempty,len=3"`
	Members     []string `json:"members"` // list of user IDs or emails
}

type UpdateGroupRequest struct {
	Name        string `json:"name" binding:"max=100"`
	Description string `json:"description" binding:"max=500"`
	Type        string `json:"type" binding:"omitempty,oneof=home trip couple other"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email" binding:"omitempty,email"`
}

// Response structs
type GroupResponse struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Type        string                `json:"type"`
	Currency    string                `json:"currency"`
	CreatedBy   uuid.UUID             `json:"created_by"`
	Members     []GroupMemberResponse `json:"members"`
	CreatedAt   time.Time             `json:"created_at"`
}

type GroupMemberResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

func (g *Group) ToResponse() GroupResponse {
	members := make([]GroupMemberResponse, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, GroupMemberResponse{
			UserID:    m.UserID,
			Name:      m.User.Name,
			Email:     m.User.Email,
			AvatarURL: m.User.AvatarURL,
			Role:      m.Role,
			JoinedAt:  m.JoinedAt,
		})
	}
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Type:        g.Type,
		Currency:    g.Currency,
		CreatedBy:   g.CreatedBy,
		Members:     members,
		CreatedAt:   g.CreatedAt,
	}
}
