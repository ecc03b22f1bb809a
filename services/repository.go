package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

// The repository interfaces below are satisfied by *store.Store.

type UserRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

type OTPRepository interface {
	CreateOTP(ctx context.Context, otp *models.EmailOTP) error
	LatestOTP(ctx context.Context, email string) (*models.EmailOTP, error)
	CountOTPsSince(ctx context.Context, email string, since time.Time) (int64, error)
	UpdateOTP(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *models.Group, members []models.GroupMember) error
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListUserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	GroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UpdateGroup(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteGroup(ctx context.Context, id uuid.UUID) error
	GetMembership(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error)
	AddMember(ctx context.Context, member *models.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
}

type ExpenseRepository interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	ListExpenses(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]models.Expense, error)
	ReplaceExpense(ctx context.Context, expense *models.Expense) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error
}

type SettlementRepository interface {
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error
	GetSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	ListSettlements(ctx context.Context, groupID uuid.UUID) ([]models.Settlement, error)
	ConfirmSettlement(ctx context.Context, id uuid.UUID, byPayer bool, at time.Time) (*models.Settlement, error)
}

type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	ListActivity(ctx context.Context, groupIDs []uuid.UUID, limit, offset int) ([]models.Activity, error)
}

type InvitationRepository interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	PendingInvitations(ctx context.Context, email string) ([]models.Invitation, error)
	MarkInvitationAccepted(ctx context.Context, id uuid.UUID) error
}

type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, groupID uuid.UUID, maxExpenses int) (*store.Snapshot, error)
}

// Repository is everything the services read and write.
type Repository interface {
	UserRepository
	OTPRepository
	GroupRepository
	ExpenseRepository
	SettlementRepository
	ActivityRepository
	InvitationRepository
	SnapshotLoader
}

var _ Repository = (*store.Store)(nil)

// requireMember returns the caller's membership, or GROUP_NOT_FOUND /
// NOT_A_MEMBER.
func requireMember(ctx context.Context, groups GroupRepository, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	m, err := groups.GetMembership(ctx, groupID, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := groups.GetGroup(ctx, groupID); errors.Is(err, store.ErrNotFound) {
		return nil, utils.ErrNotFound(utils.CodeGroupNotFound, "Group not found")
	} else if err != nil {
		return nil, err
	}
	return nil, utils.ErrNotMember()
}

func requireAdmin(ctx context.Context, groups GroupRepository, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	m, err := requireMember(ctx, groups, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role != models.RoleAdmin {
		return nil, utils.ErrForbidden(utils.CodeInsufficientPermission, "Admin role required")
	}
	return m, nil
}

// activeMemberIDs lists the ids of a loaded group's current members.
func activeMemberIDs(g *models.Group) []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m.Active() {
			ids = append(ids, m.UserID.String())
		}
	}
	return ids
}

func displayName(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
