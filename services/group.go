package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

type groupStore interface {
	GroupRepository
	UserRepository
	InvitationRepository
}

// memberBalances reports a member's net position; BalanceService satisfies
// it.
type memberBalances interface {
	MemberNet(ctx context.Context, groupID, memberID uuid.UUID) (money.Money, error)
}

type GroupService struct {
	store           groupStore
	balances        memberBalances
	activity        *ActivityService
	notify          *NotificationService
	defaultCurrency string
	log             *zap.Logger
}

func NewGroupService(store groupStore, balances memberBalances, activity *ActivityService, notify *NotificationService, defaultCurrency string, log *zap.Logger) *GroupService {
	return &GroupService{
		store:           store,
		balances:        balances,
		activity:        activity,
		notify:          notify,
		defaultCurrency: defaultCurrency,
		log:             log.Named("group"),
	}
}

func (s *GroupService) userName(ctx context.Context, id uuid.UUID) string {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return "Someone"
	}
	return displayName(*u)
}

// Create makes the caller admin of a new group. Members may be given as
// user ids or emails; emails without an account get an invitation.
func (s *GroupService) Create(ctx context.Context, userID uuid.UUID, req models.CreateGroupRequest) (*models.GroupResponse, error) {
	groupType := req.Type
	if groupType == "" {
		groupType = "other"
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	group := &models.Group{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Type:        groupType,
		Currency:    currency,
		CreatedBy:   userID,
	}
	members := []models.GroupMember{{UserID: userID, Role: models.RoleAdmin}}
	var invites []string
	seen := map[uuid.UUID]bool{userID: true}

	for _, input := range req.Members {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		memberID, err := uuid.Parse(input)
		if err != nil {
			email := utils.NormalizeEmail(input)
			user, lookupErr := s.store.GetUserByEmail(ctx, email)
			if errors.Is(lookupErr, store.ErrNotFound) {
				invites = append(invites, email)
				continue
			}
			if lookupErr != nil {
				return nil, lookupErr
			}
			memberID = user.ID
		} else if _, err := s.store.GetUser(ctx, memberID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, utils.ErrNotFound(utils.CodeUserNotFound, fmt.Sprintf("User %s not found", memberID))
			}
			return nil, err
		}
		if seen[memberID] {
			continue
		}
		seen[memberID] = true
		members = append(members, models.GroupMember{UserID: memberID, Role: models.RoleMember})
	}

	if err := s.store.CreateGroup(ctx, group, members); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	creatorName := s.userName(ctx, userID)
	for _, email := range invites {
		if err := s.invite(ctx, group, userID, creatorName, email); err != nil {
			s.log.Warn("invite on create", zap.String("email", email), zap.Error(err))
		}
	}
	s.activity.Record(ctx, group.ID, userID, models.ActivityGroupCreated, group.ID,
		fmt.Sprintf("%s created group \"%s\"", creatorName, group.Name))

	created, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range created.Members {
		if m.UserID != userID {
			s.notify.NotifyMemberAdded(*created, models.User{ID: userID, Name: creatorName}, m.User)
		}
	}
	resp := created.ToResponse()
	return &resp, nil
}

func (s *GroupService) List(ctx context.Context, userID uuid.UUID) ([]models.GroupResponse, error) {
	groups, err := s.store.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.GroupResponse, 0, len(groups))
	for i := range groups {
		out = append(out, groups[i].ToResponse())
	}
	return out, nil
}

func (s *GroupService) Get(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupResponse, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	resp := group.ToResponse()
	return &resp, nil
}

func (s *GroupService) Update(ctx context.Context, userID, groupID uuid.UUID, req models.UpdateGroupRequest) (*models.GroupResponse, error) {
	if _, err := requireAdmin(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Type != "" {
		updates["type"] = req.Type
	}
	if len(updates) > 0 {
		if err := s.store.UpdateGroup(ctx, groupID, updates); err != nil {
			return nil, fmt.Errorf("update group: %w", err)
		}
		s.activity.Record(ctx, groupID, userID, models.ActivityGroupUpdated, groupID,
			fmt.Sprintf("%s updated the group", s.userName(ctx, userID)))
	}
	return s.Get(ctx, userID, groupID)
}

func (s *GroupService) Delete(ctx context.Context, userID, groupID uuid.UUID) error {
	if _, err := requireAdmin(ctx, s.store, groupID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	s.log.Info("group deleted", zap.String("group_id", groupID.String()), zap.String("by", userID.String()))
	return nil
}

func (s *GroupService) Members(ctx context.Context, userID, groupID uuid.UUID) ([]models.GroupMemberResponse, error) {
	group, err := s.Get(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	return group.Members, nil
}

// AddMemberResult says whether the person joined or was invited.
type AddMemberResult struct {
	Member  *models.GroupMemberResponse `json:"member,omitempty"`
	Invited string                      `json:"invited,omitempty"`
}

// AddMember adds a registered user by id or email. An email with no account
// behind it becomes a pending invitation.
func (s *GroupService) AddMember(ctx context.Context, userID, groupID uuid.UUID, req models.AddMemberRequest) (*AddMemberResult, error) {
	if _, err := requireAdmin(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var target *models.User
	switch {
	case req.UserID != "":
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return nil, utils.ErrValidation("invalid user_id")
		}
		if target, err = s.store.GetUser(ctx, id); errors.Is(err, store.ErrNotFound) {
			return nil, utils.ErrNotFound(utils.CodeUserNotFound, "User not found")
		} else if err != nil {
			return nil, err
		}
	case req.Email != "":
		email := utils.NormalizeEmail(req.Email)
		target, err = s.store.GetUserByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			if err := s.invite(ctx, group, userID, s.userName(ctx, userID), email); err != nil {
				return nil, err
			}
			return &AddMemberResult{Invited: email}, nil
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, utils.ErrValidation("user_id or email is required")
	}

	if _, err := s.store.GetMembership(ctx, groupID, target.ID); err == nil {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeAlreadyMember, "User is already a member of this group")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	member := &models.GroupMember{GroupID: groupID, UserID: target.ID, Role: models.RoleMember}
	if err := s.store.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	adderName := s.userName(ctx, userID)
	s.activity.Record(ctx, groupID, userID, models.ActivityMemberJoined, target.ID,
		fmt.Sprintf("%s added %s", adderName, displayName(*target)))
	s.notify.NotifyMemberAdded(*group, models.User{ID: userID, Name: adderName}, *target)

	return &AddMemberResult{Member: &models.GroupMemberResponse{
		UserID:    target.ID,
		Name:      target.Name,
		Email:     target.Email,
		AvatarURL: target.AvatarURL,
		Role:      member.Role,
		JoinedAt:  member.JoinedAt,
	}}, nil
}

// RemoveMember lets an admin remove anyone, or a member leave. Members who
// still owe or are owed money stay until they settle up.
func (s *GroupService) RemoveMember(ctx context.Context, userID, groupID, memberID uuid.UUID) error {
	requester, err := requireMember(ctx, s.store, groupID, userID)
	if err != nil {
		return err
	}
	if requester.Role != models.RoleAdmin && memberID != userID {
		return utils.ErrForbidden(utils.CodeInsufficientPermission, "Only admins can remove other members")
	}

	target, err := s.store.GetMembership(ctx, groupID, memberID)
	if errors.Is(err, store.ErrNotFound) {
		return utils.ErrNotFound(utils.CodeMemberNotFound, "Member not found in this group")
	}
	if err != nil {
		return err
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleAdmin {
		admins := 0
		for _, m := range group.Members {
			if m.Role == models.RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return utils.NewAppError(http.StatusBadRequest, utils.CodeLastAdmin, "Cannot remove the last admin")
		}
	}

	net, err := s.balances.MemberNet(ctx, groupID, memberID)
	if err != nil {
		return err
	}
	if !money.Settled(net) {
		return utils.NewAppError(http.StatusConflict, utils.CodeOutstandingBalance,
			fmt.Sprintf("Member has an outstanding balance of %s %s", group.Currency, net))
	}

	if err := s.store.RemoveMember(ctx, groupID, memberID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.activity.Record(ctx, groupID, userID, models.ActivityMemberLeft, memberID,
		fmt.Sprintf("%s left %s", s.userName(ctx, memberID), group.Name))
	return nil
}

// invite records a pending invitation for an email with no account and
// emails it.
func (s *GroupService) invite(ctx context.Context, group *models.Group, inviterID uuid.UUID, inviterName, email string) error {
	pending, err := s.store.PendingInvitations(ctx, email)
	if err != nil {
		return err
	}
	for _, inv := range pending {
		if inv.GroupID == group.ID {
			s.log.Debug("invitation already pending", zap.String("email", email), zap.String("group_id", group.ID.String()))
			return nil
		}
	}

	if err := s.store.CreateInvitation(ctx, &models.Invitation{
		GroupID:   group.ID,
		InvitedBy: inviterID,
		Email:     email,
		Status:    models.InvitationPending,
	}); err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	s.notify.NotifyInvitation(email, inviterName, group.Name)
	s.log.Info("invitation sent", zap.String("email", email), zap.String("group_id", group.ID.String()))
	return nil
}

// AcceptInvitations adds a newly registered user to every group that
// invited their email.
func (s *GroupService) AcceptInvitations(ctx context.Context, user models.User) {
	invitations, err := s.store.PendingInvitations(ctx, user.Email)
	if err != nil {
		s.log.Warn("load invitations", zap.String("email", user.Email), zap.Error(err))
		return
	}
	for _, inv := range invitations {
		member := &models.GroupMember{GroupID: inv.GroupID, UserID: user.ID, Role: models.RoleMember}
		if err := s.store.AddMember(ctx, member); err != nil {
			s.log.Warn("accept invitation", zap.String("invitation_id", inv.ID.String()), zap.Error(err))
			continue
		}
		if err := s.store.MarkInvitationAccepted(ctx, inv.ID); err != nil {
			s.log.Warn("mark invitation accepted", zap.String("invitation_id", inv.ID.String()), zap.Error(err))
		}
		groupName := ""
		if g, err := s.store.GetGroup(ctx, inv.GroupID); err == nil {
			groupName = g.Name
		}
		s.activity.Record(ctx, inv.GroupID, user.ID, models.ActivityMemberJoined, user.ID,
			fmt.Sprintf("%s joined %s", displayName(user), groupName))
	}
}
