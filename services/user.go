package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

type UserService struct {
	store UserRepository
}

func NewUserService(store UserRepository) *UserService {
	return &UserService{store: store}
}

func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*models.UserResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.ErrNotFound(utils.CodeUserNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// Update applies the non-empty fields of req.
func (s *UserService) Update(ctx context.Context, userID uuid.UUID, req models.UpdateUserRequest) (*models.UserResponse, error) {
	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.AvatarURL != "" {
		updates["avatar_url"] = req.AvatarURL
	}
	if req.Currency != "" {
		updates["currency"] = strings.ToUpper(req.Currency)
	}
	if req.FCMToken != "" {
		updates["fcm_token"] = req.FCMToken
	}
	if len(updates) > 0 {
		err := s.store.UpdateUser(ctx, userID, updates)
		if errors.Is(err, store.ErrNotFound) {
			return nil, utils.ErrNotFound(utils.CodeUserNotFound, "User not found")
		}
		if err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, userID)
}
