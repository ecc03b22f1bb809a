package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/utils"
)

type activityStore interface {
	ActivityRepository
	GroupRepository
}

type ActivityService struct {
	store activityStore
	log   *zap.Logger
}

func NewActivityService(store activityStore, log *zap.Logger) *ActivityService {
	return &ActivityService{store: store, log: log.Named("activity")}
}

// Record stores a feed entry. The feed is informational, so a failed write
// is logged and swallowed.
func (s *ActivityService) Record(ctx context.Context, groupID, userID uuid.UUID, kind string, ref uuid.UUID, description string) {
	err := s.store.CreateActivity(ctx, &models.Activity{
		GroupID:     groupID,
		UserID:      userID,
		Type:        kind,
		ReferenceID: ref,
		Description: description,
	})
	if err != nil {
		s.log.Warn("record activity", zap.String("type", kind), zap.String("group_id", groupID.String()), zap.Error(err))
	}
}

// ForUser is the feed across every group the user belongs to.
func (s *ActivityService) ForUser(ctx context.Context, userID uuid.UUID, page utils.PaginationQuery) ([]models.Activity, error) {
	page.Normalize()
	groups, err := s.store.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(groups))
	names := make(map[uuid.UUID]string, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
		names[g.ID] = g.Name
	}

	activities, err := s.store.ListActivity(ctx, ids, page.Limit, page.Offset())
	if err != nil {
		return nil, err
	}
	for i := range activities {
		activities[i].GroupName = names[activities[i].GroupID]
	}
	return activities, nil
}

func (s *ActivityService) ForGroup(ctx context.Context, userID, groupID uuid.UUID, page utils.PaginationQuery) ([]models.Activity, error) {
	page.Normalize()
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListActivity(ctx, []uuid.UUID{groupID}, page.Limit, page.Offset())
}
