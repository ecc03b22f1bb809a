package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

type settlementStore interface {
	GroupRepository
	SettlementRepository
}

// SettlementService records payments between two members. A settlement
// affects balances only after both the payer and the payee confirm it.
type SettlementService struct {
	store    settlementStore
	engine   *ledger.Engine
	activity *ActivityService
	notify   *NotificationService
	log      *zap.Logger
	now      func() time.Time
}

func NewSettlementService(store settlementStore, engine *ledger.Engine, activity *ActivityService, notify *NotificationService, log *zap.Logger) *SettlementService {
	return &SettlementService{store: store, engine: engine, activity: activity, notify: notify, log: log.Named("settlement"), now: time.Now}
}

func parseSettlementParties(req models.CreateSettlementRequest) (groupID, from, to uuid.UUID, err error) {
	if groupID, err = uuid.Parse(req.GroupID); err != nil {
		return groupID, from, to, utils.ErrValidation("invalid group_id")
	}
	if from, err = uuid.Parse(req.FromUserID); err != nil {
		return groupID, from, to, utils.ErrValidation("invalid from_user_id")
	}
	if to, err = uuid.Parse(req.ToUserID); err != nil {
		return groupID, from, to, utils.ErrValidation("invalid to_user_id")
	}
	return groupID, from, to, nil
}

func (s *SettlementService) Create(ctx context.Context, userID uuid.UUID, req models.CreateSettlementRequest) (*models.Settlement, error) {
	groupID, from, to, err := parseSettlementParties(req)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	if userID != from && userID != to {
		return nil, utils.ErrForbidden(utils.CodeInsufficientPermission, "You can only create settlements where you are the payer or payee")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	currency, err := resolveCurrency(req.Currency, group)
	if err != nil {
		return nil, err
	}
	date, err := utils.ParseDate(req.Date)
	if err != nil {
		return nil, utils.ErrValidation("date must be YYYY-MM-DD")
	}

	settlement := &models.Settlement{
		ID:               uuid.New(),
		GroupID:          groupID,
		FromUserID:       from,
		ToUserID:         to,
		Amount:           req.Amount,
		Currency:         currency,
		Notes:            req.Notes,
		Date:             date,
		CreatedBy:        userID,
		ConfirmedByPayer: userID == from,
		ConfirmedByPayee: userID == to,
	}

	// Fold the payment as if confirmed over the current members; this
	// rejects self-payments and parties outside the group.
	check := toLedgerSettlement(*settlement)
	check.ConfirmedByPayer, check.ConfirmedByPayee = true, true
	zero := make(ledger.Balances)
	for _, id := range activeMemberIDs(group) {
		zero[id] = ledger.MemberBalance{MemberID: id}
	}
	if _, err := s.engine.ApplySettlements(zero, []ledger.Settlement{check}); err != nil {
		return nil, utils.LedgerInputError(err)
	}

	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}
	created, err := s.store.GetSettlement(ctx, settlement.ID)
	if err != nil {
		return nil, err
	}

	actor, other := created.Payer, created.Payee
	if userID == to {
		actor, other = created.Payee, created.Payer
	}
	s.activity.Record(ctx, groupID, userID, models.ActivitySettlementCreated, created.ID,
		fmt.Sprintf("%s recorded a payment of %s %s from %s to %s", displayName(actor), currency, created.Amount,
			displayName(created.Payer), displayName(created.Payee)))
	s.notify.NotifySettlement(*created, actor, other, *group, false)

	return created, nil
}

func (s *SettlementService) load(ctx context.Context, userID, settlementID uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.ErrNotFound(utils.CodeSettlementNotFound, "Settlement not found")
	}
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, settlement.GroupID, userID); err != nil {
		return nil, err
	}
	return settlement, nil
}

// Confirm records the caller's side of the confirmation.
func (s *SettlementService) Confirm(ctx context.Context, userID, settlementID uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.load(ctx, userID, settlementID)
	if err != nil {
		return nil, err
	}
	if userID != settlement.FromUserID && userID != settlement.ToUserID {
		return nil, utils.ErrForbidden(utils.CodeInsufficientPermission, "Only the payer or payee can confirm this settlement")
	}
	if settlement.Confirmed() {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeAlreadyConfirmed, "Settlement is already fully confirmed")
	}

	byPayer := userID == settlement.FromUserID
	if (byPayer && settlement.ConfirmedByPayer) || (!byPayer && settlement.ConfirmedByPayee) {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeAlreadyConfirmed, "You have already confirmed this settlement")
	}

	settlement, err = s.store.ConfirmSettlement(ctx, settlement.ID, byPayer, s.now())
	if errors.Is(err, store.ErrAlreadyConfirmed) {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeAlreadyConfirmed, "You have already confirmed this settlement")
	}
	if err != nil {
		return nil, fmt.Errorf("confirm settlement: %w", err)
	}
	actor, other := settlement.Payer, settlement.Payee
	if !byPayer {
		actor, other = settlement.Payee, settlement.Payer
	}

	// Only the call that flips the last flag sees a confirmed row here;
	// the store serializes confirmations per settlement.
	if settlement.Confirmed() {
		s.activity.Record(ctx, settlement.GroupID, userID, models.ActivitySettlementConfirmed, settlement.ID,
			fmt.Sprintf("%s confirmed a payment of %s %s from %s to %s", displayName(actor), settlement.Currency,
				settlement.Amount, displayName(settlement.Payer), displayName(settlement.Payee)))
		if group, err := s.store.GetGroup(ctx, settlement.GroupID); err == nil {
			s.notify.NotifySettlement(*settlement, actor, other, *group, true)
		}
		s.log.Info("settlement confirmed", zap.String("settlement_id", settlement.ID.String()))
	}
	return settlement, nil
}

func (s *SettlementService) Get(ctx context.Context, userID, settlementID uuid.UUID) (*models.Settlement, error) {
	return s.load(ctx, userID, settlementID)
}

func (s *SettlementService) List(ctx context.Context, userID, groupID uuid.UUID) ([]models.Settlement, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListSettlements(ctx, groupID)
}
