package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

type expenseStore interface {
	GroupRepository
	ExpenseRepository
	UserRepository
}

type ExpenseService struct {
	store    expenseStore
	engine   *ledger.Engine
	activity *ActivityService
	notify   *NotificationService
	log      *zap.Logger
}

func NewExpenseService(store expenseStore, engine *ledger.Engine, activity *ActivityService, notify *NotificationService, log *zap.Logger) *ExpenseService {
	return &ExpenseService{store: store, engine: engine, activity: activity, notify: notify, log: log.Named("expense")}
}

// checkAgainstLedger folds the single expense over the group's current
// members; it rejects payers or participants who are not in the group and
// negative splits.
func (s *ExpenseService) checkAgainstLedger(group *models.Group, expense *models.Expense) error {
	le := ledger.Expense{
		ID:     expense.ID.String(),
		PaidBy: expense.PaidBy.String(),
		Amount: expense.Amount,
	}
	for _, sp := range expense.Splits {
		le.Splits = append(le.Splits, ledger.Split{MemberID: sp.UserID.String(), Amount: sp.OwedAmount})
	}
	_, err := s.engine.Aggregate(activeMemberIDs(group), []ledger.Expense{le})
	return utils.LedgerInputError(err)
}

func validateAmount(amount money.Money) error {
	if !amount.IsPositive() {
		return utils.ErrValidation("amount must be greater than zero")
	}
	if !amount.InRange() {
		return utils.ErrValidation("amount is too large")
	}
	return nil
}

func resolveCurrency(requested string, group *models.Group) (string, error) {
	if requested == "" {
		return group.Currency, nil
	}
	if !strings.EqualFold(requested, group.Currency) {
		return "", utils.ErrValidation(fmt.Sprintf("expenses in this group must be in %s", group.Currency))
	}
	return group.Currency, nil
}

// participantsOrAll defaults an equal split with no participants to the
// whole group.
func participantsOrAll(splitType string, ps []participant, group *models.Group) []participant {
	if len(ps) > 0 || splitType != models.SplitEqual {
		return ps
	}
	for _, m := range group.Members {
		ps = append(ps, participant{userID: m.UserID})
	}
	return ps
}

func (s *ExpenseService) Create(ctx context.Context, userID, groupID uuid.UUID, req models.CreateExpenseRequest) (*models.ExpenseResponse, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	currency, err := resolveCurrency(req.Currency, group)
	if err != nil {
		return nil, err
	}

	payer := userID
	if req.PaidBy != "" {
		if payer, err = uuid.Parse(req.PaidBy); err != nil {
			return nil, utils.ErrValidation("invalid paid_by")
		}
	}
	date, err := utils.ParseDate(req.ExpenseDate)
	if err != nil {
		return nil, utils.ErrValidation("expense_date must be YYYY-MM-DD")
	}

	ps, err := parseParticipants(req.Splits)
	if err != nil {
		return nil, err
	}
	splits, err := buildSplits(req.SplitType, req.Amount, payer, participantsOrAll(req.SplitType, ps, group))
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ID:          uuid.New(),
		GroupID:     groupID,
		PaidBy:      payer,
		CreatedBy:   userID,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Currency:    currency,
		Category:    req.Category,
		SplitType:   req.SplitType,
		Notes:       req.Notes,
		ExpenseDate: date,
		Splits:      splits,
	}
	if err := s.checkAgainstLedger(group, expense); err != nil {
		return nil, err
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	created, err := s.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return nil, err
	}
	s.activity.Record(ctx, groupID, userID, models.ActivityExpenseAdded, expense.ID,
		fmt.Sprintf("%s added \"%s\" (%s %s)", displayName(created.Payer), expense.Description, currency, expense.Amount))
	s.notify.NotifyExpenseAdded(*created, created.Payer, *group)

	s.log.Info("expense created",
		zap.String("expense_id", expense.ID.String()),
		zap.String("group_id", groupID.String()),
		zap.Stringer("amount", expense.Amount))

	resp := created.ToResponse()
	return &resp, nil
}

func (s *ExpenseService) List(ctx context.Context, userID, groupID uuid.UUID, page utils.PaginationQuery) ([]models.ExpenseResponse, error) {
	page.Normalize()
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpenses(ctx, groupID, page.Limit, page.Offset())
	if err != nil {
		return nil, err
	}
	out := make([]models.ExpenseResponse, 0, len(expenses))
	for i := range expenses {
		out = append(out, expenses[i].ToResponse())
	}
	return out, nil
}

// load fetches an expense the caller may see.
func (s *ExpenseService) load(ctx context.Context, userID, expenseID uuid.UUID) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.ErrNotFound(utils.CodeExpenseNotFound, "Expense not found")
	}
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, expense.GroupID, userID); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, expenseID uuid.UUID) (*models.ExpenseResponse, error) {
	expense, err := s.load(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}
	resp := expense.ToResponse()
	return &resp, nil
}

// Update lets the creator edit an expense. Changing the amount, split type,
// payer or participants recomputes every split.
func (s *ExpenseService) Update(ctx context.Context, userID, expenseID uuid.UUID, req models.UpdateExpenseRequest) (*models.ExpenseResponse, error) {
	expense, err := s.load(ctx, userID, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.CreatedBy != userID {
		return nil, utils.NewAppError(http.StatusForbidden, utils.CodeInsufficientPermission, "Only the creator can update this expense")
	}
	group, err := s.store.GetGroup(ctx, expense.GroupID)
	if err != nil {
		return nil, err
	}

	if req.Description != "" {
		expense.Description = strings.TrimSpace(req.Description)
	}
	if req.Category != "" {
		expense.Category = req.Category
	}
	if req.Notes != "" {
		expense.Notes = req.Notes
	}
	if req.ExpenseDate != "" {
		if expense.ExpenseDate, err = utils.ParseDate(req.ExpenseDate); err != nil {
			return nil, utils.ErrValidation("expense_date must be YYYY-MM-DD")
		}
	}

	resplit := false
	if req.Amount != 0 {
		if err := validateAmount(req.Amount); err != nil {
			return nil, err
		}
		expense.Amount = req.Amount
		resplit = true
	}
	if req.PaidBy != "" {
		payer, err := uuid.Parse(req.PaidBy)
		if err != nil {
			return nil, utils.ErrValidation("invalid paid_by")
		}
		expense.PaidBy = payer
		resplit = true
	}
	if req.SplitType != "" && req.SplitType != expense.SplitType {
		expense.SplitType = req.SplitType
		resplit = true
	}

	if resplit || len(req.Splits) > 0 {
		ps, err := parseParticipants(req.Splits)
		if err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			ps, err = existingParticipants(expense)
			if err != nil {
				return nil, err
			}
		}
		if expense.Splits, err = buildSplits(expense.SplitType, expense.Amount, expense.PaidBy, ps); err != nil {
			return nil, err
		}
	}

	if err := s.checkAgainstLedger(group, expense); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}

	updated, err := s.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return nil, err
	}
	editor, _ := s.store.GetUser(ctx, userID)
	editorName := "Someone"
	if editor != nil {
		editorName = displayName(*editor)
	}
	s.activity.Record(ctx, expense.GroupID, userID, models.ActivityExpenseUpdated, expense.ID,
		fmt.Sprintf("%s updated \"%s\"", editorName, expense.Description))

	resp := updated.ToResponse()
	return &resp, nil
}

// existingParticipants reuses the stored participants when the request
// does not name new ones. Only equal and exact splits can be rebuilt that
// way; percentages and share counts are not stored.
func existingParticipants(expense *models.Expense) ([]participant, error) {
	switch expense.SplitType {
	case models.SplitEqual, models.SplitExact:
	default:
		return nil, utils.ErrValidation(fmt.Sprintf("splits are required to re-split a %s expense", expense.SplitType))
	}
	ps := make([]participant, 0, len(expense.Splits))
	for _, sp := range expense.Splits {
		ps = append(ps, participant{userID: sp.UserID, value: sp.OwedAmount.Decimal()})
	}
	return ps, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, expenseID uuid.UUID) error {
	expense, err := s.load(ctx, userID, expenseID)
	if err != nil {
		return err
	}
	if expense.CreatedBy != userID {
		return utils.NewAppError(http.StatusForbidden, utils.CodeInsufficientPermission, "Only the creator can delete this expense")
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	deleter, _ := s.store.GetUser(ctx, userID)
	name := "Someone"
	if deleter != nil {
		name = displayName(*deleter)
	}
	s.activity.Record(ctx, expense.GroupID, userID, models.ActivityExpenseDeleted, expense.ID,
		fmt.Sprintf("%s deleted \"%s\" (%s %s)", name, expense.Description, expense.Currency, expense.Amount))
	return nil
}
