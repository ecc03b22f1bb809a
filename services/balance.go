package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

type balanceStore interface {
	GroupRepository
	SnapshotLoader
}

// BalanceService derives balances at read time from a consistent snapshot
// of a group's expenses and confirmed settlements. Nothing derived is ever
// stored.
type BalanceService struct {
	store       balanceStore
	engine      *ledger.Engine
	maxExpenses int
	log         *zap.Logger
}

func NewBalanceService(store balanceStore, engine *ledger.Engine, maxExpenses int, log *zap.Logger) *BalanceService {
	return &BalanceService{store: store, engine: engine, maxExpenses: maxExpenses, log: log.Named("balance")}
}

// groupLedger is the computed state of one group.
type groupLedger struct {
	group     models.Group
	balances  ledger.Balances
	transfers []ledger.Transfer
	users     map[string]models.User
	active    map[string]bool
	spent     money.Money
}

func (s *BalanceService) compute(ctx context.Context, groupID uuid.UUID) (*groupLedger, error) {
	snap, err := s.store.LoadSnapshot(ctx, groupID, s.maxExpenses)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.ErrNotFound(utils.CodeGroupNotFound, "Group not found")
	}
	if err != nil {
		return nil, err
	}

	gl := &groupLedger{
		group:  snap.Group,
		users:  make(map[string]models.User, len(snap.Group.Members)),
		active: make(map[string]bool, len(snap.Group.Members)),
	}
	members := make([]string, 0, len(snap.Group.Members))
	for _, m := range snap.Group.Members {
		id := m.UserID.String()
		members = append(members, id)
		gl.users[id] = m.User
		gl.active[id] = m.Active()
	}

	expenses := make([]ledger.Expense, 0, len(snap.Expenses))
	for _, e := range snap.Expenses {
		le := ledger.Expense{
			ID:     e.ID.String(),
			PaidBy: e.PaidBy.String(),
			Amount: e.Amount,
			Splits: make([]ledger.Split, 0, len(e.Splits)),
		}
		for _, sp := range e.Splits {
			le.Splits = append(le.Splits, ledger.Split{MemberID: sp.UserID.String(), Amount: sp.OwedAmount})
		}
		expenses = append(expenses, le)
		gl.spent = gl.spent.Add(e.Amount)
	}

	settlements := make([]ledger.Settlement, 0, len(snap.Settlements))
	for _, st := range snap.Settlements {
		settlements = append(settlements, toLedgerSettlement(st))
	}

	balances, err := s.engine.Aggregate(members, expenses)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}
	if balances, err = s.engine.ApplySettlements(balances, settlements); err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}
	transfers, err := s.engine.Simplify(balances)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}

	gl.balances = balances
	gl.transfers = transfers
	return gl, nil
}

func toLedgerSettlement(st models.Settlement) ledger.Settlement {
	return ledger.Settlement{
		ID:               st.ID.String(),
		From:             st.FromUserID.String(),
		To:               st.ToUserID.String(),
		Amount:           st.Amount,
		ConfirmedByPayer: st.ConfirmedByPayer,
		ConfirmedByPayee: st.ConfirmedByPayee,
	}
}

func (gl *groupLedger) name(id string) string {
	return displayName(gl.users[id])
}

// GroupBalances returns every member's position and the simplified list of
// payments that settles the group.
func (s *BalanceService) GroupBalances(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupBalanceSummary, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	gl, err := s.compute(ctx, groupID)
	if err != nil {
		return nil, err
	}

	summary := &models.GroupBalanceSummary{
		GroupID:            gl.group.ID,
		GroupName:          gl.group.Name,
		Currency:           gl.group.Currency,
		TotalSpent:         gl.spent,
		Balances:           make([]models.MemberBalance, 0, len(gl.balances)),
		SimplifiedBalances: make([]models.Balance, 0, len(gl.transfers)),
	}
	for _, b := range gl.balances.Sorted() {
		// Former members only show while they still owe or are owed.
		if !gl.active[b.MemberID] && b.Net.IsZero() {
			continue
		}
		summary.Balances = append(summary.Balances, models.MemberBalance{
			UserID:    uuid.MustParse(b.MemberID),
			UserName:  gl.name(b.MemberID),
			TotalPaid: b.TotalPaid,
			TotalOwed: b.TotalOwed,
			Balance:   b.Net,
		})
	}
	for _, t := range gl.transfers {
		summary.SimplifiedBalances = append(summary.SimplifiedBalances, models.Balance{
			FromUserID:   uuid.MustParse(t.From),
			FromUserName: gl.name(t.From),
			ToUserID:     uuid.MustParse(t.To),
			ToUserName:   gl.name(t.To),
			Amount:       t.Amount,
		})
	}
	return summary, nil
}

// MyBalance is the caller's view of one group: net position and who they
// pay or get paid by under the simplified plan.
func (s *BalanceService) MyBalance(ctx context.Context, userID, groupID uuid.UUID) (*models.UserGroupBalance, error) {
	if _, err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}
	gl, err := s.compute(ctx, groupID)
	if err != nil {
		return nil, err
	}

	me := userID.String()
	out := &models.UserGroupBalance{
		UserID:     userID,
		GroupID:    groupID,
		NetBalance: gl.balances[me].Net,
		Owes:       []models.Counterparty{},
		OwedBy:     []models.Counterparty{},
	}
	for _, t := range gl.transfers {
		switch me {
		case t.From:
			out.Owes = append(out.Owes, models.Counterparty{UserID: uuid.MustParse(t.To), UserName: gl.name(t.To), Amount: t.Amount})
		case t.To:
			out.OwedBy = append(out.OwedBy, models.Counterparty{UserID: uuid.MustParse(t.From), UserName: gl.name(t.From), Amount: t.Amount})
		}
	}
	return out, nil
}

// MemberNet is a member's current net position in a group.
func (s *BalanceService) MemberNet(ctx context.Context, groupID, memberID uuid.UUID) (money.Money, error) {
	gl, err := s.compute(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return gl.balances[memberID.String()].Net, nil
}

// Overall nets the caller's simplified debts across all groups per friend
// and currency.
func (s *BalanceService) Overall(ctx context.Context, userID uuid.UUID) (*models.OverallBalanceSummary, error) {
	groupIDs, err := s.store.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	type friendKey struct {
		id       string
		currency string
	}
	amounts := make(map[friendKey]money.Money)
	users := make(map[string]models.User)
	me := userID.String()
	var skipped []uuid.UUID

	for _, groupID := range groupIDs {
		gl, err := s.compute(ctx, groupID)
		if err != nil {
			var appErr *utils.AppError
			switch {
			case errors.As(err, &appErr) && appErr.Code == utils.CodeGroupNotFound:
				s.log.Debug("group vanished while summing balances", zap.String("group_id", groupID.String()))
				continue
			case errors.Is(err, store.ErrTooManyExpenses):
				s.log.Warn("group too large for overall balances, skipping",
					zap.String("group_id", groupID.String()), zap.Error(err))
				skipped = append(skipped, groupID)
				continue
			}
			return nil, err
		}
		for _, t := range gl.transfers {
			switch me {
			case t.From:
				k := friendKey{t.To, gl.group.Currency}
				amounts[k] = amounts[k].Sub(t.Amount)
				users[t.To] = gl.users[t.To]
			case t.To:
				k := friendKey{t.From, gl.group.Currency}
				amounts[k] = amounts[k].Add(t.Amount)
				users[t.From] = gl.users[t.From]
			}
		}
	}

	summary := &models.OverallBalanceSummary{
		Totals:        []models.CurrencyTotals{},
		Friends:       []models.FriendBalance{},
		SkippedGroups: skipped,
	}
	totals := make(map[string]*models.CurrencyTotals)
	for k, amount := range amounts {
		if money.Settled(amount) {
			continue
		}
		u := users[k.id]
		summary.Friends = append(summary.Friends, models.FriendBalance{
			UserID:    uuid.MustParse(k.id),
			Name:      displayName(u),
			Email:     u.Email,
			AvatarURL: u.AvatarURL,
			Amount:    amount,
			Currency:  k.currency,
		})

		t, ok := totals[k.currency]
		if !ok {
			t = &models.CurrencyTotals{Currency: k.currency}
			totals[k.currency] = t
		}
		if amount.IsPositive() {
			t.TotalOwed = t.TotalOwed.Add(amount)
		} else {
			t.TotalOwing = t.TotalOwing.Add(amount.Abs())
		}
	}

	for _, t := range totals {
		summary.Totals = append(summary.Totals, *t)
	}
	sort.Slice(summary.Totals, func(i, j int) bool { return summary.Totals[i].Currency < summary.Totals[j].Currency })
	sort.Slice(summary.Friends, func(i, j int) bool {
		a, b := summary.Friends[i], summary.Friends[j]
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UserID.String() < b.UserID.String()
	})
	return summary, nil
}
