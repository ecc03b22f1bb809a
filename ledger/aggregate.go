// Package ledger computes group balances from expense history and reduces
// them to a short list of settling transfers.
//
// The package is pure: it takes plain data and returns plain data, keeps no
// state between calls and is safe for concurrent use. Callers are expected
// to hand it a consistent snapshot of a group's records.
package ledger

import (
	"sort"

	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/money"
)

// Split is one member's share of an expense.
type Split struct {
	MemberID string
	Amount   money.Money
}

// Expense is the subset of an expense record the ledger needs.
type Expense struct {
	ID     string
	PaidBy string
	Amount money.Money
	Splits []Split
}

// MemberBalance is a member's position in a group. Positive Net means the
// group owes the member; negative means the member owes the group.
type MemberBalance struct {
	MemberID  string
	TotalPaid money.Money
	TotalOwed money.Money
	Net       money.Money
}

// Balances maps member id to balance.
type Balances map[string]MemberBalance

// Sorted returns the balances ordered by member id.
func (b Balances) Sorted() []MemberBalance {
	out := make([]MemberBalance, 0, len(b))
	for _, mb := range b {
		out = append(out, mb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}

// Total sums Net over all members. Zero for any conserving history.
func (b Balances) Total() money.Money {
	var total money.Money
	for _, mb := range b {
		total += mb.Net
	}
	return total
}

func (b Balances) clone() Balances {
	out := make(Balances, len(b))
	for id, mb := range b {
		out[id] = mb
	}
	return out
}

// Engine runs balance computations. The zero value is not usable; build one
// with NewEngine.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Aggregate folds expenses into one balance per member. Every member in
// members appears in the result, including members with no activity.
func (e *Engine) Aggregate(members []string, expenses []Expense) (Balances, error) {
	balances := make(Balances, len(members))
	for _, id := range members {
		balances[id] = MemberBalance{MemberID: id}
	}

	for _, exp := range expenses {
		payer, ok := balances[exp.PaidBy]
		if !ok {
			return nil, &Error{Code: CodeUnknownPayer, RecordID: exp.ID, MemberID: exp.PaidBy}
		}
		paid, err := payer.TotalPaid.CheckedAdd(exp.Amount)
		if err != nil {
			return nil, overflowError(exp.ID, exp.PaidBy)
		}
		payer.TotalPaid = paid
		balances[exp.PaidBy] = payer

		for _, s := range exp.Splits {
			if s.Amount.IsNegative() {
				return nil, &Error{
					Code:     CodeInvalidSplitAmount,
					RecordID: exp.ID,
					MemberID: s.MemberID,
					Detail:   "split amount " + s.Amount.String() + " is negative",
				}
			}
			debtor, ok := balances[s.MemberID]
			if !ok {
				return nil, &Error{Code: CodeUnknownSplitMember, RecordID: exp.ID, MemberID: s.MemberID}
			}
			owed, err := debtor.TotalOwed.CheckedAdd(s.Amount)
			if err != nil {
				return nil, overflowError(exp.ID, s.MemberID)
			}
			debtor.TotalOwed = owed
			balances[s.MemberID] = debtor
		}
	}

	for id, mb := range balances {
		net, err := mb.TotalPaid.CheckedSub(mb.TotalOwed)
		if err != nil {
			return nil, overflowError("", id)
		}
		mb.Net = net
		balances[id] = mb
	}

	e.log.Debug("balances aggregated",
		zap.Int("members", len(balances)),
		zap.Int("expenses", len(expenses)),
	)
	return balances, nil
}

func overflowError(recordID, memberID string) *Error {
	return &Error{
		Code:     CodeInvalidBalanceInput,
		RecordID: recordID,
		MemberID: memberID,
		Detail:   "running total overflows the money range",
	}
}
