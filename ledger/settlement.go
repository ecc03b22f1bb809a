package ledger

import (
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/money"
)

// Settlement is a recorded payment From -> To.
type Settlement struct {
	ID               string
	From             string
	To               string
	Amount           money.Money
	ConfirmedByPayer bool
	ConfirmedByPayee bool
}

// Confirmed reports whether both sides have acknowledged the payment.
func (s Settlement) Confirmed() bool {
	return s.ConfirmedByPayer && s.ConfirmedByPayee
}

// ApplySettlements reduces balances by every fully confirmed settlement and
// returns the result as a new map; b is left untouched. A confirmed payment
// counts as money paid by From and received (owed back) by To. Settlements
// still waiting on one side are skipped.
func (e *Engine) ApplySettlements(b Balances, settlements []Settlement) (Balances, error) {
	out := b.clone()
	applied := 0

	for _, s := range settlements {
		if !s.Confirmed() {
			continue
		}
		if !s.Amount.IsPositive() || s.From == s.To {
			return nil, &Error{
				Code:     CodeInvalidSettlementAmount,
				RecordID: s.ID,
				MemberID: s.From,
				Detail:   "settlement must move a positive amount between two members",
			}
		}
		payer, ok := out[s.From]
		if !ok {
			return nil, &Error{Code: CodeUnknownSettlementMember, RecordID: s.ID, MemberID: s.From}
		}
		payee, ok := out[s.To]
		if !ok {
			return nil, &Error{Code: CodeUnknownSettlementMember, RecordID: s.ID, MemberID: s.To}
		}

		var err error
		if payer, err = credit(payer, s.Amount); err != nil {
			return nil, overflowError(s.ID, s.From)
		}
		if payee, err = debit(payee, s.Amount); err != nil {
			return nil, overflowError(s.ID, s.To)
		}
		out[s.From] = payer
		out[s.To] = payee
		applied++
	}

	e.log.Debug("settlements applied",
		zap.Int("applied", applied),
		zap.Int("pending", len(settlements)-applied),
	)
	return out, nil
}

func credit(mb MemberBalance, amount money.Money) (MemberBalance, error) {
	paid, err := mb.TotalPaid.CheckedAdd(amount)
	if err != nil {
		return mb, err
	}
	net, err := paid.CheckedSub(mb.TotalOwed)
	if err != nil {
		return mb, err
	}
	mb.TotalPaid, mb.Net = paid, net
	return mb, nil
}

func debit(mb MemberBalance, amount money.Money) (MemberBalance, error) {
	owed, err := mb.TotalOwed.CheckedAdd(amount)
	if err != nil {
		return mb, err
	}
	net, err := mb.TotalPaid.CheckedSub(owed)
	if err != nil {
		return mb, err
	}
	mb.TotalOwed, mb.Net = owed, net
	return mb, nil
}
