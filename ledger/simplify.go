package ledger

import (
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/money"
)

// Transfer is one payment that moves the group towards zero balances.
type Transfer struct {
	From   string
	To     string
	Amount money.Money
}

type party struct {
	id     string
	amount money.Money // always positive: credit for creditors, debt for debtors
}

// Simplify reduces balances to a list of debtor -> creditor transfers using
// a greedy largest-creditor / largest-debtor pairing. Each round settles at
// least one party, so n unsettled members produce at most n-1 transfers.
//
// The greedy pairing is not the global minimum in every topology (that
// problem is NP-hard) but it is optimal when one side of the group is a
// single member, and never worse than paying every creditor from every
// debtor.
func (e *Engine) Simplify(b Balances) ([]Transfer, error) {
	if err := validate(b); err != nil {
		return nil, err
	}

	var creditors, debtors []party
	for _, mb := range b.Sorted() {
		switch {
		case money.Settled(mb.Net):
		case mb.Net.IsPositive():
			creditors = append(creditors, party{id: mb.MemberID, amount: mb.Net})
		default:
			debtors = append(debtors, party{id: mb.MemberID, amount: mb.Net.Neg()})
		}
	}

	transfers := make([]Transfer, 0, len(creditors)+len(debtors))
	for len(creditors) > 0 && len(debtors) > 0 {
		ci := largest(creditors)
		di := largest(debtors)

		amount := money.Min(creditors[ci].amount, debtors[di].amount)
		transfers = append(transfers, Transfer{
			From:   debtors[di].id,
			To:     creditors[ci].id,
			Amount: amount,
		})

		creditors[ci].amount -= amount
		debtors[di].amount -= amount
		creditors = dropSettled(creditors)
		debtors = dropSettled(debtors)
	}

	for _, p := range append(creditors, debtors...) {
		e.log.Warn("dropping rounding remainder",
			zap.String("member_id", p.id),
			zap.String("amount", p.amount.String()),
		)
	}

	e.log.Debug("balances simplified",
		zap.Int("members", len(b)),
		zap.Int("transfers", len(transfers)),
	)
	return transfers, nil
}

// largest picks the party with the biggest amount, breaking ties by the
// smaller member id.
func largest(ps []party) int {
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].amount > ps[best].amount ||
			(ps[i].amount == ps[best].amount && ps[i].id < ps[best].id) {
			best = i
		}
	}
	return best
}

func dropSettled(ps []party) []party {
	kept := ps[:0]
	for _, p := range ps {
		if !money.Settled(p.amount) {
			kept = append(kept, p)
		}
	}
	return kept
}

// validate checks the shape of each balance. Totals are not bounded by the
// per-row MaxAmount; any net that int64 can hold and negate is accepted.
func validate(b Balances) error {
	for key, mb := range b {
		if key == "" || mb.MemberID != key {
			return &Error{Code: CodeInvalidBalanceInput, MemberID: key, Detail: "balance keyed under a different member id"}
		}
		net, err := mb.TotalPaid.CheckedSub(mb.TotalOwed)
		if err != nil {
			return &Error{Code: CodeInvalidBalanceInput, MemberID: key, Detail: "amount out of range"}
		}
		if mb.Net != net {
			return &Error{Code: CodeInvalidBalanceInput, MemberID: key, Detail: "net does not equal paid minus owed"}
		}
	}
	return nil
}

// BalancesFromFloats builds balances from externally computed float nets,
// rejecting NaN and infinite values.
func BalancesFromFloats(nets map[string]float64) (Balances, error) {
	out := make(Balances, len(nets))
	for id, f := range nets {
		net, err := money.FromFloat(f)
		if err != nil {
			return nil, &Error{Code: CodeInvalidBalanceInput, MemberID: id, Detail: err.Error()}
		}
		mb := MemberBalance{MemberID: id, Net: net}
		if net.IsPositive() {
			mb.TotalPaid = net
		} else {
			mb.TotalOwed = net.Neg()
		}
		out[id] = mb
	}
	return out, nil
}
