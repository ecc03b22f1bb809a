package ledger

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uday169/split-it-app-backend/money"
)

var m = money.MustParse

func equalSplit(t *testing.T, id, payer string, amount money.Money, members ...string) Expense {
	t.Helper()
	parts, err := money.Split(amount, len(members))
	require.NoError(t, err)
	splits := make([]Split, len(members))
	for i, member := range members {
		splits[i] = Split{MemberID: member, Amount: parts[i]}
	}
	return Expense{ID: id, PaidBy: payer, Amount: amount, Splits: splits}
}

func TestScenarios(t *testing.T) {
	members := []string{"U1", "U2", "U3"}

	tests := []struct {
		name      string
		expenses  func(t *testing.T) []Expense
		wantNet   map[string]money.Money
		transfers []Transfer
	}{
		{
			name: "A: one payer, equal split",
			expenses: func(t *testing.T) []Expense {
				return []Expense{equalSplit(t, "e1", "U1", m("300"), members...)}
			},
			wantNet: map[string]money.Money{"U1": m("200"), "U2": m("-100"), "U3": m("-100")},
			transfers: []Transfer{
				{From: "U2", To: "U1", Amount: m("100")},
				{From: "U3", To: "U1", Amount: m("100")},
			},
		},
		{
			name: "B: two payers",
			expenses: func(t *testing.T) []Expense {
				return []Expense{
					equalSplit(t, "e1", "U1", m("300"), members...),
					equalSplit(t, "e2", "U2", m("150"), members...),
				}
			},
			wantNet:   map[string]money.Money{"U1": m("150"), "U2": m("0"), "U3": m("-150")},
			transfers: []Transfer{{From: "U3", To: "U1", Amount: m("150")}},
		},
		{
			name: "C: everyone paid the same",
			expenses: func(t *testing.T) []Expense {
				// Rounding cents go to the first split member; listing the
				// payer first lets each payer absorb their own cent.
				return []Expense{
					equalSplit(t, "e1", "U1", m("100"), "U1", "U2", "U3"),
					equalSplit(t, "e2", "U2", m("100"), "U2", "U3", "U1"),
					equalSplit(t, "e3", "U3", m("100"), "U3", "U1", "U2"),
				}
			},
			wantNet:   map[string]money.Money{"U1": 0, "U2": 0, "U3": 0},
			transfers: []Transfer{},
		},
		{
			name:      "E: no expenses",
			expenses:  func(t *testing.T) []Expense { return nil },
			wantNet:   map[string]money.Money{"U1": 0, "U2": 0, "U3": 0},
			transfers: []Transfer{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(nil)

			balances, err := engine.Aggregate(members, tt.expenses(t))
			require.NoError(t, err)
			require.Len(t, balances, len(tt.wantNet))
			for id, want := range tt.wantNet {
				assert.Equal(t, want, balances[id].Net, "net for %s", id)
			}

			transfers, err := engine.Simplify(balances)
			require.NoError(t, err)
			assert.Equal(t, tt.transfers, transfers)
		})
	}
}

func TestRemainderOnNonPayerIsSettledExactly(t *testing.T) {
	members := []string{"U1", "U2", "U3"}
	engine := NewEngine(nil)

	var expenses []Expense
	for i, payer := range members {
		expenses = append(expenses, equalSplit(t, fmt.Sprintf("e%d", i), payer, m("100"), members...))
	}

	balances, err := engine.Aggregate(members, expenses)
	require.NoError(t, err)
	assert.Equal(t, m("-0.02"), balances["U1"].Net)
	assert.Equal(t, m("0.01"), balances["U2"].Net)
	assert.Equal(t, m("0.01"), balances["U3"].Net)

	transfers, err := engine.Simplify(balances)
	require.NoError(t, err)
	assert.Equal(t, []Transfer{
		{From: "U1", To: "U2", Amount: m("0.01")},
		{From: "U1", To: "U3", Amount: m("0.01")},
	}, transfers)
}

func TestScenarioDEqualSplitReconciles(t *testing.T) {
	exp := equalSplit(t, "e1", "U1", m("100.00"), "U1", "U2", "U3")

	var sum money.Money
	for _, s := range exp.Splits {
		sum += s.Amount
	}
	assert.Equal(t, m("100.00"), sum)
	assert.Equal(t, m("33.34"), exp.Splits[0].Amount)
	assert.Equal(t, m("33.33"), exp.Splits[1].Amount)
	assert.Equal(t, m("33.33"), exp.Splits[2].Amount)
}

func TestAggregateErrors(t *testing.T) {
	members := []string{"a", "b"}

	tests := []struct {
		name    string
		expense Expense
		want    error
	}{
		{
			name:    "unknown payer",
			expense: Expense{ID: "x", PaidBy: "z", Amount: m("10"), Splits: []Split{{MemberID: "a", Amount: m("10")}}},
			want:    ErrUnknownPayer,
		},
		{
			name:    "unknown split member",
			expense: Expense{ID: "x", PaidBy: "a", Amount: m("10"), Splits: []Split{{MemberID: "z", Amount: m("10")}}},
			want:    ErrUnknownSplitMember,
		},
		{
			name: "negative split",
			expense: Expense{ID: "x", PaidBy: "a", Amount: m("10"), Splits: []Split{
				{MemberID: "a", Amount: m("11")},
				{MemberID: "b", Amount: m("-1")},
			}},
			want: ErrInvalidSplitAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(nil).Aggregate(members, []Expense{tt.expense})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, "x", lerr.RecordID)
		})
	}
}

func TestAggregateAllowsZeroSplit(t *testing.T) {
	exp := Expense{ID: "x", PaidBy: "a", Amount: m("10"), Splits: []Split{
		{MemberID: "a", Amount: m("10")},
		{MemberID: "b", Amount: 0},
	}}
	balances, err := NewEngine(nil).Aggregate([]string{"a", "b"}, []Expense{exp})
	require.NoError(t, err)
	assert.Equal(t, money.Zero, balances["a"].Net)
	assert.Equal(t, money.Zero, balances["b"].Net)
}

func TestSimplifyTieBreaksByMemberID(t *testing.T) {
	balances := Balances{
		"carol": {MemberID: "carol", TotalOwed: m("50"), Net: m("-50")},
		"alice": {MemberID: "alice", TotalOwed: m("50"), Net: m("-50")},
		"bob":   {MemberID: "bob", TotalPaid: m("50"), Net: m("50")},
		"dave":  {MemberID: "dave", TotalPaid: m("50"), Net: m("50")},
	}

	transfers, err := NewEngine(nil).Simplify(balances)
	require.NoError(t, err)
	assert.Equal(t, []Transfer{
		{From: "alice", To: "bob", Amount: m("50")},
		{From: "carol", To: "dave", Amount: m("50")},
	}, transfers)
}

func TestSimplifyRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name     string
		balances Balances
	}{
		{"key mismatch", Balances{"a": {MemberID: "b"}}},
		{"empty id", Balances{"": {MemberID: ""}}},
		{"net mismatch", Balances{"a": {MemberID: "a", TotalPaid: m("5"), Net: m("4")}}},
		{"net overflows", Balances{"a": {MemberID: "a", TotalPaid: math.MaxInt64, TotalOwed: -1, Net: math.MinInt64}}},
		{"net cannot be negated", Balances{"a": {MemberID: "a", TotalPaid: -1, TotalOwed: math.MaxInt64, Net: math.MinInt64}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(nil).Simplify(tt.balances)
			assert.ErrorIs(t, err, ErrInvalidBalanceInput)
		})
	}
}

func TestHistoryBeyondSingleRowLimitSimplifies(t *testing.T) {
	engine := NewEngine(nil)
	var expenses []Expense
	for i := 0; i < 10; i++ {
		expenses = append(expenses, Expense{
			ID:     fmt.Sprintf("e%d", i),
			PaidBy: "a",
			Amount: money.MaxAmount,
			Splits: []Split{{MemberID: "b", Amount: money.MaxAmount}},
		})
	}

	balances, err := engine.Aggregate([]string{"a", "b"}, expenses)
	require.NoError(t, err)
	assert.Equal(t, 10*money.MaxAmount, balances["a"].Net)

	transfers, err := engine.Simplify(balances)
	require.NoError(t, err)
	assert.Equal(t, []Transfer{{From: "b", To: "a", Amount: 10 * money.MaxAmount}}, transfers)

	settled, err := engine.ApplySettlements(balances, []Settlement{
		{ID: "s", From: "b", To: "a", Amount: 10 * money.MaxAmount, ConfirmedByPayer: true, ConfirmedByPayee: true},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Zero, settled["a"].Net)
	assert.Equal(t, money.Zero, settled["b"].Net)
}

func TestTotalsThatOverflowAreRejected(t *testing.T) {
	engine := NewEngine(nil)
	huge := money.Money(math.MaxInt64 - 1)

	_, err := engine.Aggregate([]string{"a", "b"}, []Expense{
		{ID: "x", PaidBy: "a", Amount: huge, Splits: []Split{{MemberID: "b", Amount: huge}}},
		{ID: "y", PaidBy: "a", Amount: huge, Splits: []Split{{MemberID: "b", Amount: huge}}},
	})
	require.ErrorIs(t, err, ErrInvalidBalanceInput)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "y", lerr.RecordID)
	assert.Equal(t, "a", lerr.MemberID)

	balances := Balances{
		"a": {MemberID: "a", TotalPaid: huge, Net: huge},
		"b": {MemberID: "b", TotalOwed: huge, Net: -huge},
	}
	_, err = engine.ApplySettlements(balances, []Settlement{
		{ID: "s", From: "a", To: "b", Amount: huge, ConfirmedByPayer: true, ConfirmedByPayee: true},
	})
	require.ErrorIs(t, err, ErrInvalidBalanceInput)
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "s", lerr.RecordID)
}

func TestBalancesFromFloats(t *testing.T) {
	b, err := BalancesFromFloats(map[string]float64{"a": 12.345, "b": -12.345})
	require.NoError(t, err)
	assert.Equal(t, m("12.35"), b["a"].Net)
	assert.Equal(t, m("-12.35"), b["b"].Net)

	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		_, err := BalancesFromFloats(map[string]float64{"a": bad})
		assert.ErrorIs(t, err, ErrInvalidBalanceInput)
	}
}

func TestSimplifyLogsRemainder(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	engine := NewEngine(zap.New(core))

	balances := Balances{
		"a": {MemberID: "a", TotalPaid: m("10"), Net: m("10")},
		"b": {MemberID: "b", TotalOwed: m("9.99"), Net: m("-9.99")},
	}
	transfers, err := engine.Simplify(balances)
	require.NoError(t, err)
	assert.Equal(t, []Transfer{{From: "b", To: "a", Amount: m("9.99")}}, transfers)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a", logs.All()[0].ContextMap()["member_id"])
}

func TestApplySettlements(t *testing.T) {
	engine := NewEngine(nil)
	members := []string{"U1", "U2", "U3"}
	balances, err := engine.Aggregate(members, []Expense{equalSplit(t, "e1", "U1", m("300"), members...)})
	require.NoError(t, err)

	settlements := []Settlement{
		{ID: "s1", From: "U2", To: "U1", Amount: m("100"), ConfirmedByPayer: true, ConfirmedByPayee: true},
		{ID: "s2", From: "U3", To: "U1", Amount: m("40"), ConfirmedByPayer: true},
	}

	reduced, err := engine.ApplySettlements(balances, settlements)
	require.NoError(t, err)
	assert.Equal(t, m("100"), reduced["U1"].Net)
	assert.Equal(t, money.Zero, reduced["U2"].Net)
	assert.Equal(t, m("-100"), reduced["U3"].Net)
	assert.Equal(t, m("200"), balances["U1"].Net, "input must not be modified")

	transfers, err := engine.Simplify(reduced)
	require.NoError(t, err)
	assert.Equal(t, []Transfer{{From: "U3", To: "U1", Amount: m("100")}}, transfers)
}

func TestApplySettlementsErrors(t *testing.T) {
	engine := NewEngine(nil)
	balances := Balances{"a": {MemberID: "a"}, "b": {MemberID: "b"}}

	_, err := engine.ApplySettlements(balances, []Settlement{
		{ID: "s", From: "a", To: "z", Amount: m("1"), ConfirmedByPayer: true, ConfirmedByPayee: true},
	})
	assert.ErrorIs(t, err, ErrUnknownSettlementMember)

	_, err = engine.ApplySettlements(balances, []Settlement{
		{ID: "s", From: "a", To: "b", Amount: 0, ConfirmedByPayer: true, ConfirmedByPayee: true},
	})
	assert.ErrorIs(t, err, ErrInvalidSettlementAmount)

	_, err = engine.ApplySettlements(balances, []Settlement{
		{ID: "s", From: "a", To: "z", Amount: m("1"), ConfirmedByPayer: true},
	})
	assert.NoError(t, err, "unconfirmed settlements are ignored")
}

// randomHistory builds a group history with mixed equal and weighted splits.
func randomHistory(r *rand.Rand, members []string, n int) []Expense {
	expenses := make([]Expense, n)
	for i := range expenses {
		amount := money.Money(r.Int63n(100_000) + 1)
		k := r.Intn(len(members)) + 1
		perm := r.Perm(len(members))[:k]
		parts, _ := money.Split(amount, k)

		splits := make([]Split, k)
		for j, idx := range perm {
			splits[j] = Split{MemberID: members[idx], Amount: parts[j]}
		}
		expenses[i] = Expense{
			ID:     fmt.Sprintf("e%d", i),
			PaidBy: members[r.Intn(len(members))],
			Amount: amount,
			Splits: splits,
		}
	}
	return expenses
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	engine := NewEngine(nil)

	for round := 0; round < 200; round++ {
		size := r.Intn(8) + 2
		members := make([]string, size)
		for i := range members {
			members[i] = fmt.Sprintf("m%02d", i)
		}
		expenses := randomHistory(r, members, r.Intn(30))

		balances, err := engine.Aggregate(members, expenses)
		require.NoError(t, err)

		// Conservation.
		var paid, owed, spent money.Money
		for _, mb := range balances {
			paid += mb.TotalPaid
			owed += mb.TotalOwed
		}
		for _, e := range expenses {
			spent += e.Amount
		}
		require.Equal(t, spent, paid)
		require.Equal(t, spent, owed)
		require.Equal(t, money.Zero, balances.Total())

		// Order independence and idempotence.
		shuffled := append([]Expense(nil), expenses...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again, err := engine.Aggregate(members, shuffled)
		require.NoError(t, err)
		require.Equal(t, balances, again)

		transfers, err := engine.Simplify(balances)
		require.NoError(t, err)

		unsettled := 0
		for _, mb := range balances {
			if !money.Settled(mb.Net) {
				unsettled++
			}
		}
		if unsettled > 0 {
			require.LessOrEqual(t, len(transfers), unsettled-1)
		} else {
			require.Empty(t, transfers)
		}

		// Applying the transfers zeroes every balance.
		remaining := make(map[string]money.Money, len(balances))
		for id, mb := range balances {
			remaining[id] = mb.Net
		}
		for _, tr := range transfers {
			require.NotEqual(t, tr.From, tr.To)
			require.True(t, tr.Amount.IsPositive())
			remaining[tr.From] += tr.Amount
			remaining[tr.To] -= tr.Amount
		}
		for id, left := range remaining {
			require.True(t, money.Settled(left), "member %s left with %s", id, left)
		}
	}
}
