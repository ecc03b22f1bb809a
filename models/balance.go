package models

import (
	"github.com/google/uuid"

	"github.com/uday169/split-it-app-backend/money"
)

// MemberBalance is one member's position in a group.
type MemberBalance struct {
	UserID    uuid.UUID   `json:"user_id"`
	UserName  string      `json:"user_name"`
	TotalPaid money.Money `json:"total_paid"`
	TotalOwed money.Money `json:"total_owed"`
	Balance   money.Money `json:"balance"` // positive = owed money, negative = owes money
}

// Balance represents a simplified debt between two users
type Balance struct {
	FromUserID   uuid.UUID   `json:"from_user_id"`
	FromUserName string      `json:"from_user_name"`
	ToUserID     uuid.UUID   `json:"to_user_id"`
	ToUserName   string      `json:"to_user_name"`
	Amount       money.Money `json:"amount"`
}

// GroupBalanceSummary is returned for GET /api/groups/:id/balances
type GroupBalanceSummary struct {
	GroupID            uuid.UUID       `json:"group_id"`
	GroupName          string          `json:"group_name"`
	Currency           string          `json:"currency"`
	TotalSpent         money.Money     `json:"total_spent"`
	Balances           []MemberBalance `json:"balances"`
	SimplifiedBalances []Balance       `json:"simplifiedBalances"`
}

// Counterparty is one side of a user's simplified debts.
type Counterparty struct {
	UserID   uuid.UUID   `json:"user_id"`
	UserName string      `json:"user_name"`
	Amount   money.Money `json:"amount"`
}

// UserGroupBalance is returned for GET /api/groups/:id/balances/me
type UserGroupBalance struct {
	UserID     uuid.UUID      `json:"user_id"`
	GroupID    uuid.UUID      `json:"group_id"`
	NetBalance money.Money    `json:"net_balance"`
	Owes       []Counterparty `json:"owes"`
	OwedBy     []Counterparty `json:"owed_by"`
}

// FriendBalance represents the overall balance with a single friend
type FriendBalance struct {
	UserID    uuid.UUID   `json:"user_id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	Amount    money.Money `json:"amount"` // positive = they owe you, negative = you owe them
	Currency  string      `json:"currency"`
}

// CurrencyTotals sums a user's position in one currency.
type CurrencyTotals struct {
	Currency   string      `json:"currency"`
	TotalOwed  money.Money `json:"total_owed"`  // total others owe you
	TotalOwing money.Money `json:"total_owing"` // total you owe others
}

// OverallBalanceSummary is returned for GET /api/balances. Amounts in
// different currencies are never added together.
type OverallBalanceSummary struct {
	Totals  []CurrencyTotals `json:"totals"`
	Friends []FriendBalance  `json:"friends"`
	// Groups too large to compute are left out of the totals.
	SkippedGroups []uuid.UUID `json:"skipped_groups,omitempty"`
}
