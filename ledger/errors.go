package ledger

import "fmt"

// Code classifies a ledger fault. Codes are stable strings so callers can
// forward them in API error bodies.
type Code string

const (
	CodeUnknownPayer            Code = "UNKNOWN_PAYER"
	CodeUnknownSplitMember      Code = "UNKNOWN_SPLIT_MEMBER"
	CodeInvalidSplitAmount      Code = "INVALID_SPLIT_AMOUNT"
	CodeInvalidBalanceInput     Code = "INVALID_BALANCE_INPUT"
	CodeUnknownSettlementMember Code = "UNKNOWN_SETTLEMENT_MEMBER"
	CodeInvalidSettlementAmount Code = "INVALID_SETTLEMENT_AMOUNT"
)

// Sentinels for errors.Is; an *Error matches any sentinel with the same code.
var (
	ErrUnknownPayer            = &Error{Code: CodeUnknownPayer}
	ErrUnknownSplitMember      = &Error{Code: CodeUnknownSplitMember}
	ErrInvalidSplitAmount      = &Error{Code: CodeInvalidSplitAmount}
	ErrInvalidBalanceInput     = &Error{Code: CodeInvalidBalanceInput}
	ErrUnknownSettlementMember = &Error{Code: CodeUnknownSettlementMember}
	ErrInvalidSettlementAmount = &Error{Code: CodeInvalidSettlementAmount}
)

// Error is returned for data that cannot be folded into balances. All
// ledger errors are deterministic in their input; retrying never helps.
type Error struct {
	Code     Code
	RecordID string // expense or settlement id, when known
	MemberID string
	Detail   string
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" record=%s", e.RecordID)
	}
	if e.MemberID != "" {
		msg += fmt.Sprintf(" member=%s", e.MemberID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
