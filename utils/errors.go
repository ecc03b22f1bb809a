package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/store"
)

const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeNotFound               = "NOT_FOUND"
	CodeInternal               = "INTERNAL_ERROR"
	CodeRateLimited            = "RATE_LIMITED"
	CodeNotAMember             = "NOT_A_MEMBER"
	CodeInsufficientPermission = "INSUFFICIENT_PERMISSIONS"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeGroupNotFound          = "GROUP_NOT_FOUND"
	CodeExpenseNotFound        = "EXPENSE_NOT_FOUND"
	CodeSettlementNotFound     = "SETTLEMENT_NOT_FOUND"
	CodeAlreadyConfirmed       = "ALREADY_CONFIRMED"
	CodeAlreadyMember          = "ALREADY_MEMBER"
	CodeMemberNotFound         = "MEMBER_NOT_FOUND"
	CodeLastAdmin              = "LAST_ADMIN"
	CodeEmailSendFailed        = "EMAIL_SEND_FAILED"
	CodeOutstandingBalance     = "OUTSTANDING_BALANCE"
	CodeGroupTooLarge          = "GROUP_TOO_LARGE"
	CodeOTPRateLimit           = "OTP_RATE_LIMIT"
	CodeOTPNotFound            = "OTP_NOT_FOUND"
	CodeOTPAlreadyUsed         = "OTP_ALREADY_USED"
	CodeOTPExpired             = "OTP_EXPIRED"
	CodeOTPTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	CodeInvalidOTP             = "INVALID_OTP"
)

// AppError is an error with the HTTP status and code it should surface as.
type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func ErrValidation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message)
}

func ErrForbidden(code, message string) *AppError {
	return NewAppError(http.StatusForbidden, code, message)
}

func ErrNotFound(code, message string) *AppError {
	return NewAppError(http.StatusNotFound, code, message)
}

func ErrNotMember() *AppError {
	return ErrForbidden(CodeNotAMember, "You are not a member of this group")
}

// LedgerInputError turns a ledger rejection of request data into a 400
// carrying the ledger code.
func LedgerInputError(err error) error {
	var ledgerErr *ledger.Error
	if errors.As(err, &ledgerErr) {
		return NewAppError(http.StatusBadRequest, string(ledgerErr.Code), ledgerErr.Error())
	}
	return err
}

// RespondError writes err in the error envelope. Unclassified errors are
// logged and hidden behind a generic 500.
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	var appErr *AppError
	var ledgerErr *ledger.Error
	switch {
	case errors.As(err, &appErr):
		ErrorResponse(c, appErr.Status, appErr.Code, appErr.Message)
	case errors.As(err, &ledgerErr):
		// Request data is screened by LedgerInputError, so anything that
		// reaches here came from rows already in the database.
		log.Error("ledger rejected stored data", zap.Error(err), zap.String("path", c.FullPath()))
		ErrorResponse(c, http.StatusInternalServerError, string(ledgerErr.Code), "Group ledger is inconsistent")
	case errors.Is(err, store.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, CodeNotFound, "Resource not found")
	case errors.Is(err, store.ErrTooManyExpenses):
		ErrorResponse(c, http.StatusUnprocessableEntity, CodeGroupTooLarge, err.Error())
	default:
		log.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		InternalError(c, "Something went wrong")
	}
}
