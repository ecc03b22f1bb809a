package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/middleware"
	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/store"
	"github.com/uday169/split-it-app-backend/utils"
)

// Stubs embed the interface so only the methods a test needs are written.

type stubAuth struct {
	AuthAPI
	sent []string
}

func (s *stubAuth) SendOTP(_ context.Context, email string) error {
	s.sent = append(s.sent, email)
	return nil
}

func (s *stubAuth) VerifyOTP(_ context.Context, _, code string) (*models.AuthResponse, error) {
	if code != "123456" {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeInvalidOTP, "Invalid OTP")
	}
	return &models.AuthResponse{Token: "tok"}, nil
}

type stubBalances struct {
	BalanceAPI
	err error
}

func (s *stubBalances) GroupBalances(_ context.Context, _, groupID uuid.UUID) (*models.GroupBalanceSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.GroupBalanceSummary{GroupID: groupID, TotalSpent: money.MustParse("12.5")}, nil
}

type stubSettlements struct {
	SettlementAPI
	got models.CreateSettlementRequest
}

func (s *stubSettlements) Create(_ context.Context, _ uuid.UUID, req models.CreateSettlementRequest) (*models.Settlement, error) {
	s.got = req
	return &models.Settlement{ID: uuid.New(), Amount: req.Amount}, nil
}

type stubActivity struct {
	ActivityAPI
	page utils.PaginationQuery
}

func (s *stubActivity) ForUser(_ context.Context, _ uuid.UUID, page utils.PaginationQuery) ([]models.Activity, error) {
	s.page = page
	return []models.Activity{}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.APIError `json:"error"`
}

type harness struct {
	router *gin.Engine
	tokens *utils.TokenManager
	userID uuid.UUID
}

func newHarness(t *testing.T, h *Handler) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h.AppName = "SplitIt"
	h.Log = zap.NewNop()

	tokens := utils.NewTokenManager("handler-secret", time.Hour)
	r := gin.New()
	h.Routes(r, middleware.AuthRequired(tokens), func(c *gin.Context) { c.Next() })
	return &harness{router: r, tokens: tokens, userID: uuid.New()}
}

func (hs *harness) do(t *testing.T, method, path, body string, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token, err := hs.tokens.Generate(hs.userID, "me@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	hs.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestHealthAndNoRoute(t *testing.T) {
	hs := newHarness(t, &Handler{})

	w, _ := hs.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SplitIt")

	w, env := hs.do(t, http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, utils.CodeNotFound, env.Error.Code)
}

func TestAuthRoutes(t *testing.T) {
	auth := &stubAuth{}
	hs := newHarness(t, &Handler{Auth: auth})

	w, _ := hs.do(t, http.MethodPost, "/auth/send-otp", `{"email":"not-an-email"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, auth.sent)

	w, env := hs.do(t, http.MethodPost, "/auth/send-otp", `{"email":"a@example.com"}`, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, []string{"a@example.com"}, auth.sent)

	w, env = hs.do(t, http.MethodPost, "/auth/verify-otp", `{"email":"a@example.com","otp":"000000"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeInvalidOTP, env.Error.Code)

	w, env = hs.do(t, http.MethodPost, "/auth/verify-otp", `{"email":"a@example.com","otp":"123456"}`, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"token":"tok"`)
}

func TestAPIRequiresToken(t *testing.T) {
	hs := newHarness(t, &Handler{Balances: &stubBalances{}})

	w, env := hs.do(t, http.MethodGet, "/api/balances", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, utils.CodeUnauthorized, env.Error.Code)
}

func TestGroupBalancesErrorMapping(t *testing.T) {
	groupPath := "/api/groups/" + uuid.NewString() + "/balances"
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"not a member", utils.ErrNotMember(), http.StatusForbidden, utils.CodeNotAMember},
		{"missing row", store.ErrNotFound, http.StatusNotFound, utils.CodeNotFound},
		{"too large", store.ErrTooManyExpenses, http.StatusUnprocessableEntity, utils.CodeGroupTooLarge},
		{"stored data rejected", &ledger.Error{Code: ledger.CodeInvalidSplitAmount, Detail: "negative"}, http.StatusInternalServerError, string(ledger.CodeInvalidSplitAmount)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t, &Handler{Balances: &stubBalances{err: tt.err}})
			w, env := hs.do(t, http.MethodGet, groupPath, "", true)
			assert.Equal(t, tt.status, w.Code)
			if tt.code == "" {
				assert.True(t, env.Success)
				assert.Contains(t, string(env.Data), `"total_spent":12.50`)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestInvalidPathID(t *testing.T) {
	hs := newHarness(t, &Handler{Balances: &stubBalances{}})
	w, env := hs.do(t, http.MethodGet, "/api/groups/not-a-uuid/balances", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeValidation, env.Error.Code)
}

func TestGroupSettleTakesGroupFromPath(t *testing.T) {
	settlements := &stubSettlements{}
	hs := newHarness(t, &Handler{Settlements: settlements})
	groupID := uuid.New()
	from, to := uuid.NewString(), uuid.NewString()

	body := `{"from_user_id":"` + from + `","to_user_id":"` + to + `","amount":"25.5"}`
	w, env := hs.do(t, http.MethodPost, "/api/groups/"+groupID.String()+"/settle", body, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, groupID.String(), settlements.got.GroupID)
	assert.Equal(t, "25.50", settlements.got.Amount.String())

	w, _ = hs.do(t, http.MethodPost, "/api/settlements", body, true)
	assert.Equal(t, http.StatusBadRequest, w.Code, "group_id is required on the flat route")
}

func TestActivityPaginationBinding(t *testing.T) {
	activity := &stubActivity{}
	hs := newHarness(t, &Handler{Activity: activity})

	w, _ := hs.do(t, http.MethodGet, "/api/activity?page=3&limit=5", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, utils.PaginationQuery{Page: 3, Limit: 5}, activity.page)

	w, _ = hs.do(t, http.MethodGet, "/api/activity", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, utils.PaginationQuery{Page: 1, Limit: 20}, activity.page)
}
