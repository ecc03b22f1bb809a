package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/ledger"
	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/utils"
)

type sentMail struct {
	to, subject, html string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, _, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.to)
	}
	return out
}

type testEnv struct {
	store       *fakeStore
	mailer      *recordingMailer
	notify      *NotificationService
	activity    *ActivityService
	balances    *BalanceService
	expenses    *ExpenseService
	settlements *SettlementService
	groups      *GroupService
	auth        *AuthService
	users       *UserService
	tokens      *utils.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	st := newFakeStore()
	mailer := &recordingMailer{}
	engine := ledger.NewEngine(log)
	tokens := utils.NewTokenManager("test-secret", time.Hour)

	env := &testEnv{store: st, mailer: mailer, tokens: tokens}
	env.notify = NewNotificationService(st, mailer, NewLogPusher(log), "SplitIt", "https://splitit.test", log)
	env.activity = NewActivityService(st, log)
	env.balances = NewBalanceService(st, engine, 100, log)
	env.expenses = NewExpenseService(st, engine, env.activity, env.notify, log)
	env.settlements = NewSettlementService(st, engine, env.activity, env.notify, log)
	env.groups = NewGroupService(st, env.balances, env.activity, env.notify, "INR", log)
	env.auth = NewAuthService(st, tokens, env.notify, env.groups, 10*time.Minute, "INR", log)
	env.users = NewUserService(st)
	t.Cleanup(env.notify.Wait)
	return env
}

// group creates a group owned by the first user with the rest as members.
func (e *testEnv) group(t *testing.T, owner models.User, others ...models.User) uuid.UUID {
	t.Helper()
	req := models.CreateGroupRequest{Name: "Trip"}
	for _, o := range others {
		req.Members = append(req.Members, o.ID.String())
	}
	g, err := e.groups.Create(context.Background(), owner.ID, req)
	require.NoError(t, err)
	return g.ID
}

func (e *testEnv) equalExpense(t *testing.T, groupID uuid.UUID, payer models.User, amount string, participants ...models.User) *models.ExpenseResponse {
	t.Helper()
	req := models.CreateExpenseRequest{
		Description: "Dinner",
		Amount:      money.MustParse(amount),
		SplitType:   models.SplitEqual,
	}
	for _, p := range participants {
		req.Splits = append(req.Splits, models.SplitInput{UserID: p.ID.String()})
	}
	exp, err := e.expenses.Create(context.Background(), payer.ID, groupID, req)
	require.NoError(t, err)
	return exp
}

// requireCode asserts err is an AppError with the given code.
func requireCode(t *testing.T, err error, code string) *utils.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "want AppError %s, got %v", code, err)
	require.Equal(t, code, appErr.Code)
	return appErr
}
