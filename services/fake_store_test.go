package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/store"
)

// fakeStore is an in-memory Repository. Reads return copies with the same
// associations the gorm store preloads.
type fakeStore struct {
	mu          sync.Mutex
	clock       time.Time
	users       map[uuid.UUID]models.User
	otps        []models.EmailOTP
	groups      map[uuid.UUID]models.Group
	members     []models.GroupMember
	expenses    []models.Expense
	settlements []models.Settlement
	activities  []models.Activity
	invitations []models.Invitation
}

var _ Repository = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:  map[uuid.UUID]models.User{},
		groups: map[uuid.UUID]models.Group{},
	}
}

// tick returns strictly increasing timestamps so ordering is stable.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) addUser(name, email string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := models.User{ID: uuid.New(), Name: name, Email: email, Currency: "INR", CreatedAt: f.tick()}
	f.users[u.ID] = u
	return u
}

// USERS

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uuid.UUID]models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = f.tick()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			u.Name = v.(string)
		case "avatar_url":
			u.AvatarURL = v.(string)
		case "currency":
			u.Currency = v.(string)
		case "fcm_token":
			u.FCMToken = v.(string)
		default:
			return fmt.Errorf("fake: unknown user column %q", k)
		}
	}
	f.users[id] = u
	return nil
}

// OTP

func (f *fakeStore) CreateOTP(_ context.Context, otp *models.EmailOTP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = f.tick()
	}
	f.otps = append(f.otps, *otp)
	return nil
}

func (f *fakeStore) LatestOTP(_ context.Context, email string) (*models.EmailOTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.otps) - 1; i >= 0; i-- {
		if f.otps[i].Email == email {
			o := f.otps[i]
			return &o, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CountOTPsSince(_ context.Context, email string, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, o := range f.otps {
		if o.Email == email && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UpdateOTP(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.otps {
		if f.otps[i].ID != id {
			continue
		}
		for k, v := range updates {
			switch k {
			case "attempts":
				f.otps[i].Attempts = v.(int)
			case "verified":
				f.otps[i].Verified = v.(bool)
			default:
				return fmt.Errorf("fake: unknown otp column %q", k)
			}
		}
		return nil
	}
	return store.ErrNotFound
}

// GROUPS

func (f *fakeStore) withMembers(g models.Group, includeFormer bool) models.Group {
	g.Members = nil
	for _, m := range f.members {
		if m.GroupID != g.ID || (!includeFormer && !m.Active()) {
			continue
		}
		m.User = f.users[m.UserID]
		g.Members = append(g.Members, m)
	}
	return g
}

func (f *fakeStore) CreateGroup(_ context.Context, group *models.Group, members []models.GroupMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	group.CreatedAt = f.tick()
	g := *group
	g.Members = nil
	f.groups[g.ID] = g
	for _, m := range members {
		m.GroupID = g.ID
		m.JoinedAt = f.tick()
		f.members = append(f.members, m)
	}
	return nil
}

func (f *fakeStore) GetGroup(_ context.Context, id uuid.UUID) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	g = f.withMembers(g, false)
	return &g, nil
}

func (f *fakeStore) activeGroupIDs(userID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range f.members {
		if m.UserID == userID && m.Active() {
			ids = append(ids, m.GroupID)
		}
	}
	return ids
}

func (f *fakeStore) ListUserGroups(_ context.Context, userID uuid.UUID) ([]models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Group
	for _, id := range f.activeGroupIDs(userID) {
		out = append(out, f.withMembers(f.groups[id], false))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GroupIDsForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeGroupIDs(userID), nil
}

func (f *fakeStore) UpdateGroup(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			g.Name = v.(string)
		case "description":
			g.Description = v.(string)
		case "type":
			g.Type = v.(string)
		default:
			return fmt.Errorf("fake: unknown group column %q", k)
		}
	}
	f.groups[id] = g
	return nil
}

func (f *fakeStore) DeleteGroup(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, id)
	members := f.members[:0]
	for _, m := range f.members {
		if m.GroupID != id {
			members = append(members, m)
		}
	}
	f.members = members
	expenses := f.expenses[:0]
	for _, e := range f.expenses {
		if e.GroupID != id {
			expenses = append(expenses, e)
		}
	}
	f.expenses = expenses
	return nil
}

func (f *fakeStore) GetMembership(_ context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.GroupID == groupID && m.UserID == userID && m.Active() {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) AddMember(_ context.Context, member *models.GroupMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.members {
		if m.GroupID == member.GroupID && m.UserID == member.UserID {
			f.members[i].Role = member.Role
			f.members[i].LeftAt = nil
			return nil
		}
	}
	member.JoinedAt = f.tick()
	f.members = append(f.members, *member)
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, groupID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.members {
		if m.GroupID == groupID && m.UserID == userID && m.Active() {
			now := f.tick()
			f.members[i].LeftAt = &now
		}
	}
	return nil
}

// EXPENSES

func (f *fakeStore) hydrateExpense(e models.Expense) models.Expense {
	e.Payer = f.users[e.PaidBy]
	splits := make([]models.ExpenseSplit, len(e.Splits))
	for i, s := range e.Splits {
		s.User = f.users[s.UserID]
		splits[i] = s
	}
	e.Splits = splits
	return e
}

func (f *fakeStore) CreateExpense(_ context.Context, expense *models.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	expense.CreatedAt = f.tick()
	for i := range expense.Splits {
		expense.Splits[i].ID = uuid.New()
		expense.Splits[i].ExpenseID = expense.ID
	}
	e := *expense
	e.Splits = append([]models.ExpenseSplit(nil), expense.Splits...)
	f.expenses = append(f.expenses, e)
	return nil
}

func (f *fakeStore) GetExpense(_ context.Context, id uuid.UUID) (*models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == id {
			e = f.hydrateExpense(e)
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListExpenses(_ context.Context, groupID uuid.UUID, limit, offset int) ([]models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Expense
	for i := len(f.expenses) - 1; i >= 0; i-- {
		if f.expenses[i].GroupID == groupID {
			out = append(out, f.hydrateExpense(f.expenses[i]))
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ReplaceExpense(_ context.Context, expense *models.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.expenses {
		if e.ID != expense.ID {
			continue
		}
		updated := *expense
		updated.Payer = models.User{}
		updated.Splits = make([]models.ExpenseSplit, len(expense.Splits))
		for j, s := range expense.Splits {
			s.ID = uuid.New()
			s.ExpenseID = expense.ID
			s.User = models.User{}
			updated.Splits[j] = s
		}
		f.expenses[i] = updated
		return nil
	}
	return store.ErrNotFound
}

func (f *fakeStore) DeleteExpense(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.expenses {
		if e.ID == id {
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return nil
		}
	}
	return nil
}

// SETTLEMENTS

func (f *fakeStore) hydrateSettlement(s models.Settlement) models.Settlement {
	s.Payer = f.users[s.FromUserID]
	s.Payee = f.users[s.ToUserID]
	return s
}

func (f *fakeStore) CreateSettlement(_ context.Context, settlement *models.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	settlement.CreatedAt = f.tick()
	f.settlements = append(f.settlements, *settlement)
	return nil
}

func (f *fakeStore) GetSettlement(_ context.Context, id uuid.UUID) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.settlements {
		if s.ID == id {
			s = f.hydrateSettlement(s)
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListSettlements(_ context.Context, groupID uuid.UUID) ([]models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Settlement
	for i := len(f.settlements) - 1; i >= 0; i-- {
		if f.settlements[i].GroupID == groupID {
			out = append(out, f.hydrateSettlement(f.settlements[i]))
		}
	}
	return out, nil
}

func (f *fakeStore) ConfirmSettlement(_ context.Context, id uuid.UUID, byPayer bool, at time.Time) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.settlements {
		st := &f.settlements[i]
		if st.ID != id {
			continue
		}
		if byPayer {
			if st.ConfirmedByPayer {
				return nil, store.ErrAlreadyConfirmed
			}
			st.ConfirmedByPayer = true
		} else {
			if st.ConfirmedByPayee {
				return nil, store.ErrAlreadyConfirmed
			}
			st.ConfirmedByPayee = true
		}
		if st.Confirmed() {
			st.ConfirmedAt = &at
		}
		out := f.hydrateSettlement(*st)
		return &out, nil
	}
	return nil, store.ErrNotFound
}

// ACTIVITY & INVITATIONS

func (f *fakeStore) CreateActivity(_ context.Context, activity *models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	activity.ID = uuid.New()
	activity.CreatedAt = f.tick()
	f.activities = append(f.activities, *activity)
	return nil
}

func (f *fakeStore) ListActivity(_ context.Context, groupIDs []uuid.UUID, limit, offset int) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range groupIDs {
		want[id] = true
	}
	var out []models.Activity
	for i := len(f.activities) - 1; i >= 0; i-- {
		if a := f.activities[i]; want[a.GroupID] {
			a.User = f.users[a.UserID]
			out = append(out, a)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CreateInvitation(_ context.Context, inv *models.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv.ID = uuid.New()
	inv.CreatedAt = f.tick()
	f.invitations = append(f.invitations, *inv)
	return nil
}

func (f *fakeStore) PendingInvitations(_ context.Context, email string) ([]models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Invitation
	for _, inv := range f.invitations {
		if inv.Email == email && inv.Status == models.InvitationPending {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkInvitationAccepted(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.invitations {
		if f.invitations[i].ID == id {
			now := f.tick()
			f.invitations[i].Status = models.InvitationAccepted
			f.invitations[i].AcceptedAt = &now
		}
	}
	return nil
}

// SNAPSHOT

func (f *fakeStore) LoadSnapshot(_ context.Context, groupID uuid.UUID, maxExpenses int) (*store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, store.ErrNotFound
	}
	snap := &store.Snapshot{Group: f.withMembers(g, true)}
	for _, e := range f.expenses {
		if e.GroupID == groupID {
			snap.Expenses = append(snap.Expenses, e)
		}
	}
	if len(snap.Expenses) > maxExpenses {
		return nil, fmt.Errorf("%w: %d > %d", store.ErrTooManyExpenses, len(snap.Expenses), maxExpenses)
	}
	for _, s := range f.settlements {
		if s.GroupID == groupID {
			snap.Settlements = append(snap.Settlements, s)
		}
	}
	return snap, nil
}
