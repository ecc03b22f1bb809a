// Package store is the Postgres-backed repository layer. Every method takes
// a context and returns ErrNotFound for missing rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uday169/split-it-app-backend/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrTooManyExpenses  = errors.New("group has too many expenses to compute balances")
	ErrAlreadyConfirmed = errors.New("settlement already confirmed by this side")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func idArray(ids []uuid.UUID) interface{} {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}

// ==========================================
// USERS
// ==========================================

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUsers loads users by id, keyed by id. Unknown ids are absent.
func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	out := make(map[uuid.UUID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id = ANY(?)", idArray(ids)).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ==========================================
// OTP
// ==========================================

func (s *Store) CreateOTP(ctx context.Context, otp *models.EmailOTP) error {
	return s.db.WithContext(ctx).Create(otp).Error
}

func (s *Store) LatestOTP(ctx context.Context, email string) (*models.EmailOTP, error) {
	var otp models.EmailOTP
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &otp, nil
}

func (s *Store) CountOTPsSince(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.EmailOTP{}).
		Where("email = ? AND created_at >= ?", email, since).
		Count(&count).Error
	return count, err
}

func (s *Store) UpdateOTP(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.EmailOTP{}).Where("id = ?", id).Updates(updates).Error
}

// ==========================================
// GROUPS & MEMBERS
// ==========================================

// CreateGroup inserts the group and its initial members in one transaction.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group, members []models.GroupMember) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(group).Error; err != nil {
			return err
		}
		for i := range members {
			members[i].GroupID = group.ID
		}
		if len(members) > 0 {
			if err := tx.Omit("User").Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGroup loads a group with its members and their users.
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Where("left_at IS NULL").Order("joined_at ASC")
		}).
		Preload("Members.User").
		First(&group, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

func (s *Store) ListUserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&models.GroupMember{}).
			Select("group_id").
			Where("user_id = ? AND left_at IS NULL", userID)).
		Preload("Members", "left_at IS NULL").
		Preload("Members.User").
		Order("created_at DESC").
		Find(&groups).Error
	return groups, err
}

func (s *Store) GroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("user_id = ? AND left_at IS NULL", userID).
		Pluck("group_id", &ids).Error
	return ids, err
}

func (s *Store) UpdateGroup(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteGroup removes the group and everything recorded under it.
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expenseIDs := tx.Model(&models.Expense{}).Select("id").Where("group_id = ?", id)
		steps := []func() error{
			func() error { return tx.Where("expense_id IN (?)", expenseIDs).Delete(&models.ExpenseSplit{}).Error },
			func() error { return tx.Where("group_id = ?", id).Delete(&models.Expense{}).Error },
			func() error { return tx.Where("group_id = ?", id).Delete(&models.Settlement{}).Error },
			func() error { return tx.Where("group_id = ?", id).Delete(&models.Activity{}).Error },
			func() error { return tx.Where("group_id = ?", id).Delete(&models.Invitation{}).Error },
			func() error { return tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error },
			func() error { return tx.Delete(&models.Group{}, "id = ?", id).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetMembership(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	var m models.GroupMember
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ? AND left_at IS NULL", groupID, userID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// AddMember inserts a member, or reactivates a former one.
func (s *Store) AddMember(ctx context.Context, member *models.GroupMember) error {
	return s.db.WithContext(ctx).Omit("User").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "left_at"}),
		}).
		Create(member).Error
}

// RemoveMember marks the member as departed.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND left_at IS NULL", groupID, userID).
		Update("left_at", time.Now()).Error
}

// ==========================================
// EXPENSES
// ==========================================

// CreateExpense inserts the expense together with its splits.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		splits := expense.Splits
		if err := tx.Omit("Splits", "Payer").Create(expense).Error; err != nil {
			return err
		}
		for i := range splits {
			splits[i].ExpenseID = expense.ID
		}
		if len(splits) > 0 {
			if err := tx.Omit("User").Create(&splits).Error; err != nil {
				return err
			}
		}
		expense.Splits = splits
		return nil
	})
}

func (s *Store) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var expense models.Expense
	err := s.db.WithContext(ctx).
		Preload("Payer").
		Preload("Splits").
		Preload("Splits.User").
		First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]models.Expense, error) {
	var expenses []models.Expense
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Payer").
		Preload("Splits").
		Preload("Splits.User").
		Order("expense_date DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&expenses).Error
	return expenses, err
}

// ReplaceExpense saves the expense fields and swaps its splits atomically.
func (s *Store) ReplaceExpense(ctx context.Context, expense *models.Expense) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Expense{}).Where("id = ?", expense.ID).Updates(map[string]interface{}{
			"description":  expense.Description,
			"amount":       expense.Amount,
			"category":     expense.Category,
			"split_type":   expense.SplitType,
			"notes":        expense.Notes,
			"expense_date": expense.ExpenseDate,
		}).Error
		if err != nil {
			return err
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		splits := expense.Splits
		for i := range splits {
			splits[i].ID = uuid.Nil
			splits[i].ExpenseID = expense.ID
		}
		if len(splits) > 0 {
			return tx.Omit("User").Create(&splits).Error
		}
		return nil
	})
}

func (s *Store) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Expense{}, "id = ?", id).Error
	})
}

// ==========================================
// SETTLEMENTS
// ==========================================

func (s *Store) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	return s.db.WithContext(ctx).Omit("Payer", "Payee").Create(settlement).Error
}

func (s *Store) GetSettlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := s.db.WithContext(ctx).
		Preload("Payer").
		Preload("Payee").
		First(&settlement, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &settlement, nil
}

func (s *Store) ListSettlements(ctx context.Context, groupID uuid.UUID) ([]models.Settlement, error) {
	var settlements []models.Settlement
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Payer").
		Preload("Payee").
		Order("created_at DESC").
		Find(&settlements).Error
	return settlements, err
}

// ConfirmSettlement sets the payer's or payee's flag with the row locked, so
// concurrent confirmations serialize. The call that completes the pair also
// stamps confirmed_at. A side that is already confirmed fails with
// ErrAlreadyConfirmed.
func (s *Store) ConfirmSettlement(ctx context.Context, id uuid.UUID, byPayer bool, at time.Time) (*models.Settlement, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settlement models.Settlement
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&settlement, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		updates := map[string]interface{}{}
		if byPayer {
			if settlement.ConfirmedByPayer {
				return ErrAlreadyConfirmed
			}
			settlement.ConfirmedByPayer = true
			updates["confirmed_by_payer"] = true
		} else {
			if settlement.ConfirmedByPayee {
				return ErrAlreadyConfirmed
			}
			settlement.ConfirmedByPayee = true
			updates["confirmed_by_payee"] = true
		}
		if settlement.Confirmed() {
			updates["confirmed_at"] = at
		}
		return tx.Model(&models.Settlement{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetSettlement(ctx, id)
}

// ==========================================
// ACTIVITY & INVITATIONS
// ==========================================

func (s *Store) CreateActivity(ctx context.Context, activity *models.Activity) error {
	return s.db.WithContext(ctx).Omit("User").Create(activity).Error
}

func (s *Store) ListActivity(ctx context.Context, groupIDs []uuid.UUID, limit, offset int) ([]models.Activity, error) {
	var activities []models.Activity
	if len(groupIDs) == 0 {
		return activities, nil
	}
	err := s.db.WithContext(ctx).
		Where("group_id = ANY(?)", idArray(groupIDs)).
		Preload("User").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

func (s *Store) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

func (s *Store) PendingInvitations(ctx context.Context, email string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, models.InvitationPending).
		Find(&invitations).Error
	return invitations, err
}

func (s *Store) MarkInvitationAccepted(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Invitation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      models.InvitationAccepted,
		"accepted_at": time.Now(),
	}).Error
}

// ==========================================
// LEDGER SNAPSHOT
// ==========================================

// Snapshot is everything the balance engine needs for one group, read in a
// single transaction.
type Snapshot struct {
	Group       models.Group
	Expenses    []models.Expense
	Settlements []models.Settlement
}

// LoadSnapshot reads a group's current and former members, expenses (with
// splits) and settlements under repeatable-read isolation so concurrent
// writes cannot produce a half-applied view. It fails with ErrTooManyExpenses when the
// group holds more than maxExpenses expenses.
func (s *Store) LoadSnapshot(ctx context.Context, groupID uuid.UUID, maxExpenses int) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Members").Preload("Members.User").First(&snap.Group, "id = ?", groupID).Error
		if err != nil {
			return notFound(err)
		}

		var count int64
		if err := tx.Model(&models.Expense{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
			return err
		}
		if count > int64(maxExpenses) {
			return fmt.Errorf("%w: %d > %d", ErrTooManyExpenses, count, maxExpenses)
		}

		if err := tx.Where("group_id = ?", groupID).Preload("Splits").Find(&snap.Expenses).Error; err != nil {
			return err
		}
		return tx.Where("group_id = ?", groupID).Find(&snap.Settlements).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
