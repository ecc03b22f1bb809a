package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/services"
	"github.com/uday169/split-it-app-backend/utils"
)

// The handler layer only needs these slices of the services.

type AuthAPI interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*models.AuthResponse, error)
}

type UserAPI interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserResponse, error)
	Update(ctx context.Context, userID uuid.UUID, req models.UpdateUserRequest) (*models.UserResponse, error)
}

type GroupAPI interface {
	Create(ctx context.Context, userID uuid.UUID, req models.CreateGroupRequest) (*models.GroupResponse, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.GroupResponse, error)
	Get(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupResponse, error)
	Update(ctx context.Context, userID, groupID uuid.UUID, req models.UpdateGroupRequest) (*models.GroupResponse, error)
	Delete(ctx context.Context, userID, groupID uuid.UUID) error
	Members(ctx context.Context, userID, groupID uuid.UUID) ([]models.GroupMemberResponse, error)
	AddMember(ctx context.Context, userID, groupID uuid.UUID, req models.AddMemberRequest) (*services.AddMemberResult, error)
	RemoveMember(ctx context.Context, userID, groupID, memberID uuid.UUID) error
}

type ExpenseAPI interface {
	Create(ctx context.Context, userID, groupID uuid.UUID, req models.CreateExpenseRequest) (*models.ExpenseResponse, error)
	List(ctx context.Context, userID, groupID uuid.UUID, page utils.PaginationQuery) ([]models.ExpenseResponse, error)
	Get(ctx context.Context, userID, expenseID uuid.UUID) (*models.ExpenseResponse, error)
	Update(ctx context.Context, userID, expenseID uuid.UUID, req models.UpdateExpenseRequest) (*models.ExpenseResponse, error)
	Delete(ctx context.Context, userID, expenseID uuid.UUID) error
}

type SettlementAPI interface {
	Create(ctx context.Context, userID uuid.UUID, req models.CreateSettlementRequest) (*models.Settlement, error)
	Confirm(ctx context.Context, userID, settlementID uuid.UUID) (*models.Settlement, error)
	Get(ctx context.Context, userID, settlementID uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, userID, groupID uuid.UUID) ([]models.Settlement, error)
}

type BalanceAPI interface {
	GroupBalances(ctx context.Context, userID, groupID uuid.UUID) (*models.GroupBalanceSummary, error)
	MyBalance(ctx context.Context, userID, groupID uuid.UUID) (*models.UserGroupBalance, error)
	Overall(ctx context.Context, userID uuid.UUID) (*models.OverallBalanceSummary, error)
}

type ActivityAPI interface {
	ForUser(ctx context.Context, userID uuid.UUID, page utils.PaginationQuery) ([]models.Activity, error)
	ForGroup(ctx context.Context, userID, groupID uuid.UUID, page utils.PaginationQuery) ([]models.Activity, error)
}

var (
	_ AuthAPI       = (*services.AuthService)(nil)
	_ UserAPI       = (*services.UserService)(nil)
	_ GroupAPI      = (*services.GroupService)(nil)
	_ ExpenseAPI    = (*services.ExpenseService)(nil)
	_ SettlementAPI = (*services.SettlementService)(nil)
	_ BalanceAPI    = (*services.BalanceService)(nil)
	_ ActivityAPI   = (*services.ActivityService)(nil)
)

// Handler serves the HTTP API on top of the services.
type Handler struct {
	Auth        AuthAPI
	Users       UserAPI
	Groups      GroupAPI
	Expenses    ExpenseAPI
	Settlements SettlementAPI
	Balances    BalanceAPI
	Activity    ActivityAPI
	AppName     string
	Log         *zap.Logger
}

func (h *Handler) fail(c *gin.Context, err error) {
	utils.RespondError(c, h.Log, err)
}

// Routes registers every endpoint on r. authLimit guards the public auth
// routes and requireAuth the /api group.
func (h *Handler) Routes(r *gin.Engine, requireAuth, authLimit gin.HandlerFunc) {
	r.GET("/health", h.Health)
	r.NoRoute(func(c *gin.Context) {
		utils.NotFound(c, "Route not found")
	})

	// ==========================================
	// AUTH ROUTES (public)
	// ==========================================
	auth := r.Group("/auth", authLimit)
	{
		auth.POST("/send-otp", h.SendOTP)
		auth.POST("/verify-otp", h.VerifyOTP)
	}

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api", requireAuth)
	{
		// User
		api.GET("/users/me", h.GetProfile)
		api.PATCH("/users/me", h.UpdateProfile)
		api.PUT("/users/me", h.UpdateProfile)
		api.PUT("/users/me/fcm-token", h.UpdateFCMToken)

		// Groups
		api.POST("/groups", h.CreateGroup)
		api.GET("/groups", h.GetGroups)
		api.GET("/groups/:id", h.GetGroup)
		api.PUT("/groups/:id", h.UpdateGroup)
		api.DELETE("/groups/:id", h.DeleteGroup)
		api.GET("/groups/:id/members", h.GetMembers)
		api.POST("/groups/:id/members", h.AddMember)
		api.POST("/groups/:id/invite", h.AddMember)
		api.DELETE("/groups/:id/members/:uid", h.RemoveMember)

		// Expenses
		api.POST("/groups/:id/expenses", h.CreateExpense)
		api.GET("/groups/:id/expenses", h.GetGroupExpenses)
		api.GET("/expenses/:id", h.GetExpense)
		api.PUT("/expenses/:id", h.UpdateExpense)
		api.DELETE("/expenses/:id", h.DeleteExpense)

		// Balances
		api.GET("/groups/:id/balances", h.GetGroupBalances)
		api.GET("/groups/:id/balances/me", h.GetMyGroupBalance)
		api.GET("/balances", h.GetOverallBalances)

		// Settlements
		api.POST("/settlements", h.CreateSettlement)
		api.POST("/groups/:id/settle", h.CreateGroupSettlement)
		api.GET("/settlements/:id", h.GetSettlement)
		api.POST("/settlements/:id/confirm", h.ConfirmSettlement)
		api.GET("/groups/:id/settlements", h.GetGroupSettlements)

		// Activity
		api.GET("/activity", h.GetActivity)
		api.GET("/groups/:id/activity", h.GetGroupActivity)
	}
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.AppName,
	})
}
