package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/utils"
)

// POST /api/groups/:id/expenses
func (h *Handler) CreateExpense(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	expense, err := h.Expenses.Create(c.Request.Context(), utils.GetCurrentUserID(c), groupID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Expense added", expense)
}

// GET /api/groups/:id/expenses?page=1&limit=20
func (h *Handler) GetGroupExpenses(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var page utils.PaginationQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	expenses, err := h.Expenses.List(c.Request.Context(), utils.GetCurrentUserID(c), groupID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", expenses)
}

// GET /api/expenses/:id
func (h *Handler) GetExpense(c *gin.Context) {
	expenseID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	expense, err := h.Expenses.Get(c.Request.Context(), utils.GetCurrentUserID(c), expenseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", expense)
}

// PUT /api/expenses/:id
func (h *Handler) UpdateExpense(c *gin.Context) {
	expenseID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	expense, err := h.Expenses.Update(c.Request.Context(), utils.GetCurrentUserID(c), expenseID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Expense updated", expense)
}

// DELETE /api/expenses/:id
func (h *Handler) DeleteExpense(c *gin.Context) {
	expenseID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.Expenses.Delete(c.Request.Context(), utils.GetCurrentUserID(c), expenseID); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}
