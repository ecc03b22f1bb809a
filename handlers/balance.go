package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/utils"
)

// GET /api/groups/:id/balances
func (h *Handler) GetGroupBalances(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.Balances.GroupBalances(c.Request.Context(), utils.GetCurrentUserID(c), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// GET /api/groups/:id/balances/me
func (h *Handler) GetMyGroupBalance(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	balance, err := h.Balances.MyBalance(c.Request.Context(), utils.GetCurrentUserID(c), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", balance)
}

// GET /api/balances
func (h *Handler) GetOverallBalances(c *gin.Context) {
	summary, err := h.Balances.Overall(c.Request.Context(), utils.GetCurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", summary)
}
