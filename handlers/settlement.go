package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/money"
	"github.com/uday169/split-it-app-backend/utils"
)

func (h *Handler) createSettlement(c *gin.Context, req models.CreateSettlementRequest) {
	settlement, err := h.Settlements.Create(c.Request.Context(), utils.GetCurrentUserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Settlement recorded", settlement)
}

// POST /api/settlements
func (h *Handler) CreateSettlement(c *gin.Context) {
	var req models.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	h.createSettlement(c, req)
}

// groupSettleRequest is the settlement body without group_id, which comes
// from the path.
type groupSettleRequest struct {
	FromUserID string      `json:"from_user_id" binding:"required,uuid"`
	ToUserID   string      `json:"to_user_id" binding:"required,uuid"`
	Amount     money.Money `json:"amount" binding:"required"`
	Currency   string      `json:"currency" binding:"omitempty,len=3"`
	Notes      string      `json:"notes"`
	Date       string      `json:"date"`
}

// POST /api/groups/:id/settle
func (h *Handler) CreateGroupSettlement(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req groupSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	h.createSettlement(c, models.CreateSettlementRequest{
		GroupID:    groupID.String(),
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Notes:      req.Notes,
		Date:       req.Date,
	})
}

// GET /api/settlements/:id
func (h *Handler) GetSettlement(c *gin.Context) {
	settlementID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	settlement, err := h.Settlements.Get(c.Request.Context(), utils.GetCurrentUserID(c), settlementID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", settlement)
}

// POST /api/settlements/:id/confirm
func (h *Handler) ConfirmSettlement(c *gin.Context) {
	settlementID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	settlement, err := h.Settlements.Confirm(c.Request.Context(), utils.GetCurrentUserID(c), settlementID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Settlement confirmed", settlement)
}

// GET /api/groups/:id/settlements
func (h *Handler) GetGroupSettlements(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	settlements, err := h.Settlements.List(c.Request.Context(), utils.GetCurrentUserID(c), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", settlements)
}
